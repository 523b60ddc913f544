package market

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Bar represents one OHLCV price sample for a fixed time interval.
// Bars arrive in nondecreasing time order per symbol; the engine does
// not validate global ordering.
type Bar struct {
	Symbol string    `json:"symbol"`
	Time   Timestamp `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// ParseBar decodes a JSON bar payload from the bus.
func ParseBar(data []byte) (Bar, error) {
	var b Bar
	if err := json.Unmarshal(data, &b); err != nil {
		return Bar{}, fmt.Errorf("parse bar: %w", err)
	}
	return b, nil
}

// Timestamp wraps time.Time so bar feeds may send either RFC3339 or the
// "2006-01-02 15:04:05" form used by the minute-bar replay files.
type Timestamp struct {
	time.Time
}

var barTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return ts.Parse(s)
}

// Parse accepts any of the supported bar time layouts. An empty string
// yields the zero time.
func (ts *Timestamp) Parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	for _, layout := range barTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			ts.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized bar time %q", s)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(ts.Format(time.RFC3339))
}
