package strategies

import (
	"encoding/json"
	"fmt"

	"github.com/kuanchen/stratsim/market"
)

// Action is the direction of a trade recommendation.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Signal is a strategy's trade recommendation, immutable once emitted.
// Variant-specific fields (indicator readings, crossover type, ...)
// live in Meta and are flattened into the JSON object on the wire.
type Signal struct {
	StrategyID string
	Symbol     string
	Action     Action
	Quantity   int64
	Price      float64
	Timestamp  market.Timestamp
	Confidence float64
	Reason     string
	Meta       map[string]any
}

// signal builds a Signal for the current bar. meta keys beyond the base
// schema are carried through to the published object.
func (b *base) signal(action Action, bar market.Bar, confidence float64, reason string, meta map[string]any) *Signal {
	symbol := bar.Symbol
	if symbol == "" {
		symbol = b.symbol
	}
	return &Signal{
		StrategyID: b.id,
		Symbol:     symbol,
		Action:     action,
		Quantity:   b.quantity,
		Price:      bar.Close,
		Timestamp:  bar.Time,
		Confidence: confidence,
		Reason:     reason,
		Meta:       meta,
	}
}

// baseSignalKeys are the fixed fields of the wire object; Meta entries
// never override them.
var baseSignalKeys = map[string]struct{}{
	"strategy_id": {},
	"symbol":      {},
	"action":      {},
	"quantity":    {},
	"price":       {},
	"timestamp":   {},
	"confidence":  {},
	"reason":      {},
}

func (s Signal) MarshalJSON() ([]byte, error) {
	obj := map[string]any{
		"strategy_id": s.StrategyID,
		"symbol":      s.Symbol,
		"action":      s.Action,
		"quantity":    s.Quantity,
		"price":       s.Price,
		"timestamp":   s.Timestamp,
		"confidence":  s.Confidence,
		"reason":      s.Reason,
	}
	for k, v := range s.Meta {
		if _, fixed := baseSignalKeys[k]; fixed {
			continue
		}
		obj[k] = v
	}
	return json.Marshal(obj)
}

func (s *Signal) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	take := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		return json.Unmarshal(v, dst)
	}
	if err := take("strategy_id", &s.StrategyID); err != nil {
		return err
	}
	if err := take("symbol", &s.Symbol); err != nil {
		return err
	}
	if err := take("action", &s.Action); err != nil {
		return err
	}
	if err := take("quantity", &s.Quantity); err != nil {
		return err
	}
	if err := take("price", &s.Price); err != nil {
		return err
	}
	if err := take("timestamp", &s.Timestamp); err != nil {
		return err
	}
	if err := take("confidence", &s.Confidence); err != nil {
		return err
	}
	if err := take("reason", &s.Reason); err != nil {
		return err
	}

	s.Meta = nil
	for k, v := range raw {
		if _, fixed := baseSignalKeys[k]; fixed {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		if s.Meta == nil {
			s.Meta = make(map[string]any)
		}
		s.Meta[k] = val
	}
	return nil
}

// ParseSignal decodes a signal payload from the bus and applies the
// minimal sanity checks the simulator relies on.
func ParseSignal(data []byte) (Signal, error) {
	var s Signal
	if err := json.Unmarshal(data, &s); err != nil {
		return Signal{}, fmt.Errorf("parse signal: %w", err)
	}
	if s.Action != Buy && s.Action != Sell {
		return Signal{}, fmt.Errorf("parse signal: bad action %q", s.Action)
	}
	if s.Quantity <= 0 {
		return Signal{}, fmt.Errorf("parse signal: quantity must be positive, got %d", s.Quantity)
	}
	return s, nil
}
