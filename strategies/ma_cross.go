package strategies

import (
	"fmt"
	"math"

	"github.com/kuanchen/stratsim/market"
)

// MACross fires on crossovers of a fast and a slow moving average.
// A cross up while flat buys; a cross down while long sells. The state
// machine tracks the previous fast/slow relationship so a state that
// merely persists never re-fires, and the very first computable state
// only establishes the baseline.
type MACross struct {
	base
	fastPeriod int
	slowPeriod int
	maType     string

	prevState string // "", "above", "below"
	long      bool
}

func maCrossDefaults() map[string]any {
	return map[string]any{
		"symbol":      "SPY",
		"quantity":    int64(100),
		"fast_period": int64(20),
		"slow_period": int64(50),
		"ma_type":     "sma",
	}
}

func (s *MACross) Name() string { return "ma_cross" }

func (s *MACross) Initialize(id string, params map[string]any) error {
	merged := mergeOver(maCrossDefaults(), params)
	fast := int(intParam(merged, "fast_period", 20))
	slow := int(intParam(merged, "slow_period", 50))
	maType := normalized(strParam(merged, "ma_type", "sma"))

	if fast <= 0 || slow <= 0 {
		return invalidParams(s.Name(), "periods must be positive")
	}
	if fast >= slow {
		return invalidParams(s.Name(), "fast_period must be less than slow_period (%d >= %d)", fast, slow)
	}
	if maType != "sma" && maType != "ema" {
		return invalidParams(s.Name(), "ma_type must be 'sma' or 'ema', got %q", maType)
	}

	historySize := slow + 10
	if historySize < 100 {
		historySize = 100
	}
	s.initBase(id, merged, historySize)
	if s.quantity <= 0 {
		return invalidParams(s.Name(), "quantity must be positive, got %d", s.quantity)
	}

	s.fastPeriod = fast
	s.slowPeriod = slow
	s.maType = maType
	s.prevState = ""
	s.long = false
	return nil
}

func (s *MACross) ProcessBar(b market.Bar) *Signal {
	s.window.Push(b.Close)

	fast, fastOK := s.ma(s.fastPeriod)
	slow, slowOK := s.ma(s.slowPeriod)
	if !fastOK || !slowOK {
		return nil
	}

	state := "below"
	if fast > slow {
		state = "above"
	}

	var sig *Signal
	if s.prevState != "" && s.prevState != state {
		switch {
		case state == "above" && !s.long:
			s.long = true
			sig = s.signal(Buy, b, 0.85,
				fmt.Sprintf("fast %s(%d) crossed above slow %s(%d)", s.maType, s.fastPeriod, s.maType, s.slowPeriod),
				map[string]any{
					"fast_ma":        round2(fast),
					"slow_ma":        round2(slow),
					"crossover_type": "golden_cross",
					"ma_type":        s.maType,
				})
		case state == "below" && s.long:
			s.long = false
			sig = s.signal(Sell, b, 0.85,
				fmt.Sprintf("fast %s(%d) crossed below slow %s(%d)", s.maType, s.fastPeriod, s.maType, s.slowPeriod),
				map[string]any{
					"fast_ma":        round2(fast),
					"slow_ma":        round2(slow),
					"crossover_type": "death_cross",
					"ma_type":        s.maType,
				})
		}
	}
	s.prevState = state

	s.state["fast_ma"] = round2(fast)
	s.state["slow_ma"] = round2(slow)
	s.state["ma_relationship"] = state
	s.state["position"] = positionLabel(s.long)
	return sig
}

func (s *MACross) ma(period int) (float64, bool) {
	if s.maType == "ema" {
		return s.window.EMA(period)
	}
	return s.window.SMA(period)
}

func (s *MACross) OnStart() {}

func (s *MACross) OnStop() {}

func positionLabel(long bool) string {
	if long {
		return "long"
	}
	return "flat"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
