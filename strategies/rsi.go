package strategies

import "github.com/kuanchen/stratsim/market"

// RSIReversion trades RSI extremes. In confirmation mode (the default)
// it waits for RSI to leave the extreme zone before firing: the zone
// entry sets a sticky flag which the recovery bar consumes. In
// immediate mode it fires the moment RSI crosses into the zone.
type RSIReversion struct {
	base
	rsiPeriod       int
	oversold        float64
	overbought      float64
	useConfirmation bool

	long         bool
	lastRSI      float64
	haveLastRSI  bool
	inOversold   bool
	inOverbought bool
}

func rsiDefaults() map[string]any {
	return map[string]any{
		"symbol":               "SPY",
		"quantity":             int64(100),
		"rsi_period":           int64(14),
		"oversold_threshold":   30.0,
		"overbought_threshold": 70.0,
		"use_confirmation":     true,
	}
}

func (s *RSIReversion) Name() string { return "rsi" }

func (s *RSIReversion) Initialize(id string, params map[string]any) error {
	merged := mergeOver(rsiDefaults(), params)
	period := int(intParam(merged, "rsi_period", 14))
	oversold := floatParam(merged, "oversold_threshold", 30)
	overbought := floatParam(merged, "overbought_threshold", 70)

	if period < 2 {
		return invalidParams(s.Name(), "rsi_period must be at least 2, got %d", period)
	}
	if !(0 < oversold && oversold < overbought && overbought < 100) {
		return invalidParams(s.Name(), "thresholds must satisfy 0 < oversold < overbought < 100")
	}

	historySize := period + 20
	if historySize < 100 {
		historySize = 100
	}
	s.initBase(id, merged, historySize)
	if s.quantity <= 0 {
		return invalidParams(s.Name(), "quantity must be positive, got %d", s.quantity)
	}

	s.rsiPeriod = period
	s.oversold = oversold
	s.overbought = overbought
	s.useConfirmation = boolParam(merged, "use_confirmation", true)
	s.long = false
	s.haveLastRSI = false
	s.inOversold = false
	s.inOverbought = false
	return nil
}

func (s *RSIReversion) ProcessBar(b market.Bar) *Signal {
	s.window.Push(b.Close)

	rsi, ok := s.window.RSI(s.rsiPeriod)
	if !ok {
		return nil
	}

	// Zone entry flags are sticky until a signal consumes them.
	if rsi < s.oversold {
		s.inOversold = true
	}
	if rsi > s.overbought {
		s.inOverbought = true
	}

	var sig *Signal
	if s.useConfirmation {
		sig = s.confirmationSignal(b, rsi)
	} else {
		sig = s.immediateSignal(b, rsi)
	}

	s.lastRSI = rsi
	s.haveLastRSI = true
	s.state["rsi"] = round2(rsi)
	s.state["position"] = positionLabel(s.long)
	s.state["in_oversold_zone"] = s.inOversold
	s.state["in_overbought_zone"] = s.inOverbought
	return sig
}

func (s *RSIReversion) confirmationSignal(b market.Bar, rsi float64) *Signal {
	if s.inOversold && rsi > s.oversold && !s.long {
		s.long = true
		s.inOversold = false
		return s.signal(Buy, b, 0.8, "rsi_oversold_recovery", map[string]any{
			"rsi":         round2(rsi),
			"signal_type": "confirmation",
		})
	}
	if s.inOverbought && rsi < s.overbought && s.long {
		s.long = false
		s.inOverbought = false
		return s.signal(Sell, b, 0.8, "rsi_overbought_reversal", map[string]any{
			"rsi":         round2(rsi),
			"signal_type": "confirmation",
		})
	}
	return nil
}

func (s *RSIReversion) immediateSignal(b market.Bar, rsi float64) *Signal {
	crossedBelow := !s.haveLastRSI || s.lastRSI >= s.oversold
	if rsi < s.oversold && crossedBelow && !s.long {
		s.long = true
		return s.signal(Buy, b, 0.75, "rsi_oversold", map[string]any{
			"rsi":         round2(rsi),
			"signal_type": "immediate",
		})
	}
	crossedAbove := !s.haveLastRSI || s.lastRSI <= s.overbought
	if rsi > s.overbought && crossedAbove && s.long {
		s.long = false
		return s.signal(Sell, b, 0.75, "rsi_overbought", map[string]any{
			"rsi":         round2(rsi),
			"signal_type": "immediate",
		})
	}
	return nil
}

func (s *RSIReversion) OnStart() {}

func (s *RSIReversion) OnStop() {}
