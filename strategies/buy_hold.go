package strategies

import "github.com/kuanchen/stratsim/market"

// BuyHold buys once on the first bar it sees and never trades again.
// It exists as a benchmark for the other variants.
type BuyHold struct {
	base
	bought bool
}

func buyHoldDefaults() map[string]any {
	return map[string]any{
		"symbol":   "SPY",
		"quantity": int64(100),
	}
}

func (s *BuyHold) Name() string { return "buy_hold" }

func (s *BuyHold) Initialize(id string, params map[string]any) error {
	s.initBase(id, mergeOver(buyHoldDefaults(), params), 100)
	if s.quantity <= 0 {
		return invalidParams(s.Name(), "quantity must be positive, got %d", s.quantity)
	}
	s.bought = false
	s.state["has_bought"] = false
	return nil
}

func (s *BuyHold) ProcessBar(b market.Bar) *Signal {
	s.window.Push(b.Close)
	if s.bought {
		return nil
	}
	s.bought = true
	s.state["has_bought"] = true
	return s.signal(Buy, b, 1.0, "initial_buy", nil)
}

func (s *BuyHold) OnStart() {}

func (s *BuyHold) OnStop() {}
