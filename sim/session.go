package sim

import (
	"github.com/kuanchen/stratsim/market"
	"github.com/kuanchen/stratsim/strategies"
)

// Fill is a simulated completed trade. Immutable once published.
type Fill struct {
	FillID     uint64            `json:"fill_id"`
	StrategyID string            `json:"strategy_id"`
	Symbol     string            `json:"symbol"`
	Action     strategies.Action `json:"action"`
	Quantity   int64             `json:"quantity"`
	Price      float64           `json:"price"`
	BasePrice  float64           `json:"base_price"`
	Slippage   float64           `json:"slippage"`
	Commission float64           `json:"commission"`
	Position   int64             `json:"position_after"`
	Timestamp  market.Timestamp  `json:"timestamp"`
}

// Rejection is emitted instead of a Fill when a signal fails
// validation. It carries the original signal for diagnosis.
type Rejection struct {
	StrategyID string            `json:"strategy_id"`
	Reason     string            `json:"reason"`
	Signal     strategies.Signal `json:"original_signal"`
	Timestamp  market.Timestamp  `json:"timestamp"`
}

// Session scopes position and fill history to one running strategy.
// Sessions are created lazily on the first signal for an unseen
// strategy id and are only touched under the simulator lock.
type Session struct {
	StrategyID string
	positions  map[string]int64
	fills      []Fill
}

func newSession(strategyID string) *Session {
	return &Session{
		StrategyID: strategyID,
		positions:  make(map[string]int64),
	}
}

// Position returns the signed share count for a symbol, zero when the
// symbol has never traded.
func (s *Session) Position(symbol string) int64 {
	return s.positions[symbol]
}

func (s *Session) apply(symbol string, delta int64) int64 {
	s.positions[symbol] += delta
	return s.positions[symbol]
}

// Positions returns a copy of the ledger.
func (s *Session) Positions() map[string]int64 {
	out := make(map[string]int64, len(s.positions))
	for sym, qty := range s.positions {
		out[sym] = qty
	}
	return out
}

// Fills returns a copy of the fill history in fill order.
func (s *Session) Fills() []Fill {
	out := make([]Fill, len(s.fills))
	copy(out, s.fills)
	return out
}
