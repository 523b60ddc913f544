// Package sim simulates order execution against strategy signals. It
// validates each signal against the session's position ledger and
// computes slippage-adjusted fills from the latest market prices.
package sim

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/kuanchen/stratsim/journal"
	"github.com/kuanchen/stratsim/market"
	"github.com/kuanchen/stratsim/strategies"
)

// Fill modes select how the base price is read from the latest bar.
// Slippage is applied identically in every mode.
const (
	// FillModeConservative fills BUYs at the bar high and SELLs at the
	// bar low. This is the default.
	FillModeConservative = "conservative"
	// FillModeOptimistic fills BUYs at the bar low and SELLs at the high.
	FillModeOptimistic = "optimistic"
	// FillModeRealistic fills both sides at the close.
	FillModeRealistic = "realistic"
)

// Config is the process-wide execution configuration. It is published
// as a whole snapshot so concurrent readers never observe a partial
// update.
type Config struct {
	SlippagePct float64 `json:"slippage_pct"`
	Commission  float64 `json:"commission"`
	FillMode    string  `json:"fill_mode"`
}

func DefaultConfig() Config {
	return Config{
		SlippagePct: 0.01,
		Commission:  1.0,
		FillMode:    FillModeConservative,
	}
}

const rejectNoPosition = "no position to sell"

// Simulator owns the sessions and the fill counter. All signal
// processing for a session happens on the consumer goroutine; the
// mutex exists so control-plane calls (reset, snapshots) stay safe.
type Simulator struct {
	mu       sync.Mutex
	sessions map[string]*Session

	prices  *market.BarStore
	cfg     atomic.Value // Config
	fillSeq atomic.Uint64
	journal journal.Journal
	log     zerolog.Logger
}

func NewSimulator(cfg Config, prices *market.BarStore, j journal.Journal, log zerolog.Logger) *Simulator {
	if cfg.FillMode == "" {
		cfg.FillMode = FillModeConservative
	}
	if j == nil {
		j = journal.Nop{}
	}
	s := &Simulator{
		sessions: make(map[string]*Session),
		prices:   prices,
		journal:  j,
		log:      log,
	}
	s.cfg.Store(cfg)
	return s
}

func (s *Simulator) Config() Config {
	return s.cfg.Load().(Config)
}

// UpdateConfig merges a partial update over the current config and
// swaps the snapshot atomically. Unknown keys are ignored.
func (s *Simulator) UpdateConfig(patch map[string]any) Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.Config()
	if v, ok := patch["slippage_pct"]; ok {
		if f, ok := toFloat(v); ok {
			cfg.SlippagePct = f
		}
	}
	if v, ok := patch["commission"]; ok {
		if f, ok := toFloat(v); ok {
			cfg.Commission = f
		}
	}
	if v, ok := patch["fill_mode"]; ok {
		if m, ok := v.(string); ok {
			switch strings.ToLower(strings.TrimSpace(m)) {
			case FillModeConservative:
				cfg.FillMode = FillModeConservative
			case FillModeOptimistic:
				cfg.FillMode = FillModeOptimistic
			case FillModeRealistic:
				cfg.FillMode = FillModeRealistic
			}
		}
	}
	s.cfg.Store(cfg)
	return cfg
}

// SimulateFill validates the signal against its session ledger and
// either returns a fill or a rejection, never both. The simulator does
// not publish; the caller owns the bus.
func (s *Simulator) SimulateFill(sig strategies.Signal) (*Fill, *Rejection) {
	s.mu.Lock()

	sess, ok := s.sessions[sig.StrategyID]
	if !ok {
		sess = newSession(sig.StrategyID)
		s.sessions[sig.StrategyID] = sess
	}

	quantity := sig.Quantity
	current := sess.Position(sig.Symbol)

	if sig.Action == strategies.Sell {
		if current <= 0 {
			s.mu.Unlock()
			return nil, &Rejection{
				StrategyID: sig.StrategyID,
				Reason:     rejectNoPosition,
				Signal:     sig,
				Timestamp:  sig.Timestamp,
			}
		}
		// Oversized SELLs are clamped to the held position rather than
		// rejected outright.
		if quantity > current {
			s.log.Debug().Str("strategy", sig.StrategyID).
				Int64("requested", quantity).Int64("held", current).
				Msg("clamping sell quantity to position")
			quantity = current
		}
	}

	cfg := s.Config()
	basePrice, ts := s.basePrice(sig, cfg.FillMode)

	slippage := basePrice * cfg.SlippagePct / 100
	fillPrice := basePrice + slippage
	delta := quantity
	if sig.Action == strategies.Sell {
		fillPrice = basePrice - slippage
		delta = -quantity
	}

	position := sess.apply(sig.Symbol, delta)

	fill := Fill{
		FillID:     s.fillSeq.Add(1),
		StrategyID: sig.StrategyID,
		Symbol:     sig.Symbol,
		Action:     sig.Action,
		Quantity:   quantity,
		Price:      fillPrice,
		BasePrice:  basePrice,
		Slippage:   slippage,
		Commission: cfg.Commission,
		Position:   position,
		Timestamp:  ts,
	}
	sess.fills = append(sess.fills, fill)
	s.mu.Unlock()

	// The journal write happens outside the lock so a slow disk write
	// never blocks status reads or resets.
	if err := s.journal.RecordFill(journal.FillRecord{
		FillID:     fill.FillID,
		StrategyID: fill.StrategyID,
		Symbol:     fill.Symbol,
		Action:     string(fill.Action),
		Quantity:   fill.Quantity,
		Price:      fill.Price,
		BasePrice:  fill.BasePrice,
		Slippage:   fill.Slippage,
		Commission: fill.Commission,
		Position:   fill.Position,
		Time:       fill.Timestamp.Time,
	}); err != nil {
		s.log.Warn().Err(err).Uint64("fill_id", fill.FillID).Msg("journal write failed")
	}

	return &fill, nil
}

// basePrice prefers the latest known market price for the symbol over
// the signal's own embedded price: the side-appropriate extreme first,
// then the close, then the signal price.
func (s *Simulator) basePrice(sig strategies.Signal, mode string) (float64, market.Timestamp) {
	bar, err := s.prices.Get(sig.Symbol)
	if err != nil {
		return sig.Price, sig.Timestamp
	}

	var side float64
	switch mode {
	case FillModeOptimistic:
		side = bar.Low
		if sig.Action == strategies.Sell {
			side = bar.High
		}
	case FillModeRealistic:
		side = bar.Close
	default:
		side = bar.High
		if sig.Action == strategies.Sell {
			side = bar.Low
		}
	}

	switch {
	case side > 0:
		return side, bar.Time
	case bar.Close > 0:
		return bar.Close, bar.Time
	default:
		return sig.Price, sig.Timestamp
	}
}

// Reset clears one session's ledger and fill history. Returns false if
// the session does not exist; resetting nothing is not an error.
func (s *Simulator) Reset(strategyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[strategyID]; !ok {
		return false
	}
	delete(s.sessions, strategyID)
	return true
}

// ResetAll drops every session and returns how many were cleared.
func (s *Simulator) ResetAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	s.sessions = make(map[string]*Session)
	return n
}

// FillCount reports the total fills simulated since process start.
// The counter survives session resets; fill ids stay unique.
func (s *Simulator) FillCount() uint64 {
	return s.fillSeq.Load()
}

// SessionSummary is the status-reporting view of one session.
type SessionSummary struct {
	StrategyID string           `json:"strategy_id"`
	Positions  map[string]int64 `json:"positions"`
	FillCount  int              `json:"fill_count"`
}

// Sessions returns summaries sorted by strategy id.
func (s *Simulator) Sessions() []SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionSummary, 0, len(s.sessions))
	for id, sess := range s.sessions {
		out = append(out, SessionSummary{
			StrategyID: id,
			Positions:  sess.Positions(),
			FillCount:  len(sess.fills),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StrategyID < out[j].StrategyID })
	return out
}

// Session returns the live session for a strategy id, or nil.
func (s *Simulator) Session(strategyID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[strategyID]
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
