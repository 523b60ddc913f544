// Package engine manages the loaded strategy instances: one runner
// goroutine per strategy id, each consuming its own bar subscription in
// arrival order and publishing signals back to the bus.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kuanchen/stratsim/bus"
	"github.com/kuanchen/stratsim/pkg/id"
	"github.com/kuanchen/stratsim/strategies"
)

var (
	ErrAlreadyLoaded = errors.New("strategy id already loaded")
	ErrNotLoaded     = errors.New("strategy not loaded")
)

// Loaded is the response to a successful load request.
type Loaded struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// StrategyStatus is the read-only view of one running strategy.
type StrategyStatus struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Symbol         string         `json:"symbol"`
	BarsProcessed  uint64         `json:"bars_processed"`
	SignalsEmitted uint64         `json:"signals_emitted"`
	State          map[string]any `json:"state"`
}

type Engine struct {
	bus      *bus.Bus
	registry *strategies.Registry
	log      zerolog.Logger

	mu      sync.Mutex
	runners map[string]*runner
}

func New(b *bus.Bus, reg *strategies.Registry, log zerolog.Logger) *Engine {
	return &Engine{
		bus:      b,
		registry: reg,
		log:      log,
		runners:  make(map[string]*runner),
	}
}

func (e *Engine) Registry() *strategies.Registry { return e.registry }

// Load creates a strategy instance and starts its runner. An empty
// instanceID gets a generated one. Create errors (unknown type, bad
// params) abort the load with nothing retained.
func (e *Engine) Load(strategyType, instanceID string, params map[string]any) (Loaded, error) {
	if instanceID == "" {
		instanceID = id.Instance(strategyType)
	}
	strat, err := e.registry.Create(strategyType, instanceID, params)
	if err != nil {
		return Loaded{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.runners[instanceID]; exists {
		return Loaded{}, fmt.Errorf("%w: %s", ErrAlreadyLoaded, instanceID)
	}

	merged := mergedParams(strat, params)
	symbol := symbolOf(merged)
	sub, err := e.bus.Subscribe("md.bars." + symbol)
	if err != nil {
		return Loaded{}, fmt.Errorf("subscribe bars for %s: %w", instanceID, err)
	}

	r := newRunner(strat, symbol, sub, e.bus, e.log)
	e.runners[instanceID] = r
	strat.OnStart()
	go r.run()

	e.log.Info().
		Str("strategy", instanceID).
		Str("type", strategyType).
		Str("symbol", symbol).
		Msg("strategy loaded")
	return Loaded{ID: instanceID, Type: strat.Name(), Params: merged}, nil
}

// Unload stops the runner for an id: the subscription closes, queued
// bars drain, OnStop fires, then the instance is discarded. Unloading
// an unknown id returns ErrNotLoaded with no side effects.
func (e *Engine) Unload(instanceID string) error {
	e.mu.Lock()
	r, ok := e.runners[instanceID]
	if ok {
		delete(e.runners, instanceID)
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, instanceID)
	}
	r.stop()
	e.log.Info().Str("strategy", instanceID).Msg("strategy unloaded")
	return nil
}

// Status returns a snapshot of every loaded strategy, sorted by id.
func (e *Engine) Status() []StrategyStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StrategyStatus, 0, len(e.runners))
	for instanceID, r := range e.runners {
		out = append(out, StrategyStatus{
			ID:             instanceID,
			Type:           r.strat.Name(),
			Symbol:         r.symbol,
			BarsProcessed:  r.bars.Load(),
			SignalsEmitted: r.signals.Load(),
			State:          r.snapshot(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counts sums bar and signal message counts across loaded strategies.
func (e *Engine) Counts() (bars, signals uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.runners {
		bars += r.bars.Load()
		signals += r.signals.Load()
	}
	return bars, signals
}

// Close unloads every strategy. Used at shutdown.
func (e *Engine) Close() {
	e.mu.Lock()
	runners := make([]*runner, 0, len(e.runners))
	for instanceID, r := range e.runners {
		runners = append(runners, r)
		delete(e.runners, instanceID)
	}
	e.mu.Unlock()
	for _, r := range runners {
		r.stop()
	}
}

// mergedParams prefers the strategy's own merged view (defaults +
// overrides) when the variant exposes it.
func mergedParams(strat strategies.Strategy, params map[string]any) map[string]any {
	if p, ok := strat.(interface{ Params() map[string]any }); ok {
		return p.Params()
	}
	return params
}

func symbolOf(params map[string]any) string {
	if s, ok := params["symbol"].(string); ok && s != "" {
		return s
	}
	return "SPY"
}
