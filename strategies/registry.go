package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Factory constructs an uninitialized strategy instance.
type Factory func() Strategy

// Info describes a registered strategy type.
type Info struct {
	Name        string         `json:"name"`
	Defaults    map[string]any `json:"default_params"`
	Description string         `json:"description"`
}

// UnknownStrategyError is returned by Create and InfoFor when the
// requested type was never registered. Available carries the sorted
// list of known names for the caller's error response.
type UnknownStrategyError struct {
	Name      string
	Available []string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("strategy %q not found, available: %s", e.Name, strings.Join(e.Available, ", "))
}

type entry struct {
	factory     Factory
	defaults    map[string]any
	description string
}

// Registry maps strategy type names to factories. Read-mostly after
// startup; registration of the built-ins happens in NewRegistry, with
// no filesystem discovery involved.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	log     zerolog.Logger
}

// NewRegistry returns a registry with the built-in variants registered.
func NewRegistry(log zerolog.Logger) *Registry {
	r := &Registry{
		entries: make(map[string]entry),
		log:     log,
	}
	r.Register("buy_hold", func() Strategy { return &BuyHold{} },
		buyHoldDefaults(), "Buy on the first bar and hold forever; baseline benchmark")
	r.Register("ma_cross", func() Strategy { return &MACross{} },
		maCrossDefaults(), "Fast/slow moving average crossover")
	r.Register("rsi", func() Strategy { return &RSIReversion{} },
		rsiDefaults(), "RSI mean reversion on oversold/overbought extremes")
	return r
}

// Register adds a strategy type. Re-registering an existing name logs a
// warning and overwrites; last registration wins.
func (r *Registry) Register(name string, f Factory, defaults map[string]any, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		r.log.Warn().Str("strategy", name).Msg("strategy already registered, overwriting")
	}
	r.entries[name] = entry{factory: f, defaults: defaults, description: description}
}

// Create instantiates and initializes a strategy. It propagates
// Initialize errors, so a bad parameter set never yields a half-built
// instance.
func (r *Registry) Create(name, strategyID string, params map[string]any) (Strategy, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownStrategyError{Name: name, Available: r.Names()}
	}
	strat := e.factory()
	if params == nil {
		params = map[string]any{}
	}
	if err := strat.Initialize(strategyID, params); err != nil {
		return nil, err
	}
	return strat, nil
}

// Names returns the sorted registered type names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns a snapshot of every registered type.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, Info{Name: name, Defaults: e.defaults, Description: e.description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// InfoFor returns details for one registered type.
func (r *Registry) InfoFor(name string) (Info, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Info{}, &UnknownStrategyError{Name: name, Available: r.Names()}
	}
	return Info{Name: name, Defaults: e.defaults, Description: e.description}, nil
}
