// Package strategies contains the strategy contract, the built-in
// strategy variants, and the registry that instantiates them.
package strategies

import (
	"fmt"
	"strings"

	"github.com/kuanchen/stratsim/indicators"
	"github.com/kuanchen/stratsim/market"
)

// Strategy is the contract every strategy variant implements. One
// instance serves one loaded strategy id; all calls for an instance are
// serialized by its owning runner.
type Strategy interface {
	// Name returns the registered strategy type, e.g. "ma_cross".
	Name() string

	// ID returns the instance id assigned at load time.
	ID() string

	// Initialize merges params over the variant defaults and validates
	// them. A returned error aborts the load request.
	Initialize(id string, params map[string]any) error

	// ProcessBar consumes the next bar and returns at most one signal.
	ProcessBar(b market.Bar) *Signal

	// OnStart and OnStop are lifecycle hooks for observability only.
	OnStart()
	OnStop()

	// State returns a read-only snapshot for status reporting.
	State() map[string]any
}

// InvalidParamsError reports a parameter constraint violation found
// during Initialize.
type InvalidParamsError struct {
	Strategy string
	Reason   string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid parameters for %s: %s", e.Strategy, e.Reason)
}

func invalidParams(strategy, format string, args ...any) error {
	return &InvalidParamsError{Strategy: strategy, Reason: fmt.Sprintf(format, args...)}
}

// base carries the fields shared by every variant: the instance id, the
// merged parameter map, the rolling price window, and the state
// snapshot map. Variants embed it and fill it in from Initialize.
type base struct {
	id       string
	params   map[string]any
	window   *indicators.Window
	state    map[string]any
	symbol   string
	quantity int64
}

// mergeOver lays the caller's params over the variant defaults. Each
// Initialize merges once and hands the result to both its validation
// and initBase.
func mergeOver(defaults, params map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(params))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// initBase takes the already-merged parameter map (see mergeOver) and
// sets up a window with the given capacity. All per-instance state
// exists from construction; no field is conjured mid-run.
func (b *base) initBase(id string, merged map[string]any, historySize int) {
	b.id = id
	b.params = merged
	b.window = indicators.NewWindow(historySize)
	b.state = make(map[string]any)
	b.symbol = strParam(merged, "symbol", "SPY")
	b.quantity = intParam(merged, "quantity", 100)
}

func (b *base) ID() string { return b.id }

func (b *base) Params() map[string]any { return b.params }

// State returns a copy so callers cannot mutate strategy internals.
func (b *base) State() map[string]any {
	out := make(map[string]any, len(b.state))
	for k, v := range b.state {
		out[k] = v
	}
	return out
}

// Parameter maps come from JSON bodies and config files, so numbers may
// arrive as float64, int, or json-ish strings. These helpers coerce
// without being fussy about the source.

func strParam(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

func floatParam(m map[string]any, key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

func intParam(m map[string]any, key string, def int64) int64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	default:
		return def
	}
}

func boolParam(m map[string]any, key string, def bool) bool {
	v, ok := m[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func normalized(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
