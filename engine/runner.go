package engine

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/kuanchen/stratsim/bus"
	"github.com/kuanchen/stratsim/market"
	"github.com/kuanchen/stratsim/metrics"
	"github.com/kuanchen/stratsim/strategies"
)

// runner is the serialization domain for one loaded strategy: a single
// goroutine consumes the bar subscription in arrival order, so the
// strategy's window and state are never touched concurrently. Status
// reads go through a snapshot the runner refreshes after each bar.
type runner struct {
	strat  strategies.Strategy
	symbol string
	sub    *bus.Subscription
	bus    *bus.Bus
	log    zerolog.Logger
	done   chan struct{}

	bars    atomic.Uint64
	signals atomic.Uint64

	mu    sync.Mutex
	state map[string]any
}

func newRunner(strat strategies.Strategy, symbol string, sub *bus.Subscription, b *bus.Bus, log zerolog.Logger) *runner {
	return &runner{
		strat:  strat,
		symbol: symbol,
		sub:    sub,
		bus:    b,
		log:    log,
		done:   make(chan struct{}),
		state:  strat.State(),
	}
}

// run drains the subscription until it closes, then fires OnStop. The
// channel close is the unload signal; everything queued before it is
// still processed.
func (r *runner) run() {
	defer close(r.done)
	for ev := range r.sub.C {
		r.processBar(ev)
	}
	r.strat.OnStop()
}

func (r *runner) processBar(ev bus.Event) {
	bar, err := market.ParseBar(ev.Data)
	if err != nil {
		metrics.MalformedTotal.WithLabelValues("bar").Inc()
		r.log.Warn().Err(err).Str("strategy", r.strat.ID()).Msg("dropping malformed bar")
		return
	}
	if bar.Symbol == "" {
		bar.Symbol = bus.LastToken(ev.Subject)
	}
	r.bars.Add(1)

	sig := r.strat.ProcessBar(bar)

	r.mu.Lock()
	r.state = r.strat.State()
	r.mu.Unlock()

	if sig == nil {
		return
	}
	r.signals.Add(1)
	metrics.SignalsTotal.WithLabelValues(r.strat.Name(), string(sig.Action)).Inc()

	data, err := json.Marshal(sig)
	if err != nil {
		r.log.Error().Err(err).Str("strategy", r.strat.ID()).Msg("marshal signal failed")
		return
	}
	if err := r.bus.Publish("strategy.signals."+r.strat.ID(), data); err != nil {
		r.log.Warn().Err(err).Str("strategy", r.strat.ID()).Msg("publish signal failed")
	}
	r.log.Info().
		Str("strategy", r.strat.ID()).
		Str("action", string(sig.Action)).
		Str("symbol", sig.Symbol).
		Float64("price", sig.Price).
		Str("reason", sig.Reason).
		Msg("signal")
}

// stop unsubscribes and waits for the drain to finish.
func (r *runner) stop() {
	r.sub.Unsubscribe()
	<-r.done
}

func (r *runner) snapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
