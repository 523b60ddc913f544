package sim

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kuanchen/stratsim/bus"
	"github.com/kuanchen/stratsim/market"
	"github.com/kuanchen/stratsim/metrics"
	"github.com/kuanchen/stratsim/strategies"
)

// Service connects the simulator to the bus: it caches the latest bar
// per symbol, feeds every strategy signal through SimulateFill, and
// publishes the resulting fill or rejection. One goroutine consumes
// both subscriptions, which serializes all ledger mutations.
type Service struct {
	bus *bus.Bus
	sim *Simulator
	log zerolog.Logger

	barSub *bus.Subscription
	sigSub *bus.Subscription
	done   chan struct{}
}

func NewService(b *bus.Bus, sim *Simulator, log zerolog.Logger) *Service {
	return &Service{bus: b, sim: sim, log: log}
}

func (s *Service) Start() error {
	barSub, err := s.bus.Subscribe("md.bars.*")
	if err != nil {
		return fmt.Errorf("subscribe bars: %w", err)
	}
	sigSub, err := s.bus.Subscribe("strategy.signals.*")
	if err != nil {
		barSub.Unsubscribe()
		return fmt.Errorf("subscribe signals: %w", err)
	}
	s.barSub = barSub
	s.sigSub = sigSub
	s.done = make(chan struct{})

	go s.run()
	return nil
}

// Stop drains the consumer: both subscriptions close, the run loop
// finishes whatever signal it is processing, then exits.
func (s *Service) Stop() {
	if s.barSub == nil {
		return
	}
	s.barSub.Unsubscribe()
	s.sigSub.Unsubscribe()
	<-s.done
}

func (s *Service) run() {
	defer close(s.done)
	bars := s.barSub.C
	sigs := s.sigSub.C
	for bars != nil || sigs != nil {
		select {
		case ev, ok := <-bars:
			if !ok {
				bars = nil
				continue
			}
			s.handleBar(ev)
		case ev, ok := <-sigs:
			if !ok {
				sigs = nil
				continue
			}
			s.handleSignal(ev)
		}
	}
}

func (s *Service) handleBar(ev bus.Event) {
	bar, err := market.ParseBar(ev.Data)
	if err != nil {
		metrics.MalformedTotal.WithLabelValues("bar").Inc()
		s.log.Warn().Err(err).Str("subject", ev.Subject).Msg("dropping malformed bar")
		return
	}
	if bar.Symbol == "" {
		bar.Symbol = bus.LastToken(ev.Subject)
	}
	metrics.BarsTotal.WithLabelValues(bar.Symbol).Inc()
	s.sim.prices.Set(bar)
}

func (s *Service) handleSignal(ev bus.Event) {
	sig, err := strategies.ParseSignal(ev.Data)
	if err != nil {
		metrics.MalformedTotal.WithLabelValues("signal").Inc()
		s.log.Warn().Err(err).Str("subject", ev.Subject).Msg("dropping malformed signal")
		return
	}
	if sig.StrategyID == "" {
		sig.StrategyID = bus.LastToken(ev.Subject)
	}

	fill, rejection := s.sim.SimulateFill(sig)
	if rejection != nil {
		metrics.RejectionsTotal.WithLabelValues(sig.StrategyID).Inc()
		s.log.Info().Str("strategy", sig.StrategyID).Str("reason", rejection.Reason).Msg("signal rejected")
		s.publish("execution.rejections."+sig.StrategyID, rejection)
		return
	}

	metrics.FillsTotal.WithLabelValues(fill.StrategyID, string(fill.Action)).Inc()
	s.log.Info().
		Str("strategy", fill.StrategyID).
		Str("action", string(fill.Action)).
		Int64("quantity", fill.Quantity).
		Float64("price", fill.Price).
		Int64("position", fill.Position).
		Msg("fill")
	s.publish("execution.fills."+fill.StrategyID, fill)
}

func (s *Service) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Str("subject", subject).Msg("marshal failed")
		return
	}
	if err := s.bus.Publish(subject, data); err != nil {
		s.log.Warn().Err(err).Str("subject", subject).Msg("publish failed")
	}
}
