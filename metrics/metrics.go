// Package metrics registers the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_total", Help: "Bars consumed from the bus"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted by strategies"},
		[]string{"strategy", "action"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fills_total", Help: "Simulated fills"},
		[]string{"strategy", "action"},
	)
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rejections_total", Help: "Signals rejected by the simulator"},
		[]string{"strategy"},
	)
	MalformedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "malformed_messages_total", Help: "Dropped undecodable bus payloads"},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(BarsTotal, SignalsTotal, FillsTotal, RejectionsTotal, MalformedTotal)
}
