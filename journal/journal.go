// Package journal persists the fills produced by the execution
// simulator. It is an append-only record for later analysis, not a
// recovery mechanism.
package journal

import "time"

type FillRecord struct {
	FillID     uint64
	StrategyID string
	Symbol     string
	Action     string
	Quantity   int64
	Price      float64
	BasePrice  float64
	Slippage   float64
	Commission float64
	Position   int64
	Time       time.Time
}

type Journal interface {
	RecordFill(FillRecord) error
	Close() error
}

// Nop discards every record. Used when journaling is disabled and in
// tests that do not care about persistence.
type Nop struct{}

func (Nop) RecordFill(FillRecord) error { return nil }
func (Nop) Close() error                { return nil }
