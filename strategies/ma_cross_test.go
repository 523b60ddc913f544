package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuanchen/stratsim/market"
)

func barAt(close float64, minute int) market.Bar {
	return market.Bar{
		Symbol: "SPY",
		Time:   market.Timestamp{Time: time.Date(2024, 1, 2, 9, 30+minute, 0, 0, time.UTC)},
		Open:   close,
		High:   close + 0.5,
		Low:    close - 0.5,
		Close:  close,
		Volume: 1000,
	}
}

func feed(t *testing.T, s Strategy, closes []float64) []*Signal {
	t.Helper()
	var signals []*Signal
	for i, c := range closes {
		if sig := s.ProcessBar(barAt(c, i)); sig != nil {
			signals = append(signals, sig)
		}
	}
	return signals
}

func TestMACrossScenarioFromFlat(t *testing.T) {
	s := &MACross{}
	require.NoError(t, s.Initialize("ma-1", map[string]any{
		"fast_period": 2,
		"slow_period": 3,
	}))

	// Bars 1-2: not computable. Bar 3: both MAs exist, baseline only.
	// Bar 4: fast pulls above slow -> exactly one BUY. Bars 5-6: state
	// persists, no further signal.
	var signals []*Signal
	for i, c := range []float64{10, 10, 10, 20, 20, 20} {
		sig := s.ProcessBar(barAt(c, i))
		if sig != nil {
			signals = append(signals, sig)
			assert.Equal(t, 3, i, "signal must fire on bar index 3")
		}
	}

	require.Len(t, signals, 1)
	assert.Equal(t, Buy, signals[0].Action)
	assert.Equal(t, int64(100), signals[0].Quantity)
	assert.Equal(t, 20.0, signals[0].Price)
	assert.Equal(t, "golden_cross", signals[0].Meta["crossover_type"])
}

func TestMACrossBuyThenSell(t *testing.T) {
	s := &MACross{}
	require.NoError(t, s.Initialize("ma-2", map[string]any{
		"fast_period": 2,
		"slow_period": 3,
	}))

	closes := []float64{10, 10, 10, 20, 20, 20, 5, 5, 5}
	signals := feed(t, s, closes)

	require.Len(t, signals, 2)
	assert.Equal(t, Buy, signals[0].Action)
	assert.Equal(t, Sell, signals[1].Action)
	assert.Equal(t, "death_cross", signals[1].Meta["crossover_type"])

	state := s.State()
	assert.Equal(t, "flat", state["position"])
	assert.Equal(t, "below", state["ma_relationship"])
}

func TestMACrossNoSellWhileFlat(t *testing.T) {
	s := &MACross{}
	require.NoError(t, s.Initialize("ma-3", map[string]any{
		"fast_period": 2,
		"slow_period": 3,
	}))

	// First computable state is "above", then it crosses down. With no
	// long position there is nothing to sell.
	signals := feed(t, s, []float64{20, 20, 20, 5, 5, 5})
	assert.Empty(t, signals)
}

func TestMACrossFirstComputableStateNeverFires(t *testing.T) {
	s := &MACross{}
	require.NoError(t, s.Initialize("ma-4", map[string]any{
		"fast_period": 2,
		"slow_period": 3,
	}))

	signals := feed(t, s, []float64{10, 15, 20})
	assert.Empty(t, signals)
}

func TestMACrossEMAType(t *testing.T) {
	s := &MACross{}
	require.NoError(t, s.Initialize("ma-5", map[string]any{
		"fast_period": 2,
		"slow_period": 3,
		"ma_type":     "EMA",
	}))

	signals := feed(t, s, []float64{10, 10, 10, 30, 30, 30})
	require.Len(t, signals, 1)
	assert.Equal(t, "ema", signals[0].Meta["ma_type"])
}

func TestMACrossInvalidParams(t *testing.T) {
	cases := []map[string]any{
		{"fast_period": 50, "slow_period": 20},
		{"fast_period": 20, "slow_period": 20},
		{"fast_period": 0, "slow_period": 20},
		{"ma_type": "wma"},
		{"fast_period": 2, "slow_period": 3, "quantity": -5},
	}
	for _, params := range cases {
		s := &MACross{}
		err := s.Initialize("bad", params)
		assert.Error(t, err, "params %v", params)
	}
}

func TestMACrossStateSnapshotIsCopy(t *testing.T) {
	s := &MACross{}
	require.NoError(t, s.Initialize("ma-6", map[string]any{
		"fast_period": 2,
		"slow_period": 3,
	}))
	feed(t, s, []float64{10, 10, 10})

	snap := s.State()
	snap["ma_relationship"] = "tampered"
	assert.NotEqual(t, "tampered", s.State()["ma_relationship"])
}
