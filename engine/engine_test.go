package engine

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuanchen/stratsim/bus"
	"github.com/kuanchen/stratsim/market"
	"github.com/kuanchen/stratsim/strategies"
)

func newTestEngine(t *testing.T) (*Engine, *bus.Bus) {
	t.Helper()
	b := bus.New(64)
	t.Cleanup(b.Close)
	reg := strategies.NewRegistry(zerolog.Nop())
	e := New(b, reg, zerolog.Nop())
	t.Cleanup(e.Close)
	return e, b
}

func publishBar(t *testing.T, b *bus.Bus, symbol string, close float64, minute int) {
	t.Helper()
	bar := market.Bar{
		Symbol: symbol,
		Time:   market.Timestamp{Time: time.Date(2024, 3, 1, 10, minute, 0, 0, time.UTC)},
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 100,
	}
	data, err := json.Marshal(bar)
	require.NoError(t, err)
	require.NoError(t, b.Publish("md.bars."+symbol, data))
}

func waitForBars(t *testing.T, e *Engine, instanceID string, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, st := range e.Status() {
			if st.ID == instanceID {
				return st.BarsProcessed >= n
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLoadGeneratesInstanceID(t *testing.T) {
	e, _ := newTestEngine(t)

	loaded, err := e.Load("buy_hold", "", nil)
	require.NoError(t, err)
	assert.Contains(t, loaded.ID, "buy_hold-")
	assert.Equal(t, "buy_hold", loaded.Type)
	assert.Equal(t, "SPY", loaded.Params["symbol"])
}

func TestLoadUnknownType(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Load("nonexistent", "x", nil)
	var unknown *strategies.UnknownStrategyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"buy_hold", "ma_cross", "rsi"}, unknown.Available)
	assert.Empty(t, e.Status())
}

func TestLoadInvalidParams(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Load("ma_cross", "x", map[string]any{"fast_period": 50, "slow_period": 20})
	var invalid *strategies.InvalidParamsError
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, e.Status())
}

func TestLoadDuplicateID(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Load("buy_hold", "dup", nil)
	require.NoError(t, err)
	_, err = e.Load("buy_hold", "dup", nil)
	require.ErrorIs(t, err, ErrAlreadyLoaded)
	require.Len(t, e.Status(), 1)
}

func TestRunnerEmitsSignals(t *testing.T) {
	e, b := newTestEngine(t)

	loaded, err := e.Load("buy_hold", "bh1", map[string]any{"symbol": "QQQ", "quantity": 25})
	require.NoError(t, err)

	sigs, err := b.Subscribe("strategy.signals.bh1")
	require.NoError(t, err)

	publishBar(t, b, "QQQ", 100, 0)

	select {
	case ev := <-sigs.C:
		var sig strategies.Signal
		require.NoError(t, json.Unmarshal(ev.Data, &sig))
		assert.Equal(t, loaded.ID, sig.StrategyID)
		assert.Equal(t, strategies.Buy, sig.Action)
		assert.Equal(t, int64(25), sig.Quantity)
		assert.Equal(t, "QQQ", sig.Symbol)
	case <-time.After(2 * time.Second):
		t.Fatal("no signal published")
	}

	// buy_hold fires once; further bars update counters but not signals
	publishBar(t, b, "QQQ", 101, 1)
	publishBar(t, b, "QQQ", 102, 2)
	waitForBars(t, e, "bh1", 3)

	select {
	case ev := <-sigs.C:
		t.Fatalf("unexpected second signal: %s", ev.Data)
	default:
	}

	status := e.Status()
	require.Len(t, status, 1)
	assert.Equal(t, uint64(3), status[0].BarsProcessed)
	assert.Equal(t, uint64(1), status[0].SignalsEmitted)
	assert.Equal(t, true, status[0].State["has_bought"])
}

func TestRunnerIgnoresOtherSymbols(t *testing.T) {
	e, b := newTestEngine(t)

	_, err := e.Load("buy_hold", "spy_only", nil)
	require.NoError(t, err)

	publishBar(t, b, "QQQ", 100, 0)
	publishBar(t, b, "SPY", 100, 1)
	waitForBars(t, e, "spy_only", 1)

	status := e.Status()
	require.Len(t, status, 1)
	assert.Equal(t, uint64(1), status[0].BarsProcessed)
}

func TestRunnerDropsMalformedBars(t *testing.T) {
	e, b := newTestEngine(t)

	_, err := e.Load("buy_hold", "bh1", nil)
	require.NoError(t, err)

	require.NoError(t, b.Publish("md.bars.SPY", []byte("garbage")))
	publishBar(t, b, "SPY", 100, 0)
	waitForBars(t, e, "bh1", 1)

	status := e.Status()
	assert.Equal(t, uint64(1), status[0].BarsProcessed)
}

func TestUnloadIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Load("buy_hold", "bh1", nil)
	require.NoError(t, err)

	require.NoError(t, e.Unload("bh1"))
	err = e.Unload("bh1")
	require.ErrorIs(t, err, ErrNotLoaded)
	assert.Empty(t, e.Status())
}

func TestUnloadDrainsQueuedBars(t *testing.T) {
	e, b := newTestEngine(t)

	_, err := e.Load("ma_cross", "mac1", map[string]any{"fast_period": 2, "slow_period": 3})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		publishBar(t, b, "SPY", float64(100+i), i)
	}
	require.NoError(t, e.Unload("mac1"))

	// after Unload returns, all ten bars were processed and OnStop ran
	assert.Empty(t, e.Status())
}

func TestStatusSortedAndCounted(t *testing.T) {
	e, b := newTestEngine(t)

	for _, instanceID := range []string{"charlie", "alpha", "bravo"} {
		_, err := e.Load("buy_hold", instanceID, nil)
		require.NoError(t, err)
	}
	publishBar(t, b, "SPY", 100, 0)
	for _, instanceID := range []string{"alpha", "bravo", "charlie"} {
		waitForBars(t, e, instanceID, 1)
	}

	status := e.Status()
	require.Len(t, status, 3)
	assert.Equal(t, "alpha", status[0].ID)
	assert.Equal(t, "bravo", status[1].ID)
	assert.Equal(t, "charlie", status[2].ID)

	bars, signals := e.Counts()
	assert.Equal(t, uint64(3), bars)
	assert.Equal(t, uint64(3), signals)
}

func TestConcurrentLoadsGetDistinctIDs(t *testing.T) {
	e, _ := newTestEngine(t)

	ids := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func() {
			loaded, err := e.Load("buy_hold", "", nil)
			if err != nil {
				ids <- fmt.Sprintf("error: %v", err)
				return
			}
			ids <- loaded.ID
		}()
	}
	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		got := <-ids
		require.False(t, seen[got], "duplicate id %s", got)
		seen[got] = true
	}
	assert.Len(t, e.Status(), 8)
}
