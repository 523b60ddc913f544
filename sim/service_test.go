package sim

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuanchen/stratsim/bus"
	"github.com/kuanchen/stratsim/market"
	"github.com/kuanchen/stratsim/strategies"
)

func TestServicePipeline(t *testing.T) {
	b := bus.New(16)
	defer b.Close()

	prices := market.NewBarStore()
	sim := NewSimulator(DefaultConfig(), prices, nil, zerolog.Nop())
	svc := NewService(b, sim, zerolog.Nop())
	require.NoError(t, svc.Start())
	defer svc.Stop()

	fills, err := b.Subscribe("execution.fills.s1")
	require.NoError(t, err)
	rejections, err := b.Subscribe("execution.rejections.s1")
	require.NoError(t, err)

	barData, err := json.Marshal(testBar("SPY", 100, 102, 99, 101))
	require.NoError(t, err)
	require.NoError(t, b.Publish("md.bars.SPY", barData))

	// wait for the bar to land before signaling, the consumer makes no
	// ordering promise across subjects
	require.Eventually(t, func() bool {
		_, err := prices.Get("SPY")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	sigData, err := json.Marshal(testSignal("s1", strategies.Buy, 10))
	require.NoError(t, err)
	require.NoError(t, b.Publish("strategy.signals.s1", sigData))

	select {
	case ev := <-fills.C:
		var fill Fill
		require.NoError(t, json.Unmarshal(ev.Data, &fill))
		assert.Equal(t, "s1", fill.StrategyID)
		assert.Equal(t, strategies.Buy, fill.Action)
		assert.Equal(t, 102.0, fill.BasePrice)
		assert.Equal(t, int64(10), fill.Position)
	case <-time.After(time.Second):
		t.Fatal("no fill published")
	}

	// a sell with nothing held comes back as a rejection
	sellData, err := json.Marshal(testSignal("s1", strategies.Sell, 10))
	require.NoError(t, err)
	require.NoError(t, b.Publish("strategy.signals.s1", sellData))

	// position is 10 after the buy, so one sell fills and the next is
	// rejected
	select {
	case <-fills.C:
	case <-time.After(time.Second):
		t.Fatal("no sell fill published")
	}
	require.NoError(t, b.Publish("strategy.signals.s1", sellData))
	select {
	case ev := <-rejections.C:
		var rej Rejection
		require.NoError(t, json.Unmarshal(ev.Data, &rej))
		assert.Equal(t, "no position to sell", rej.Reason)
	case <-time.After(time.Second):
		t.Fatal("no rejection published")
	}
}

func TestServiceDropsMalformedPayloads(t *testing.T) {
	b := bus.New(16)
	defer b.Close()

	prices := market.NewBarStore()
	sim := NewSimulator(DefaultConfig(), prices, nil, zerolog.Nop())
	svc := NewService(b, sim, zerolog.Nop())
	require.NoError(t, svc.Start())
	defer svc.Stop()

	require.NoError(t, b.Publish("md.bars.SPY", []byte("not json")))
	require.NoError(t, b.Publish("strategy.signals.s1", []byte("{")))

	// a valid signal after the garbage still goes through
	sigData, err := json.Marshal(testSignal("s1", strategies.Buy, 10))
	require.NoError(t, err)

	fills, err := b.Subscribe("execution.fills.s1")
	require.NoError(t, err)
	require.NoError(t, b.Publish("strategy.signals.s1", sigData))

	select {
	case <-fills.C:
	case <-time.After(time.Second):
		t.Fatal("no fill published")
	}

	_, err = prices.Get("SPY")
	assert.Error(t, err)
}
