package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fill(w *Window, prices ...float64) {
	for _, p := range prices {
		w.Push(p)
	}
}

func TestWindowEviction(t *testing.T) {
	w := NewWindow(3)
	fill(w, 1, 2, 3, 4, 5)

	assert.Equal(t, 3, w.Len())

	// Oldest entries evicted FIFO: window holds 3,4,5.
	sma, ok := w.SMA(3)
	assert.True(t, ok)
	assert.InDelta(t, 4.0, sma, 1e-9)
}

func TestSMAConstantPriceEqualsPrice(t *testing.T) {
	w := NewWindow(50)
	for i := 0; i < 30; i++ {
		w.Push(42.5)
	}
	for _, period := range []int{1, 5, 14, 30} {
		sma, ok := w.SMA(period)
		assert.True(t, ok)
		assert.InDelta(t, 42.5, sma, 1e-9)
	}
}

func TestSMANotReady(t *testing.T) {
	w := NewWindow(10)
	fill(w, 1, 2, 3)

	_, ok := w.SMA(4)
	assert.False(t, ok)

	_, ok = w.SMA(3)
	assert.True(t, ok)
}

func TestSMAKnownValue(t *testing.T) {
	w := NewWindow(10)
	fill(w, 100, 102, 104, 106, 108)

	sma, ok := w.SMA(3)
	assert.True(t, ok)
	assert.InDelta(t, 106.0, sma, 1e-9)
}

func TestEMASeededBySMA(t *testing.T) {
	w := NewWindow(10)
	fill(w, 10, 20, 30)

	// Exactly period prices: EMA == SMA seed.
	ema, ok := w.EMA(3)
	assert.True(t, ok)
	assert.InDelta(t, 20.0, ema, 1e-9)

	// One more price folds in with alpha = 2/(3+1) = 0.5.
	w.Push(40)
	ema, ok = w.EMA(3)
	assert.True(t, ok)
	assert.InDelta(t, 30.0, ema, 1e-9)
}

func TestEMANotReady(t *testing.T) {
	w := NewWindow(10)
	fill(w, 1, 2)
	_, ok := w.EMA(3)
	assert.False(t, ok)
}

func TestRSIRequiresPeriodPlusOne(t *testing.T) {
	w := NewWindow(20)
	for i := 0; i < 14; i++ {
		w.Push(float64(100 + i))
	}
	_, ok := w.RSI(14)
	assert.False(t, ok)

	w.Push(114)
	_, ok = w.RSI(14)
	assert.True(t, ok)
}

func TestRSIAllGainsIs100(t *testing.T) {
	w := NewWindow(20)
	for i := 0; i <= 14; i++ {
		w.Push(float64(100 + i))
	}
	rsi, ok := w.RSI(14)
	assert.True(t, ok)
	assert.Equal(t, 100.0, rsi)
}

func TestRSIAllLossesIsZero(t *testing.T) {
	w := NewWindow(20)
	for i := 0; i <= 14; i++ {
		w.Push(float64(200 - i))
	}
	rsi, ok := w.RSI(14)
	assert.True(t, ok)
	assert.InDelta(t, 0.0, rsi, 1e-9)
}

func TestRSIBalancedIs50(t *testing.T) {
	w := NewWindow(20)
	// Alternating +1/-1 over an even number of steps: avg gain == avg loss.
	price := 100.0
	w.Push(price)
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			price++
		} else {
			price--
		}
		w.Push(price)
	}
	rsi, ok := w.RSI(14)
	assert.True(t, ok)
	assert.InDelta(t, 50.0, rsi, 1e-9)
}
