// Package indicators provides the rolling price window and the
// technical indicators derived from it.
package indicators

// Window is a fixed-capacity rolling buffer of close prices. A strategy
// pushes one price per bar; the oldest price is evicted once the buffer
// is full. Indicator methods recompute from the stored window rather
// than maintaining incremental state, which keeps replay runs
// reproducible.
//
// Every indicator returns (value, ok). ok == false means the window
// does not yet hold enough history; callers should treat that as "not
// ready", not as an error.
type Window struct {
	prices []float64
	cap    int
}

// NewWindow creates a window that retains at most capacity prices.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		prices: make([]float64, 0, capacity),
		cap:    capacity,
	}
}

// Push appends a price, evicting the oldest entry on overflow.
func (w *Window) Push(price float64) {
	if len(w.prices) == w.cap {
		copy(w.prices, w.prices[1:])
		w.prices = w.prices[:w.cap-1]
	}
	w.prices = append(w.prices, price)
}

func (w *Window) Len() int { return len(w.prices) }

func (w *Window) Cap() int { return w.cap }

// Last returns the most recent price.
func (w *Window) Last() (float64, bool) {
	if len(w.prices) == 0 {
		return 0, false
	}
	return w.prices[len(w.prices)-1], true
}

// SMA returns the simple moving average of the last period prices.
func (w *Window) SMA(period int) (float64, bool) {
	if period <= 0 || len(w.prices) < period {
		return 0, false
	}
	sum := 0.0
	for _, p := range w.prices[len(w.prices)-period:] {
		sum += p
	}
	return sum / float64(period), true
}

// EMA returns the exponential moving average with smoothing factor
// 2/(period+1), seeded by the SMA of the first period prices in the
// window and then folded forward over the remainder.
func (w *Window) EMA(period int) (float64, bool) {
	if period <= 0 || len(w.prices) < period {
		return 0, false
	}
	multiplier := 2.0 / float64(period+1)

	sum := 0.0
	for _, p := range w.prices[:period] {
		sum += p
	}
	ema := sum / float64(period)

	for _, p := range w.prices[period:] {
		ema = (p-ema)*multiplier + ema
	}
	return ema, true
}

// RSI returns the Relative Strength Index over the most recent
// period+1 prices. Gains and losses are averaged with a simple mean
// over period steps; an all-gain stretch (avg loss zero) pins RSI
// at 100.
func (w *Window) RSI(period int) (float64, bool) {
	if period <= 0 || len(w.prices) < period+1 {
		return 0, false
	}
	recent := w.prices[len(w.prices)-(period+1):]

	var gains, losses float64
	for i := 1; i < len(recent); i++ {
		change := recent[i] - recent[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
