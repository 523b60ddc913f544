package market

import (
	"errors"
	"sync"
)

var ErrNoPrice = errors.New("no price for symbol")

// BarStore keeps the most recent bar seen per symbol. The execution
// simulator reads it to price fills; the bar consumer writes it.
type BarStore struct {
	mu   sync.RWMutex
	bars map[string]Bar
}

func NewBarStore() *BarStore {
	return &BarStore{bars: make(map[string]Bar)}
}

func (s *BarStore) Set(b Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[b.Symbol] = b
}

func (s *BarStore) Get(symbol string) (Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bars[symbol]
	if !ok {
		return Bar{}, ErrNoPrice
	}
	return b, nil
}

func (s *BarStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = make(map[string]Bar)
}
