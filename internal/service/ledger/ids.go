package ledger

import (
	"context"
	"fmt"
	"sync"
)

// IDPrefix starts every inventory identifier.
const IDPrefix = "ITEM-"

// NextID formats the identifier following rowCount existing entries.
func NextID(rowCount int) string {
	return fmt.Sprintf("%s%d", IDPrefix, rowCount+1)
}

// Sequence hands out identifier slots. Reserve returns how many identifiers were
// issued before the one being claimed; no two callers receive the same value.
// seed reports the entry count in the store and is only consulted to initialize
// the sequence.
type Sequence interface {
	Reserve(ctx context.Context, seed func(context.Context) (int, error)) (int, error)
}

// CounterSequence is an in-process monotonic sequence, seeded once from the store.
type CounterSequence struct {
	mu     sync.Mutex
	seeded bool
	issued int
}

// NewCounterSequence returns an unseeded counter.
func NewCounterSequence() *CounterSequence {
	return &CounterSequence{}
}

// Reserve claims the next slot, seeding from the store on first use.
func (s *CounterSequence) Reserve(ctx context.Context, seed func(context.Context) (int, error)) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seeded {
		count, err := seed(ctx)
		if err != nil {
			return 0, fmt.Errorf("seed id sequence: %w", err)
		}
		s.issued = count
		s.seeded = true
	}

	claimed := s.issued
	s.issued++
	return claimed, nil
}
