package ledger

import (
	"context"
	"sync"

	"github.com/roundpilot/roundpilot-go/internal/domain"
)

// MemoryStore keeps outcomes in process memory. Used by tests and when the
// service runs without a database (LEDGER_BACKEND=memory); durability is
// then bounded by process lifetime.
type MemoryStore struct {
	mu       sync.RWMutex
	outcomes map[domain.RoundKey]domain.RoundOutcome
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{outcomes: make(map[domain.RoundKey]domain.RoundOutcome)}
}

func (s *MemoryStore) Get(ctx context.Context, key domain.RoundKey) (domain.RoundOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	outcome, ok := s.outcomes[key]
	if !ok {
		return domain.RoundOutcome{}, ErrNotFound
	}
	return outcome, nil
}

func (s *MemoryStore) Put(ctx context.Context, key domain.RoundKey, outcome domain.RoundOutcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outcomes[key]; ok {
		return ErrDuplicate
	}
	s.outcomes[key] = outcome
	return nil
}
