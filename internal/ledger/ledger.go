// Package ledger persists one RoundOutcome per identity tuple. A key's
// presence in the store is the idempotency commit point: side-effecting work
// for that tuple is never redone, only the notification is re-delivered.
package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/roundpilot/roundpilot-go/internal/domain"
)

var (
	ErrNotFound  = errors.New("ledger: outcome not found")
	ErrDuplicate = errors.New("ledger: outcome already recorded")
)

type Store interface {
	Get(ctx context.Context, key domain.RoundKey) (domain.RoundOutcome, error)
	Put(ctx context.Context, key domain.RoundKey, outcome domain.RoundOutcome) error
}

// Claims serializes admission per round key so check-then-dispatch is atomic
// within the process: of two concurrent identical submissions, exactly one
// acquires the claim and runs the pipeline; the other observes the claim and
// takes the duplicate path.
type Claims struct {
	mu    sync.Mutex
	inUse map[domain.RoundKey]struct{}
}

func NewClaims() *Claims {
	return &Claims{inUse: make(map[domain.RoundKey]struct{})}
}

// Acquire claims key. It returns false when the key is already claimed by an
// in-flight round.
func (c *Claims) Acquire(key domain.RoundKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.inUse[key]; held {
		return false
	}
	c.inUse[key] = struct{}{}
	return true
}

func (c *Claims) Release(key domain.RoundKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inUse, key)
}
