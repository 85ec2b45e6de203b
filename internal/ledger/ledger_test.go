package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/roundpilot/roundpilot-go/internal/domain"
)

func testKey() domain.RoundKey {
	return domain.RoundKey{Email: "dev@example.com", Task: "demo1", Round: 1, Nonce: "abc"}
}

func testOutcome() domain.RoundOutcome {
	return domain.RoundOutcome{
		Email:   "dev@example.com",
		Task:    "demo1",
		Round:   1,
		Nonce:   "abc",
		RepoURL: "https://github.com/owner/demo1",
	}
}

func TestMemoryStore_GetMiss(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), testKey()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() err=%v, want ErrNotFound", err)
	}
}

func TestMemoryStore_PutThenGet(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put(context.Background(), testKey(), testOutcome()); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	got, err := s.Get(context.Background(), testKey())
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if got.RepoURL != "https://github.com/owner/demo1" {
		t.Fatalf("Get().RepoURL=%q", got.RepoURL)
	}
}

func TestMemoryStore_PutDuplicate(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put(context.Background(), testKey(), testOutcome()); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	if err := s.Put(context.Background(), testKey(), testOutcome()); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Put() err=%v, want ErrDuplicate", err)
	}
}

func TestMemoryStore_PutRejectsInvalidOutcome(t *testing.T) {
	s := NewMemoryStore()
	bad := testOutcome()
	bad.RepoURL = ""
	if err := s.Put(context.Background(), testKey(), bad); err == nil {
		t.Fatalf("Put() expected validation error")
	}
}

func TestClaims_SingleWinner(t *testing.T) {
	claims := NewClaims()
	key := testKey()

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if claims.Acquire(key) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners=%d, want 1", winners)
	}
}

func TestClaims_ReleaseAllowsReacquire(t *testing.T) {
	claims := NewClaims()
	key := testKey()
	if !claims.Acquire(key) {
		t.Fatalf("first Acquire()=false")
	}
	if claims.Acquire(key) {
		t.Fatalf("second Acquire()=true while held")
	}
	claims.Release(key)
	if !claims.Acquire(key) {
		t.Fatalf("Acquire() after Release()=false")
	}
}

func TestClaims_IndependentKeys(t *testing.T) {
	claims := NewClaims()
	a := testKey()
	b := testKey()
	b.Round = 2
	if !claims.Acquire(a) || !claims.Acquire(b) {
		t.Fatalf("distinct keys should acquire independently")
	}
}
