package workflow

import (
	"sync"
	"testing"

	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
)

// NOTE: These tests are intentionally DB-free. They validate the intended
// validation-workflow semantics:
// - an intent is consumed at most once; every losing racer observes
//   ErrorAlreadyProcessed and produces no entry
// - reject is idempotent: rejecting an absent intent is a clean no-op
//
// Full DB integration tests live behind the docker-gated suite; the row lock
// inside ConsumeDonationIntent plays the role of this fake's mutex.

type fakeIntentStore struct {
	mu      sync.Mutex
	intents map[int]bool
	entries int
}

func newFakeIntentStore(ids ...int) *fakeIntentStore {
	s := &fakeIntentStore{intents: map[int]bool{}}
	for _, id := range ids {
		s.intents[id] = true
	}
	return s
}

// accept mirrors AcceptDonationIntent's transaction: consume the intent and
// create the entry under one critical section.
func (s *fakeIntentStore) accept(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.intents[id] {
		return utils.ErrorAlreadyProcessed
	}
	delete(s.intents, id)
	s.entries++
	return nil
}

// reject mirrors RejectDonationIntent: delete if present, succeed regardless.
func (s *fakeIntentStore) reject(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intents, id)
}

func TestIntentAccept_ConcurrentRacersProduceOneEntry(t *testing.T) {
	for run := 0; run < 100; run++ {
		store := newFakeIntentStore(1)

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins, losses := 0, 0

		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.accept(1)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
				} else if err == utils.ErrorAlreadyProcessed {
					losses++
				} else {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if wins != 1 || losses != 24 {
			t.Fatalf("run=%d wins=%d losses=%d, want exactly one winner", run, wins, losses)
		}
		if store.entries != 1 {
			t.Fatalf("run=%d entries=%d, want 1", run, store.entries)
		}
	}
}

func TestIntentAcceptVsReject_NeverBoth(t *testing.T) {
	for run := 0; run < 100; run++ {
		store := newFakeIntentStore(1)

		var wg sync.WaitGroup
		wg.Add(2)
		var acceptErr error
		go func() {
			defer wg.Done()
			acceptErr = store.accept(1)
		}()
		go func() {
			defer wg.Done()
			store.reject(1)
		}()
		wg.Wait()

		// reject won: no entry; accept won: one entry. Never an entry from a
		// rejected intent.
		if acceptErr == nil && store.entries != 1 {
			t.Fatalf("run=%d accept won but entries=%d", run, store.entries)
		}
		if acceptErr != nil && store.entries != 0 {
			t.Fatalf("run=%d reject won but entries=%d", run, store.entries)
		}
	}
}

func TestIntentReject_Idempotent(t *testing.T) {
	store := newFakeIntentStore(1)
	store.reject(1)
	store.reject(1) // double-click on the reject button
	store.reject(99)

	if len(store.intents) != 0 || store.entries != 0 {
		t.Fatalf("reject must be a pure delete: intents=%d entries=%d", len(store.intents), store.entries)
	}
}
