package oauth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type pendingFlow struct {
	providerID uint
	expiresAt  time.Time
}

// StateStore tracks the anti-CSRF state values of pending authorization
// flows. States are single-use: Consume removes the entry whether or not
// verification succeeds. Expired entries are swept on each Issue.
type StateStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	flows map[string]pendingFlow
	now   func() time.Time
}

func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		ttl:   ttl,
		flows: make(map[string]pendingFlow),
		now:   time.Now,
	}
}

// Issue generates a fresh random state bound to a provider.
func (s *StateStore) Issue(providerID uint) string {
	state := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, f := range s.flows {
		if now.After(f.expiresAt) {
			delete(s.flows, k)
		}
	}
	s.flows[state] = pendingFlow{providerID: providerID, expiresAt: now.Add(s.ttl)}
	return state
}

// Consume verifies a callback state against the provider it was issued
// for and removes it. Returns false for unknown, mismatched, or expired
// states.
func (s *StateStore) Consume(state string, providerID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flows[state]
	if !ok {
		return false
	}
	delete(s.flows, state)

	return f.providerID == providerID && !s.now().After(f.expiresAt)
}
