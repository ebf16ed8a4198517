package memory

import (
	"sync"

	"github.com/timepledge/timepledge/src/internal/domain"
)

// InMemorySessionStore is the only SessionStore implementation on purpose:
// the ActiveSession marker must die with the process so a crash can never
// resurrect a stale start time.
type InMemorySessionStore struct {
	mu      sync.Mutex
	session *domain.ActiveSession
}

func NewSessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{}
}

func (s *InMemorySessionStore) Get() *domain.ActiveSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	out := *s.session
	return &out
}

func (s *InMemorySessionStore) Set(session domain.ActiveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &session
}

func (s *InMemorySessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
}
