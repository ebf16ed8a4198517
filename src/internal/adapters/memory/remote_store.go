package memory

import (
	"context"
	"sync"

	"github.com/timepledge/timepledge/src/internal/domain"
)

// InMemoryRemoteStore mirrors the postgres user store for tests and dev
// mode. Merge semantics are identical: a set field replaces the whole
// field, unset fields are untouched.
type InMemoryRemoteStore struct {
	mu   sync.RWMutex
	docs map[string]*domain.UserDocument
}

func NewRemoteStore() *InMemoryRemoteStore {
	return &InMemoryRemoteStore{
		docs: make(map[string]*domain.UserDocument),
	}
}

func (s *InMemoryRemoteStore) Get(ctx context.Context, userID string) (*domain.UserDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *InMemoryRemoteStore) MergeWrite(ctx context.Context, userID string, fields domain.PartialFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[userID]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Apply(fields)
	return nil
}

func (s *InMemoryRemoteStore) Overwrite(ctx context.Context, userID string, doc *domain.UserDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[userID] = doc.Clone()
	return nil
}

func (s *InMemoryRemoteStore) TransactionalUpdate(ctx context.Context, userID string, fn func(doc *domain.UserDocument) (domain.PartialFields, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[userID]
	if !ok {
		return domain.ErrNotFound
	}

	fields, err := fn(doc.Clone())
	if err != nil {
		return err
	}
	if fields.IsEmpty() {
		return nil
	}
	doc.Apply(fields)
	return nil
}

func (s *InMemoryRemoteStore) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	return ids, nil
}
