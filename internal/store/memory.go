package store

import (
	"context"
	"sync"

	"portalapi/internal/model"
)

// MemoryStore keeps the document in process memory. Nothing survives a
// restart; it backs STORE_BACKEND=memory and tests.
type MemoryStore struct {
	mu  sync.Mutex
	doc model.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Load(_ context.Context) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		s.doc = model.NewDocument()
	}
	return s.doc.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, doc model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.Clone().Normalize()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
