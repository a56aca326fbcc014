package storage

import (
	"context"
	"sync"

	"defect-inspector/internal/domain/port"
)

// MemoryTemplateStore держит эталоны в памяти процесса.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[int64][]byte
}

func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[int64][]byte)}
}

func (s *MemoryTemplateStore) Put(ctx context.Context, userID int64, photo []byte) error {
	s.mu.Lock()
	s.templates[userID] = photo
	s.mu.Unlock()
	return nil
}

func (s *MemoryTemplateStore) Get(ctx context.Context, userID int64) ([]byte, error) {
	s.mu.RLock()
	photo, ok := s.templates[userID]
	s.mu.RUnlock()
	if !ok || len(photo) == 0 {
		return nil, port.ErrTemplateNotFound
	}
	return photo, nil
}

func (s *MemoryTemplateStore) Delete(ctx context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.templates, userID)
	s.mu.Unlock()
	return nil
}

var _ port.TemplateStore = (*MemoryTemplateStore)(nil)
