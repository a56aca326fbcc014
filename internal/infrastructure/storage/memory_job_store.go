package storage

import (
	"context"
	"sync"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

// MemoryJobStore хранит задания в памяти. Подходит для одного процесса.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]entity.Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]entity.Job)}
}

func (s *MemoryJobStore) Save(ctx context.Context, job *entity.Job) error {
	s.mu.Lock()
	s.jobs[job.ID] = *job
	s.mu.Unlock()
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (*entity.Job, error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, port.ErrJobNotFound
	}
	return &job, nil
}

var _ port.JobStore = (*MemoryJobStore)(nil)
