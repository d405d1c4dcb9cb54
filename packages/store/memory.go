package store

import (
	"context"
	"sync"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

// MemoryRepository keeps everything in process memory.
type MemoryRepository struct {
	mu        sync.RWMutex
	envs      map[string]*env.Environment
	overrides map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		envs:      make(map[string]*env.Environment),
		overrides: make(map[string]string),
	}
}

func (m *MemoryRepository) Get(_ context.Context, envID string) (*env.Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.envs[envID]
	if !ok {
		return nil, notFound(envID)
	}
	return e.Clone(), nil
}

func (m *MemoryRepository) Put(_ context.Context, e *env.Environment) error {
	if err := validateForPut(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envs[e.ID] = e.Clone()
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, envID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.envs[envID]; !ok {
		return notFound(envID)
	}
	delete(m.envs, envID)
	return nil
}

func (m *MemoryRepository) ListByCollection(_ context.Context, collectionID string) ([]*env.Environment, error) {
	return m.list(func(e *env.Environment) bool { return inCollection(e, collectionID) }), nil
}

func (m *MemoryRepository) ListGlobal(_ context.Context) ([]*env.Environment, error) {
	return m.list(func(e *env.Environment) bool { return e.Scope.IsGlobal() }), nil
}

func (m *MemoryRepository) List(_ context.Context) ([]*env.Environment, error) {
	return m.list(func(*env.Environment) bool { return true }), nil
}

func (m *MemoryRepository) list(keep func(*env.Environment) bool) []*env.Environment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*env.Environment, 0)
	for _, e := range m.envs {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	sortEnvironments(out)
	return out
}

func (m *MemoryRepository) Overrides(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.overrides))
	for k, v := range m.overrides {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryRepository) SetOverride(_ context.Context, collectionID, envID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if envID == "" {
		delete(m.overrides, collectionID)
		return nil
	}
	m.overrides[collectionID] = envID
	return nil
}

func (m *MemoryRepository) Close() error {
	return nil
}
