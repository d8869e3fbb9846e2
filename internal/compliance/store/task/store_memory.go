// Package task persists workflow tasks owned by instances.
package task

import (
	"context"
	"sort"
	"sync"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// InMemoryStore keeps workflow tasks in process memory.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[id.TaskID]*models.WorkflowTask
}

// NewMemory constructs an empty in-memory task store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{tasks: make(map[id.TaskID]*models.WorkflowTask)}
}

// CreateBatch inserts the tasks of a freshly generated instance.
func (s *InMemoryStore) CreateBatch(_ context.Context, tasks []*models.WorkflowTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		cp := *t
		s.tasks[t.ID] = &cp
	}
	return nil
}

// ListByInstance returns an instance's tasks in sequence order.
func (s *InMemoryStore) ListByInstance(_ context.Context, instanceID id.InstanceID) ([]*models.WorkflowTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.WorkflowTask
	for _, t := range s.tasks {
		if t.InstanceID == instanceID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// CountOpenByInstance returns how many of the instance's tasks still need
// action.
func (s *InMemoryStore) CountOpenByInstance(_ context.Context, instanceID id.InstanceID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.tasks {
		if t.InstanceID == instanceID && t.Open() {
			count++
		}
	}
	return count, nil
}

// UpdateStatus moves one task to a new status.
func (s *InMemoryStore) UpdateStatus(_ context.Context, taskID id.TaskID, status models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return sentinel.ErrNotFound
	}
	t.Status = status
	return nil
}
