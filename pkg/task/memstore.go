package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory task store. It is safe for concurrent use.
type MemStore struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]Task
	now    func() time.Time
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		tasks: make(map[int64]Task),
		now:   time.Now,
	}
}

// EnsureTable is a no-op for the in-memory store.
func (s *MemStore) EnsureTable(context.Context) error {
	return nil
}

// FindAll returns every task ordered by id.
func (s *MemStore) FindAll(context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// FindByID returns the task with the given id.
func (s *MemStore) FindByID(_ context.Context, id int64) (Task, bool, error) {
	s.mu.RLock()
	t, ok := s.tasks[id]
	s.mu.RUnlock()
	return t, ok, nil
}

// FindByStatus returns tasks with the given status, highest priority first.
func (s *MemStore) FindByStatus(_ context.Context, status Status) ([]Task, error) {
	return s.filter(func(t Task) bool { return t.Status == status }), nil
}

// FindActive returns non-cancelled tasks, highest priority first.
func (s *MemStore) FindActive(context.Context) ([]Task, error) {
	return s.filter(Task.Active), nil
}

// Count returns the number of stored tasks.
func (s *MemStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.tasks)), nil
}

// CountByStatus returns the number of tasks in the given status.
func (s *MemStore) CountByStatus(_ context.Context, status Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, t := range s.tasks {
		if t.Status == status {
			n++
		}
	}
	return n, nil
}

// CountAll counts every status under a single lock.
func (s *MemStore) CountAll(context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: int64(len(s.tasks))}
	for _, t := range s.tasks {
		switch t.Status {
		case StatusTodo:
			st.Todo++
		case StatusInProgress:
			st.InProgress++
		case StatusDone:
			st.Done++
		case StatusCancelled:
			st.Cancelled++
		}
	}
	return st, nil
}

// Save inserts a new task or overwrites an existing one.
func (s *MemStore) Save(_ context.Context, t Task) (Task, error) {
	now := s.now().Truncate(time.Microsecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == 0 {
		s.nextID++
		t.ID = s.nextID
		t.CreatedAt = now
		t.UpdatedAt = now
		s.tasks[t.ID] = t
		return t, nil
	}

	existing, ok := s.tasks[t.ID]
	if !ok {
		return Task{}, fmt.Errorf("save task %d: %w", t.ID, ErrNotFound)
	}
	// createdAt is owned by the store
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = now
	s.tasks[t.ID] = t
	return t, nil
}

// ExistsByID reports whether a task with the id is stored.
func (s *MemStore) ExistsByID(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	_, ok := s.tasks[id]
	s.mu.RUnlock()
	return ok, nil
}

// DeleteByID removes the task with the id, if any.
func (s *MemStore) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) filter(keep func(Task) bool) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0)
	for _, t := range s.tasks {
		if keep(t) {
			tasks = append(tasks, t)
		}
	}
	SortByPriority(tasks)
	return tasks
}

// snapshot returns the id sequence and a copy of all tasks, for persistence.
func (s *MemStore) snapshot() (int64, []Task) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return s.nextID, tasks
}

// restore replaces the store contents.
func (s *MemStore) restore(nextID int64, tasks []Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[int64]Task, len(tasks))
	s.nextID = nextID
	for _, t := range tasks {
		s.tasks[t.ID] = t
		if t.ID > s.nextID {
			s.nextID = t.ID
		}
	}
}

// SortByPriority orders tasks by priority descending, then newest first.
// Ties on both fall back to the higher id first.
func SortByPriority(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
