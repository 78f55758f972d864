package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Stats holds task counts per status. Total counts every task.
type Stats struct {
	Total      int64 `json:"total"`
	Todo       int64 `json:"todo"`
	InProgress int64 `json:"in_progress"`
	Done       int64 `json:"done"`
	Cancelled  int64 `json:"cancelled"`
}

// Service applies task rules on top of a Store.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// NewService creates a Service. A nil logger discards log output.
func NewService(store Store, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, log: logger, now: time.Now}, nil
}

func (s *Service) FindAll(ctx context.Context) ([]Task, error) {
	return s.store.FindAll(ctx)
}

func (s *Service) FindByID(ctx context.Context, id int64) (Task, bool, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) FindByStatus(ctx context.Context, status Status) ([]Task, error) {
	return s.store.FindByStatus(ctx, status)
}

func (s *Service) FindActive(ctx context.Context) ([]Task, error) {
	return s.store.FindActive(ctx)
}

// Create validates t and persists it as a new task. Any ID or timestamps on t
// are ignored; an empty status becomes TODO.
func (s *Service) Create(ctx context.Context, t Task) (Task, error) {
	t.ID = 0
	t.CreatedAt = time.Time{}
	t.UpdatedAt = time.Time{}
	t.CompletedAt = nil
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	s.markCompletion(&t, "")

	created, err := s.store.Save(ctx, t)
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	s.log.Info("task created", "task_id", created.ID, "status", created.Status, "priority", created.Priority)
	return created, nil
}

// Update replaces title, description, status and priority of the task with
// the id by the values in patch. Every field is overwritten, including empty
// ones; an empty status becomes TODO. ok is false when no such task exists.
func (s *Service) Update(ctx context.Context, id int64, patch Task) (Task, bool, error) {
	existing, ok, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Task{}, false, err
	}
	if !ok {
		return Task{}, false, nil
	}

	prevStatus := existing.Status
	existing.Title = patch.Title
	existing.Description = patch.Description
	existing.Status = patch.Status
	existing.Priority = patch.Priority
	if existing.Status == "" {
		existing.Status = StatusTodo
	}
	if err := existing.Validate(); err != nil {
		return Task{}, false, err
	}
	s.markCompletion(&existing, prevStatus)

	updated, err := s.store.Save(ctx, existing)
	if errors.Is(err, ErrNotFound) {
		// deleted between lookup and save
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("update task %d: %w", id, err)
	}
	s.log.Info("task updated", "task_id", id, "from", prevStatus, "to", updated.Status)
	return updated, true, nil
}

// Delete removes the task with the id. It returns false when there was
// nothing to delete.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	exists, err := s.store.ExistsByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return false, err
	}
	s.log.Info("task deleted", "task_id", id)
	return true, nil
}

// allCounter is implemented by stores that count every status in one
// consistent read.
type allCounter interface {
	CountAll(ctx context.Context) (Stats, error)
}

// Statistics counts tasks overall and per status. Stores without CountAll
// are queried once per status, so a concurrent write may skew the sum.
func (s *Service) Statistics(ctx context.Context) (Stats, error) {
	if c, ok := s.store.(allCounter); ok {
		return c.CountAll(ctx)
	}

	var st Stats
	var err error
	if st.Total, err = s.store.Count(ctx); err != nil {
		return Stats{}, err
	}
	counts := map[Status]*int64{
		StatusTodo:       &st.Todo,
		StatusInProgress: &st.InProgress,
		StatusDone:       &st.Done,
		StatusCancelled:  &st.Cancelled,
	}
	for status, dst := range counts {
		n, err := s.store.CountByStatus(ctx, status)
		if err != nil {
			return Stats{}, err
		}
		*dst = n
	}
	return st, nil
}

// markCompletion stamps CompletedAt when a task enters DONE and clears it
// when the task leaves DONE.
func (s *Service) markCompletion(t *Task, prev Status) {
	switch {
	case t.Status == StatusDone && prev != StatusDone:
		now := s.now().Truncate(time.Microsecond)
		t.CompletedAt = &now
	case t.Status != StatusDone:
		t.CompletedAt = nil
	}
}
