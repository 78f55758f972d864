package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, title, description, status, priority, created_at, updated_at, completed_at`

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id           BIGSERIAL PRIMARY KEY,
			title        VARCHAR(255) NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			status       VARCHAR(20) NOT NULL DEFAULT 'TODO'
			             CHECK (status IN ('TODO', 'IN_PROGRESS', 'DONE', 'CANCELLED')),
			priority     INTEGER NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_priority_created ON tasks(priority DESC, created_at DESC)`)
	return err
}

// FindAll returns every task ordered by id.
func (s *PgStore) FindAll(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// FindByID retrieves a single task by ID.
func (s *PgStore) FindByID(ctx context.Context, id int64) (Task, bool, error) {
	var t Task
	err := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id).
		Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, true, nil
}

// FindByStatus returns tasks with the status, ordered by priority desc then created_at desc.
func (s *PgStore) FindByStatus(ctx context.Context, status Status) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks WHERE status = $1
		ORDER BY priority DESC, created_at DESC, id DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("tasks by status %s: %w", status, err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// FindActive returns non-cancelled tasks ordered by priority desc then created_at desc.
func (s *PgStore) FindActive(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks WHERE status <> 'CANCELLED'
		ORDER BY priority DESC, created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("active tasks: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// Count returns total task count.
func (s *PgStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// CountByStatus returns the number of tasks in the status.
func (s *PgStore) CountByStatus(ctx context.Context, status Status) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks by status %s: %w", status, err)
	}
	return n, nil
}

// CountAll counts every status in one statement, so the total always
// equals the sum of the per-status counts.
func (s *PgStore) CountAll(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'TODO'),
		       COUNT(*) FILTER (WHERE status = 'IN_PROGRESS'),
		       COUNT(*) FILTER (WHERE status = 'DONE'),
		       COUNT(*) FILTER (WHERE status = 'CANCELLED')
		FROM tasks`).Scan(&st.Total, &st.Todo, &st.InProgress, &st.Done, &st.Cancelled)
	if err != nil {
		return Stats{}, fmt.Errorf("count tasks: %w", err)
	}
	return st, nil
}

// Save inserts a new task (ID zero) or overwrites the mutable columns of an existing one.
func (s *PgStore) Save(ctx context.Context, t Task) (Task, error) {
	now := time.Now().Truncate(time.Microsecond)

	if t.ID == 0 {
		var out Task
		err := s.pool.QueryRow(ctx, `
			INSERT INTO tasks (title, description, status, priority, created_at, updated_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $5, $6)
			RETURNING `+taskColumns,
			t.Title, t.Description, string(t.Status), int(t.Priority), now, t.CompletedAt).
			Scan(&out.ID, &out.Title, &out.Description, &out.Status, &out.Priority, &out.CreatedAt, &out.UpdatedAt, &out.CompletedAt)
		if err != nil {
			return Task{}, fmt.Errorf("create task: %w", err)
		}
		return out, nil
	}

	var out Task
	err := s.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4, updated_at = $5, completed_at = $6
		WHERE id = $7
		RETURNING `+taskColumns,
		t.Title, t.Description, string(t.Status), int(t.Priority), now, t.CompletedAt, t.ID).
		Scan(&out.ID, &out.Title, &out.Description, &out.Status, &out.Priority, &out.CreatedAt, &out.UpdatedAt, &out.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, fmt.Errorf("save task %d: %w", t.ID, ErrNotFound)
	}
	if err != nil {
		return Task{}, fmt.Errorf("update task %d: %w", t.ID, err)
	}
	return out, nil
}

// ExistsByID reports whether a row with the id exists.
func (s *PgStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("task exists %d: %w", id, err)
	}
	return exists, nil
}

// DeleteByID removes the row with the id, if any.
func (s *PgStore) DeleteByID(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

func scanTaskRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Task, error) {
	tasks := make([]Task, 0)
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}
