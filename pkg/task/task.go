package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusCancelled  Status = "CANCELLED"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone, StatusCancelled}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts a case-insensitive status name ("done", "in_progress") to a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", v)}
	}
	return s, nil
}

// Priority orders active tasks; higher values come first.
type Priority int

// Named priorities accepted on input.
const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

var priorityNames = map[string]Priority{
	"LOW":    PriorityLow,
	"MEDIUM": PriorityMedium,
	"HIGH":   PriorityHigh,
	"URGENT": PriorityUrgent,
}

// inRange reports whether p fits the 32-bit priority column.
func (p Priority) inRange() bool {
	return int64(p) >= math.MinInt32 && int64(p) <= math.MaxInt32
}

// ParsePriority accepts an integer ("5") or a priority name ("high").
func ParsePriority(v string) (Priority, error) {
	v = strings.TrimSpace(v)
	if p, ok := priorityNames[strings.ToUpper(v)]; ok {
		return p, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ValidationError{Field: "priority", Message: fmt.Sprintf("invalid priority %q", v)}
	}
	return Priority(n), nil
}

// UnmarshalJSON accepts either a JSON number or a priority name string.
func (p *Priority) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		parsed, err := ParsePriority(name)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("priority: %w", err)
	}
	*p = Priority(n)
	return nil
}

// MaxTitleLength mirrors the width of the title column.
const MaxTitleLength = 255

// Task represents a unit of work.
type Task struct {
	ID          int64      `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description,omitempty"`
	Status      Status     `json:"status" yaml:"status"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updated_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
}

// Active reports whether the task counts as active (anything but cancelled).
func (t Task) Active() bool {
	return t.Status != StatusCancelled
}

// Validate checks the invariants every stored task must satisfy.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Message: "must not be blank"}
	}
	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", MaxTitleLength)}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", t.Status)}
	}
	if !t.Priority.inRange() {
		return &ValidationError{Field: "priority", Message: fmt.Sprintf("must be between %d and %d", math.MinInt32, math.MaxInt32)}
	}
	return nil
}

// Store is the contract for task persistence.
type Store interface {
	FindAll(ctx context.Context) ([]Task, error)
	// FindByID reports ok=false with a nil error when no task has the id.
	FindByID(ctx context.Context, id int64) (Task, bool, error)
	FindByStatus(ctx context.Context, status Status) ([]Task, error)
	// FindActive returns every task that is not cancelled.
	FindActive(ctx context.Context) ([]Task, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	// Save inserts t when t.ID is zero and overwrites the stored task otherwise.
	Save(ctx context.Context, t Task) (Task, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	DeleteByID(ctx context.Context, id int64) error
	EnsureTable(ctx context.Context) error
}
