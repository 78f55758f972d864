package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// --- fakes ---

// faultyStore wraps a MemStore and injects failures.
type faultyStore struct {
	*MemStore
	countErr  error
	saveErr   error
	existsErr error
	// onSave runs before the wrapped Save.
	onSave func(Task)
}

func (s *faultyStore) Count(ctx context.Context) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.MemStore.Count(ctx)
}

func (s *faultyStore) CountAll(ctx context.Context) (Stats, error) {
	if s.countErr != nil {
		return Stats{}, s.countErr
	}
	return s.MemStore.CountAll(ctx)
}

// perStatusStore hides CountAll so the service falls back to one count per status.
type perStatusStore struct {
	Store
}

func (s *faultyStore) Save(ctx context.Context, t Task) (Task, error) {
	if s.onSave != nil {
		s.onSave(t)
	}
	if s.saveErr != nil {
		return Task{}, s.saveErr
	}
	return s.MemStore.Save(ctx, t)
}

func (s *faultyStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.MemStore.ExistsByID(ctx, id)
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(store, nil)
	if err != nil {
		t.Fatalf("NewService err=%v", err)
	}
	svc.now = newTestClock().Now
	return svc
}

func newMemService(t *testing.T) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	store.now = newTestClock().Now
	return newTestService(t, store), store
}

// --- tests ---

func TestNewService_NilStore(t *testing.T) {
	_, err := NewService(nil, nil)
	if !errors.Is(err, ErrStoreNil) {
		t.Fatalf("NewService(nil) err=%v, want %v", err, ErrStoreNil)
	}
}

func TestCreate_DefaultsStatusToTodo(t *testing.T) {
	svc, _ := newMemService(t)

	created, err := svc.Create(context.Background(), Task{Title: "Write spec", Priority: 5})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if created.ID == 0 || created.CreatedAt.IsZero() {
		t.Fatalf("created=%+v, want id and createdAt assigned", created)
	}
	if created.Status != StatusTodo {
		t.Fatalf("status=%s, want %s", created.Status, StatusTodo)
	}
	if created.Priority != 5 {
		t.Fatalf("priority=%d, want 5", created.Priority)
	}
	if created.CompletedAt != nil {
		t.Fatalf("completedAt=%v, want nil", created.CompletedAt)
	}
}

func TestCreate_IgnoresClientIDAndTimestamps(t *testing.T) {
	svc, _ := newMemService(t)
	stale := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	created, err := svc.Create(context.Background(), Task{ID: 99, Title: "t", CreatedAt: stale, CompletedAt: &stale})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if created.ID != 1 {
		t.Fatalf("id=%d, want 1", created.ID)
	}
	if created.CreatedAt.Equal(stale) || created.CompletedAt != nil {
		t.Fatalf("client timestamps leaked: %+v", created)
	}
}

func TestCreate_InvalidInput(t *testing.T) {
	store := &faultyStore{MemStore: NewMemStore(), onSave: func(Task) {
		t.Fatalf("Save should not be called on invalid input")
	}}
	svc := newTestService(t, store)

	for _, in := range []Task{
		{Title: "   "},
		{Title: "ok", Status: "WAITING"},
	} {
		_, err := svc.Create(context.Background(), in)
		if !errors.Is(err, ErrInvalidTask) {
			t.Fatalf("Create(%+v) err=%v, want ErrInvalidTask", in, err)
		}
	}
}

func TestCreate_DoneSetsCompletedAt(t *testing.T) {
	svc, _ := newMemService(t)
	created, err := svc.Create(context.Background(), Task{Title: "t", Status: StatusDone})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if created.CompletedAt == nil {
		t.Fatalf("completedAt=nil, want set")
	}
}

func TestCreate_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	svc := newTestService(t, &faultyStore{MemStore: NewMemStore(), saveErr: boom})

	_, err := svc.Create(context.Background(), Task{Title: "t"})
	if !errors.Is(err, boom) {
		t.Fatalf("Create err=%v, want wrapped %v", err, boom)
	}
	if errors.Is(err, ErrInvalidTask) {
		t.Fatalf("storage fault must not look like a validation failure")
	}
}

func TestUpdate_ReplacesAllMutableFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemService(t)

	orig, _ := svc.Create(ctx, Task{Title: "Write spec", Description: "draft", Priority: 5})

	// status only in the payload: everything else is overwritten with zero values
	updated, ok, err := svc.Update(ctx, orig.ID, Task{Status: StatusInProgress, Title: "Write spec"})
	if err != nil || !ok {
		t.Fatalf("Update ok=%v err=%v", ok, err)
	}
	if updated.Description != "" || updated.Priority != 0 {
		t.Fatalf("updated=%+v, want description and priority overwritten", updated)
	}
	if updated.Status != StatusInProgress {
		t.Fatalf("status=%s, want %s", updated.Status, StatusInProgress)
	}
	if updated.ID != orig.ID || !updated.CreatedAt.Equal(orig.CreatedAt) {
		t.Fatalf("id/createdAt changed: %+v vs %+v", updated, orig)
	}
	if !updated.UpdatedAt.After(orig.UpdatedAt) {
		t.Fatalf("updatedAt=%v, want after %v", updated.UpdatedAt, orig.UpdatedAt)
	}
}

func TestUpdate_EmptyStatusFallsBackToTodo(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemService(t)
	orig, _ := svc.Create(ctx, Task{Title: "t", Status: StatusInProgress})

	updated, ok, err := svc.Update(ctx, orig.ID, Task{Title: "t"})
	if err != nil || !ok {
		t.Fatalf("Update ok=%v err=%v", ok, err)
	}
	if updated.Status != StatusTodo {
		t.Fatalf("status=%s, want %s", updated.Status, StatusTodo)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newMemService(t)
	_, ok, err := svc.Update(context.Background(), 12, Task{Title: "t"})
	if err != nil {
		t.Fatalf("Update err=%v, want nil", err)
	}
	if ok {
		t.Fatalf("Update ok=true, want false")
	}
}

func TestUpdate_Invalid(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemService(t)
	orig, _ := svc.Create(ctx, Task{Title: "keep me"})

	_, _, err := svc.Update(ctx, orig.ID, Task{Title: ""})
	if !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("Update err=%v, want ErrInvalidTask", err)
	}
	got, _, _ := store.FindByID(ctx, orig.ID)
	if got.Title != "keep me" {
		t.Fatalf("stored title=%q after rejected update", got.Title)
	}
}

func TestUpdate_DeletedConcurrently(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{MemStore: NewMemStore()}
	svc := newTestService(t, store)
	orig, _ := svc.Create(ctx, Task{Title: "t"})

	store.onSave = func(t Task) { _ = store.MemStore.DeleteByID(ctx, t.ID) }
	_, ok, err := svc.Update(ctx, orig.ID, Task{Title: "t2"})
	if err != nil {
		t.Fatalf("Update err=%v, want nil", err)
	}
	if ok {
		t.Fatalf("Update ok=true, want false for a task deleted mid-update")
	}
}

func TestUpdate_CompletedAtLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemService(t)
	orig, _ := svc.Create(ctx, Task{Title: "t"})

	done, _, _ := svc.Update(ctx, orig.ID, Task{Title: "t", Status: StatusDone})
	if done.CompletedAt == nil {
		t.Fatalf("completedAt=nil after DONE")
	}
	first := *done.CompletedAt

	again, _, _ := svc.Update(ctx, orig.ID, Task{Title: "t renamed", Status: StatusDone})
	if again.CompletedAt == nil || !again.CompletedAt.Equal(first) {
		t.Fatalf("completedAt=%v, want unchanged %v while staying DONE", again.CompletedAt, first)
	}

	reopened, _, _ := svc.Update(ctx, orig.ID, Task{Title: "t", Status: StatusInProgress})
	if reopened.CompletedAt != nil {
		t.Fatalf("completedAt=%v, want nil after reopening", reopened.CompletedAt)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemService(t)
	orig, _ := svc.Create(ctx, Task{Title: "t"})

	ok, err := svc.Delete(ctx, orig.ID)
	if err != nil || !ok {
		t.Fatalf("Delete ok=%v err=%v, want true", ok, err)
	}
	if _, found, _ := svc.FindByID(ctx, orig.ID); found {
		t.Fatalf("task still present after delete")
	}

	ok, err = svc.Delete(ctx, orig.ID)
	if err != nil || ok {
		t.Fatalf("second Delete ok=%v err=%v, want false,nil", ok, err)
	}
}

func TestDelete_StoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	svc := newTestService(t, &faultyStore{MemStore: NewMemStore(), existsErr: boom})
	_, err := svc.Delete(context.Background(), 1)
	if !errors.Is(err, boom) {
		t.Fatalf("Delete err=%v, want %v", err, boom)
	}
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemService(t)

	for _, st := range []Status{StatusTodo, StatusTodo, StatusInProgress, StatusDone, StatusCancelled, StatusCancelled} {
		if _, err := svc.Create(ctx, Task{Title: "x", Status: st}); err != nil {
			t.Fatalf("Create err=%v", err)
		}
	}
	got, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics err=%v", err)
	}
	want := Stats{Total: 6, Todo: 2, InProgress: 1, Done: 1, Cancelled: 2}
	if got != want {
		t.Fatalf("Statistics=%+v, want %+v", got, want)
	}
}

func TestStatistics_PerStatusFallback(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, perStatusStore{NewMemStore()})

	for _, st := range []Status{StatusTodo, StatusDone, StatusDone, StatusCancelled} {
		if _, err := svc.Create(ctx, Task{Title: "x", Status: st}); err != nil {
			t.Fatalf("Create err=%v", err)
		}
	}
	got, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics err=%v", err)
	}
	want := Stats{Total: 4, Todo: 1, Done: 2, Cancelled: 1}
	if got != want {
		t.Fatalf("Statistics=%+v, want %+v", got, want)
	}
}

func TestStatistics_ConsistentUnderConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	// real clock: the test clock is not safe for concurrent use
	svc, err := NewService(NewMemStore(), nil)
	if err != nil {
		t.Fatalf("NewService err=%v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				created, err := svc.Create(ctx, Task{Title: "churn", Status: StatusInProgress})
				if err != nil {
					return
				}
				_, _ = svc.Delete(ctx, created.ID)
			}
		}()
	}

	for i := 0; i < 500; i++ {
		st, err := svc.Statistics(ctx)
		if err != nil {
			close(stop)
			wg.Wait()
			t.Fatalf("Statistics err=%v", err)
		}
		if st.Total != st.Todo+st.InProgress+st.Done+st.Cancelled {
			close(stop)
			wg.Wait()
			t.Fatalf("stats %+v: total != sum of statuses", st)
		}
	}
	close(stop)
	wg.Wait()
}

func TestStatistics_StoreFailure(t *testing.T) {
	boom := errors.New("timeout")
	svc := newTestService(t, &faultyStore{MemStore: NewMemStore(), countErr: boom})
	if _, err := svc.Statistics(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Statistics err=%v, want %v", err, boom)
	}
}

func TestScenario_TodoToDone(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemService(t)

	created, err := svc.Create(ctx, Task{Title: "Write spec", Priority: 5})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	active, _ := svc.FindActive(ctx)
	if len(active) != 1 || active[0].ID != created.ID {
		t.Fatalf("active=%v, want [%d]", ids(active), created.ID)
	}
	before, _ := svc.Statistics(ctx)

	if _, ok, err := svc.Update(ctx, created.ID, Task{Title: "Write spec", Status: StatusDone, Priority: 5}); err != nil || !ok {
		t.Fatalf("Update ok=%v err=%v", ok, err)
	}
	after, _ := svc.Statistics(ctx)
	if after.Done != before.Done+1 || after.Todo != before.Todo-1 || after.Total != before.Total {
		t.Fatalf("stats before=%+v after=%+v", before, after)
	}
}
