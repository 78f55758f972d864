package task

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "tasks.yaml")

	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore err=%v", err)
	}
	a := mustSave(t, s, Task{Title: "a", Description: "first", Status: StatusTodo, Priority: 2})
	b := mustSave(t, s, Task{Title: "b", Status: StatusDone})
	if err := s.DeleteByID(ctx, b.ID); err != nil {
		t.Fatalf("DeleteByID err=%v", err)
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen err=%v", err)
	}
	got, ok, err := reopened.FindByID(ctx, a.ID)
	if err != nil || !ok {
		t.Fatalf("FindByID ok=%v err=%v", ok, err)
	}
	if got.Title != "a" || got.Description != "first" || got.Priority != 2 || !got.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("reloaded=%+v, want %+v", got, a)
	}
	if ok, _ := reopened.ExistsByID(ctx, b.ID); ok {
		t.Fatalf("deleted task %d came back", b.ID)
	}

	// the id sequence continues past deleted ids
	c := mustSave(t, reopened, Task{Title: "c", Status: StatusTodo})
	if c.ID <= b.ID {
		t.Fatalf("new id=%d, want > %d", c.ID, b.ID)
	}
}

func TestFileStore_DocumentLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore err=%v", err)
	}
	mustSave(t, s, Task{Title: "Write spec", Status: StatusTodo, Priority: 5})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile err=%v", err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("yaml.Unmarshal err=%v", err)
	}
	if doc.Version != fileVersion || doc.NextID != 1 || len(doc.Tasks) != 1 {
		t.Fatalf("doc=%+v", doc)
	}
	if doc.Tasks[0].Title != "Write spec" || doc.Tasks[0].Status != StatusTodo {
		t.Fatalf("task=%+v", doc.Tasks[0])
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tasks-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStore_EnsureTableCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore err=%v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file exists before EnsureTable: err=%v", err)
	}
	if err := s.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable err=%v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file missing after EnsureTable: %v", err)
	}
	if err := s.EnsureTable(context.Background()); err != nil {
		t.Fatalf("second EnsureTable err=%v", err)
	}
}

func TestOpenFileStore_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("tasks: [this is: not: valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileStore(bad); err == nil {
		t.Fatalf("OpenFileStore(bad yaml) err=nil, want error")
	}

	future := filepath.Join(dir, "future.yaml")
	if err := os.WriteFile(future, []byte("version: \"9\"\nnext_id: 0\ntasks: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileStore(future); err == nil || !strings.Contains(err.Error(), "unsupported version") {
		t.Fatalf("OpenFileStore(version 9) err=%v, want unsupported version", err)
	}
}

func TestFileStore_FailedWriteRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "sub")
	s, err := OpenFileStore(filepath.Join(dir, "tasks.yaml"))
	if err != nil {
		t.Fatalf("OpenFileStore err=%v", err)
	}
	a := mustSave(t, s, Task{Title: "a", Status: StatusTodo})

	// a regular file where the directory was makes every flush fail
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Save(ctx, Task{Title: "b", Status: StatusTodo}); err == nil {
		t.Fatalf("Save err=nil, want write failure")
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("Count=%d after failed insert, want 1", n)
	}

	renamed := a
	renamed.Title = "renamed"
	if _, err := s.Save(ctx, renamed); err == nil {
		t.Fatalf("Save(update) err=nil, want write failure")
	}
	if got, _, _ := s.FindByID(ctx, a.ID); got.Title != "a" {
		t.Fatalf("title=%q after failed update, want a", got.Title)
	}

	if err := s.DeleteByID(ctx, a.ID); err == nil {
		t.Fatalf("DeleteByID err=nil, want write failure")
	}
	if _, ok, _ := s.FindByID(ctx, a.ID); !ok {
		t.Fatalf("task %d gone after failed delete", a.ID)
	}

	// the id sequence did not advance for the failed insert
	if err := os.Remove(dir); err != nil {
		t.Fatal(err)
	}
	b := mustSave(t, s, Task{Title: "b", Status: StatusTodo})
	if b.ID != a.ID+1 {
		t.Fatalf("next id=%d, want %d", b.ID, a.ID+1)
	}
}
