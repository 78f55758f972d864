package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const fileVersion = "1"

// document is the on-disk layout of a FileStore.
type document struct {
	Version string `yaml:"version"`
	NextID  int64  `yaml:"next_id"`
	Tasks   []Task `yaml:"tasks"`
}

// FileStore keeps tasks in memory and writes them to a YAML file after every
// mutation. Reads never touch the disk. A mutation whose write fails is rolled
// back, so memory and disk stay in step.
type FileStore struct {
	*MemStore
	path string
	mu   sync.Mutex // serializes mutate+flush
}

// OpenFileStore loads the YAML document at path. A missing file yields an
// empty store; the file is created on the first write or by EnsureTable.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{MemStore: NewMemStore(), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task file %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse task file %s: %w", path, err)
	}
	if doc.Version != "" && doc.Version != fileVersion {
		return nil, fmt.Errorf("task file %s: unsupported version %q", path, doc.Version)
	}
	s.restore(doc.NextID, doc.Tasks)
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// EnsureTable writes the document if it does not exist yet.
func (s *FileStore) EnsureTable(context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat task file %s: %w", s.path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

// Save stores t and persists the document.
func (s *FileStore) Save(ctx context.Context, t Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextID, prev := s.snapshot()
	saved, err := s.MemStore.Save(ctx, t)
	if err != nil {
		return Task{}, err
	}
	if err := s.flush(); err != nil {
		s.restore(nextID, prev)
		return Task{}, err
	}
	return saved, nil
}

// DeleteByID removes the task and persists the document.
func (s *FileStore) DeleteByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextID, prev := s.snapshot()
	if err := s.MemStore.DeleteByID(ctx, id); err != nil {
		return err
	}
	if err := s.flush(); err != nil {
		s.restore(nextID, prev)
		return err
	}
	return nil
}

// flush writes to a temp file in the same directory and renames it over the
// target so readers never observe a partial document.
func (s *FileStore) flush() error {
	nextID, tasks := s.snapshot()
	data, err := yaml.Marshal(document{Version: fileVersion, NextID: nextID, Tasks: tasks})
	if err != nil {
		return fmt.Errorf("marshal task file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create task dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tasks-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp task file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp task file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp task file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace task file %s: %w", s.path, err)
	}
	return nil
}
