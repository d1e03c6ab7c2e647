package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the record as a JSON file, so a CLI process can poll a
// run driven by another process.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore creates a store backed by the file at path. The parent
// directory is created if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create status dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Get(ctx context.Context) (Status, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Status{}, false, nil
		}
		return Status{}, false, fmt.Errorf("read status file: %w", err)
	}

	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, false, fmt.Errorf("parse status: %w", err)
	}
	return st, true, nil
}

// Put writes through a temporary file and rename so concurrent readers in
// other processes never see a truncated record.
func (s *FileStore) Put(ctx context.Context, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".status-*")
	if err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Path returns the status file path.
func (s *FileStore) Path() string {
	return s.path
}

var _ Store = (*FileStore)(nil)
