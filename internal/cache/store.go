package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorrupt reports persisted cache data that cannot be decoded.
var ErrCorrupt = errors.New("corrupt cache data")

// Store persists cache entries across restarts.
type Store interface {
	// Load returns every persisted entry. Undecodable data wraps ErrCorrupt.
	Load(ctx context.Context) (map[string]Entry, error)
	// Put writes one entry, replacing any previous value of key.
	Put(ctx context.Context, key string, e Entry) error
	// Reset removes every persisted entry.
	Reset(ctx context.Context) error
}

type memoryStore struct{}

// NewMemoryStore returns a Store that persists nothing.
func NewMemoryStore() Store { return memoryStore{} }

func (memoryStore) Load(context.Context) (map[string]Entry, error) { return map[string]Entry{}, nil }
func (memoryStore) Put(context.Context, string, Entry) error { return nil }
func (memoryStore) Reset(context.Context) error { return nil }

// FileStore keeps the whole cache as one JSON document on disk, rewritten on
// every Put. Writes go to a temp file renamed over the original, so a crash
// leaves either the old or the new document.
type FileStore struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, entries: map[string]Entry{}}
}

// Path returns the file the store writes to.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.entries = map[string]Entry{}
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	entries := map[string]Entry{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	s.entries = entries

	out := make(map[string]Entry, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out, nil
}

// Put leaves the previous document and entry in place when the write fails.
func (s *FileStore) Put(_ context.Context, key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.entries[key]
	s.entries[key] = e
	if err := s.writeLocked(); err != nil {
		if had {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]Entry{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

func (s *FileStore) writeLocked() error {
	b, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
