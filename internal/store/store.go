// Package store persists console settings as a small JSON key-value file.
// It is treated as synchronous and always available by callers; load
// failures fall back to an empty store.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known setting keys.
const (
	KeyAdvancedMode = "advanced_mode"
	KeyLastProfile  = "last_profile"
	KeyLastBranch   = "last_branch"
)

// Store is a file-backed key-value settings store.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]json.RawMessage
}

// Open loads the store at path, creating an empty one if the file does not
// exist. A corrupt file is replaced by an empty store rather than blocking
// startup.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		s.values = make(map[string]json.RawMessage)
	}
	return s, nil
}

// Get unmarshals the value for key into out. Returns false if absent.
func (s *Store) Get(key string, out any) bool {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// GetBool returns the boolean stored at key, or def if absent.
func (s *Store) GetBool(key string, def bool) bool {
	v := def
	if !s.Get(key, &v) {
		return def
	}
	return v
}

// GetString returns the string stored at key, or def if absent.
func (s *Store) GetString(key, def string) string {
	v := def
	if !s.Get(key, &v) {
		return def
	}
	return v
}

// Set stores a value under key and writes the file.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	return s.flushLocked()
}

// flushLocked writes the store atomically via a temp file rename.
func (s *Store) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
