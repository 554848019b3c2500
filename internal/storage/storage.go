// Package storage is the on-disk record store backing C10's history log:
// one JSON file per record, named by a path segment
// list, written atomically and guarded by a per-file flock so concurrent
// writers for the same record never interleave.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get/Delete-adjacent lookups when no record
// exists at the requested path.
var ErrNotFound = errors.New("not found")

// Storage roots a flat collection of JSON records under basePath. A record's
// path is a slice of segments (e.g. a history file's "<timestamp>_<guid>"
// key) joined into "<basePath>/seg0/seg1/....json".
type Storage struct {
	basePath string

	mu    sync.RWMutex
	locks map[string]*FileLock
}

// New roots a Storage at basePath. The directory is created lazily on first
// write, not here.
func New(basePath string) *Storage {
	return &Storage{
		basePath: basePath,
		locks:    make(map[string]*FileLock),
	}
}

func (s *Storage) recordPath(segments []string) string {
	return filepath.Join(append([]string{s.basePath}, segments...)...) + ".json"
}

func (s *Storage) collectionDir(segments []string) string {
	return filepath.Join(append([]string{s.basePath}, segments...)...)
}

// Get decodes the record at path into v.
func (s *Storage) Get(ctx context.Context, path []string, v any) error {
	raw, err := os.ReadFile(s.recordPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("storage: read: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("storage: decode: %w", err)
	}
	return nil
}

// Exists reports whether a record is present at path.
func (s *Storage) Exists(ctx context.Context, path []string) bool {
	_, err := os.Stat(s.recordPath(path))
	return err == nil
}

// Put encodes v and writes it to path under an exclusive per-file lock,
// via write-to-temp-then-rename so a reader never observes a partial file.
func (s *Storage) Put(ctx context.Context, path []string, v any) error {
	target := s.recordPath(path)

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	lock := s.lockFor(target)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("storage: lock: %w", err)
	}
	defer lock.Unlock()

	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode: %w", err)
	}

	staging := target + ".tmp"
	if err := os.WriteFile(staging, encoded, 0644); err != nil {
		return fmt.Errorf("storage: write staging file: %w", err)
	}
	if err := os.Rename(staging, target); err != nil {
		os.Remove(staging)
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// Delete removes the record at path. Deleting an already-absent record is
// not an error.
func (s *Storage) Delete(ctx context.Context, path []string) error {
	target := s.recordPath(path)

	if _, err := os.Stat(filepath.Dir(target)); os.IsNotExist(err) {
		return nil
	}

	lock := s.lockFor(target)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("storage: lock: %w", err)
	}
	defer lock.Unlock()

	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("storage: delete: %w", err)
	}
	return nil
}

// List returns the record/sub-collection keys directly under path, without
// decoding their contents.
func (s *Storage) List(ctx context.Context, path []string) ([]string, error) {
	entries, err := os.ReadDir(s.collectionDir(path))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("storage: readdir: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case entry.IsDir():
			keys = append(keys, name)
		case strings.HasSuffix(name, ".json"):
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	return keys, nil
}

// Scan decodes every record directly under path (non-recursively) and
// invokes fn with its key and raw JSON. Files that fail to read are skipped
// rather than aborting the whole scan; fn returning an error stops early
// and propagates that error.
func (s *Storage) Scan(ctx context.Context, path []string, fn func(key string, data json.RawMessage) error) error {
	dir := s.collectionDir(path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("storage: readdir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}

		if err := fn(strings.TrimSuffix(name, ".json"), json.RawMessage(raw)); err != nil {
			return err
		}
	}
	return nil
}

// lockFor returns the shared FileLock guarding target, creating it on first
// use. Locks are cached per-target for the lifetime of the Storage so that
// concurrent Put/Delete calls against the same record serialize through the
// same in-process mutex in addition to the cross-process flock.
func (s *Storage) lockFor(target string) *FileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[target]
	if !ok {
		lock = NewFileLock(target)
		s.locks[target] = lock
	}
	return lock
}
