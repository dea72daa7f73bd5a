// Package storage provides file-based JSON storage for session records.
//
// Keys are slices of path segments; each value lives in
// <base>/<segments...>.json and is committed with the same stage-then-rename
// writer the mutating tools use.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/fsutil"
)

// ErrNotFound is returned by Get for a key with no record.
var ErrNotFound = errors.New("not found")

const recordExt = ".json"

// Storage is a directory of JSON records. Writers of the same key are
// serialized; readers never observe a partially written record.
type Storage struct {
	root   string
	fs     afero.Fs
	writer *fsutil.AtomicWriter

	mu    sync.Mutex
	locks map[string]*FileLock
}

// New creates a Storage rooted at root on the OS filesystem.
func New(root string) *Storage {
	return NewWithFs(afero.NewOsFs(), root)
}

// NewWithFs creates a Storage over an arbitrary filesystem.
func NewWithFs(afs afero.Fs, root string) *Storage {
	return &Storage{
		root:   root,
		fs:     afs,
		writer: fsutil.NewAtomicWriter(afs),
		locks:  make(map[string]*FileLock),
	}
}

// BasePath returns the storage root.
func (s *Storage) BasePath() string {
	return s.root
}

func (s *Storage) dir(key []string) string {
	return filepath.Join(append([]string{s.root}, key...)...)
}

func (s *Storage) file(key []string) string {
	return s.dir(key) + recordExt
}

// Get decodes the record at key into v.
func (s *Storage) Get(ctx context.Context, key []string, v any) error {
	data, err := afero.ReadFile(s.fs, s.file(key))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("read %s: %w", strings.Join(key, "/"), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", strings.Join(key, "/"), err)
	}
	return nil
}

// Put replaces the record at key. Either the old or the new record is
// visible at any time.
func (s *Storage) Put(ctx context.Context, key []string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", strings.Join(key, "/"), err)
	}

	path := s.file(key)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	return s.locked(ctx, path, func() error {
		if err := s.writer.WriteFile(ctx, path, data, fsutil.DefaultFileMode); err != nil {
			return fmt.Errorf("write %s: %w", strings.Join(key, "/"), err)
		}
		return nil
	})
}

// Delete removes the record at key. A missing record is not an error.
func (s *Storage) Delete(ctx context.Context, key []string) error {
	path := s.file(key)
	return s.locked(ctx, path, func() error {
		err := s.fs.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", strings.Join(key, "/"), err)
		}
		return nil
	})
}

// Exists reports whether a record is stored at key.
func (s *Storage) Exists(ctx context.Context, key []string) bool {
	_, err := s.fs.Stat(s.file(key))
	return err == nil
}

// List returns the sorted child keys under prefix: record names without
// their extension, plus subdirectories.
func (s *Storage) List(ctx context.Context, prefix []string) ([]string, error) {
	entries, err := s.entries(prefix)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.IsDir():
			keys = append(keys, e.Name())
		case isRecord(e.Name()):
			keys = append(keys, strings.TrimSuffix(e.Name(), recordExt))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Scan calls fn with the raw JSON of every record directly under prefix,
// in key order. Unreadable records are skipped. An error from fn or a done
// ctx stops the scan and is returned.
func (s *Storage) Scan(ctx context.Context, prefix []string, fn func(key string, data json.RawMessage) error) error {
	entries, err := s.entries(prefix)
	if err != nil {
		return err
	}

	dir := s.dir(prefix)
	for _, e := range entries {
		if e.IsDir() || !isRecord(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := afero.ReadFile(s.fs, filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		if err := fn(strings.TrimSuffix(e.Name(), recordExt), data); err != nil {
			return err
		}
	}
	return nil
}

// entries reads the directory for prefix sorted by name. A missing
// directory has no entries.
func (s *Storage) entries(prefix []string) ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(s.fs, s.dir(prefix))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", strings.Join(prefix, "/"), err)
	}
	return entries, nil
}

// isRecord excludes staged temp files, which are dot-prefixed, and lock
// files.
func isRecord(name string) bool {
	return strings.HasSuffix(name, recordExt) && !strings.HasPrefix(name, ".")
}

// locked runs fn while holding the lock of path.
func (s *Storage) locked(ctx context.Context, path string, fn func() error) error {
	s.mu.Lock()
	lock, ok := s.locks[path]
	if !ok {
		lock = NewFileLock(s.fs, path)
		s.locks[path] = lock
	}
	s.mu.Unlock()

	if err := lock.Lock(ctx); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()
	return fn()
}
