// Package cache persists loop reports keyed by model text fingerprint, so
// re-analyzing an unchanged file is a disk read instead of a cycle search.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/abakhtiari/loopscope/internal/causal"
)

// ErrMiss is returned when no entry exists for a key.
var ErrMiss = errors.New("cache: miss")

// Store is a directory of msgpack-encoded report entries, one file per
// model fingerprint. A Store with an empty dir is disabled: loads miss and
// saves are dropped.
type Store struct {
	dir string
}

// Open ensures the cache directory exists. An empty dir yields a disabled
// store.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return &Store{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".loops")
}

// LoadReport fetches the report cached under key. A corrupt entry is a
// miss, not an error: the caller recomputes and overwrites it.
func (s *Store) LoadReport(key string) (*causal.Report, error) {
	if s.dir == "" {
		return nil, ErrMiss
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache: reading entry %s: %w", key, err)
	}
	var r causal.Report
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, ErrMiss
	}
	return &r, nil
}

// SaveReport writes the report under key. The write goes through a temp
// file and rename so a concurrent reader never sees a torn entry.
func (s *Store) SaveReport(key string, r *causal.Report) error {
	if s.dir == "" {
		return nil
	}
	data, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("cache: encoding entry %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(s.dir, "entry-*")
	if err != nil {
		return fmt.Errorf("cache: staging entry %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: writing entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: writing entry %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: committing entry %s: %w", key, err)
	}
	return nil
}
