package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"nhlagent/internal/infra/hashutil"
)

// DiskStore keeps one file per key under dir, named by the key's sha256.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache dir: %w", err)
	}
	return &DiskStore{dir: trimmed}, nil
}

func (s *DiskStore) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

// Put writes to a temp file and renames it into place so readers never see
// a partial entry.
func (s *DiskStore) Put(key string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("create cache temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache temp: %w", err)
	}
	if err := os.Rename(tmpName, s.pathFor(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

func (s *DiskStore) Close() error { return nil }

func (s *DiskStore) pathFor(key string) string {
	return filepath.Join(s.dir, hashutil.Digest(key)+".json")
}
