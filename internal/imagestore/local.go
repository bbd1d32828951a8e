package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// LocalStore writes images under a directory on disk.
type LocalStore struct {
	root string
	now  func() time.Time
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &LocalStore{root: root, now: time.Now}, nil
}

func (s *LocalStore) Store(ctx context.Context, scope string, file File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := objectKey("", scope, file, s.now())
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create scope dir: %w", err)
	}
	if err := os.WriteFile(full, file.Data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return key, nil
}

func (s *LocalStore) List(_ context.Context, scope string) ([]string, error) {
	dir := filepath.Join(s.root, filepath.FromSlash(scopePrefix("", scope)))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, scopePrefix("", scope)+e.Name())
	}
	sort.Strings(paths)
	return paths, nil
}
