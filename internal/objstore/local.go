package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Local is a Store rooted at a directory on the local filesystem.
type Local struct{ root string }

// NewLocal returns a Local store rooted at dir. The directory need not exist
// until the first Put.
func NewLocal(dir string) *Local { return &Local{root: filepath.Clean(dir)} }

func (l *Local) String() string { return l.root }

func (l *Local) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// List walks the directory named by prefix.
func (l *Local) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := l.path(prefix)
	st, err := os.Stat(start)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", start, err)
	}
	if !st.IsDir() {
		return []string{Join(prefix)}, nil
	}

	var keys []string
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", start, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Open opens the file for key. If ctx is already done it returns the context
// error without touching the filesystem.
func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	p := l.path(key)
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}

// Put writes data to a temporary file next to the target and renames it into
// place, so readers never observe a partial object.
func (l *Local) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := l.path(key)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("put %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	return nil
}

// DeletePrefix removes the file or directory tree named by prefix. An empty
// prefix is refused so the root itself is never wiped.
func (l *Local) DeletePrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if Join(prefix) == "" {
		return errors.New("delete: refusing to delete store root")
	}
	if err := os.RemoveAll(l.path(prefix)); err != nil {
		return fmt.Errorf("delete %s: %w", l.path(prefix), err)
	}
	return nil
}
