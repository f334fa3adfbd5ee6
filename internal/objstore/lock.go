package objstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zeebo/xxh3"
)

// ErrLocked is returned by AcquireLock when another process holds the lock.
var ErrLocked = errors.New("destination is locked by another run")

// Lock is an exclusive advisory lock guarding one destination location.
type Lock struct {
	f    *os.File
	path string
}

// LockPath returns the lock file used for location. Local destinations lock
// a file inside the directory; remote ones lock a file in the temp dir named
// after a hash of the location.
func LockPath(location string) string {
	if IsS3(location) {
		name := "salesetl-" + strconv.FormatUint(xxh3.HashString(location), 16) + ".lock"
		return filepath.Join(os.TempDir(), name)
	}
	return filepath.Join(location, ".etl.lock")
}

// AcquireLock takes the lock for location without blocking. It fails with
// ErrLocked when another run holds it.
func AcquireLock(location string) (*Lock, error) {
	p := LockPath(location)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("lock %s: %w", p, err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", p, err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, fmt.Errorf("lock %s: %w", p, ErrLocked)
		}
		return nil, fmt.Errorf("lock %s: %w", p, err)
	}
	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
	}
	return &Lock{f: f, path: p}, nil
}

// Release drops the lock. The lock file is left in place; removing it would
// race with a concurrent AcquireLock that already opened it.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlockFile(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
