package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// ErrLocked is returned by TryLock when another holder owns the lock.
var ErrLocked = errors.New("lock is held")

// FileLock serializes writers of one record. Within the process it is a
// mutex; on the OS filesystem it additionally holds an flock on
// <path>.lock so that separate processes sharing a storage root do not
// interleave.
type FileLock struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
	file *os.File
}

// NewFileLock creates a new file lock.
func NewFileLock(fs afero.Fs, path string) *FileLock {
	return &FileLock{fs: fs, path: path}
}

// Lock acquires the lock, retrying with exponential backoff until ctx is
// done.
func (l *FileLock) Lock(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := l.TryLock()
		if err == nil || errors.Is(err, ErrLocked) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() error {
	if !l.mu.TryLock() {
		return ErrLocked
	}
	if _, ok := l.fs.(*afero.OsFs); !ok {
		return nil
	}

	f, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		l.mu.Unlock()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLocked
		}
		return err
	}
	l.file = f
	return nil
}

// Unlock releases the lock.
func (l *FileLock) Unlock() {
	if l.file != nil {
		_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
		l.file.Close()
		l.file = nil
	}
	l.mu.Unlock()
}
