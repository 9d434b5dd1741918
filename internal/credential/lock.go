package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const lockPollInterval = 100 * time.Millisecond

// Lock is an exclusive advisory lock serializing sync exchanges between
// concurrent launcher processes.
type Lock struct {
	path string
	file *os.File
	// Session identifies the holder in the lock file.
	Session string
}

// AcquireLock takes an exclusive flock on path, waiting until it is free
// or ctx is done. The parent directory is created when missing.
func AcquireLock(ctx context.Context, path string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	fd := int(file.Fd())
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if err != unix.EWOULDBLOCK && err != unix.EINTR {
			file.Close()
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			file.Close()
			return nil, fmt.Errorf("wait for lock %s: %w", path, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}

	session := uuid.NewString()
	meta := fmt.Sprintf("pid=%d\nsession=%s\ntimestamp=%s\n", os.Getpid(), session, time.Now().UTC().Format(time.RFC3339))
	if err := file.Truncate(0); err == nil {
		file.WriteAt([]byte(meta), 0)
	}

	return &Lock{path: path, file: file, Session: session}, nil
}

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	return nil
}
