package install

import (
	"context"
	"os"
	"time"

	"github.com/matzehuels/pypackages/pkg/errors"
)

// lockPoll is how often a waiting Lock retries.
const lockPoll = 100 * time.Millisecond

// FileLock is the project-wide advisory lock held for the duration of a
// materialization run.
type FileLock struct {
	file *os.File
	path string
}

// Lock takes the project lock of layout. When wait is false a held lock
// fails immediately with ENVIRONMENT_LOCKED; otherwise Lock retries until
// the lock is free or ctx is done.
func Lock(ctx context.Context, layout Layout, wait bool) (*FileLock, error) {
	path := layout.LockPath()
	if err := os.MkdirAll(layout.Root(), 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", layout.Root())
	}
	for {
		l, held, err := tryLock(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "lock %s", path)
		}
		if !held {
			return l, nil
		}
		if !wait {
			return nil, errors.New(errors.ErrCodeEnvironmentLocked, "%s is locked by another pypackages process", layout.Root())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPoll):
		}
	}
}

// Path returns the lock file location.
func (l *FileLock) Path() string { return l.path }
