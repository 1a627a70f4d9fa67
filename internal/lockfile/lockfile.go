// Package lockfile keeps more than one harness from running against the same
// lock path. The lock is an advisory flock held for the life of the process and
// released by the kernel if the process dies, so a supervisor restart after a
// simulated crash can always reacquire it.
package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// ErrLockedElsewhere is returned if another process holds the lock.
var ErrLockedElsewhere = errors.New("lock file already held elsewhere")

// Lock is an acquired instance lock. It must be released with Unlock.
type Lock struct {
	path string
	l    *flock.Flock
}

// Acquire tries once to take the lock at path.
func Acquire(path string) (*Lock, error) {
	return acquire(nil, path)
}

// AcquireWait retries until the lock is taken or ctx is done.
func AcquireWait(ctx context.Context, path string) (*Lock, error) {
	return acquire(ctx, path)
}

func acquire(ctx context.Context, path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrap(err, "failed to create lock directory")
	}

	l := flock.New(path)

	var locked bool
	var err error
	if ctx != nil {
		locked, err = l.TryLockContext(ctx, 25*time.Millisecond)
	} else {
		locked, err = l.TryLock()
	}
	if err != nil {
		if ctx != nil && ctx.Err() != nil {
			return nil, ErrLockedElsewhere
		}
		return nil, errors.Wrap(err, "failed to acquire lock")
	}
	if !locked {
		return nil, ErrLockedElsewhere
	}

	// The PID is informational; readers must not rely on it for liveness.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0600); err != nil {
		_ = l.Unlock()
		return nil, errors.Wrap(err, "failed to write pid into lock file")
	}

	return &Lock{path: path, l: l}, nil
}

func (l *Lock) Path() string {
	return l.path
}

// Unlock releases the flock. The file itself is left in place.
func (l *Lock) Unlock() error {
	return errors.Wrap(l.l.Unlock(), "failed to release lock")
}
