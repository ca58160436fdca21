package library

import (
	"fmt"

	"github.com/gofrs/flock"
)

// PassLock is held for the duration of a mutating reconciliation pass.
type PassLock struct {
	lock *flock.Flock
}

// LockPath returns the lock file guarding the library at path.
func LockPath(path string) string {
	return path + ".lock"
}

// LockPass acquires the cross-process pass lock without blocking. It returns
// ErrPassInProgress when another process holds it.
func (s *Store) LockPass() (*PassLock, error) {
	lock := flock.New(LockPath(s.path))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire pass lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrPassInProgress, lock.Path())
	}
	return &PassLock{lock: lock}, nil
}

// Unlock releases the pass lock.
func (l *PassLock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
