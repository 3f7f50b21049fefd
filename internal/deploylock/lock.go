package deploylock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockHeld is returned when another redeploy holds the lock for the same
// service name. Two concurrent redeploys racing on one volume would break
// the single-writer invariant, so the caller must fail fast, never queue.
var ErrLockHeld = errors.New("deploy lock already held")

// Release gives the lock back. Safe to call once.
type Release func(ctx context.Context) error

// Locker serializes deployments per service name.
type Locker interface {
	Acquire(ctx context.Context, serviceName string) (Release, error)
}

// LocalLock is an in-process locker for one-shot CLI invocations where no
// shared database is configured. It cannot protect against a second process
// on another machine; the lease lock does.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]bool)}
}

func (l *LocalLock) Acquire(ctx context.Context, serviceName string) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[serviceName] {
		return nil, ErrLockHeld
	}
	l.held[serviceName] = true

	var once sync.Once
	release := func(ctx context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, serviceName)
			l.mu.Unlock()
		})
		return nil
	}
	return release, nil
}
