// Package lock serializes pipeline runs keyed by pipeline name.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked is returned when another run already holds the lock.
var ErrLocked = errors.New("run already in progress")

// Locker acquires a named run lock without waiting.
// The returned release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, name string) (func(), error)
}

// Local is an in-process Locker for a single long-lived runner.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(_ context.Context, name string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[name]; busy {
		return nil, ErrLocked
	}
	l.held[name] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
	}, nil
}
