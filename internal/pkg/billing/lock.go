package billing

import (
	"context"
	"sync"
)

// OrderLocker serialises work on one provider order across concurrent
// deliveries. The returned func releases the lock.
type OrderLocker interface {
	Lock(ctx context.Context, orderID string) (func(), error)
}

type localLockEntry struct {
	mu   sync.Mutex
	refs int
}

// LocalLocker is an in-process OrderLocker for single-node deployments
// and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLockEntry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLockEntry)}
}

func (l *LocalLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[orderID]
	if !ok {
		e = &localLockEntry{}
		l.locks[orderID] = e
	}
	e.refs++
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() { l.release(orderID, e) }, nil
	case <-ctx.Done():
		// The waiting goroutine still takes the mutex eventually; hand it
		// straight back.
		go func() {
			<-acquired
			l.release(orderID, e)
		}()
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(orderID string, e *localLockEntry) {
	e.mu.Unlock()
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, orderID)
	}
	l.mu.Unlock()
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
