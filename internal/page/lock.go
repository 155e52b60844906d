package page

import "context"

// Lock serializes access to the page. The trade cycle holds it for each
// round; statistics scans hold it while they page through history.
type Lock struct {
	ch chan struct{}
}

func NewLock() *Lock {
	return &Lock{ch: make(chan struct{}, 1)}
}

func (l *Lock) Acquire(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes the lock only if it is free.
func (l *Lock) TryAcquire() bool {
	select {
	case l.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l *Lock) Release() {
	<-l.ch
}
