// Package async implements a simple Promise API.
package async

import "context"

// Promise is a simple notification primitive for asynchronous events.
type Promise chan struct{}

// NewPromise returns an unresolved Promise.
func NewPromise() Promise { return make(Promise) }

// Resolve wakes any clients currently waiting on the Promise. Resolve must
// be called only once.
func (s Promise) Resolve() {
	close(s)
}

// Wait synchronously blocks until the Promise is resolved.
func (s Promise) Wait() {
	<-s
}

// WaitContext blocks until the Promise is resolved, or the Context is done,
// in which case the Context error is returned.
func (s Promise) WaitContext(ctx context.Context) error {
	select {
	case <-s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsResolved returns whether the Promise has been resolved, without blocking.
func (s Promise) IsResolved() bool {
	select {
	case <-s:
		return true
	default:
		return false
	}
}
