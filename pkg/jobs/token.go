package jobs

import (
	"sync"
	"sync/atomic"
)

// Token is the cancellation signal handed to a task when it is spawned.
// Reads are lock-free.
type Token struct {
	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}
}

// NewToken returns an uncancelled token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel sets the token. It reports whether this call was the first.
func (t *Token) Cancel() bool {
	first := false
	t.once.Do(func() {
		t.cancelled.Store(true)
		close(t.done)
		first = true
	})
	return first
}

// Cancelled reports whether Cancel was called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Done is closed on cancellation.
func (t *Token) Done() <-chan struct{} {
	return t.done
}
