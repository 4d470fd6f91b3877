package download

import (
	"context"
	"sync/atomic"
)

// Token is the cancellation flag of a single task. A new Token is created
// for every Start; once set it stays set.
type Token struct {
	set    atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewToken creates an unset token whose Context is derived from parent.
func NewToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Set marks the token and cancels its context. Calling Set more than once has no further effect.
func (t *Token) Set() {
	if t.set.CompareAndSwap(false, true) {
		t.cancel()
	}
}

// IsSet reports whether cancellation was requested.
func (t *Token) IsSet() bool {
	return t.set.Load()
}

// Context is cancelled once Set is called. Fetchers pass it to blocking I/O.
func (t *Token) Context() context.Context {
	return t.ctx
}

// release frees the context without marking the token.
func (t *Token) release() {
	t.cancel()
}
