package engine

import (
	"context"
	"sync"

	"github.com/TrevorEdris/transfer-utils/pkg/errors"
)

// Guard enforces the one-call-at-a-time rule of a session and turns Abort
// into cancellation of the session's own context. Engines embed one per
// session.
type Guard struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	busy    bool
	closed  bool
	aborted bool
	onAbort func()
}

// NewGuard returns a guard whose context is derived from parent without its
// cancellation. onAbort runs once, after the context is cancelled, and
// should tear the transport down so a blocked call returns.
func NewGuard(parent context.Context, onAbort func()) *Guard {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Guard{ctx: ctx, cancel: cancel, onAbort: onAbort}
}

// Begin marks op as in flight and returns the context it should run under.
// Every successful Begin must be paired with End.
func (g *Guard) Begin(op, path string) (context.Context, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, errors.NewLocalError(op, path, errors.ErrSessionClosed)
	}
	if g.busy {
		return nil, errors.NewLocalError(op, path, errors.ErrSessionBusy)
	}
	g.busy = true
	return g.ctx, nil
}

func (g *Guard) End() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// Abort stops the in-flight call. The session is unusable afterwards.
func (g *Guard) Abort() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return errors.NewLocalError("abort", "", errors.ErrSessionClosed)
	}
	if !g.busy {
		g.mu.Unlock()
		return errors.NewLocalError("abort", "", errors.ErrNothingToAbort)
	}
	g.aborted = true
	g.closed = true
	g.mu.Unlock()

	g.cancel()
	if g.onAbort != nil {
		g.onAbort()
	}
	return nil
}

// Close marks the session closed. It reports false when the session was
// already closed or aborted, in which case the caller has nothing to release.
func (g *Guard) Close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.closed = true
	g.cancel()
	return true
}

func (g *Guard) Aborted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.aborted
}

// Fail classifies err from op: after an abort it is errors.ErrAborted,
// otherwise a protocol error.
func (g *Guard) Fail(op, path string, err error) error {
	if g.Aborted() {
		return errors.NewLocalError(op, path, errors.ErrAborted)
	}
	return errors.NewProtocolError(op, path, err)
}
