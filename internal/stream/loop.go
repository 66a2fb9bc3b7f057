// Package stream serializes all directory and cursor mutation onto one
// goroutine, so a live message lands in the session directory and the active
// timeline as a single observable step with no interleaving in between.
package stream

import (
	"context"
	"log/slog"
	"sync"
)

// Loop is a single-consumer command executor. Every state transition of the
// session layer runs as a closure posted here; accessors elsewhere only ever
// read snapshots.
type Loop struct {
	logger *slog.Logger
	cmds   chan func()

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// NewLoop creates a stopped loop; Run starts consuming.
func NewLoop(logger *slog.Logger) *Loop {
	return &Loop{
		logger: logger,
		cmds:   make(chan func(), 256),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run consumes commands until ctx is cancelled. It owns all posted state.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.closeOnce.Do(func() { close(l.closed) })
			// Drain what was accepted before shutdown.
			for {
				select {
				case fn := <-l.cmds:
					fn()
				default:
					return
				}
			}
		case fn := <-l.cmds:
			fn()
		}
	}
}

// Do posts fn for execution on the loop goroutine. Returns false once the
// loop is shutting down.
func (l *Loop) Do(fn func()) bool {
	select {
	case <-l.closed:
		return false
	default:
	}
	select {
	case l.cmds <- fn:
		return true
	case <-l.closed:
		return false
	}
}

// Sync blocks until every command posted before it has run. Used by tests
// and by callers that must observe the effect of an earlier Do.
func (l *Loop) Sync() {
	ran := make(chan struct{})
	if !l.Do(func() { close(ran) }) {
		return
	}
	select {
	case <-ran:
	case <-l.done:
	}
}

// Wait blocks until Run has returned.
func (l *Loop) Wait() {
	<-l.done
}
