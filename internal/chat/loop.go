package chat

import (
	"context"
	"sync"
)

// Dispatcher runs closures on the goroutine that owns a State
type Dispatcher interface {
	// Post queues fn. It returns false once the dispatcher is closed.
	Post(fn func()) bool
}

// Loop is a FIFO Dispatcher drained by the owner goroutine, either through
// Run, Drain, or by reading C from a UI event loop.
type Loop struct {
	ch        chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

// NewLoop creates a loop with room for buffer pending closures
func NewLoop(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	return &Loop{
		ch:     make(chan func(), buffer),
		closed: make(chan struct{}),
	}
}

// Post implements Dispatcher. It blocks while the queue is full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.closed:
		return false
	default:
	}
	select {
	case l.ch <- fn:
		return true
	case <-l.closed:
		return false
	}
}

// C exposes the queue to an external event loop
func (l *Loop) C() <-chan func() {
	return l.ch
}

// Drain runs every queued closure without blocking and returns how many ran
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-l.ch:
			fn()
			n++
		default:
			return n
		}
	}
}

// RunUntil runs closures until done is closed or ctx ends
func (l *Loop) RunUntil(ctx context.Context, done <-chan struct{}) error {
	for {
		select {
		case <-done:
			l.Drain()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.ch:
			fn()
		}
	}
}

// Close makes every pending and future Post return false
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.closed) })
}
