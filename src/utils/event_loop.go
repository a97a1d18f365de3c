package utils

import (
	"context"
	"sync"
	"time"

	"market-viewer/src/interfaces"
)

// -----------------------------------------------------------------------------
// EventLoop serializes work onto one goroutine. Everything the connection
// manager and the market facade touch runs through it, so they need no locks.
// -----------------------------------------------------------------------------

type EventLoop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// -----------------------------------------------------------------------------

func NewEventLoop(queue int) *EventLoop {
	if queue <= 0 {
		queue = 1024
	}
	return &EventLoop{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Run processes tasks until ctx is cancelled.
func (l *EventLoop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// -----------------------------------------------------------------------------

// Post queues fn without waiting. Tasks posted after the loop stopped are dropped.
func (l *EventLoop) Post(fn func()) {
	select {
	case <-l.done:
	case l.tasks <- fn:
	}
}

// -----------------------------------------------------------------------------

// Do runs fn on the loop and waits for it to finish.
func (l *EventLoop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return context.Canceled
	case l.tasks <- task:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// the task may already have run before the loop stopped
		select {
		case <-finished:
			return nil
		default:
			return context.Canceled
		}
	case <-finished:
		return nil
	}
}

// -----------------------------------------------------------------------------

// Done is closed once Run has returned.
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

// -----------------------------------------------------------------------------
// Scheduling. Timer callbacks are posted back onto the loop and skipped when
// the timer was stopped in the meantime.
// -----------------------------------------------------------------------------

type loopTimer struct {
	loop    *EventLoop
	timer   *time.Timer
	ticker  *time.Ticker
	quit    chan struct{}
	once    sync.Once
	stopped bool // owned by the loop goroutine
}

func (t *loopTimer) Stop() {
	t.once.Do(func() {
		if t.timer != nil {
			t.timer.Stop()
		}
		if t.ticker != nil {
			t.ticker.Stop()
			close(t.quit)
		}
	})
	t.stopped = true
}

// -----------------------------------------------------------------------------

func (l *EventLoop) After(d time.Duration, fn func()) interfaces.ITimer {
	t := &loopTimer{loop: l}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped {
				return
			}
			t.stopped = true
			fn()
		})
	})
	return t
}

// -----------------------------------------------------------------------------

func (l *EventLoop) Every(d time.Duration, fn func()) interfaces.ITimer {
	t := &loopTimer{loop: l, ticker: time.NewTicker(d), quit: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.quit:
				return
			case <-l.done:
				return
			case <-t.ticker.C:
				l.Post(func() {
					if !t.stopped {
						fn()
					}
				})
			}
		}
	}()
	return t
}
