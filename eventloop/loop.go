// Package eventloop implements the cooperative, single-threaded task queues
// the procedural filtering engine runs on.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AdguardTeam/procfilter/dom"
)

// Loop is a real-time event loop.  Tasks are executed one at a time on the
// goroutine that calls Run; Post and AfterFunc may be called from any
// goroutine.
type Loop struct {
	// mu protects tasks.
	mu    *sync.Mutex
	tasks []func()

	// wake is signalled whenever a task is queued.
	wake chan struct{}
}

// type check
var _ dom.EventLoop = (*Loop)(nil)

// New creates a new *Loop.
func New() (l *Loop) {
	return &Loop{
		mu:   &sync.Mutex{},
		wake: make(chan struct{}, 1),
	}
}

// Post implements the dom.EventLoop interface for *Loop.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc implements the dom.EventLoop interface for *Loop.
func (l *Loop) AfterFunc(d time.Duration, task func()) (t dom.Timer) {
	rt := &realTimer{}
	rt.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if rt.state.CompareAndSwap(timerPending, timerFired) {
				task()
			}
		})
	})

	return rt
}

// Run executes queued tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) (err error) {
	for {
		for {
			task := l.next()
			if task == nil {
				break
			}

			task()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// next dequeues the oldest task or returns nil.
func (l *Loop) next() (task func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil
	}

	task = l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]

	return task
}

// Timer states.
const (
	timerPending int32 = iota
	timerFired
	timerStopped
)

// realTimer is a dom.Timer backed by a *time.Timer.
type realTimer struct {
	timer *time.Timer
	state atomic.Int32
}

// Stop implements the dom.Timer interface for *realTimer.
func (t *realTimer) Stop() (ok bool) {
	if !t.state.CompareAndSwap(timerPending, timerStopped) {
		return false
	}

	t.timer.Stop()

	return true
}
