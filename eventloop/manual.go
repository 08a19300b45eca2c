package eventloop

import (
	"time"

	"github.com/AdguardTeam/procfilter/dom"
	"golang.org/x/exp/slices"
)

// Manual is an event loop driven by its owner with a virtual clock.  It is
// used by tests and by one-shot document filtering where no wall-clock time
// should pass.  Manual is not safe for concurrent use.
type Manual struct {
	tasks  []func()
	timers []*manualTimer

	now time.Duration
	seq uint64
}

// type check
var _ dom.EventLoop = (*Manual)(nil)

// NewManual creates a new *Manual with the clock set to zero.
func NewManual() (m *Manual) {
	return &Manual{}
}

// Post implements the dom.EventLoop interface for *Manual.
func (m *Manual) Post(task func()) {
	m.tasks = append(m.tasks, task)
}

// AfterFunc implements the dom.EventLoop interface for *Manual.
func (m *Manual) AfterFunc(d time.Duration, task func()) (t dom.Timer) {
	if d < 0 {
		d = 0
	}

	m.seq++
	mt := &manualTimer{
		loop: m,
		task: task,
		due:  m.now + d,
		seq:  m.seq,
	}
	m.timers = append(m.timers, mt)

	return mt
}

// Now returns the virtual time elapsed since the loop was created.
func (m *Manual) Now() (d time.Duration) {
	return m.now
}

// Pending returns the number of queued tasks and timers.
func (m *Manual) Pending() (n int) {
	return len(m.tasks) + len(m.timers)
}

// RunPending runs queued tasks, including the ones they queue, without
// advancing the clock.  It returns the number of tasks run.
func (m *Manual) RunPending() (n int) {
	for len(m.tasks) > 0 {
		task := m.tasks[0]
		m.tasks[0] = nil
		m.tasks = m.tasks[1:]

		task()
		n++
	}

	return n
}

// Advance moves the clock forward by d, running every task and timer that
// becomes due on the way in order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		m.RunPending()

		t := m.earliest()
		if t == nil || t.due > target {
			break
		}

		m.fire(t)
	}

	m.now = target
}

// Flush runs tasks and timers until nothing is queued or limit timers have
// fired.  It reports whether the loop was drained.
func (m *Manual) Flush(limit int) (drained bool) {
	for i := 0; i < limit; i++ {
		m.RunPending()

		t := m.earliest()
		if t == nil {
			return true
		}

		m.fire(t)
	}

	m.RunPending()

	return m.Pending() == 0
}

// earliest returns the timer due first or nil.
func (m *Manual) earliest() (t *manualTimer) {
	for _, mt := range m.timers {
		if t == nil || mt.due < t.due || (mt.due == t.due && mt.seq < t.seq) {
			t = mt
		}
	}

	return t
}

// fire removes t from the queue, moves the clock to its due time, and runs
// it.
func (m *Manual) fire(t *manualTimer) {
	m.remove(t)
	if t.due > m.now {
		m.now = t.due
	}

	t.fired = true
	t.task()
}

// remove deletes t from the timer queue.
func (m *Manual) remove(t *manualTimer) (ok bool) {
	i := slices.Index(m.timers, t)
	if i < 0 {
		return false
	}

	m.timers = slices.Delete(m.timers, i, i+1)

	return true
}

// manualTimer is a dom.Timer of a *Manual loop.
type manualTimer struct {
	loop  *Manual
	task  func()
	due   time.Duration
	seq   uint64
	fired bool
}

// Stop implements the dom.Timer interface for *manualTimer.
func (t *manualTimer) Stop() (ok bool) {
	if t.fired {
		return false
	}

	return t.loop.remove(t)
}
