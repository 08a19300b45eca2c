package procfilter

import (
	"fmt"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter/dom"
)

// Default reapplication settings.
const (
	DefaultQuota            = 7
	DefaultDebounce         = 50 * time.Millisecond
	DefaultSettle           = 500 * time.Millisecond
	DefaultAttachRetries    = 10
	DefaultAttachRetryDelay = 100 * time.Millisecond
)

// ReapplyConfig contains the settings of a Reapplier.  Zero fields take the
// default values.
type ReapplyConfig struct {
	// Quota is the number of mutation-triggered passes allowed per
	// navigation epoch.  The batch after the last allowed one disconnects
	// the observer.
	Quota int

	// Debounce is the delay between a mutation batch and the pass it
	// triggers.  Batches arriving during the delay restart it.
	Debounce time.Duration

	// Settle is the delay between a detected navigation and the forced pass.
	Settle time.Duration

	// AttachRetries is the number of additional attempts to start
	// observing the document after a failure.
	AttachRetries int

	// AttachRetryDelay is the delay between attach attempts.
	AttachRetryDelay time.Duration
}

// withDefaults returns a copy of c with the zero fields set to the defaults.
func (c *ReapplyConfig) withDefaults() (conf ReapplyConfig) {
	if c != nil {
		conf = *c
	}

	if conf.Quota <= 0 {
		conf.Quota = DefaultQuota
	}

	if conf.Debounce <= 0 {
		conf.Debounce = DefaultDebounce
	}

	if conf.Settle <= 0 {
		conf.Settle = DefaultSettle
	}

	if conf.AttachRetries <= 0 {
		conf.AttachRetries = DefaultAttachRetries
	}

	if conf.AttachRetryDelay <= 0 {
		conf.AttachRetryDelay = DefaultAttachRetryDelay
	}

	return conf
}

// ReapplyState is the state of a Reapplier.
type ReapplyState uint8

// Reapplier states.
const (
	// StateIdle means no pass is pending.
	StateIdle ReapplyState = iota

	// StateScheduled means a debounced pass is pending.
	StateScheduled

	// StateEvaluating means the payload is running.
	StateEvaluating

	// StateDisconnected means the quota is exhausted and the observer is
	// gone.  Only navigation can trigger further passes.
	StateDisconnected
)

// String implements the fmt.Stringer interface for ReapplyState.
func (s ReapplyState) String() (str string) {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateEvaluating:
		return "evaluating"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("ReapplyState(%d)", uint8(s))
	}
}

// observeOptions are the changes that trigger a pass.
var observeOptions = dom.ObserveOptions{
	ChildList: true,
	Subtree:   true,
}

// Reapplier re-runs a payload as the page mutates and navigates.  All its
// methods must be called from the tasks of the window's event loop.
type Reapplier struct {
	win  dom.Window
	run  func()
	conf ReapplyConfig

	observer dom.Observer
	debounce dom.Timer
	settle   dom.Timer

	// path is the path of the current navigation epoch.
	path string

	// mutations is the number of passes triggered by mutations in the
	// current epoch.
	mutations int

	// passes is the total number of payload runs.
	passes int

	attempts int
	state    ReapplyState

	waitingReady bool
	started      bool
	stopped      bool
	disconnected bool
}

// NewReapplier creates a new *Reapplier running run on win.  conf may be nil.
func NewReapplier(win dom.Window, run func(), conf *ReapplyConfig) (r *Reapplier) {
	return &Reapplier{
		win:  win,
		run:  run,
		conf: conf.withDefaults(),
	}
}

// Start runs the payload once, starts observing the document, and starts
// listening for navigation.  Calling it again has no effect.
func (r *Reapplier) Start() {
	if r.started {
		return
	}

	r.started = true
	r.path = r.win.Path()

	r.evaluate()
	r.attach()

	for _, event := range []string{
		dom.EventClick,
		dom.EventPopState,
		dom.EventLocationChange,
	} {
		r.win.AddEventListener(event, r.navigated)
	}
}

// Stop disconnects the observer and cancels the pending passes.  The
// Reapplier cannot be restarted.
func (r *Reapplier) Stop() {
	r.stopped = true
	r.disconnect()

	if r.debounce != nil {
		r.debounce.Stop()
		r.debounce = nil
	}

	if r.settle != nil {
		r.settle.Stop()
		r.settle = nil
	}
}

// State returns the current state.
func (r *Reapplier) State() (s ReapplyState) {
	return r.state
}

// Mutations returns the number of mutation-triggered passes in the current
// navigation epoch.
func (r *Reapplier) Mutations() (n int) {
	return r.mutations
}

// Passes returns the number of times the payload has run.
func (r *Reapplier) Passes() (n int) {
	return r.passes
}

// Observing reports whether the document is being observed.
func (r *Reapplier) Observing() (ok bool) {
	return r.observer != nil
}

// attach starts observing the body.  A document without a body is observed
// once it becomes interactive.  Failures are retried a limited number of
// times, after which the page stays unobserved.
func (r *Reapplier) attach() {
	if r.stopped || r.disconnected || r.observer != nil {
		return
	}

	doc := r.win.Document()
	body := doc.Body()
	if body == nil && doc.ReadyState() < dom.ReadyStateInteractive {
		r.waitReady(doc)

		return
	}

	var err error
	if body == nil {
		err = fmt.Errorf("document is %s but has no body", doc.ReadyState())
	} else {
		r.observer, err = doc.Observe(body, observeOptions, r.mutated)
	}

	if err == nil {
		log.Debug("procfilter: observing %s", r.path)

		return
	}

	if r.attempts >= r.conf.AttachRetries {
		log.Error("procfilter: giving up observing %s: %s", r.path, err)

		return
	}

	r.attempts++
	log.Debug("procfilter: attach attempt %d: %s", r.attempts, err)
	r.win.Loop().AfterFunc(r.conf.AttachRetryDelay, r.attach)
}

// waitReady calls attach when doc becomes interactive.
func (r *Reapplier) waitReady(doc dom.Document) {
	if r.waitingReady {
		return
	}

	r.waitingReady = true
	doc.OnReadyStateChange(func(s dom.ReadyState) {
		if s >= dom.ReadyStateInteractive && r.observer == nil {
			r.attach()
		}
	})
}

// mutated handles a batch of mutation records.
func (r *Reapplier) mutated(_ []dom.MutationRecord) {
	if r.disconnected {
		return
	}

	if r.mutations >= r.conf.Quota {
		log.Debug("procfilter: quota of %d passes exhausted on %s", r.conf.Quota, r.path)
		r.disconnect()

		return
	}

	r.mutations++
	if r.debounce != nil {
		r.debounce.Stop()
	}

	r.debounce = r.win.Loop().AfterFunc(r.conf.Debounce, r.debounced)
	if r.state != StateEvaluating {
		r.state = StateScheduled
	}
}

// debounced runs the pass scheduled by mutated.
func (r *Reapplier) debounced() {
	r.debounce = nil
	r.evaluate()
}

// disconnect stops observing for the rest of the epoch.
func (r *Reapplier) disconnect() {
	if r.observer != nil {
		r.observer.Disconnect()
		r.observer = nil
	}

	r.disconnected = true
	r.state = StateDisconnected
}

// navigated starts a new epoch if the path has changed.  The observer is not
// reattached: only the forced pass runs.
func (r *Reapplier) navigated() {
	path := r.win.Path()
	if r.stopped || path == r.path {
		return
	}

	log.Debug("procfilter: navigation from %s to %s", r.path, path)

	r.path = path
	r.mutations = 0

	if r.settle != nil {
		r.settle.Stop()
	}

	r.settle = r.win.Loop().AfterFunc(r.conf.Settle, func() {
		r.settle = nil
		r.evaluate()
	})
}

// evaluate runs the payload to completion.
func (r *Reapplier) evaluate() {
	if r.stopped {
		return
	}

	r.state = StateEvaluating
	r.passes++
	r.run()

	switch {
	case r.disconnected:
		r.state = StateDisconnected
	case r.debounce != nil:
		r.state = StateScheduled
	default:
		r.state = StateIdle
	}
}
