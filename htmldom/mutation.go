package htmldom

import (
	"fmt"

	"github.com/AdguardTeam/procfilter/dom"
	"golang.org/x/net/html"
)

// observer is a dom.Observer of a *Document.
type observer struct {
	doc     *Document
	root    *html.Node
	fn      func(records []dom.MutationRecord)
	pending []dom.MutationRecord
	opts    dom.ObserveOptions

	scheduled    bool
	disconnected bool
}

// type check
var _ dom.Observer = (*observer)(nil)

// Observe implements the dom.Document interface for *Document.  Batches are
// delivered as tasks of the document's event loop.
func (d *Document) Observe(
	root dom.Node,
	opts dom.ObserveOptions,
	fn func(records []dom.MutationRecord),
) (o dom.Observer, err error) {
	n := unwrap(root)
	if n == nil || !d.attached(n) {
		return nil, fmt.Errorf("observing: %w", ErrDetached)
	}

	obs := &observer{
		doc:  d,
		root: n,
		fn:   fn,
		opts: opts,
	}
	d.observers = append(d.observers, obs)

	return obs, nil
}

// Disconnect implements the dom.Observer interface for *observer.
func (o *observer) Disconnect() {
	if o.disconnected {
		return
	}

	o.disconnected = true
	o.pending = nil

	obs := o.doc.observers
	for i, other := range obs {
		if other == o {
			o.doc.observers = append(obs[:i:i], obs[i+1:]...)

			break
		}
	}
}

// covers reports whether a change of target of the given kind is visible to
// o.
func (o *observer) covers(target *html.Node, kind dom.MutationKind) (ok bool) {
	switch kind {
	case dom.MutationChildList, dom.MutationCharacterData:
		if !o.opts.ChildList {
			return false
		}
	case dom.MutationAttributes:
		if !o.opts.Attributes {
			return false
		}
	}

	if target == o.root {
		return true
	}

	if !o.opts.Subtree {
		return false
	}

	for n := target.Parent; n != nil; n = n.Parent {
		if n == o.root {
			return true
		}
	}

	return false
}

// queue adds rec to the pending batch and schedules its delivery.
func (o *observer) queue(rec dom.MutationRecord) {
	o.pending = append(o.pending, rec)
	if o.scheduled {
		return
	}

	o.scheduled = true
	o.doc.loop.Post(o.deliver)
}

// deliver hands the pending batch to the callback.
func (o *observer) deliver() {
	o.scheduled = false
	if o.disconnected || len(o.pending) == 0 {
		return
	}

	batch := o.pending
	o.pending = nil
	o.fn(batch)
}

// record dispatches rec about target to the interested observers.
func (d *Document) record(target *html.Node, rec dom.MutationRecord) {
	if rec.Kind != dom.MutationAttributes {
		d.styles = nil
	}

	for _, o := range d.observers {
		if o.covers(target, rec.Kind) {
			o.queue(rec)
		}
	}
}
