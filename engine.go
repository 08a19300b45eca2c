// Package procfilter implements procedural cosmetic filtering: extended
// pseudo-operators evaluated against a live document, the actions that hide
// or remove the matched elements, and the scheduler that keeps re-applying a
// compiled filter payload while the page changes.
package procfilter

import (
	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter/dom"
	"github.com/dlclark/regexp2"
)

// hiddenStyle is the inline style written by every hide action.  It replaces
// the element's inline style entirely.
const hiddenStyle = "display: none !important;"

// Engine evaluates procedural operators against a single document.  Like the
// document itself, it must only be used from the tasks of the page's event
// loop.
type Engine struct {
	doc  dom.Document
	loop dom.EventLoop

	// patterns caches compiled regular expressions by their argument text.
	patterns map[string]*regexp2.Regexp
}

// NewEngine creates a new *Engine working on doc.  Deferred work, such as the
// universal-subject path of HideIfHas, is posted to loop.
func NewEngine(doc dom.Document, loop dom.EventLoop) (e *Engine) {
	return &Engine{
		doc:      doc,
		loop:     loop,
		patterns: map[string]*regexp2.Regexp{},
	}
}

// Document returns the document e works on.
func (e *Engine) Document() (doc dom.Document) {
	return e.doc
}

// queryAll resolves selector under root.  Malformed selectors match nothing.
func (e *Engine) queryAll(root dom.Node, selector string) (nodes []dom.Node) {
	nodes, err := e.doc.QueryAll(root, selector)
	if err != nil {
		log.Debug("procfilter: query %q: %s", selector, err)

		return nil
	}

	return nodes
}

// subjects resolves the subject of a text or style operator.  An empty
// selector means the scope root itself.
func (e *Engine) subjects(root dom.Node, selector string) (nodes []dom.Node) {
	if selector != "" {
		return e.queryAll(root, selector)
	}

	if root == nil {
		root = e.doc.Root()
	}

	return []dom.Node{root}
}
