package procfilter

import (
	"strings"

	"github.com/AdguardTeam/procfilter/dom"
)

// universalSubject is the subject that switches HideIfHas and HideIfNotHas to
// the approximate style test.
const universalSubject = "*"

// ChainFunc is the nested operator of a chain.  It evaluates subject and
// argument with root as the scope.
type ChainFunc func(subject, argument string, root dom.Node) (nodes []dom.Node)

// ChainFunc returns op as a ChainFunc.
func (e *Engine) ChainFunc(op Operator) (fn ChainFunc) {
	return func(subject, argument string, root dom.Node) (nodes []dom.Node) {
		return e.Eval(Filter{
			Op:       op,
			Subject:  subject,
			Argument: argument,
			Root:     root,
		})
	}
}

// HideNodes hides every non-nil node.  The inline style of each node is
// replaced, not merged.
func (e *Engine) HideNodes(nodes []dom.Node) {
	for _, n := range nodes {
		if n != nil {
			e.doc.SetStyleText(n, hiddenStyle)
		}
	}
}

// HideFiltered hides the nodes selected by op with the given subject and
// argument in the whole document.
func (e *Engine) HideFiltered(op Operator, subject, argument string) {
	e.HideNodes(e.Eval(Filter{
		Op:       op,
		Subject:  subject,
		Argument: argument,
	}))
}

// HideIfHas hides the subject nodes inside which target matches.  A
// universal subject is handled by a deferred task that approximates the test,
// see hideByStyle.
func (e *Engine) HideIfHas(subject, target string, root dom.Node) {
	if subject == universalSubject {
		e.loop.Post(func() { e.hideByStyle(target, root) })

		return
	}

	e.HideNodes(e.has(subject, target, root, true))
}

// HideIfNotHas hides the subject nodes inside which target matches nothing.
// A universal subject takes the same deferred path as in HideIfHas, with the
// same test.
func (e *Engine) HideIfNotHas(subject, target string, root dom.Node) {
	if subject == universalSubject {
		e.loop.Post(func() { e.hideByStyle(target, root) })

		return
	}

	e.HideNodes(e.has(subject, target, root, false))
}

// hideByStyle walks every element under root in document order, skips the
// ones up to and including BODY, and hides the rest whose serialized
// computed style contains target.  This approximates both :has() and its
// negation without a nested query per element.
func (e *Engine) hideByStyle(target string, root dom.Node) {
	nodes := e.queryAll(root, universalSubject)

	i := 0
	for i < len(nodes) {
		i++
		if nodes[i-1].Name() == "BODY" {
			break
		}
	}

	for _, n := range nodes[i:] {
		text := e.doc.ComputedStyle(n, "").CSSText()
		if strings.Contains(text, target) {
			e.doc.SetStyleText(n, hiddenStyle)
		}
	}
}

// HideIfChain hides every subject node of the document for which op,
// evaluated with the node as the scope, selects something.
func (e *Engine) HideIfChain(subject string, op Operator, chainSubject, chainArgument string) {
	e.HideIfChainFunc(subject, chainSubject, chainArgument, e.ChainFunc(op))
}

// HideIfNotChain hides every subject node of the document for which op,
// evaluated with the node as the scope, selects nothing.  OpRemove only
// removes: its empty result never hides the subject.
func (e *Engine) HideIfNotChain(subject string, op Operator, chainSubject, chainArgument string) {
	if op == OpRemove {
		e.chain(subject, chainSubject, chainArgument, e.ChainFunc(op), func(dom.Node, []dom.Node) {})

		return
	}

	e.HideIfNotChainFunc(subject, chainSubject, chainArgument, e.ChainFunc(op))
}

// HideIfChainFunc is like HideIfChain but with an arbitrary nested operator.
func (e *Engine) HideIfChainFunc(subject, chainSubject, chainArgument string, fn ChainFunc) {
	e.chain(subject, chainSubject, chainArgument, fn, func(n dom.Node, res []dom.Node) {
		if len(res) > 0 {
			e.doc.SetStyleText(n, hiddenStyle)
		}
	})
}

// HideIfNotChainFunc is like HideIfNotChain but with an arbitrary nested
// operator.
func (e *Engine) HideIfNotChainFunc(subject, chainSubject, chainArgument string, fn ChainFunc) {
	e.chain(subject, chainSubject, chainArgument, fn, func(n dom.Node, res []dom.Node) {
		if len(res) == 0 {
			e.doc.SetStyleText(n, hiddenStyle)
		}
	})
}

// chain calls act with every subject node and the result of fn scoped at it.
func (e *Engine) chain(
	subject string,
	chainSubject string,
	chainArgument string,
	fn ChainFunc,
	act func(n dom.Node, res []dom.Node),
) {
	chainSubject = addScope(chainSubject)
	for _, n := range e.queryAll(nil, subject) {
		act(n, fn(chainSubject, chainArgument, n))
	}
}
