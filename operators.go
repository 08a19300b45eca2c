package procfilter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter/dom"
)

// Operator is a procedural pseudo-operator.
type Operator uint8

// Operators.
const (
	// OpHas selects the subject nodes inside which the argument selector
	// matches.
	OpHas Operator = iota + 1

	// OpHasNot selects the subject nodes inside which the argument selector
	// matches nothing.
	OpHasNot

	// OpHasText selects the subject nodes whose text matches the argument
	// pattern.
	OpHasText

	// OpMinTextLength selects the subject nodes whose text is at least as
	// long as the argument.
	OpMinTextLength

	// OpMatchesCSS selects the subject nodes whose computed style property
	// matches the argument "property: pattern".
	OpMatchesCSS

	// OpMatchesCSSBefore is OpMatchesCSS for the ::before pseudo-element.
	OpMatchesCSSBefore

	// OpMatchesCSSAfter is OpMatchesCSS for the ::after pseudo-element.
	OpMatchesCSSAfter

	// OpXPath selects the elements the argument XPath expression yields for
	// each subject node.
	OpXPath

	// OpUpward selects an ancestor of each subject node, either the n-th one
	// or the closest one matching a selector.
	OpUpward

	// OpRemove detaches the subject nodes.  It never selects anything.
	OpRemove

	// OpNthAncestor selects the n-th ancestor of each subject node.
	OpNthAncestor
)

// opNames are the payload function names of the operators.
var opNames = map[Operator]string{
	OpHas:              "hideIfHas",
	OpHasNot:           "hideIfNotHas",
	OpHasText:          "hasText",
	OpMinTextLength:    "minTextLength",
	OpMatchesCSS:       "matchesCSS",
	OpMatchesCSSBefore: "matchesCSSBefore",
	OpMatchesCSSAfter:  "matchesCSSAfter",
	OpXPath:            "doXPath",
	OpUpward:           "upwardMatch",
	OpRemove:           "removeNodes",
	OpNthAncestor:      "nthAncestor",
}

// String implements the fmt.Stringer interface for Operator.
func (op Operator) String() (s string) {
	if name, ok := opNames[op]; ok {
		return name
	}

	return fmt.Sprintf("Operator(%d)", uint8(op))
}

// Filter is a single operator invocation.
type Filter struct {
	// Root is the scope the subject is resolved in.  Nil means the whole
	// document.
	Root dom.Node

	// Subject is the selector of the base node set.
	Subject string

	// Argument is the operator-specific criterion: a selector, a pattern,
	// "property: pattern", an XPath expression, or an integer.
	Argument string

	Op Operator
}

// Eval returns the nodes f selects in document order.  Malformed arguments
// select nothing.  OpRemove detaches its subject nodes and always returns an
// empty set.
func (e *Engine) Eval(f Filter) (nodes []dom.Node) {
	switch f.Op {
	case OpHas:
		return e.has(f.Subject, f.Argument, f.Root, true)
	case OpHasNot:
		return e.has(f.Subject, f.Argument, f.Root, false)
	case OpHasText:
		return e.hasText(f.Subject, f.Argument, f.Root)
	case OpMinTextLength:
		return e.minTextLength(f.Subject, f.Argument, f.Root)
	case OpMatchesCSS:
		return e.matchesCSS(f.Subject, f.Argument, f.Root, "")
	case OpMatchesCSSBefore:
		return e.matchesCSS(f.Subject, f.Argument, f.Root, dom.PseudoBefore)
	case OpMatchesCSSAfter:
		return e.matchesCSS(f.Subject, f.Argument, f.Root, dom.PseudoAfter)
	case OpXPath:
		return e.xpath(f.Subject, f.Argument, f.Root)
	case OpUpward:
		return e.upward(f.Subject, f.Argument, f.Root)
	case OpRemove:
		e.remove(f.Subject, f.Root)

		return nil
	case OpNthAncestor:
		n, err := strconv.Atoi(strings.TrimSpace(f.Argument))
		if err != nil || n < 0 {
			return nil
		}

		return e.ancestors(e.queryAll(f.Root, f.Subject), n)
	default:
		log.Debug("procfilter: unknown operator %s", f.Op)

		return nil
	}
}

// needScope matches the selectors that start with a combinator and so must
// be anchored at the scope node.
var needScope = regexp.MustCompile(`^\s*[+>~]`)

// addScope prefixes selector with ":scope" when it starts with a combinator.
func addScope(selector string) (scoped string) {
	if needScope.MatchString(selector) {
		return ":scope " + selector
	}

	return selector
}

// has returns the subject nodes for which a query of target anchored at the
// node is non-empty, or empty if want is false.
func (e *Engine) has(subject, target string, root dom.Node, want bool) (nodes []dom.Node) {
	target = addScope(target)
	for _, n := range e.queryAll(root, subject) {
		found, err := e.doc.Query(n, target)
		if err != nil {
			log.Debug("procfilter: query %q: %s", target, err)

			return nil
		}

		if (found != nil) == want {
			nodes = append(nodes, n)
		}
	}

	return nodes
}

// hasText returns the subject nodes whose text content matches the pattern.
func (e *Engine) hasText(selector, pattern string, root dom.Node) (nodes []dom.Node) {
	re := e.pattern(pattern)
	if re == nil {
		return nil
	}

	for _, n := range e.subjects(root, selector) {
		if matches(re, e.doc.TextContent(n)) {
			nodes = append(nodes, n)
		}
	}

	return nodes
}

// minTextLength returns the subject nodes with at least minLength characters
// of text.  minLength must be a whole decimal integer, so unlike parseInt a
// value with trailing text, such as "12px", selects nothing, as does a
// negative one.  The length is counted in code points, not UTF-16 units, so
// characters outside the BMP count once.
func (e *Engine) minTextLength(selector, minLength string, root dom.Node) (nodes []dom.Node) {
	minLen, err := strconv.Atoi(strings.TrimSpace(minLength))
	if err != nil || minLen < 0 {
		return nil
	}

	for _, n := range e.subjects(root, selector) {
		if utf8.RuneCountInString(e.doc.TextContent(n)) >= minLen {
			nodes = append(nodes, n)
		}
	}

	return nodes
}

// matchesCSS returns the subject nodes whose computed property matches the
// pattern.  arg is "property: pattern"; an argument without a colon selects
// nothing.
func (e *Engine) matchesCSS(selector, arg string, root dom.Node, pseudo string) (nodes []dom.Node) {
	prop, pattern, ok := strings.Cut(arg, ":")
	if !ok {
		return nil
	}

	prop = strings.TrimSpace(prop)
	re := e.pattern(strings.TrimSpace(pattern))
	if re == nil {
		return nil
	}

	for _, n := range e.subjects(root, selector) {
		if matches(re, e.doc.ComputedStyle(n, pseudo).Get(prop)) {
			nodes = append(nodes, n)
		}
	}

	return nodes
}

// xpath returns the elements expr yields with each subject node as the
// context node.  An empty subject uses the root.  Results keep the evaluation
// order and are not deduplicated.
func (e *Engine) xpath(subject, expr string, root dom.Node) (nodes []dom.Node) {
	for _, n := range e.subjects(root, subject) {
		res, err := e.doc.XPath(n, expr)
		if err != nil {
			log.Debug("procfilter: xpath %q: %s", expr, err)

			return nil
		}

		for _, r := range res {
			if r.Type() == dom.ElementNode {
				nodes = append(nodes, r)
			}
		}
	}

	return nodes
}

// upward returns an ancestor of every subject node.  An integer expr selects
// the expr-th ancestor, anything else is a selector the parent's closest
// ancestor-or-self must match.
func (e *Engine) upward(subject, expr string, root dom.Node) (nodes []dom.Node) {
	subjects := e.queryAll(root, subject)

	if n, err := strconv.Atoi(strings.TrimSpace(expr)); err == nil {
		if n < 1 {
			return nil
		}

		return e.ancestors(subjects, n)
	}

	for _, s := range subjects {
		parent := e.doc.Parent(s)
		if parent == nil {
			continue
		}

		match, err := e.doc.Closest(parent, expr)
		if err != nil {
			log.Debug("procfilter: closest %q: %s", expr, err)

			return nil
		}

		if match != nil {
			nodes = append(nodes, match)
		}
	}

	return nodes
}

// ancestors returns the n-th ancestor element of each node that has one.
func (e *Engine) ancestors(subjects []dom.Node, n int) (nodes []dom.Node) {
	for _, s := range subjects {
		a := s
		for i := 0; i < n && a != nil; i++ {
			a = e.doc.Parent(a)
		}

		if a != nil {
			nodes = append(nodes, a)
		}
	}

	return nodes
}

// remove detaches every subject node.
func (e *Engine) remove(subject string, root dom.Node) {
	for _, n := range e.queryAll(root, subject) {
		e.doc.Remove(n)
	}
}
