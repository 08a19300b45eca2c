// Package dom describes the document capability the procedural filtering
// engine works against: selector queries, computed styles, text content,
// structural mutation and mutation observation.
//
// The engine never touches a concrete tree directly.  Package htmldom
// provides an implementation over golang.org/x/net/html, tests may supply
// their own.
package dom

import "time"

// NodeType is the kind of a tree node.
type NodeType uint8

// Node types.
const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
	CommentNode
	AttributeNode
	OtherNode
)

// Node is an opaque reference to a node owned by a Document.  Two references
// to the same tree node must compare equal with ==.
type Node interface {
	// Type returns the node type.
	Type() NodeType

	// Name returns the upper-case tag name for elements ("BODY", "DIV") and
	// a "#"-prefixed name for everything else ("#text", "#document").
	Name() string
}

// Pseudo-element names accepted by Document.ComputedStyle.
const (
	PseudoBefore = "::before"
	PseudoAfter  = "::after"
)

// Style is the resolved style of an element or one of its pseudo-elements.
type Style interface {
	// Get returns the resolved value of the property or "" if it is unset.
	Get(property string) (value string)

	// CSSText returns the serialized declarations, "name: value; " each,
	// ordered by property name.
	CSSText() (text string)
}

// ObserveOptions controls which changes produce mutation records.
type ObserveOptions struct {
	// ChildList reports insertions and removals of children.
	ChildList bool

	// Subtree extends observation to all descendants of the root.
	Subtree bool

	// Attributes reports attribute changes.
	Attributes bool
}

// MutationKind is the kind of a mutation record.
type MutationKind uint8

// Mutation kinds.
const (
	MutationChildList MutationKind = iota
	MutationAttributes
	MutationCharacterData
)

// MutationRecord describes a single change to the tree.
type MutationRecord struct {
	// Target is the node whose children, attributes or data changed.
	Target Node

	// Added and Removed are set for MutationChildList records.
	Added   []Node
	Removed []Node

	// Attribute is set for MutationAttributes records.
	Attribute string

	Kind MutationKind
}

// Observer is a live mutation observation.
type Observer interface {
	// Disconnect stops the delivery of further batches.  It is safe to call
	// it more than once.
	Disconnect()
}

// ReadyState is the loading state of a document.
type ReadyState uint8

// Ready states in the order a document passes through them.
const (
	ReadyStateLoading ReadyState = iota
	ReadyStateInteractive
	ReadyStateComplete
)

// String implements the fmt.Stringer interface for ReadyState.
func (s ReadyState) String() (str string) {
	switch s {
	case ReadyStateLoading:
		return "loading"
	case ReadyStateInteractive:
		return "interactive"
	case ReadyStateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Document is the query and mutation capability of a loaded page.
type Document interface {
	// Root returns the document node.
	Root() (n Node)

	// Body returns the body element or nil if the document has none yet.
	Body() (n Node)

	// QueryAll returns the descendants of scope matching selector in
	// document order.  A nil scope means the whole document.  A selector
	// starting with ":scope" is anchored at scope itself.
	QueryAll(scope Node, selector string) (nodes []Node, err error)

	// Query returns the first node QueryAll would return or nil.
	Query(scope Node, selector string) (n Node, err error)

	// Closest returns the nearest ancestor-or-self element of n matching
	// selector or nil.
	Closest(n Node, selector string) (match Node, err error)

	// Parent returns the parent element of n or nil.
	Parent(n Node) (parent Node)

	// TextContent returns the concatenated text of n and its descendants.
	TextContent(n Node) (text string)

	// ComputedStyle resolves the style of element n.  pseudo is "",
	// "::before" or "::after".
	ComputedStyle(n Node, pseudo string) (s Style)

	// XPath evaluates expr with n as the context node.  Results may include
	// non-element nodes.
	XPath(n Node, expr string) (nodes []Node, err error)

	// StyleText returns the inline style attribute of n.
	StyleText(n Node) (css string)

	// SetStyleText replaces the inline style attribute of n.
	SetStyleText(n Node, css string)

	// Remove detaches n from the tree.  Removing a detached node is a no-op.
	Remove(n Node)

	// Observe starts delivering batches of mutation records under root to
	// fn.
	Observe(root Node, opts ObserveOptions, fn func(records []MutationRecord)) (o Observer, err error)

	// ReadyState returns the current loading state.
	ReadyState() (s ReadyState)

	// OnReadyStateChange registers fn to be called on every ready state
	// transition.
	OnReadyStateChange(fn func(s ReadyState))
}

// Timer is a pending task scheduled with EventLoop.AfterFunc.
type Timer interface {
	// Stop prevents the task from running.  It returns false if the task
	// has already run or been stopped.
	Stop() (ok bool)
}

// EventLoop is the cooperative, single-threaded task queue of a page.  Every
// task runs to completion before the next one starts.
type EventLoop interface {
	// Post queues task to run after the currently running one.
	Post(task func())

	// AfterFunc queues task to run once d has elapsed.
	AfterFunc(d time.Duration, task func()) (t Timer)
}

// Navigation signal names delivered to Window listeners.
const (
	EventClick          = "click"
	EventPopState       = "popstate"
	EventLocationChange = "locationchange"
)

// Window is the top-level browsing context of a document.
type Window interface {
	// Document returns the current document.
	Document() (doc Document)

	// Loop returns the event loop all page tasks run on.
	Loop() (l EventLoop)

	// Path returns the path component of the current location.
	Path() (path string)

	// AddEventListener registers fn for the named event.
	AddEventListener(event string, fn func())
}
