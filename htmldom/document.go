// Package htmldom implements the dom capabilities over a
// golang.org/x/net/html parse tree.  Selectors are matched by cascadia, XPath
// expressions are evaluated by antchfx/xpath, and computed styles are
// resolved from the document's own <style> sheets parsed by douceur.
package htmldom

import (
	"fmt"
	"io"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/procfilter/dom"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrDetached is returned when an operation requires a node attached to the
// document.
const ErrDetached errors.Error = "node is not attached to the document"

// scopeAttr marks the scope element while a ":scope"-anchored selector is
// evaluated.
const scopeAttr = "data-procfilter-scope"

// Document is a dom.Document backed by an HTML parse tree.  Like a browser
// document, it must only be used from the tasks of its event loop.
type Document struct {
	root *html.Node
	loop dom.EventLoop

	// nodes keeps one wrapper per tree node so that references compare
	// equal.
	nodes map[*html.Node]*Node

	selectors map[string]cascadia.SelectorGroup
	xpaths    map[string]*xpath.Expr

	observers []*observer

	readyListeners []func(s dom.ReadyState)
	readyState     dom.ReadyState

	// styles caches the parsed author style sheets until the next
	// structural change.
	styles *styleSet
}

// type check
var _ dom.Document = (*Document)(nil)

// Parse reads an HTML document from r.  The returned document is in the
// complete ready state.
func Parse(r io.Reader, loop dom.EventLoop) (d *Document, err error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	d = newDocument(root, loop)
	d.readyState = dom.ReadyStateComplete

	return d, nil
}

// ParseString is like Parse but reads the document from a string.
func ParseString(s string, loop dom.EventLoop) (d *Document, err error) {
	return Parse(strings.NewReader(s), loop)
}

// NewLoading creates a document that is still loading: it has a root <html>
// element with an empty <head> and no <body> yet.
func NewLoading(loop dom.EventLoop) (d *Document) {
	root := &html.Node{Type: html.DocumentNode}
	htmlEl := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	htmlEl.AppendChild(&html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head})
	root.AppendChild(htmlEl)

	d = newDocument(root, loop)
	d.readyState = dom.ReadyStateLoading

	return d
}

func newDocument(root *html.Node, loop dom.EventLoop) (d *Document) {
	return &Document{
		root:      root,
		loop:      loop,
		nodes:     map[*html.Node]*Node{},
		selectors: map[string]cascadia.SelectorGroup{},
		xpaths:    map[string]*xpath.Expr{},
	}
}

// Node is a reference to a node of a *Document.
type Node struct {
	n    *html.Node
	attr *html.Attribute
}

// type check
var _ dom.Node = (*Node)(nil)

// Type implements the dom.Node interface for *Node.
func (x *Node) Type() (t dom.NodeType) {
	if x.attr != nil {
		return dom.AttributeNode
	}

	switch x.n.Type {
	case html.DocumentNode:
		return dom.DocumentNode
	case html.ElementNode:
		return dom.ElementNode
	case html.TextNode:
		return dom.TextNode
	case html.CommentNode:
		return dom.CommentNode
	default:
		return dom.OtherNode
	}
}

// Name implements the dom.Node interface for *Node.
func (x *Node) Name() (name string) {
	if x.attr != nil {
		return x.attr.Key
	}

	switch x.n.Type {
	case html.ElementNode:
		return strings.ToUpper(x.n.Data)
	case html.DocumentNode:
		return "#document"
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	default:
		return "#" + x.n.Data
	}
}

// HTML returns the underlying parse tree node.
func (x *Node) HTML() (n *html.Node) {
	return x.n
}

// String implements the fmt.Stringer interface for *Node.
func (x *Node) String() (s string) {
	if x.n.Type != html.ElementNode {
		return x.Name()
	}

	var sb strings.Builder
	sb.WriteString(x.n.Data)
	for _, a := range x.n.Attr {
		switch a.Key {
		case "id":
			sb.WriteString("#" + a.Val)
		case "class":
			for _, c := range strings.Fields(a.Val) {
				sb.WriteString("." + c)
			}
		}
	}

	return sb.String()
}

// wrap returns the reference for n or nil.
func (d *Document) wrap(n *html.Node) (x dom.Node) {
	if n == nil {
		return nil
	}

	w, ok := d.nodes[n]
	if !ok {
		w = &Node{n: n}
		d.nodes[n] = w
	}

	return w
}

// wrapAll converts a list of tree nodes into references.
func (d *Document) wrapAll(ns []*html.Node) (nodes []dom.Node) {
	if len(ns) == 0 {
		return nil
	}

	nodes = make([]dom.Node, 0, len(ns))
	for _, n := range ns {
		nodes = append(nodes, d.wrap(n))
	}

	return nodes
}

// unwrap returns the tree node behind x or nil.
func unwrap(x dom.Node) (n *html.Node) {
	w, ok := x.(*Node)
	if !ok || w == nil || w.attr != nil {
		return nil
	}

	return w.n
}

// Root implements the dom.Document interface for *Document.
func (d *Document) Root() (n dom.Node) {
	return d.wrap(d.root)
}

// Body implements the dom.Document interface for *Document.
func (d *Document) Body() (n dom.Node) {
	return d.wrap(d.body())
}

func (d *Document) body() (n *html.Node) {
	htmlEl := childElement(d.root, atom.Html)
	if htmlEl == nil {
		return nil
	}

	return childElement(htmlEl, atom.Body)
}

// childElement returns the first child of n with the given tag.
func childElement(n *html.Node, a atom.Atom) (c *html.Node) {
	for c = n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}

	return nil
}

// QueryAll implements the dom.Document interface for *Document.
func (d *Document) QueryAll(scope dom.Node, selector string) (nodes []dom.Node, err error) {
	ns, err := d.queryAll(d.scopeRoot(scope), selector)
	if err != nil {
		return nil, err
	}

	return d.wrapAll(ns), nil
}

// Query implements the dom.Document interface for *Document.
func (d *Document) Query(scope dom.Node, selector string) (n dom.Node, err error) {
	ns, err := d.queryAll(d.scopeRoot(scope), selector)
	if err != nil || len(ns) == 0 {
		return nil, err
	}

	return d.wrap(ns[0]), nil
}

// scopeRoot returns the tree node to query under.
func (d *Document) scopeRoot(scope dom.Node) (root *html.Node) {
	root = unwrap(scope)
	if root == nil {
		return d.root
	}

	return root
}

// queryAll returns the descendants of root matching selector.
func (d *Document) queryAll(root *html.Node, selector string) (ns []*html.Node, err error) {
	selector = strings.TrimSpace(selector)
	if rest, ok := cutScope(selector); ok {
		if root.Type == html.ElementNode {
			root.Attr = append(root.Attr, html.Attribute{Key: scopeAttr, Val: "1"})
			defer removeAttr(root, scopeAttr)

			selector = "[" + scopeAttr + "]" + rest
		} else {
			selector = ":root" + rest
		}
	}

	m, err := d.compile(selector)
	if err != nil {
		return nil, err
	}

	return cascadia.QueryAll(root, m), nil
}

// cutScope strips a leading ":scope" pseudo-class.
func cutScope(selector string) (rest string, ok bool) {
	rest, ok = strings.CutPrefix(selector, ":scope")
	if !ok {
		return selector, false
	}

	if rest != "" && isIdentByte(rest[0]) {
		return selector, false
	}

	return rest, true
}

func isIdentByte(c byte) (ok bool) {
	return c == '-' || c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// compile parses selector, caching the result.
func (d *Document) compile(selector string) (sel cascadia.SelectorGroup, err error) {
	sel, ok := d.selectors[selector]
	if ok {
		return sel, nil
	}

	sel, err = cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}

	d.selectors[selector] = sel

	return sel, nil
}

// Closest implements the dom.Document interface for *Document.
func (d *Document) Closest(x dom.Node, selector string) (match dom.Node, err error) {
	n := unwrap(x)
	if n == nil {
		return nil, nil
	}

	sel, err := d.compile(strings.TrimSpace(selector))
	if err != nil {
		return nil, err
	}

	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && sel.Match(n) {
			return d.wrap(n), nil
		}
	}

	return nil, nil
}

// Parent implements the dom.Document interface for *Document.
func (d *Document) Parent(x dom.Node) (parent dom.Node) {
	n := unwrap(x)
	if n == nil || n.Parent == nil || n.Parent.Type != html.ElementNode {
		return nil
	}

	return d.wrap(n.Parent)
}

// TextContent implements the dom.Document interface for *Document.
func (d *Document) TextContent(x dom.Node) (text string) {
	if w, ok := x.(*Node); ok && w != nil && w.attr != nil {
		return w.attr.Val
	}

	n := unwrap(x)
	if n == nil {
		return ""
	}

	return goquery.NewDocumentFromNode(n).Text()
}

// StyleText implements the dom.Document interface for *Document.
func (d *Document) StyleText(x dom.Node) (css string) {
	n := unwrap(x)
	if n == nil {
		return ""
	}

	return attrValue(n, "style")
}

// SetStyleText implements the dom.Document interface for *Document.
func (d *Document) SetStyleText(x dom.Node, css string) {
	d.SetAttribute(x, "style", css)
}

// SetAttribute sets the attribute key of element x to val.
func (d *Document) SetAttribute(x dom.Node, key, val string) {
	n := unwrap(x)
	if n == nil || n.Type != html.ElementNode {
		return
	}

	setAttr(n, key, val)
	d.record(n, dom.MutationRecord{
		Kind:      dom.MutationAttributes,
		Target:    x,
		Attribute: key,
	})
}

// Attribute returns the value of the attribute key of element x.
func (d *Document) Attribute(x dom.Node, key string) (val string, ok bool) {
	n := unwrap(x)
	if n == nil {
		return "", false
	}

	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}

	return "", false
}

// Remove implements the dom.Document interface for *Document.
func (d *Document) Remove(x dom.Node) {
	n := unwrap(x)
	if n == nil || n.Parent == nil {
		return
	}

	parent := n.Parent
	d.record(parent, dom.MutationRecord{
		Kind:    dom.MutationChildList,
		Target:  d.wrap(parent),
		Removed: []dom.Node{x},
	})
	parent.RemoveChild(n)
}

// AppendHTML parses fragment in the context of element parent and appends
// the resulting nodes to it.
func (d *Document) AppendHTML(parent dom.Node, fragment string) (added []dom.Node, err error) {
	p := unwrap(parent)
	if p == nil || p.Type != html.ElementNode {
		return nil, fmt.Errorf("appending html: %w", ErrDetached)
	}

	ns, err := html.ParseFragment(strings.NewReader(fragment), p)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}

	for _, n := range ns {
		p.AppendChild(n)
	}

	added = d.wrapAll(ns)
	if len(added) > 0 {
		d.record(p, dom.MutationRecord{
			Kind:   dom.MutationChildList,
			Target: parent,
			Added:  added,
		})
	}

	return added, nil
}

// SetText replaces the children of element x with a single text node.
func (d *Document) SetText(x dom.Node, text string) {
	n := unwrap(x)
	if n == nil || n.Type != html.ElementNode {
		return
	}

	var removed []dom.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		removed = append(removed, d.wrap(c))
		n.RemoveChild(c)
		c = next
	}

	t := &html.Node{Type: html.TextNode, Data: text}
	n.AppendChild(t)

	d.record(n, dom.MutationRecord{
		Kind:    dom.MutationChildList,
		Target:  x,
		Added:   []dom.Node{d.wrap(t)},
		Removed: removed,
	})
}

// EnsureBody returns the body element, creating an empty one when the
// document has none.
func (d *Document) EnsureBody() (body dom.Node) {
	if b := d.body(); b != nil {
		return d.wrap(b)
	}

	htmlEl := childElement(d.root, atom.Html)
	b := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	htmlEl.AppendChild(b)

	body = d.wrap(b)
	d.record(htmlEl, dom.MutationRecord{
		Kind:   dom.MutationChildList,
		Target: d.wrap(htmlEl),
		Added:  []dom.Node{body},
	})

	return body
}

// ReadyState implements the dom.Document interface for *Document.
func (d *Document) ReadyState() (s dom.ReadyState) {
	return d.readyState
}

// OnReadyStateChange implements the dom.Document interface for *Document.
func (d *Document) OnReadyStateChange(fn func(s dom.ReadyState)) {
	d.readyListeners = append(d.readyListeners, fn)
}

// SetReadyState moves the document to state s and notifies the listeners.
// Moving backwards is ignored.
func (d *Document) SetReadyState(s dom.ReadyState) {
	if s <= d.readyState {
		return
	}

	d.readyState = s
	for _, fn := range d.readyListeners {
		fn(s)
	}
}

// HTML serializes the document.
func (d *Document) HTML() (s string) {
	return htmlquery.OutputHTML(d.root, true)
}

// attached reports whether n is connected to the document root.
func (d *Document) attached(n *html.Node) (ok bool) {
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}

	return false
}

func attrValue(n *html.Node, key string) (val string) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}

	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val

			return
		}
	}

	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)

			return
		}
	}
}
