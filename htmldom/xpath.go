package htmldom

import (
	"fmt"

	"github.com/AdguardTeam/procfilter/dom"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// XPath implements the dom.Document interface for *Document.  Absolute
// location paths are resolved against the document, not the context node.
func (d *Document) XPath(x dom.Node, expr string) (nodes []dom.Node, err error) {
	n := unwrap(x)
	if n == nil {
		n = d.root
	}

	e, err := d.compileXPath(expr)
	if err != nil {
		return nil, err
	}

	nav := d.navigatorAt(n)
	if nav == nil {
		// Detached from the document.
		return nil, nil
	}

	iter := e.Select(nav)
	for iter.MoveNext() {
		cur, ok := iter.Current().(*htmlquery.NodeNavigator)
		if !ok {
			continue
		}

		if cur.NodeType() == xpath.AttributeNode {
			if a := findAttr(cur.Current(), cur.LocalName()); a != nil {
				nodes = append(nodes, &Node{n: cur.Current(), attr: a})
			}

			continue
		}

		if cur.Current().Type == html.DoctypeNode {
			continue
		}

		nodes = append(nodes, d.wrap(cur.Current()))
	}

	return nodes, nil
}

// navigatorAt returns a navigator over the whole document positioned at n.
// htmlquery.CreateXPathNavigator(n) would make n the root of absolute paths,
// so the navigator is created at the document and walked down to n.  It
// returns nil if n is not in the document.
func (d *Document) navigatorAt(n *html.Node) (nav *htmlquery.NodeNavigator) {
	var path []*html.Node
	for c := n; c != d.root; c = c.Parent {
		if c == nil {
			return nil
		}

		path = append(path, c)
	}

	nav = htmlquery.CreateXPathNavigator(d.root)
	for i := len(path) - 1; i >= 0; i-- {
		if !nav.MoveToChild() {
			return nil
		}

		for nav.Current() != path[i] {
			if !nav.MoveToNext() {
				return nil
			}
		}
	}

	return nav
}

// findAttr returns the attribute key of n.
func findAttr(n *html.Node, key string) (a *html.Attribute) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			return &n.Attr[i]
		}
	}

	return nil
}

// compileXPath parses expr, caching the result.
func (d *Document) compileXPath(expr string) (e *xpath.Expr, err error) {
	e, ok := d.xpaths[expr]
	if ok {
		return e, nil
	}

	e, err = xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}

	d.xpaths[expr] = e

	return e, nil
}
