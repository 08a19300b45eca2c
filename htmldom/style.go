package htmldom

import (
	"regexp"
	"sort"
	"strings"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter/dom"
	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Pseudo-element names accepted by ComputedStyle.
const (
	PseudoBefore = dom.PseudoBefore
	PseudoAfter  = dom.PseudoAfter
)

// inherited lists the properties a child takes from its parent when it has
// no declaration of its own.
var inherited = map[string]bool{
	"color":          true,
	"cursor":         true,
	"direction":      true,
	"font-family":    true,
	"font-size":      true,
	"font-style":     true,
	"font-weight":    true,
	"letter-spacing": true,
	"line-height":    true,
	"text-align":     true,
	"text-transform": true,
	"visibility":     true,
	"white-space":    true,
	"word-spacing":   true,
}

// displayDefaults are the user-agent display values of elements that are
// not inline.
var displayDefaults = map[atom.Atom]string{
	atom.Address: "block", atom.Article: "block", atom.Aside: "block",
	atom.Blockquote: "block", atom.Body: "block", atom.Dd: "block",
	atom.Details: "block", atom.Dialog: "block", atom.Div: "block",
	atom.Dl: "block", atom.Dt: "block", atom.Fieldset: "block",
	atom.Figcaption: "block", atom.Figure: "block", atom.Footer: "block",
	atom.Form: "block", atom.H1: "block", atom.H2: "block",
	atom.H3: "block", atom.H4: "block", atom.H5: "block",
	atom.H6: "block", atom.Header: "block", atom.Hr: "block",
	atom.Html: "block", atom.Main: "block", atom.Nav: "block",
	atom.Ol: "block", atom.P: "block", atom.Pre: "block",
	atom.Section: "block", atom.Summary: "block", atom.Ul: "block",
	atom.Li: "list-item",
	atom.Table: "table", atom.Tr: "table-row", atom.Td: "table-cell",
	atom.Th: "table-cell", atom.Thead: "table-header-group",
	atom.Tbody: "table-row-group", atom.Tfoot: "table-footer-group",
	atom.Caption: "table-caption",
	atom.Head: "none", atom.Link: "none", atom.Meta: "none",
	atom.Script: "none", atom.Style: "none", atom.Template: "none",
	atom.Title: "none", atom.Noscript: "none",
}

// legacyPseudo matches the single-colon spelling of ::before and ::after.
var legacyPseudo = regexp.MustCompile(`(^|[^:]):(before|after)\b`)

// styleRule is one selector of an author style rule.
type styleRule struct {
	sel    cascadia.Sel
	pseudo string
	decls  []*css.Declaration
	order  int
}

// styleSet is the compiled author style of the document.
type styleSet struct {
	rules []*styleRule
}

// computedStyle is a dom.Style.
type computedStyle struct {
	props map[string]string
}

// type check
var _ dom.Style = (*computedStyle)(nil)

// Get implements the dom.Style interface for *computedStyle.
func (s *computedStyle) Get(property string) (value string) {
	return s.props[strings.ToLower(strings.TrimSpace(property))]
}

// CSSText implements the dom.Style interface for *computedStyle.
func (s *computedStyle) CSSText() (text string) {
	names := make([]string, 0, len(s.props))
	for name := range s.props {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(s.props[name])
		sb.WriteString("; ")
	}

	return strings.TrimSuffix(sb.String(), " ")
}

// ComputedStyle implements the dom.Document interface for *Document.
func (d *Document) ComputedStyle(x dom.Node, pseudo string) (s dom.Style) {
	n := unwrap(x)
	if n == nil || n.Type != html.ElementNode {
		return &computedStyle{props: map[string]string{}}
	}

	return &computedStyle{props: d.resolve(n, normalizePseudo(pseudo))}
}

// normalizePseudo converts ":before", "::before", and "before" into the
// bare pseudo-element name.
func normalizePseudo(pseudo string) (name string) {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(pseudo), ":"))
}

// resolve computes the properties of n or of its pseudo-element.
func (d *Document) resolve(n *html.Node, pseudo string) (props map[string]string) {
	props = map[string]string{}
	if pseudo == "" {
		props["display"] = defaultDisplay(n)
	} else {
		props["display"] = "inline"
		props["content"] = "none"
	}

	type ranked struct {
		decl        *css.Declaration
		specificity cascadia.Specificity
		tier        int
		order       int
	}

	var matched []ranked
	for _, r := range d.styleSet().rules {
		if r.pseudo != pseudo || !r.sel.Match(n) {
			continue
		}

		for _, decl := range r.decls {
			tier := 0
			if decl.Important {
				tier = 2
			}

			matched = append(matched, ranked{
				decl:        decl,
				specificity: r.sel.Specificity(),
				tier:        tier,
				order:       r.order,
			})
		}
	}

	if pseudo == "" {
		for _, decl := range inlineDeclarations(n) {
			tier := 1
			if decl.Important {
				tier = 3
			}

			matched = append(matched, ranked{decl: decl, tier: tier})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}

		if a.specificity != b.specificity {
			return specificityLess(a.specificity, b.specificity)
		}

		return a.order < b.order
	})

	for _, m := range matched {
		v := strings.TrimSpace(m.decl.Value)
		if v == "" {
			continue
		}

		props[strings.ToLower(m.decl.Property)] = v
	}

	d.inherit(n, pseudo, props)

	return props
}

// inlineDeclarations parses the style attribute of n.  The parser drops the
// value of a last declaration that has no terminating semicolon, so one is
// added.
func inlineDeclarations(n *html.Node) (decls []*css.Declaration) {
	text := strings.TrimSpace(attrValue(n, "style"))
	if text == "" {
		return nil
	}

	if !strings.HasSuffix(text, ";") {
		text += ";"
	}

	decls, err := parser.ParseDeclarations(text)
	if err != nil {
		log.Debug("htmldom: bad inline style on %s: %s", n.Data, err)
	}

	return decls
}

// inherit fills the inherited properties missing from props.
func (d *Document) inherit(n *html.Node, pseudo string, props map[string]string) {
	var parent map[string]string
	switch {
	case pseudo != "":
		parent = d.resolve(n, "")
	case n.Parent != nil && n.Parent.Type == html.ElementNode:
		parent = d.resolve(n.Parent, "")
	default:
		return
	}

	for name := range inherited {
		if _, ok := props[name]; ok {
			continue
		}

		if v, ok := parent[name]; ok {
			props[name] = v
		}
	}
}

// defaultDisplay returns the user-agent display value for element n.
func defaultDisplay(n *html.Node) (display string) {
	if v, ok := displayDefaults[n.DataAtom]; ok {
		return v
	}

	return "inline"
}

func specificityLess(a, b cascadia.Specificity) (ok bool) {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}

	return false
}

// styleSet returns the compiled author style of the current document
// generation.
func (d *Document) styleSet() (set *styleSet) {
	if d.styles != nil {
		return d.styles
	}

	set = &styleSet{}
	order := 0
	walk(d.root, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.Style {
			return
		}

		sheet, err := parser.Parse(textOf(n))
		if err != nil {
			log.Debug("htmldom: skipping style sheet: %s", err)

			return
		}

		for _, rule := range sheet.Rules {
			if rule.Kind != css.QualifiedRule {
				continue
			}

			for _, selector := range rule.Selectors {
				sel, pseudo, cerr := compileStyleSelector(selector)
				if cerr != nil {
					continue
				}

				order++
				set.rules = append(set.rules, &styleRule{
					sel:    sel,
					pseudo: pseudo,
					decls:  rule.Declarations,
					order:  order,
				})
			}
		}
	})

	d.styles = set

	return set
}

// compileStyleSelector parses a style sheet selector which may carry a
// pseudo-element.
func compileStyleSelector(selector string) (sel cascadia.Sel, pseudo string, err error) {
	selector = legacyPseudo.ReplaceAllString(strings.TrimSpace(selector), "$1::$2")

	sel, err = cascadia.ParseWithPseudoElement(selector)
	if err != nil {
		return nil, "", err
	}

	return sel, normalizePseudo(sel.PseudoElement()), nil
}

// walk calls fn for n and all its descendants in document order.
func walk(n *html.Node, fn func(n *html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// textOf returns the concatenated text children of n.
func textOf(n *html.Node) (text string) {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}

	return sb.String()
}
