package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// directiveKind is the way a procedural operator is compiled.
type directiveKind uint8

// Directive kinds.
const (
	// kindFilter operators select nodes and are passed to hideNodes.
	kindFilter directiveKind = iota

	// kindHas operators hide the subject when the argument matches inside
	// it.
	kindHas

	// kindHasNot operators hide the subject when the argument matches
	// nothing inside it.
	kindHasNot
)

// directive is a procedural operator found in a selector.
type directive struct {
	// text is the operator including the opening parenthesis.
	text string

	// callback is the payload function of a kindFilter operator.
	callback string

	idx  int
	kind directiveKind
}

// directives are the procedural operators the compiler recognizes.
var directives = []directive{
	{text: ":has(", kind: kindHas},
	{text: ":if(", kind: kindHas},
	{text: ":if-not(", kind: kindHasNot},
	{text: ":has-text(", callback: "hasText"},
	{text: ":matches-css(", callback: "matchesCSS"},
	{text: ":matches-css-before(", callback: "matchesCSSBefore"},
	{text: ":matches-css-after(", callback: "matchesCSSAfter"},
	{text: ":xpath(", callback: "doXPath"},
	{text: ":nth-ancestor(", callback: "nthAncestor"},
	{text: ":min-text-length(", callback: "minTextLength"},
	{text: ":upward(", callback: "upwardMatch"},
	{text: ":remove(", callback: "removeNodes"},
}

// synonyms are the operator spellings of other blockers and the ones they
// are translated to.
var synonyms = strings.NewReplacer(
	":-abp-contains(", ":has-text(",
	":-abp-has(", ":if(",
	":not(:has(", ":if-not(",
)

// extHasAttr is the attribute form of :if, [-ext-has="selector"].
const extHasAttr = "[-ext-has="

// translate converts the operators of other syntaxes into the native ones.
func translate(content string) (res string) {
	res = content
	if i := strings.Index(res, extHasAttr); i >= 0 {
		res = translateExtHas(res, i)
	}

	return synonyms.Replace(res)
}

// translateExtHas converts the [-ext-has=...] attribute starting at i into
// :if(...).
func translateExtHas(content string, i int) (res string) {
	start := i + len(extHasAttr)
	if start >= len(content) {
		return content
	}

	quote := content[start]
	end := strings.IndexByte(content[start+1:], quote)
	if end < 0 {
		return content
	}

	end += start + 1

	rest := content[end+1:]
	rest = strings.TrimPrefix(rest, "]")

	return content[:i] + ":if(" + content[start+1:end] + ")" + rest
}

// findDirectives returns all the procedural operators of content in the
// order of appearance.
func findDirectives(content string) (found []directive) {
	for _, d := range directives {
		for off := 0; ; {
			i := strings.Index(content[off:], d.text)
			if i < 0 {
				break
			}

			d.idx = off + i
			found = append(found, d)
			off = d.idx + len(d.text)
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].idx < found[j].idx })

	return found
}

// argument returns the argument of the operator d in content: the text up to
// the matching closing parenthesis.
func argument(content string, d directive) (arg string, err error) {
	rest := content[d.idx+len(d.text):]

	depth := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return rest[:i], nil
			}

			depth--
		}
	}

	if i := strings.LastIndexByte(rest, ')'); i >= 0 {
		return rest[:i], nil
	}

	return "", fmt.Errorf("unclosed %s", d.text)
}

// isRegexpLiteral reports whether arg is written as a regular expression
// literal, /source/ with up to two flags.
func isRegexpLiteral(arg string) (ok bool) {
	if len(arg) < 2 || arg[0] != '/' {
		return false
	}

	return strings.HasSuffix(arg, "/") || strings.LastIndexByte(arg, '/')+3 >= len(arg)
}

// compile translates a procedural selector into a payload statement.  Only
// the first operator is compiled.  An operator nested in the argument of
// :has, :if, or :if-not becomes the callback of a chain.
func compile(content string) (stmt string, err error) {
	content = translate(content)

	found := findDirectives(content)
	if len(found) == 0 {
		return "", errors.Error("no procedural operators")
	}

	d := found[0]
	rawArg, err := argument(content, d)
	if err != nil {
		return "", err
	}

	subject := strings.TrimSpace(content[:d.idx])
	if subject == "" {
		subject = "*"
	}

	subject = escapeQuotes(subject)

	isRegexp := isRegexpLiteral(rawArg)
	arg := rawArg
	if !isRegexp || d.callback == "doXPath" {
		arg = escapeQuotes(arg)
	}

	switch d.kind {
	case kindHas, kindHasNot:
		return compileHas(subject, rawArg, arg, d.kind == kindHasNot)
	}

	switch d.callback {
	case "hasText":
		if !isRegexp {
			arg = "'" + arg + "'"
		}

		return fmt.Sprintf("hideNodes(hasText, '%s', %s); ", subject, arg), nil
	case "minTextLength":
		if _, convErr := strconv.Atoi(strings.TrimSpace(rawArg)); convErr != nil {
			arg = "'" + arg + "'"
		}

		return fmt.Sprintf("hideNodes(minTextLength, '%s', %s); ", subject, arg), nil
	default:
		return fmt.Sprintf("hideNodes(%s, '%s', '%s'); ", d.callback, subject, arg), nil
	}
}

// compileHas compiles :has, :if, and :if-not.  rawArg is the argument as
// written, arg is its escaped form.
func compileHas(subject, rawArg, arg string, negate bool) (stmt string, err error) {
	nested := findDirectives(rawArg)
	if len(nested) == 0 {
		if negate {
			return fmt.Sprintf("hideIfNotHas('%s', '%s'); ", subject, arg), nil
		}

		return fmt.Sprintf("hideIfHas('%s', '%s'); ", subject, arg), nil
	}

	n := nested[0]
	if n.kind != kindFilter {
		return "", fmt.Errorf("nested %s: %w", n.text, ErrUnsupportedRule)
	}

	chainArg, err := argument(rawArg, n)
	if err != nil {
		return "", err
	}

	chainSubject := escapeQuotes(strings.TrimSpace(rawArg[:n.idx]))
	chainArg = escapeQuotes(chainArg)

	fn := "hideIfChain"
	if negate {
		fn = "hideIfNotChain"
	}

	return fmt.Sprintf("%s('%s', '%s', '%s', %s); ", fn, subject, chainSubject, chainArg, n.callback), nil
}
