package rules

import (
	"fmt"
	"strings"
)

// CosmeticRuleType is the type of a cosmetic rule.
type CosmeticRuleType uint8

// Cosmetic rule types.
const (
	// CosmeticElementHiding is a plain CSS selector hidden by a style sheet:
	// example.org##.banner
	CosmeticElementHiding CosmeticRuleType = iota

	// CosmeticProcedural is a selector with procedural operators evaluated
	// by the payload: example.org#?#div:has-text(/ad/)
	CosmeticProcedural

	// CosmeticStyle replaces the style of the matched elements:
	// example.org##.banner:style(visibility: hidden)
	CosmeticStyle
)

// String implements the fmt.Stringer interface for CosmeticRuleType.
func (t CosmeticRuleType) String() (s string) {
	switch t {
	case CosmeticElementHiding:
		return "element_hiding"
	case CosmeticProcedural:
		return "procedural"
	case CosmeticStyle:
		return "style"
	default:
		return fmt.Sprintf("CosmeticRuleType(%d)", uint8(t))
	}
}

// marker is a separator between the domains and the content of a cosmetic
// rule.
type marker struct {
	text      string
	whitelist bool
	supported bool
}

// markers are the known cosmetic rule markers.  Longer markers sharing a
// prefix come first.
var markers = []marker{
	{text: "#@?#", whitelist: true, supported: true},
	{text: "#?#", supported: true},
	{text: "#@#", whitelist: true, supported: true},
	{text: "##", supported: true},
	{text: "#@$#", whitelist: true},
	{text: "#$#"},
	{text: "#@%#", whitelist: true},
	{text: "#%#"},
}

// findMarker returns the first cosmetic marker of line and its index.
func findMarker(line string) (m marker, idx int, ok bool) {
	idx = -1
	for _, cand := range markers {
		i := strings.Index(line, cand.text)
		if i >= 0 && (idx < 0 || i < idx) {
			m, idx = cand, i
		}
	}

	return m, idx, idx >= 0
}

// styleDirective starts the style of a CosmeticStyle rule.
const styleDirective = ":style("

// CosmeticRule is a cosmetic filtering rule.
type CosmeticRule struct {
	// RuleText is the original rule text.
	RuleText string

	// Content is the selector part of the rule.  For style rules it
	// excludes the style directive.
	Content string

	// Style is the CSS declaration block of a CosmeticStyle rule.
	Style string

	permittedDomains  []string
	restrictedDomains []string

	// FilterListID is the ID of the filter list this rule belongs to.
	FilterListID int

	Type CosmeticRuleType

	// Whitelist means that this is an exception rule which disables the
	// rules with the same content.
	Whitelist bool

	// ExtendedCSS means that the content uses procedural operators.
	ExtendedCSS bool
}

// type check
var _ Rule = (*CosmeticRule)(nil)

// NewCosmeticRule parses the rule text.  Procedural operators are only
// evaluated in rules limited to some domains, generic rules are plain
// selectors.
func NewCosmeticRule(ruleText string, filterListID int) (r *CosmeticRule, err error) {
	m, idx, ok := findMarker(ruleText)
	if !ok {
		return nil, newSyntaxError(ruleText, "not a cosmetic rule")
	}

	if !m.supported {
		return nil, ErrUnsupportedRule
	}

	r = &CosmeticRule{
		RuleText:     ruleText,
		FilterListID: filterListID,
		Whitelist:    m.whitelist,
		Content:      strings.TrimSpace(ruleText[idx+len(m.text):]),
	}

	if r.Content == "" {
		return nil, newSyntaxError(ruleText, "empty rule content")
	}

	if idx > 0 {
		r.permittedDomains, r.restrictedDomains, err = loadDomains(ruleText[:idx], ",")
		if err != nil {
			return nil, newSyntaxError(ruleText, "%s", err)
		}
	} else if r.Whitelist {
		return nil, newSyntaxError(ruleText, "whitelist rule must have at least one domain specified")
	}

	if err = r.loadContent(); err != nil {
		return nil, err
	}

	return r, nil
}

// loadContent determines the type of the rule from its content.
func (r *CosmeticRule) loadContent() (err error) {
	if i := strings.Index(r.Content, styleDirective); i >= 0 {
		style := r.Content[i+len(styleDirective):]
		end := strings.LastIndexByte(style, ')')
		if end < 0 {
			return newSyntaxError(r.RuleText, "unclosed style")
		}

		r.Type = CosmeticStyle
		r.Style = strings.TrimSpace(style[:end])
		r.Content = strings.TrimSpace(r.Content[:i])
		if r.Content == "" || r.Style == "" {
			return newSyntaxError(r.RuleText, "empty selector or style")
		}

		return nil
	}

	content := translate(r.Content)
	if strings.Contains(content, ":-abp-") {
		return ErrUnsupportedRule
	}

	if len(findDirectives(content)) == 0 {
		// A #?# rule without operators is plain CSS.
		r.Type = CosmeticElementHiding

		return nil
	}

	if !r.Whitelist && len(r.permittedDomains) == 0 {
		// Generic rules are only ever used as style sheet selectors.
		r.Type = CosmeticElementHiding

		return nil
	}

	r.Type = CosmeticProcedural
	r.ExtendedCSS = true

	return nil
}

// Text implements the Rule interface for *CosmeticRule.
func (r *CosmeticRule) Text() (s string) {
	return r.RuleText
}

// GetFilterListID implements the Rule interface for *CosmeticRule.
func (r *CosmeticRule) GetFilterListID() (id int) {
	return r.FilterListID
}

// String implements the fmt.Stringer interface for *CosmeticRule.
func (r *CosmeticRule) String() (s string) {
	return r.RuleText
}

// IsGeneric returns true if the rule is not limited to any domain.
func (r *CosmeticRule) IsGeneric() (ok bool) {
	return len(r.permittedDomains) == 0
}

// Match returns true if the rule applies to hostname.
func (r *CosmeticRule) Match(hostname string) (ok bool) {
	if matchAnyDomain(hostname, r.restrictedDomains) {
		return false
	}

	return len(r.permittedDomains) == 0 || matchAnyDomain(hostname, r.permittedDomains)
}

// Statement compiles a procedural rule into a payload statement.
func (r *CosmeticRule) Statement() (stmt string, err error) {
	if r.Type != CosmeticProcedural {
		return "", fmt.Errorf("%s rule %q: %w", r.Type, r.RuleText, ErrUnsupportedRule)
	}

	stmt, err = compile(r.Content)
	if err != nil {
		return "", fmt.Errorf("compiling %q: %w", r.RuleText, err)
	}

	return stmt, nil
}

// CSS returns the style sheet rule of an element hiding or style rule.
func (r *CosmeticRule) CSS() (css string) {
	switch r.Type {
	case CosmeticElementHiding:
		return r.Content + " { display: none !important; }"
	case CosmeticStyle:
		return r.Content + " { " + r.Style + " }"
	default:
		return ""
	}
}
