// Package rules parses cosmetic filtering rules and compiles the procedural
// ones into payload statements.
package rules

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrUnsupportedRule signals that this might be a valid rule, but it is not
// supported by this library.
const ErrUnsupportedRule errors.Error = "this type of rules is unsupported"

// RuleSyntaxError represents an error while parsing a filtering rule.
type RuleSyntaxError struct {
	msg      string
	ruleText string
}

// type check
var _ error = (*RuleSyntaxError)(nil)

// Error implements the error interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Error() (msg string) {
	return fmt.Sprintf("syntax error: %s, rule: %s", e.msg, e.ruleText)
}

// newSyntaxError returns a *RuleSyntaxError for ruleText.
func newSyntaxError(ruleText, format string, args ...any) (err error) {
	return &RuleSyntaxError{
		msg:      fmt.Sprintf(format, args...),
		ruleText: ruleText,
	}
}

// Rule is a base interface for all filtering rules.
type Rule interface {
	// Text returns the original rule text.
	Text() string

	// GetFilterListID returns ID of the filter list this rule belongs to.
	GetFilterListID() int
}

// NewRule creates a new filtering rule from the specified line.  It returns
// nil if the line is empty or if it is a comment.  Lines that are not
// cosmetic rules are reported with ErrUnsupportedRule.
func NewRule(line string, filterListID int) (r Rule, err error) {
	line = strings.TrimSpace(line)
	if line == "" || isComment(line) {
		return nil, nil
	}

	if _, _, ok := findMarker(line); !ok {
		return nil, ErrUnsupportedRule
	}

	return NewCosmeticRule(line, filterListID)
}

// isComment checks if the line is a comment.
func isComment(line string) (ok bool) {
	switch {
	case line == "":
		return false
	case line[0] == '!':
		return true
	case line[0] == '#':
		if _, idx, found := findMarker(line); found && idx == 0 {
			return false
		}

		return true
	default:
		return false
	}
}

// loadDomains loads the domains of a cosmetic rule separated by sep.
func loadDomains(domains, sep string) (permitted, restricted []string, err error) {
	if domains == "" {
		return nil, nil, errors.Error("no domains specified")
	}

	for _, d := range strings.Split(domains, sep) {
		d = strings.TrimSpace(d)

		isRestricted := strings.HasPrefix(d, "~")
		if isRestricted {
			d = d[1:]
		}

		d = strings.ToLower(d)
		if !isValidDomain(d) {
			return nil, nil, fmt.Errorf("invalid domain specified: %q", d)
		}

		if isRestricted {
			restricted = append(restricted, d)
		} else {
			permitted = append(permitted, d)
		}
	}

	return permitted, restricted, nil
}
