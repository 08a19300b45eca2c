package rules

import (
	"strings"

	"github.com/AdguardTeam/procfilter/filterutil"
	"golang.org/x/net/publicsuffix"
)

// wildcardTLD is the suffix of a domain pattern that matches any public
// suffix, as in "example.*".
const wildcardTLD = ".*"

// isValidDomain reports whether d can be used in the domain list of a rule.
func isValidDomain(d string) (ok bool) {
	if base, isWildcard := strings.CutSuffix(d, wildcardTLD); isWildcard {
		return base != "" && filterutil.IsDomainName(base)
	}

	return filterutil.IsDomainName(d)
}

// matchDomain reports whether host is pattern or one of its subdomains.
// A pattern like "example.*" matches "example" followed by any ICANN public
// suffix.
func matchDomain(host, pattern string) (ok bool) {
	base, isWildcard := strings.CutSuffix(pattern, wildcardTLD)
	if !isWildcard {
		return host == pattern || strings.HasSuffix(host, "."+pattern)
	}

	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann || suffix == host {
		return false
	}

	name, found := strings.CutSuffix(host, "."+suffix)
	if !found {
		return false
	}

	return name == base || strings.HasSuffix(name, "."+base)
}

// matchAnyDomain reports whether host matches any of the patterns.
func matchAnyDomain(host string, patterns []string) (ok bool) {
	for _, p := range patterns {
		if matchDomain(host, p) {
			return true
		}
	}

	return false
}

// jsEscaper escapes the characters that cannot appear as is in a
// single-quoted JavaScript string.
var jsEscaper = strings.NewReplacer(`\`, `\\`, "'", `\'`, "\n", `\n`, "\r", `\r`)

// escapeQuotes escapes s so that it can be placed into a single-quoted
// JavaScript string.
func escapeQuotes(s string) (escaped string) {
	return jsEscaper.Replace(s)
}
