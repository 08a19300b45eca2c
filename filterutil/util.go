// Package filterutil contains helpers shared by the rule parser, the payload
// engine, and the proxy.
package filterutil

import (
	"net"
	"strings"
)

// maxDomainLen is the maximum length of a domain name including the dots.
const maxDomainLen = 253

// maxLabelLen is the maximum length of a single label.
const maxLabelLen = 63

// IsDomainName reports whether name is a syntactically valid domain name.
// Labels are 1 to 63 characters of ASCII letters, digits, and inner hyphens.
// The top-level label of a multi-label name is either at least two letters
// or an IDNA "xn--" label.
func IsDomainName(name string) (ok bool) {
	if name == "" || len(name) > maxDomainLen {
		return false
	}

	labels := strings.Split(name, ".")
	for _, l := range labels {
		if !isLabel(l) {
			return false
		}
	}

	if len(labels) == 1 {
		return true
	}

	return isTopLevelLabel(labels[len(labels)-1])
}

// isLabel reports whether l is a valid domain name label.
func isLabel(l string) (ok bool) {
	if l == "" || len(l) > maxLabelLen || l[0] == '-' || l[len(l)-1] == '-' {
		return false
	}

	for i := 0; i < len(l); i++ {
		if c := l[i]; !isLetter(c) && !isDigit(c) && c != '-' {
			return false
		}
	}

	return true
}

// isTopLevelLabel reports whether l can be the last label of a domain name.
func isTopLevelLabel(l string) (ok bool) {
	if rest, isIDNA := strings.CutPrefix(strings.ToLower(l), "xn--"); isIDNA {
		return rest != ""
	}

	if len(l) < 2 {
		return false
	}

	for i := 0; i < len(l); i++ {
		if !isLetter(l[i]) {
			return false
		}
	}

	return true
}

func isLetter(c byte) (ok bool) {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) (ok bool) {
	return c >= '0' && c <= '9'
}

// NormalizeHost converts a host or a host:port pair into the lower-case
// hostname without a port or the trailing dot.
func NormalizeHost(hostport string) (host string) {
	host = strings.TrimSpace(hostport)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	host = strings.TrimSuffix(host, ".")

	return strings.ToLower(host)
}
