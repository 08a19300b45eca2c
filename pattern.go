package procfilter

import (
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/dlclark/regexp2"
)

// matchTimeout bounds the time a single pattern match may take so that a
// pathological filter cannot stall the page.
const matchTimeout = 100 * time.Millisecond

// regexpFlags are the flags accepted after the closing slash of a regular
// expression literal.
const regexpFlags = "dgimsuy"

// pattern returns the compiled form of arg.  An argument written as a regular
// expression literal, "/source/flags", keeps its flags.  Anything else is used
// as the source of a regular expression, the way RegExp(text) does.  It
// returns nil if the pattern does not compile.
func (e *Engine) pattern(arg string) (re *regexp2.Regexp) {
	if re, ok := e.patterns[arg]; ok {
		return re
	}

	source, flags := splitLiteral(arg)

	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	if strings.ContainsRune(flags, 'i') {
		opts |= regexp2.IgnoreCase
	}

	if strings.ContainsRune(flags, 'm') {
		opts |= regexp2.Multiline
	}

	re, err := regexp2.Compile(source, opts)
	if err != nil {
		log.Debug("procfilter: bad pattern %q: %s", arg, err)
	} else {
		re.MatchTimeout = matchTimeout
	}

	e.patterns[arg] = re

	return re
}

// splitLiteral splits a "/source/flags" literal.  Other strings are returned
// as the source with no flags.
func splitLiteral(arg string) (source, flags string) {
	if len(arg) < 2 || arg[0] != '/' {
		return arg, ""
	}

	end := strings.LastIndexByte(arg, '/')
	if end == 0 {
		return arg, ""
	}

	flags = arg[end+1:]
	if strings.Trim(flags, regexpFlags) != "" {
		return arg, ""
	}

	return arg[1:end], flags
}

// matches reports whether re matches s.  A nil pattern or a timed out match
// reports false.
func matches(re *regexp2.Regexp, s string) (ok bool) {
	if re == nil {
		return false
	}

	ok, err := re.MatchString(s)
	if err != nil {
		log.Debug("procfilter: matching %q: %s", re, err)

		return false
	}

	return ok
}
