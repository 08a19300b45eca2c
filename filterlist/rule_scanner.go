package filterlist

import (
	"bufio"
	"io"
	"strings"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter/rules"
)

// RuleScanner reads the supported rules of a list one by one.
type RuleScanner struct {
	scanner *bufio.Scanner

	// currentRule is the last rule read.
	currentRule rules.Rule

	// currentPos is the byte offset of the next line.
	currentPos int

	// currentIdx is the byte offset of currentRule.
	currentIdx int

	listID int
}

// NewRuleScanner returns a new scanner reading the rules of list listID from
// r.
func NewRuleScanner(r io.Reader, listID int) (s *RuleScanner) {
	sc := bufio.NewScanner(r)
	sc.Split(scanLinesKeepEOL)

	return &RuleScanner{
		scanner: sc,
		listID:  listID,
	}
}

// Scan advances to the next rule, which is then available through Rule.  It
// returns false when there are no more rules.  Comments and lines that cannot
// be parsed are skipped.
func (s *RuleScanner) Scan() (ok bool) {
	for s.scanner.Scan() {
		raw := s.scanner.Text()
		pos := s.currentPos
		s.currentPos += len(raw)

		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		r, err := rules.NewRule(line, s.listID)
		if err != nil {
			log.Debug("filterlist: list %d: skipping %q: %s", s.listID, line, err)

			continue
		}

		if r != nil {
			s.currentRule = r
			s.currentIdx = pos

			return true
		}
	}

	if err := s.scanner.Err(); err != nil {
		log.Error("filterlist: list %d: reading: %s", s.listID, err)
	}

	s.currentRule = nil

	return false
}

// Rule returns the current rule and its byte offset in the list.
func (s *RuleScanner) Rule() (r rules.Rule, idx int) {
	return s.currentRule, s.currentIdx
}

// scanLinesKeepEOL is a bufio.SplitFunc that returns lines with their line
// endings so that the offsets can be tracked.
func scanLinesKeepEOL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	for i, c := range data {
		if c == '\n' {
			return i + 1, data[:i+1], nil
		}
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}
