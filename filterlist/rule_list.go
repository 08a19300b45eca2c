// Package filterlist contains the sources of filtering rules: in-memory and
// file-backed rule lists, their scanners, and a storage combining several of
// them.
package filterlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/procfilter/rules"
)

// ErrRuleRetrieval signals that the rule cannot be retrieved by the specified
// index.
const ErrRuleRetrieval errors.Error = "cannot retrieve the rule"

// RuleList is a set of filtering rules.
type RuleList interface {
	// GetID returns the rule list identifier.
	GetID() (id int)

	// NewScanner creates a new scanner that reads the list contents.
	NewScanner() (sc *RuleScanner)

	// RetrieveRule returns the rule which starts at byte offset ruleIdx.
	RetrieveRule(ruleIdx int) (r rules.Rule, err error)

	io.Closer
}

// StringRuleList is a string-based rule list.
type StringRuleList struct {
	// RulesText is the string with filtering rules, one per line.
	RulesText string

	// ID is the rule list ID.
	ID int
}

// type check
var _ RuleList = (*StringRuleList)(nil)

// GetID implements the RuleList interface for *StringRuleList.
func (l *StringRuleList) GetID() (id int) {
	return l.ID
}

// NewScanner implements the RuleList interface for *StringRuleList.
func (l *StringRuleList) NewScanner() (sc *RuleScanner) {
	return NewRuleScanner(strings.NewReader(l.RulesText), l.ID)
}

// RetrieveRule implements the RuleList interface for *StringRuleList.
func (l *StringRuleList) RetrieveRule(ruleIdx int) (r rules.Rule, err error) {
	if ruleIdx < 0 || ruleIdx >= len(l.RulesText) {
		return nil, ErrRuleRetrieval
	}

	line, _, _ := strings.Cut(l.RulesText[ruleIdx:], "\n")

	return retrieve(line, l.ID)
}

// Close implements the RuleList interface for *StringRuleList.
func (l *StringRuleList) Close() (err error) {
	return nil
}

// FileRuleList is a file-based rule list.  The rules are read from the file
// on demand.
type FileRuleList struct {
	file *os.File
	id   int
}

// type check
var _ RuleList = (*FileRuleList)(nil)

// NewFileRuleList opens the rule list at path.
func NewFileRuleList(id int, path string) (l *FileRuleList, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rule list: %w", err)
	}

	return &FileRuleList{
		file: f,
		id:   id,
	}, nil
}

// GetID implements the RuleList interface for *FileRuleList.
func (l *FileRuleList) GetID() (id int) {
	return l.id
}

// NewScanner implements the RuleList interface for *FileRuleList.  Scanners
// of one list share the file and must not be used concurrently.
func (l *FileRuleList) NewScanner() (sc *RuleScanner) {
	return NewRuleScanner(io.NewSectionReader(l.file, 0, 1<<62), l.id)
}

// RetrieveRule implements the RuleList interface for *FileRuleList.
func (l *FileRuleList) RetrieveRule(ruleIdx int) (r rules.Rule, err error) {
	if ruleIdx < 0 {
		return nil, ErrRuleRetrieval
	}

	br := bufio.NewReader(io.NewSectionReader(l.file, int64(ruleIdx), 1<<62))
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading rule at %d: %w", ruleIdx, err)
	}

	return retrieve(line, l.id)
}

// Close implements the RuleList interface for *FileRuleList.
func (l *FileRuleList) Close() (err error) {
	return l.file.Close()
}

// retrieve parses line which is expected to hold a rule.
func retrieve(line string, listID int) (r rules.Rule, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrRuleRetrieval
	}

	r, err = rules.NewRule(line, listID)
	if r == nil && err == nil {
		return nil, ErrRuleRetrieval
	}

	return r, err
}
