package filterlist

import (
	"github.com/AdguardTeam/procfilter/rules"
)

// RuleStorageScanner scans multiple RuleScanner instances one after another.
// The storage index of a rule is built from the list ID in the high 32 bits
// and the rule offset in the list in the low 32 bits.
type RuleStorageScanner struct {
	// Scanners is the list of list scanners backing this combined scanner.
	Scanners []*RuleScanner

	current    *RuleScanner
	currentIdx int
}

// Scan advances to the next rule of any list.  It returns false when all the
// lists are exhausted.
func (s *RuleStorageScanner) Scan() (ok bool) {
	if len(s.Scanners) == 0 {
		return false
	}

	if s.current == nil {
		s.currentIdx = 0
		s.current = s.Scanners[0]
	}

	for !s.current.Scan() {
		if s.currentIdx == len(s.Scanners)-1 {
			return false
		}

		s.currentIdx++
		s.current = s.Scanners[s.currentIdx]
	}

	return true
}

// Rule returns the current rule and its storage index.
func (s *RuleStorageScanner) Rule() (r rules.Rule, storageIdx int64) {
	if s.current == nil {
		return nil, 0
	}

	r, idx := s.current.Rule()
	if r == nil {
		return nil, 0
	}

	return r, ruleListIdxToStorageIdx(r.GetFilterListID(), idx)
}

// ruleListIdxToStorageIdx converts a pair of the list ID and the rule offset
// into a single storage index.
func ruleListIdxToStorageIdx(listID, ruleIdx int) (storageIdx int64) {
	return int64(listID)<<32 | int64(ruleIdx)&0xFFFFFFFF
}

// storageIdxToRuleListIdx converts the storage index back into the list ID
// and the rule offset.
func storageIdxToRuleListIdx(storageIdx int64) (listID, ruleIdx int) {
	return int(storageIdx >> 32), int(uint32(storageIdx))
}
