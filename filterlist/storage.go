package filterlist

import (
	"fmt"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter/rules"
)

// RuleStorage combines several rule lists.  It can be scanned using a
// RuleStorageScanner and allows retrieving rules by their storage index.
//
// The storage index is an int64 value that consists of two int32 values: the
// rule list identifier and the byte offset of the rule inside that list.
type RuleStorage struct {
	// cacheMu protects cache.
	cacheMu *sync.RWMutex

	// cache contains the rules which were retrieved.
	cache map[int64]rules.Rule

	// listsMap maps list IDs to lists.
	listsMap map[int]RuleList

	lists []RuleList
}

// NewRuleStorage creates a new instance of the RuleStorage and validates the
// lists specified.
func NewRuleStorage(lists []RuleList) (s *RuleStorage, err error) {
	listsMap := make(map[int]RuleList, len(lists))
	for i, list := range lists {
		id := list.GetID()
		if _, ok := listsMap[id]; ok {
			return nil, fmt.Errorf("list at index %d: duplicate list id: %d", i, id)
		}

		listsMap[id] = list
	}

	return &RuleStorage{
		cacheMu:  &sync.RWMutex{},
		cache:    map[int64]rules.Rule{},
		listsMap: listsMap,
		lists:    lists,
	}, nil
}

// NewRuleStorageScanner creates a scanner reading the rules of all lists.
func (s *RuleStorage) NewRuleStorageScanner() (sc *RuleStorageScanner) {
	scanners := make([]*RuleScanner, 0, len(s.lists))
	for _, list := range s.lists {
		scanners = append(scanners, list.NewScanner())
	}

	return &RuleStorageScanner{
		Scanners: scanners,
	}
}

// RetrieveRule looks for the filtering rule in this storage.  storageIdx is
// the index returned by the storage scanner.
func (s *RuleStorage) RetrieveRule(storageIdx int64) (r rules.Rule, err error) {
	var ok bool
	func() {
		s.cacheMu.RLock()
		defer s.cacheMu.RUnlock()

		r, ok = s.cache[storageIdx]
	}()
	if ok {
		return r, nil
	}

	listID, ruleIdx := storageIdxToRuleListIdx(storageIdx)

	list, ok := s.listsMap[listID]
	if !ok {
		return nil, fmt.Errorf("list %d does not exist", listID)
	}

	r, err = list.RetrieveRule(ruleIdx)
	if r != nil {
		s.cacheMu.Lock()
		defer s.cacheMu.Unlock()

		s.cache[storageIdx] = r
	}

	return r, err
}

// RetrieveCosmeticRule is a helper method that retrieves a cosmetic rule from
// the storage.  It returns nil if there is no such rule.
func (s *RuleStorage) RetrieveCosmeticRule(storageIdx int64) (cr *rules.CosmeticRule) {
	r, err := s.RetrieveRule(storageIdx)
	if err != nil {
		log.Error("filterlist: cannot retrieve cosmetic rule %d: %s", storageIdx, err)

		return nil
	}

	cr, _ = r.(*rules.CosmeticRule)

	return cr
}

// Close closes all the lists of the storage.
func (s *RuleStorage) Close() (err error) {
	for _, l := range s.lists {
		if cerr := l.Close(); cerr != nil {
			if err != nil {
				log.Error("filterlist: closing list %d: %s", l.GetID(), cerr)
			} else {
				err = cerr
			}
		}
	}

	return errors.Annotate(err, "closing rule lists: %w")
}

// GetCacheSize returns the size of the in-memory rules cache.
func (s *RuleStorage) GetCacheSize() (sz int) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	return len(s.cache)
}
