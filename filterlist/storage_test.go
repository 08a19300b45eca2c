package filterlist

import (
	"fmt"
	"testing"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int642hex(v int64) (s string) {
	return fmt.Sprintf("0x%016x", v)
}

func TestRuleStorage(t *testing.T) {
	list1 := &StringRuleList{
		ID:        1,
		RulesText: "||example.org\n! test\n##banner",
	}
	list2 := &StringRuleList{
		ID:        2,
		RulesText: "||example.com\n! test\nexample.com#?#div:has(img)",
	}

	storage, err := NewRuleStorage([]RuleList{list1, list2})
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, storage.Close)

	scanner := storage.NewRuleStorageScanner()

	require.True(t, scanner.Scan())
	f, idx := scanner.Rule()
	require.NotNil(t, f)
	assert.Equal(t, "##banner", f.Text())
	assert.Equal(t, "0x0000000100000015", int642hex(idx))

	require.True(t, scanner.Scan())
	f, idx = scanner.Rule()
	require.NotNil(t, f)
	assert.Equal(t, "example.com#?#div:has(img)", f.Text())
	assert.Equal(t, 2, f.GetFilterListID())
	assert.Equal(t, "0x0000000200000015", int642hex(idx))

	assert.False(t, scanner.Scan())
	assert.False(t, scanner.Scan())

	f, err = storage.RetrieveRule(0x0000000100000015)
	require.NoError(t, err)
	assert.Equal(t, "##banner", f.Text())

	cr := storage.RetrieveCosmeticRule(0x0000000200000015)
	require.NotNil(t, cr)
	assert.Equal(t, "div:has(img)", cr.Content)
	assert.Equal(t, 2, storage.GetCacheSize())

	// Cached.
	f, err = storage.RetrieveRule(0x0000000200000015)
	require.NoError(t, err)
	assert.Same(t, cr, f)

	_, err = storage.RetrieveRule(0x0000000300000000)
	testutil.AssertErrorMsg(t, "list 3 does not exist", err)

	assert.Nil(t, storage.RetrieveCosmeticRule(0x0000000100000000))
}

func TestNewRuleStorage_duplicate(t *testing.T) {
	_, err := NewRuleStorage([]RuleList{
		&StringRuleList{ID: 1},
		&StringRuleList{ID: 1},
	})
	testutil.AssertErrorMsg(t, "list at index 1: duplicate list id: 1", err)
}

func TestRuleStorage_empty(t *testing.T) {
	storage, err := NewRuleStorage(nil)
	require.NoError(t, err)

	assert.False(t, storage.NewRuleStorageScanner().Scan())
	assert.NoError(t, storage.Close())
}
