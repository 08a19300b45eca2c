package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewElementHidingRule(t *testing.T) {
	f, err := NewCosmeticRule("##banner", 1)
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, 1, f.FilterListID)
	assert.Equal(t, CosmeticElementHiding, f.Type)
	assert.False(t, f.Whitelist)
	assert.False(t, f.ExtendedCSS)
	assert.Empty(t, f.permittedDomains)
	assert.Empty(t, f.restrictedDomains)
	assert.Equal(t, "banner", f.Content)
	assert.Equal(t, "banner { display: none !important; }", f.CSS())

	f, err = NewCosmeticRule("example.org,~sub.example.org##banner", 1)
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, CosmeticElementHiding, f.Type)
	assert.Equal(t, []string{"example.org"}, f.permittedDomains)
	assert.Equal(t, []string{"sub.example.org"}, f.restrictedDomains)

	f, err = NewCosmeticRule("example.org#@#banner", 1)
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, CosmeticElementHiding, f.Type)
	assert.True(t, f.Whitelist)
	assert.Equal(t, []string{"example.org"}, f.permittedDomains)
}

func TestNewProceduralRule(t *testing.T) {
	f, err := NewCosmeticRule("example.org#?#div.ad:has(img)", 2)
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, CosmeticProcedural, f.Type)
	assert.True(t, f.ExtendedCSS)
	assert.False(t, f.Whitelist)
	assert.False(t, f.IsGeneric())
	assert.Equal(t, "div.ad:has(img)", f.Content)
	assert.Empty(t, f.CSS())

	f, err = NewCosmeticRule("example.org#@?#div.ad:has(img)", 2)
	require.NoError(t, err)
	assert.True(t, f.Whitelist)
	assert.True(t, f.ExtendedCSS)

	// Procedural operators in ## rules.
	f, err = NewCosmeticRule("example.org##div:-abp-contains(Sponsored)", 2)
	require.NoError(t, err)
	assert.Equal(t, CosmeticProcedural, f.Type)

	// Generic rules stay plain selectors.
	f, err = NewCosmeticRule("#?#div:has(img)", 2)
	require.NoError(t, err)
	assert.Equal(t, CosmeticElementHiding, f.Type)
	assert.True(t, f.IsGeneric())

	// No operators at all.
	f, err = NewCosmeticRule("example.org#?#div.ad", 2)
	require.NoError(t, err)
	assert.Equal(t, CosmeticElementHiding, f.Type)

	_, err = f.Statement()
	assert.ErrorIs(t, err, ErrUnsupportedRule)
}

func TestNewStyleRule(t *testing.T) {
	f, err := NewCosmeticRule("example.org##.banner:style(visibility: hidden !important)", 1)
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, CosmeticStyle, f.Type)
	assert.Equal(t, ".banner", f.Content)
	assert.Equal(t, "visibility: hidden !important", f.Style)
	assert.Equal(t, ".banner { visibility: hidden !important }", f.CSS())

	_, err = NewCosmeticRule("example.org##:style(color: red)", 1)
	assert.Error(t, err)
}

func TestCosmeticRuleValidation(t *testing.T) {
	testCases := []struct {
		name     string
		ruleText string
	}{{
		name:     "network",
		ruleText: "||example.org^",
	}, {
		name:     "empty_content",
		ruleText: "example.org## ",
	}, {
		name:     "generic_whitelist",
		ruleText: "#@#.banner",
	}, {
		name:     "bad_domain",
		ruleText: "exa mple.org##.banner",
	}, {
		name:     "empty_domain",
		ruleText: "example.org,,test.org##.banner",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCosmeticRule(tc.ruleText, 1)
			assert.Error(t, err)
		})
	}

	_, err := NewCosmeticRule("example.org#$#body { color: red; }", 1)
	assert.ErrorIs(t, err, ErrUnsupportedRule)

	_, err = NewCosmeticRule("example.org#%#window.ads = false;", 1)
	assert.ErrorIs(t, err, ErrUnsupportedRule)

	_, err = NewCosmeticRule("example.org##div:-abp-properties(width: 300px)", 1)
	assert.ErrorIs(t, err, ErrUnsupportedRule)
}

func TestCosmeticRuleMatch(t *testing.T) {
	f, err := NewCosmeticRule("##banner", 1)
	require.NoError(t, err)
	assert.True(t, f.Match("example.org"))

	f, err = NewCosmeticRule("example.org,~sub.example.org##banner", 1)
	require.NoError(t, err)

	assert.True(t, f.Match("example.org"))
	assert.True(t, f.Match("test.example.org"))
	assert.False(t, f.Match("testexample.org"))
	assert.False(t, f.Match("sub.example.org"))
	assert.False(t, f.Match("sub.sub.example.org"))
}

func TestCosmeticRuleWildcardTLDMatch(t *testing.T) {
	f, err := NewCosmeticRule("example.*##banner", 1)
	require.NoError(t, err)

	assert.True(t, f.Match("example.org"))
	assert.True(t, f.Match("test.example.org"))
	assert.True(t, f.Match("example.co.uk"))
	assert.False(t, f.Match("example.local"))
	assert.False(t, f.Match("example.local.test"))
	assert.False(t, f.Match("notexample.org"))
}

func TestNewRule(t *testing.T) {
	r, err := NewRule("! comment", 1)
	assert.NoError(t, err)
	assert.Nil(t, r)

	r, err = NewRule("# comment", 1)
	assert.NoError(t, err)
	assert.Nil(t, r)

	r, err = NewRule("   ", 1)
	assert.NoError(t, err)
	assert.Nil(t, r)

	r, err = NewRule("||example.org^", 1)
	assert.ErrorIs(t, err, ErrUnsupportedRule)
	assert.Nil(t, r)

	r, err = NewRule(" example.org#?#div:has(img) ", 3)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "example.org#?#div:has(img)", r.Text())
	assert.Equal(t, 3, r.GetFilterListID())

	r, err = NewRule("##.banner", 3)
	require.NoError(t, err)
	assert.Equal(t, "##.banner", r.Text())
}
