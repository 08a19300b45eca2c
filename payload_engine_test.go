package procfilter_test

import (
	"strings"
	"testing"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/procfilter"
	"github.com/AdguardTeam/procfilter/filterlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payloadRules = `! Procedural rules
example.org#?#div.ad:has(img)
example.org,~sub.example.org#?#p:has-text(Sponsored)
example.*#?#section:has-text(Promo)
example.com#@?#section:has-text(Promo)
! Element hiding
example.org##.banner
##.generic
#?#div:has(> span)
! Unsupported
example.org#$#body { color: red }
||example.org^
`

func newTestPayloadEngine(t testing.TB, text string, cacheSize int) (e *procfilter.PayloadEngine) {
	t.Helper()

	s, err := filterlist.NewRuleStorage([]filterlist.RuleList{&filterlist.StringRuleList{
		ID:        1,
		RulesText: text,
	}})
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, s.Close)

	e, err = procfilter.NewPayloadEngine(s, cacheSize)
	require.NoError(t, err)

	return e
}

func TestPayloadEngine_Payload(t *testing.T) {
	e := newTestPayloadEngine(t, payloadRules, 0)

	const (
		genericCSS = ".generic { display: none !important; }\n" +
			"div:has(> span) { display: none !important; }"
		bannerCSS = ".banner { display: none !important; }\n"
	)

	testCases := []struct {
		name       string
		hostname   string
		wantStmts  []string
		wantCSS    string
		statements int
	}{{
		name:     "all",
		hostname: "example.org",
		wantStmts: []string{
			"hideIfHas('div.ad', 'img');",
			"hideNodes(hasText, 'p', 'Sponsored');",
			"hideNodes(hasText, 'section', 'Promo');",
		},
		wantCSS:    bannerCSS + genericCSS,
		statements: 3,
	}, {
		name:     "restricted_subdomain",
		hostname: "sub.example.org",
		wantStmts: []string{
			"hideIfHas('div.ad', 'img');",
			"hideNodes(hasText, 'section', 'Promo');",
		},
		wantCSS:    bannerCSS + genericCSS,
		statements: 2,
	}, {
		name:       "exception",
		hostname:   "example.com",
		wantStmts:  nil,
		wantCSS:    genericCSS,
		statements: 0,
	}, {
		name:       "unrelated",
		hostname:   "example.net.invalid",
		wantStmts:  nil,
		wantCSS:    genericCSS,
		statements: 0,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := e.Payload(tc.hostname)
			require.NoError(t, err)
			require.NotNil(t, p)

			assert.Equal(t, tc.statements, p.Statements)
			assert.Equal(t, tc.wantCSS, p.Stylesheet)

			if tc.statements == 0 {
				assert.Nil(t, p.Script)
				assert.Empty(t, p.Source)

				return
			}

			require.NotNil(t, p.Script)
			for _, stmt := range tc.wantStmts {
				assert.Contains(t, p.Source, "try { "+stmt)
			}
			assert.Equal(t, tc.statements, strings.Count(p.Source, "try {"))
		})
	}
}

func TestPayloadEngine_Payload_cache(t *testing.T) {
	e := newTestPayloadEngine(t, payloadRules, 1)

	p1, err := e.Payload("example.org")
	require.NoError(t, err)

	p2, err := e.Payload("EXAMPLE.org.:443")
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	// The cache holds a single hostname, so the first payload is rebuilt.
	_, err = e.Payload("example.com")
	require.NoError(t, err)

	p3, err := e.Payload("example.org")
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)
	assert.Equal(t, p1.Source, p3.Source)
}

func TestPayloadEngine_Payload_run(t *testing.T) {
	e := newTestPayloadEngine(t, `example.org#?#div.box:has(> img)
example.org#?#div:has-text(/sponsored/i)
example.org#?#.leaf:upward(section)`, 0)

	p, err := e.Payload("www.example.org")
	require.NoError(t, err)
	require.NotNil(t, p.Script)

	eng, doc, _ := newTestEngine(t, testPage)
	require.NoError(t, p.Script.Bind(eng).Run())

	assert.Equal(t, []string{"d1", "d2", "sec"}, hiddenIDs(t, doc))
}

func TestPayloadEngine_Payload_empty(t *testing.T) {
	e := newTestPayloadEngine(t, "! nothing here\n", 0)

	p, err := e.Payload("example.org")
	require.NoError(t, err)

	assert.Equal(t, &procfilter.Payload{}, p)
}
