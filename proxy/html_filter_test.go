package proxy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/procfilter"
	"github.com/AdguardTeam/procfilter/filterlist"
	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `! test rules
example.org#?#div.ad:has(img)
example.org##.banner
example.org#?#p:has-text(/sponsored/i)
`

const testPage = `<!DOCTYPE html>
<html><head><title>Test</title></head>
<body>
<div class="ad" id="a1"><img src="x.png"></div>
<div class="ad" id="a2"><span>text</span></div>
<div class="ad" id="a3"><p><img src="y.png"></p></div>
<p id="p1">Sponsored content</p>
<p id="p2">Regular content</p>
</body></html>`

func newTestPayloadEngine(t *testing.T) (e *procfilter.PayloadEngine) {
	t.Helper()

	s, err := filterlist.NewRuleStorage([]filterlist.RuleList{
		&filterlist.StringRuleList{ID: 1, RulesText: testRules},
	})
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, s.Close)

	e, err = procfilter.NewPayloadEngine(s, 0)
	require.NoError(t, err)

	return e
}

// hiddenIDs returns the identifiers of the elements the filter hid.
func hiddenIDs(t *testing.T, page string) (ids []string) {
	t.Helper()

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	gq.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if style == "display: none !important;" {
			ids = append(ids, s.AttrOr("id", ""))
		}
	})

	return ids
}

func TestFilterDocument(t *testing.T) {
	e := newTestPayloadEngine(t)

	p, err := e.Payload("example.org")
	require.NoError(t, err)
	require.NotNil(t, p.Script)

	doc, err := FilterDocument(strings.NewReader(testPage), "text/html", "/", p, FilterConfig{})
	require.NoError(t, err)

	out := doc.HTML()
	assert.Equal(t, []string{"a1", "a3", "p1"}, hiddenIDs(t, out))
	assert.Contains(t, out, ".banner { display: none !important; }")
}

func TestFilterDocument_noPayload(t *testing.T) {
	e := newTestPayloadEngine(t)

	p, err := e.Payload("example.com")
	require.NoError(t, err)
	assert.Nil(t, p.Script)
	assert.Empty(t, p.Stylesheet)

	doc, err := FilterDocument(strings.NewReader(testPage), "text/html", "/", p, FilterConfig{})
	require.NoError(t, err)

	assert.Empty(t, hiddenIDs(t, doc.HTML()))
}

func TestFilterDocument_charset(t *testing.T) {
	e := newTestPayloadEngine(t)

	p, err := e.Payload("example.org")
	require.NoError(t, err)

	// "Sponsored café" in ISO-8859-1.
	page := []byte("<html><head></head><body><p id=\"c\">Sponsored caf\xe9</p></body></html>")

	doc, err := FilterDocument(bytes.NewReader(page), "text/html; charset=iso-8859-1", "/", p, FilterConfig{})
	require.NoError(t, err)

	out := doc.HTML()
	assert.Contains(t, out, "café")
	assert.Equal(t, []string{"c"}, hiddenIDs(t, out))
}

func TestServer_onResponseFilter(t *testing.T) {
	s := &Server{engine: newTestPayloadEngine(t)}

	req := httptest.NewRequest(http.MethodGet, "http://example.org/page", nil)
	req.Header.Set("Accept", "text/html")

	session := NewSession("1", req)

	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "text/html")
	_, err := rec.WriteString(testPage)
	require.NoError(t, err)

	session.SetResponse(rec.Result())
	require.True(t, shouldFilter(session))

	p, err := s.engine.Payload(session.Hostname)
	require.NoError(t, err)

	err = s.filterHTML(session, p)
	require.NoError(t, err)

	res := session.HTTPResponse
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "a3", "p1"}, hiddenIDs(t, string(body)))
	assert.Equal(t, int64(len(body)), res.ContentLength)
	assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))
}

func TestShouldFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.org/", nil)

	newResponse := func(contentType, encoding string, status int) (res *http.Response) {
		res = &http.Response{StatusCode: status, Header: http.Header{}}
		res.Header.Set("Content-Type", contentType)
		if encoding != "" {
			res.Header.Set("Content-Encoding", encoding)
		}

		return res
	}

	testCases := []struct {
		res  *http.Response
		name string
		want bool
	}{{
		res:  newResponse("text/html; charset=utf-8", "", http.StatusOK),
		name: "html",
		want: true,
	}, {
		res:  newResponse("text/html", "gzip", http.StatusOK),
		name: "gzip",
		want: true,
	}, {
		res:  newResponse("text/html", "compress", http.StatusOK),
		name: "unsupported_encoding",
		want: false,
	}, {
		res:  newResponse("text/html", "", http.StatusNotModified),
		name: "not_modified",
		want: false,
	}, {
		res:  newResponse("application/xhtml+xml", "", http.StatusOK),
		name: "xhtml",
		want: false,
	}, {
		res:  newResponse("text/css", "", http.StatusOK),
		name: "css",
		want: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			session := NewSession("1", req)
			session.SetResponse(tc.res)

			assert.Equal(t, tc.want, shouldFilter(session))
		})
	}
}

func TestSuppressCache(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.org/", nil)
	req.Header.Set("If-None-Match", `"abc"`)
	req.Header.Set("If-Modified-Since", "Wed, 01 Jan 2020 01:00:00 GMT")
	req.Header.Set("Accept", "text/html")

	s := &Server{}
	session := NewSession("1", req)
	assert.False(t, s.shouldSuppressCache(session))

	suppressCache(req)
	assert.Empty(t, req.Header.Get("If-None-Match"))
	assert.Empty(t, req.Header.Get("If-Modified-Since"))
	assert.Equal(t, "text/html", req.Header.Get("Accept"))
}
