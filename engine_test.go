package procfilter_test

import (
	"testing"

	"github.com/AdguardTeam/procfilter"
	"github.com/AdguardTeam/procfilter/dom"
	"github.com/AdguardTeam/procfilter/eventloop"
	"github.com/AdguardTeam/procfilter/htmldom"
	"github.com/stretchr/testify/require"
)

// hiddenStyle is the inline style every hide action writes.
const hiddenStyle = "display: none !important;"

// testPage is the document most of the tests work on.
const testPage = `<!DOCTYPE html>
<html><head><style>
.red { color: rgb(255, 0, 0); }
.banner::before { content: "Advertisement"; }
</style></head><body>
<div id="d1" class="box"><img id="i1"></div>
<div id="d2" class="box"><span id="s1">Sponsored link</span></div>
<div id="d3" class="box red"><p id="p1"><img id="i2"></p></div>
<div id="d4" class="banner">Short</div>
<section id="sec"><article id="art"><div id="deep" class="leaf">x</div></article></section>
</body></html>`

// newTestEngine parses page and returns an engine working on it.
func newTestEngine(
	t testing.TB,
	page string,
) (e *procfilter.Engine, doc *htmldom.Document, loop *eventloop.Manual) {
	t.Helper()

	loop = eventloop.NewManual()
	doc, err := htmldom.ParseString(page, loop)
	require.NoError(t, err)

	return procfilter.NewEngine(doc, loop), doc, loop
}

// nodeIDs returns the id attributes of nodes.
func nodeIDs(doc *htmldom.Document, nodes []dom.Node) (ids []string) {
	for _, n := range nodes {
		id, _ := doc.Attribute(n, "id")
		ids = append(ids, id)
	}

	return ids
}

// hiddenIDs returns the ids of the elements of doc hidden by the engine, in
// document order.
func hiddenIDs(t testing.TB, doc *htmldom.Document) (ids []string) {
	t.Helper()

	nodes, err := doc.QueryAll(nil, "[style]")
	require.NoError(t, err)

	for _, n := range nodes {
		if doc.StyleText(n) == hiddenStyle {
			id, _ := doc.Attribute(n, "id")
			ids = append(ids, id)
		}
	}

	return ids
}

// byID returns the element with the given id.
func byID(t testing.TB, doc *htmldom.Document, id string) (n dom.Node) {
	t.Helper()

	n, err := doc.Query(nil, "#"+id)
	require.NoError(t, err)
	require.NotNil(t, n)

	return n
}
