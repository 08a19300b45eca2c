package htmldom

import (
	"testing"

	"github.com/AdguardTeam/procfilter/dom"
	"github.com/AdguardTeam/procfilter/eventloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Observe(t *testing.T) {
	d, loop := newTestDocument(t)

	var batches [][]dom.MutationRecord
	o, err := d.Observe(d.Body(), dom.ObserveOptions{ChildList: true, Subtree: true}, func(recs []dom.MutationRecord) {
		batches = append(batches, recs)
	})
	require.NoError(t, err)

	first := mustQuery(t, d, "#first")

	_, err = d.AppendHTML(first, "<i>1</i>")
	require.NoError(t, err)
	d.Remove(mustQuery(t, d, "#second"))

	// Attribute changes are not observed with these options.
	d.SetStyleText(first, "display: none !important;")

	// Nothing is delivered synchronously.
	assert.Empty(t, batches)

	loop.RunPending()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, dom.MutationChildList, batches[0][0].Kind)
	assert.Len(t, batches[0][0].Added, 1)
	assert.Len(t, batches[0][1].Removed, 1)

	// Changes outside of the observed root are ignored.
	_, err = d.AppendHTML(mustQuery(t, d, "head"), "<meta name=x>")
	require.NoError(t, err)
	loop.RunPending()
	assert.Len(t, batches, 1)

	o.Disconnect()
	o.Disconnect()

	_, err = d.AppendHTML(first, "<i>2</i>")
	require.NoError(t, err)
	loop.RunPending()
	assert.Len(t, batches, 1)
}

func TestDocument_Observe_noSubtree(t *testing.T) {
	d, loop := newTestDocument(t)

	n := 0
	_, err := d.Observe(d.Body(), dom.ObserveOptions{ChildList: true}, func(recs []dom.MutationRecord) {
		n += len(recs)
	})
	require.NoError(t, err)

	_, err = d.AppendHTML(mustQuery(t, d, "#first"), "<i>deep</i>")
	require.NoError(t, err)
	_, err = d.AppendHTML(d.Body(), "<div>direct</div>")
	require.NoError(t, err)

	loop.RunPending()
	assert.Equal(t, 1, n)
}

func TestDocument_Observe_attributes(t *testing.T) {
	d, loop := newTestDocument(t)

	var attrs []string
	_, err := d.Observe(d.Body(), dom.ObserveOptions{Attributes: true, Subtree: true}, func(recs []dom.MutationRecord) {
		for _, r := range recs {
			attrs = append(attrs, r.Attribute)
		}
	})
	require.NoError(t, err)

	d.SetStyleText(mustQuery(t, d, "#first"), "display: none !important;")
	d.SetAttribute(mustQuery(t, d, "#second"), "class", "clean")

	loop.RunPending()
	assert.Equal(t, []string{"style", "class"}, attrs)
}

func TestDocument_Observe_detached(t *testing.T) {
	d, _ := newTestDocument(t)

	_, err := d.Observe(nil, dom.ObserveOptions{ChildList: true}, func([]dom.MutationRecord) {})
	assert.ErrorIs(t, err, ErrDetached)

	n := mustQuery(t, d, "#first")
	d.Remove(n)

	_, err = d.Observe(n, dom.ObserveOptions{ChildList: true}, func([]dom.MutationRecord) {})
	assert.ErrorIs(t, err, ErrDetached)
}

func TestDocument_ReadyState(t *testing.T) {
	loop := eventloop.NewManual()
	d := NewLoading(loop)

	assert.Nil(t, d.Body())
	assert.Equal(t, dom.ReadyStateLoading, d.ReadyState())

	var states []dom.ReadyState
	d.OnReadyStateChange(func(s dom.ReadyState) { states = append(states, s) })

	body := d.EnsureBody()
	require.NotNil(t, body)
	assert.True(t, body == d.Body())
	assert.True(t, body == d.EnsureBody())

	d.SetReadyState(dom.ReadyStateInteractive)
	d.SetReadyState(dom.ReadyStateInteractive)
	d.SetReadyState(dom.ReadyStateComplete)
	d.SetReadyState(dom.ReadyStateLoading)

	assert.Equal(t, []dom.ReadyState{dom.ReadyStateInteractive, dom.ReadyStateComplete}, states)
	assert.Equal(t, "complete", d.ReadyState().String())
}

func TestWindow(t *testing.T) {
	d, loop := newTestDocument(t)
	w := NewWindow(d, "/")

	var events []string
	for _, e := range []string{dom.EventClick, dom.EventPopState, dom.EventLocationChange} {
		e := e
		w.AddEventListener(e, func() { events = append(events, e+" "+w.Path()) })
	}

	w.Click()
	w.Navigate("/next")
	assert.Empty(t, events)

	loop.RunPending()
	w.Back("/")
	loop.RunPending()

	assert.Equal(t, []string{"click /next", "locationchange /next", "popstate /"}, events)
	assert.True(t, w.Document() == dom.Document(d))
}
