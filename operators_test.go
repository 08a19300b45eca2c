package procfilter_test

import (
	"testing"

	"github.com/AdguardTeam/procfilter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Eval(t *testing.T) {
	e, doc, _ := newTestEngine(t, testPage)

	testCases := []struct {
		name string
		want []string
		f    procfilter.Filter
	}{{
		name: "has",
		want: []string{"d1", "d3"},
		f:    procfilter.Filter{Op: procfilter.OpHas, Subject: "div.box", Argument: "img"},
	}, {
		name: "has_child_combinator",
		want: []string{"d1"},
		f:    procfilter.Filter{Op: procfilter.OpHas, Subject: "div.box", Argument: "> img"},
	}, {
		name: "has_sibling_outside_scope",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpHas, Subject: "div.box", Argument: "+ .red"},
	}, {
		name: "has_not",
		want: []string{"d2"},
		f:    procfilter.Filter{Op: procfilter.OpHasNot, Subject: "div.box", Argument: "img"},
	}, {
		name: "has_bad_selector",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpHas, Subject: "div.box", Argument: "img["},
	}, {
		name: "bad_subject",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpHasText, Subject: "div[", Argument: "x"},
	}, {
		name: "has_text",
		want: []string{"d2"},
		f:    procfilter.Filter{Op: procfilter.OpHasText, Subject: "div", Argument: "Sponsored"},
	}, {
		name: "has_text_literal_flags",
		want: []string{"d2"},
		f:    procfilter.Filter{Op: procfilter.OpHasText, Subject: "div", Argument: "/sponsored\\s+LINK/i"},
	}, {
		name: "has_text_case_sensitive",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpHasText, Subject: "div", Argument: "/sponsored/"},
	}, {
		name: "has_text_bad_pattern",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpHasText, Subject: "div", Argument: "("},
	}, {
		name: "min_text_length",
		want: []string{"d2", "d4"},
		f:    procfilter.Filter{Op: procfilter.OpMinTextLength, Subject: "div", Argument: "5"},
	}, {
		name: "min_text_length_zero",
		want: []string{"d1", "d2", "d3", "d4", "deep"},
		f:    procfilter.Filter{Op: procfilter.OpMinTextLength, Subject: "div", Argument: " 0 "},
	}, {
		name: "min_text_length_negative",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpMinTextLength, Subject: "div", Argument: "-3"},
	}, {
		name: "min_text_length_not_a_number",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpMinTextLength, Subject: "div", Argument: "abc"},
	}, {
		name: "min_text_length_trailing_unit",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpMinTextLength, Subject: "div", Argument: "5px"},
	}, {
		name: "matches_css",
		want: []string{"d3"},
		f:    procfilter.Filter{Op: procfilter.OpMatchesCSS, Subject: "div", Argument: `color: ^rgb\(255`},
	}, {
		name: "matches_css_inherited",
		want: []string{"p1"},
		f:    procfilter.Filter{Op: procfilter.OpMatchesCSS, Subject: "p", Argument: "color: 255"},
	}, {
		name: "matches_css_no_colon",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpMatchesCSS, Subject: "div", Argument: "color"},
	}, {
		name: "matches_css_before",
		want: []string{"d4"},
		f:    procfilter.Filter{Op: procfilter.OpMatchesCSSBefore, Subject: "div", Argument: "content: Advertisement"},
	}, {
		name: "matches_css_after",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpMatchesCSSAfter, Subject: "div", Argument: "content: Advertisement"},
	}, {
		name: "xpath",
		want: []string{"deep"},
		f:    procfilter.Filter{Op: procfilter.OpXPath, Subject: "section", Argument: ".//div"},
	}, {
		name: "xpath_absolute",
		want: []string{"d3"},
		f:    procfilter.Filter{Op: procfilter.OpXPath, Subject: "body", Argument: "//div[contains(@class, 'red')]"},
	}, {
		name: "xpath_text_nodes",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpXPath, Subject: "section", Argument: ".//div/text()"},
	}, {
		name: "xpath_bad_expression",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpXPath, Subject: "section", Argument: "//["},
	}, {
		name: "upward_number",
		want: []string{"sec"},
		f:    procfilter.Filter{Op: procfilter.OpUpward, Subject: ".leaf", Argument: "2"},
	}, {
		name: "upward_selector",
		want: []string{"sec"},
		f:    procfilter.Filter{Op: procfilter.OpUpward, Subject: ".leaf", Argument: "section"},
	}, {
		name: "upward_selector_excludes_self",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpUpward, Subject: ".leaf", Argument: "div"},
	}, {
		name: "upward_zero",
		want: nil,
		f:    procfilter.Filter{Op: procfilter.OpUpward, Subject: ".leaf", Argument: "0"},
	}, {
		name: "nth_ancestor",
		want: []string{"art"},
		f:    procfilter.Filter{Op: procfilter.OpNthAncestor, Subject: ".leaf", Argument: "1"},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, nodeIDs(doc, e.Eval(tc.f)))
		})
	}
}

func TestEngine_Eval_root(t *testing.T) {
	e, doc, _ := newTestEngine(t, testPage)

	d3 := byID(t, doc, "d3")

	got := e.Eval(procfilter.Filter{
		Op:       procfilter.OpHas,
		Subject:  "p",
		Argument: "img",
		Root:     d3,
	})
	assert.Equal(t, []string{"p1"}, nodeIDs(doc, got))

	// An empty subject means the root itself.
	got = e.Eval(procfilter.Filter{
		Op:       procfilter.OpHasText,
		Argument: "Sponsored",
		Root:     byID(t, doc, "d2"),
	})
	assert.Equal(t, []string{"d2"}, nodeIDs(doc, got))
}

func TestEngine_Eval_hasComplement(t *testing.T) {
	e, doc, _ := newTestEngine(t, testPage)

	for _, target := range []string{"img", "> img", "span", "p img", "nothing"} {
		has := nodeIDs(doc, e.Eval(procfilter.Filter{
			Op:       procfilter.OpHas,
			Subject:  "div",
			Argument: target,
		}))
		hasNot := nodeIDs(doc, e.Eval(procfilter.Filter{
			Op:       procfilter.OpHasNot,
			Subject:  "div",
			Argument: target,
		}))

		all := append(append([]string{}, has...), hasNot...)
		assert.ElementsMatch(t, []string{"d1", "d2", "d3", "d4", "deep"}, all, target)

		for _, id := range has {
			assert.NotContains(t, hasNot, id, target)
		}
	}
}

func TestEngine_Eval_minTextLengthRunes(t *testing.T) {
	e, doc, _ := newTestEngine(t, `<html><body><p id="a">привет</p><p id="b">hi</p></body></html>`)

	got := e.Eval(procfilter.Filter{
		Op:       procfilter.OpMinTextLength,
		Subject:  "p",
		Argument: "6",
	})
	assert.Equal(t, []string{"a"}, nodeIDs(doc, got))
}

func TestEngine_Eval_remove(t *testing.T) {
	e, doc, _ := newTestEngine(t, testPage)

	f := procfilter.Filter{Op: procfilter.OpRemove, Subject: "img"}
	assert.Empty(t, e.Eval(f))

	imgs, err := doc.QueryAll(nil, "img")
	require.NoError(t, err)
	assert.Empty(t, imgs)

	before := doc.HTML()
	assert.Empty(t, e.Eval(f))
	assert.Equal(t, before, doc.HTML())

	// The parents stay.
	assert.NotNil(t, byID(t, doc, "d1"))
}

func TestOperator_String(t *testing.T) {
	assert.Equal(t, "hasText", procfilter.OpHasText.String())
	assert.Equal(t, "hideIfHas", procfilter.OpHas.String())
	assert.Equal(t, "removeNodes", procfilter.OpRemove.String())
	assert.Equal(t, "Operator(200)", procfilter.Operator(200).String())
}
