package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter"
	"github.com/AdguardTeam/procfilter/filterlist"
	"github.com/AdguardTeam/procfilter/proxy"
	"github.com/PuerkitoBio/goquery"
)

// hiddenStyle is the inline style hidden elements end up with.
const hiddenStyle = "display: none !important;"

// apply filters the document at options.ApplyPath and writes the result to
// w.  With options.Report set, it writes the list of hidden elements
// instead.
func apply(w io.Writer, options Options, conf proxy.FilterConfig) (err error) {
	p, err := loadPayload(options)
	if err != nil {
		return err
	}

	// #nosec G304 -- Trust the path from the command line.
	f, err := os.Open(options.ApplyPath)
	if err != nil {
		return fmt.Errorf("opening document: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	doc, err := proxy.FilterDocument(f, "text/html", options.Path, p, conf)
	if err != nil {
		return err
	}

	return writeResult(w, doc.HTML(), options.Report)
}

// loadPayload reads the filter lists of options and builds the payload for
// options.Hostname.
func loadPayload(options Options) (p *procfilter.Payload, err error) {
	lists := make([]filterlist.RuleList, 0, len(options.FilterLists))
	for i, path := range options.FilterLists {
		var l *filterlist.FileRuleList
		l, err = filterlist.NewFileRuleList(i, path)
		if err != nil {
			return nil, fmt.Errorf("opening filter list: %w", err)
		}

		lists = append(lists, l)
	}

	storage, err := filterlist.NewRuleStorage(lists)
	if err != nil {
		return nil, fmt.Errorf("initializing rule storage: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, storage.Close()) }()

	engine, err := procfilter.NewPayloadEngine(storage, 1)
	if err != nil {
		return nil, err
	}

	p, err = engine.Payload(options.Hostname)
	if err != nil {
		return nil, err
	}

	log.Debug("apply: %d procedural rules for %s", p.Statements, options.Hostname)

	return p, nil
}

// writeResult writes the serialized document page to w, or the list of its
// hidden elements if report is true.
func writeResult(w io.Writer, page string, report bool) (err error) {
	if !report {
		_, err = io.WriteString(w, page)

		return err
	}

	return writeReport(w, page)
}

// writeReport writes a line per hidden element of the serialized document page.
func writeReport(w io.Writer, page string) (err error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("parsing result: %w", err)
	}

	gq.Find("[style]").EachWithBreak(func(_ int, s *goquery.Selection) (cont bool) {
		if strings.TrimSpace(s.AttrOr("style", "")) != hiddenStyle {
			return true
		}

		_, err = fmt.Fprintln(w, describe(s))

		return err == nil
	})

	return err
}

// describe returns a short selector-like description of the element s.
func describe(s *goquery.Selection) (desc string) {
	sb := &strings.Builder{}
	sb.WriteString(goquery.NodeName(s))

	if id, ok := s.Attr("id"); ok && id != "" {
		sb.WriteString("#")
		sb.WriteString(id)
	}

	for _, c := range strings.Fields(s.AttrOr("class", "")) {
		sb.WriteString(".")
		sb.WriteString(c)
	}

	return sb.String()
}
