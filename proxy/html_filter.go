package proxy

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter"
	"github.com/AdguardTeam/procfilter/dom"
	"github.com/AdguardTeam/procfilter/eventloop"
	"github.com/AdguardTeam/procfilter/htmldom"
	"golang.org/x/net/html/charset"
)

// DefaultFlushLimit is the default number of timers a document's event loop
// may fire before the filtered document is serialized.
const DefaultFlushLimit = 1000

// FilterConfig controls how a payload is evaluated over a document.
type FilterConfig struct {
	// Reapply configures the reapplication of the payload.  Nil means the
	// defaults.
	Reapply *procfilter.ReapplyConfig

	// FlushLimit bounds the number of timers a document may fire while it
	// is filtered.  Zero means DefaultFlushLimit.
	FlushLimit int
}

// LoadDocument parses the HTML document from r over loop and adds the
// stylesheet of p to it.  contentType is used to detect the charset of r.  p
// may be nil.
func LoadDocument(
	r io.Reader,
	contentType string,
	loop dom.EventLoop,
	p *procfilter.Payload,
) (doc *htmldom.Document, err error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("detecting charset: %w", err)
	}

	doc, err = htmldom.Parse(utf8Reader, loop)
	if err != nil {
		return nil, err
	}

	if p != nil && p.Stylesheet != "" {
		err = appendStylesheet(doc, p.Stylesheet)
		if err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// FilterDocument parses the HTML document from r, applies p to it as if it
// were loaded at path, and returns the filtered document.  contentType is
// used to detect the charset of r.
//
// The document is evaluated over a virtual clock, so the reapplication
// passes scheduled by mutations run without waiting.
func FilterDocument(
	r io.Reader,
	contentType string,
	path string,
	p *procfilter.Payload,
	conf FilterConfig,
) (doc *htmldom.Document, err error) {
	loop := eventloop.NewManual()
	doc, err = LoadDocument(r, contentType, loop, p)
	if err != nil {
		return nil, err
	}

	if p == nil || p.Script == nil {
		return doc, nil
	}

	limit := conf.FlushLimit
	if limit <= 0 {
		limit = DefaultFlushLimit
	}

	win := htmldom.NewWindow(doc, path)

	var re *procfilter.Reapplier
	loop.Post(func() { re = procfilter.Inject(win, p.Script, conf.Reapply) })
	if !loop.Flush(limit) {
		log.Debug("proxy: %s: event loop not drained after %d timers", p.Script.Name(), limit)
	}

	re.Stop()

	return doc, nil
}

// appendStylesheet adds a <style> element with css to the head of doc.
func appendStylesheet(doc *htmldom.Document, css string) (err error) {
	head, err := doc.Query(nil, "head")
	if err != nil {
		return fmt.Errorf("looking up head: %w", err)
	} else if head == nil {
		return errors.Error("document has no head")
	}

	_, err = doc.AppendHTML(head, "<style>\n"+css+"\n</style>")

	return err
}

// filterHTML replaces the body of the session's response with the document
// filtered by p.  The new body is always UTF-8.
func (s *Server) filterHTML(session *Session, p *procfilter.Payload) (err error) {
	res := session.HTTPResponse
	orig := res.Body
	defer func() { err = errors.WithDeferred(err, orig.Close()) }()

	body, err := decodeBody(orig, res.Header.Get("Content-Encoding"))
	if err != nil {
		return err
	}

	doc, err := FilterDocument(
		body,
		res.Header.Get("Content-Type"),
		session.HTTPRequest.URL.Path,
		p,
		s.Filter,
	)
	if err != nil {
		return fmt.Errorf("filtering %s: %w", session.HTTPRequest.URL, err)
	}

	log.Debug(
		"proxy: id=%s: applied %d procedural rules to %s",
		session.ID,
		p.Statements,
		session.HTTPRequest.URL,
	)

	setBody(res, []byte(doc.HTML()))
	res.Header.Del("Content-Encoding")
	res.Header.Set("Content-Type", session.MediaType+"; charset=utf-8")

	return nil
}

// setBody replaces the body of res and fixes its length.
func setBody(res *http.Response, body []byte) {
	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	res.Header.Set("Content-Length", strconv.Itoa(len(body)))
	res.Header.Del("Transfer-Encoding")
	res.TransferEncoding = nil
}
