package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter"
	"github.com/AdguardTeam/procfilter/eventloop"
	"github.com/AdguardTeam/procfilter/htmldom"
	"github.com/AdguardTeam/procfilter/proxy"
)

// navigatePrefix starts the input lines that change the path of the watched
// window.
const navigatePrefix = "navigate "

// watch filters the document at options.ApplyPath and keeps it live on a
// real-time event loop.  Each line read from in is appended to the body of
// the document as an HTML fragment, except for the "navigate PATH" lines,
// which move the window to PATH.  Once in is exhausted or ctx is done, watch
// waits for the pending passes and writes the result to w.
func watch(
	ctx context.Context,
	w io.Writer,
	in io.Reader,
	options Options,
	conf proxy.FilterConfig,
) (err error) {
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

	loop := eventloop.New()
	doc, err := proxy.LoadDocument(f, "text/html", loop, p)
	if err != nil {
		return err
	}

	win := htmldom.NewWindow(doc, options.Path)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(runCtx) }()

	var re *procfilter.Reapplier
	if p.Script != nil {
		loop.Post(func() { re = procfilter.Inject(win, p.Script, conf.Reapply) })
	}

	lines := make(chan string)
	go readLines(ctx, in, lines)

	n := feed(ctx, lines, func(line string) { loop.Post(func() { handleLine(win, line) }) })
	log.Info("watch: %s: %d input lines, waiting for the pending passes", options.ApplyPath, n)

	page := make(chan string, 1)
	loop.Post(func() {
		loop.AfterFunc(drainDelay(conf.Reapply), func() {
			if re != nil {
				re.Stop()
				log.Debug("watch: %d passes over %d mutation batches", re.Passes(), re.Mutations())
			}

			page <- doc.HTML()
		})
	})

	var out string
	select {
	case out = <-page:
	case err = <-runErr:
		return fmt.Errorf("running event loop: %w", err)
	}

	cancel()
	if err = <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("running event loop: %w", err)
	}

	return writeResult(w, out, options.Report)
}

// feed calls handle for every line received from lines until lines is closed
// or ctx is done.  n is the number of handled lines.
func feed(ctx context.Context, lines <-chan string, handle func(line string)) (n int) {
	for {
		select {
		case <-ctx.Done():
			return n
		case line, ok := <-lines:
			if !ok {
				return n
			}

			handle(line)
			n++
		}
	}
}

// handleLine applies a single input line to win.  It must be called from a
// task of the window's event loop.
func handleLine(win *htmldom.Window, line string) {
	if path, ok := strings.CutPrefix(line, navigatePrefix); ok {
		win.Navigate(strings.TrimSpace(path))

		return
	}

	doc := win.HTMLDocument()
	_, err := doc.AppendHTML(doc.Body(), line)
	if err != nil {
		log.Error("watch: appending %q: %s", line, err)
	}
}

// readLines sends the non-empty lines of r to lines and closes it.
func readLines(ctx context.Context, r io.Reader, lines chan<- string) {
	defer close(lines)

	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}

		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}

	if err := s.Err(); err != nil {
		log.Error("watch: reading input: %s", err)
	}
}

// drainDelay returns the time to wait after the last input line so that the
// navigation pass and the debounced pass after it have run.
func drainDelay(c *procfilter.ReapplyConfig) (d time.Duration) {
	settle, debounce := procfilter.DefaultSettle, procfilter.DefaultDebounce
	if c != nil && c.Settle > 0 {
		settle = c.Settle
	}

	if c != nil && c.Debounce > 0 {
		debounce = c.Debounce
	}

	return settle + 2*debounce
}
