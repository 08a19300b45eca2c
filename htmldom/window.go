package htmldom

import (
	"github.com/AdguardTeam/procfilter/dom"
)

// Window is a dom.Window over a *Document.  Navigation is client-side only:
// the document stays the same and listeners are notified through the event
// loop.
type Window struct {
	doc       *Document
	loop      dom.EventLoop
	listeners map[string][]func()
	path      string
}

// type check
var _ dom.Window = (*Window)(nil)

// NewWindow creates a window showing doc at path.
func NewWindow(doc *Document, path string) (w *Window) {
	return &Window{
		doc:       doc,
		loop:      doc.loop,
		listeners: map[string][]func(){},
		path:      path,
	}
}

// Document implements the dom.Window interface for *Window.
func (w *Window) Document() (doc dom.Document) {
	return w.doc
}

// HTMLDocument returns the concrete document of w.
func (w *Window) HTMLDocument() (doc *Document) {
	return w.doc
}

// Loop implements the dom.Window interface for *Window.
func (w *Window) Loop() (l dom.EventLoop) {
	return w.loop
}

// Path implements the dom.Window interface for *Window.
func (w *Window) Path() (path string) {
	return w.path
}

// AddEventListener implements the dom.Window interface for *Window.
func (w *Window) AddEventListener(event string, fn func()) {
	w.listeners[event] = append(w.listeners[event], fn)
}

// Navigate changes the path the way history.pushState does and emits the
// pseudo-navigation signal.
func (w *Window) Navigate(path string) {
	w.path = path
	w.Dispatch(dom.EventLocationChange)
}

// Back changes the path and emits popstate.
func (w *Window) Back(path string) {
	w.path = path
	w.Dispatch(dom.EventPopState)
}

// Click emits a click event.
func (w *Window) Click() {
	w.Dispatch(dom.EventClick)
}

// Dispatch queues the listeners of event on the event loop.
func (w *Window) Dispatch(event string) {
	for _, fn := range w.listeners[event] {
		w.loop.Post(fn)
	}
}
