package procfilter

import (
	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter/dom"
)

// Inject binds s to the document of win, runs it once, and keeps re-running
// it as the page mutates and navigates.  conf may be nil.  It must be called
// from a task of the window's event loop, and the returned Reapplier is
// owned by that loop.
//
// A pass that throws keeps the changes made before the exception, and the
// following passes still run.
func Inject(win dom.Window, s *Script, conf *ReapplyConfig) (r *Reapplier) {
	rt := s.Bind(NewEngine(win.Document(), win.Loop()))
	r = NewReapplier(win, func() {
		if err := rt.Run(); err != nil {
			log.Error("procfilter: %s", err)
		}
	}, conf)
	r.Start()

	return r
}
