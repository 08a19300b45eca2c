package procfilter

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter/filterlist"
	"github.com/AdguardTeam/procfilter/filterutil"
	"github.com/AdguardTeam/procfilter/rules"
	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultPayloadCacheSize is the number of hostnames whose payloads are
// kept by default.
const DefaultPayloadCacheSize = 1024

// payloadTmpl wraps every statement so that one failing statement does not
// stop the rest.
var payloadTmpl = template.Must(template.New("payload").Parse(`(function() {
{{- range . }}
try { {{ . }}} catch (ex) {}
{{- end }}
})();
`))

// Payload is everything that is injected into the documents of one
// hostname.
type Payload struct {
	// Script is the compiled procedural payload.  It is nil if no
	// procedural rule applies.
	Script *Script

	// Source is the text of Script.
	Source string

	// Stylesheet contains the CSS of the element hiding and style rules.
	Stylesheet string

	// Statements is the number of compiled procedural rules.
	Statements int
}

// PayloadEngine builds and caches the payloads of hostnames from the
// cosmetic rules of a storage.
type PayloadEngine struct {
	cache *lru.Cache[string, *Payload]

	// mu serializes payload building so that a hostname is built once.
	mu *sync.Mutex

	procedural []*rules.CosmeticRule
	hiding     []*rules.CosmeticRule

	// exceptions maps rule contents to the whitelist rules disabling them.
	exceptions map[string][]*rules.CosmeticRule
}

// NewPayloadEngine scans s and creates a payload engine of its cosmetic rules.
// cacheSize is the number of hostnames to keep payloads for, zero means the
// default.
func NewPayloadEngine(s *filterlist.RuleStorage, cacheSize int) (e *PayloadEngine, err error) {
	if cacheSize <= 0 {
		cacheSize = DefaultPayloadCacheSize
	}

	cache, err := lru.New[string, *Payload](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating payload cache: %w", err)
	}

	e = &PayloadEngine{
		cache:      cache,
		mu:         &sync.Mutex{},
		exceptions: map[string][]*rules.CosmeticRule{},
	}

	sc := s.NewRuleStorageScanner()
	for sc.Scan() {
		r, _ := sc.Rule()
		if cr, ok := r.(*rules.CosmeticRule); ok {
			e.add(cr)
		}
	}

	log.Info(
		"procfilter: loaded %d procedural and %d hiding rules",
		len(e.procedural),
		len(e.hiding),
	)

	return e, nil
}

// add puts r into the matching group.
func (e *PayloadEngine) add(r *rules.CosmeticRule) {
	switch {
	case r.Whitelist:
		e.exceptions[r.Content] = append(e.exceptions[r.Content], r)
	case r.Type == rules.CosmeticProcedural:
		e.procedural = append(e.procedural, r)
	default:
		e.hiding = append(e.hiding, r)
	}
}

// Payload returns the payload for hostname.
func (e *PayloadEngine) Payload(hostname string) (p *Payload, err error) {
	hostname = filterutil.NormalizeHost(hostname)

	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.cache.Get(hostname); ok {
		return p, nil
	}

	p, err = e.build(hostname)
	if err != nil {
		return nil, err
	}

	e.cache.Add(hostname, p)

	return p, nil
}

// build creates the payload for hostname.
func (e *PayloadEngine) build(hostname string) (p *Payload, err error) {
	p = &Payload{}

	var stmts []string
	for _, r := range e.procedural {
		if !e.applies(r, hostname) {
			continue
		}

		stmt, serr := r.Statement()
		if serr != nil {
			log.Debug("procfilter: skipping rule: %s", serr)

			continue
		}

		if _, cerr := goja.Compile(r.RuleText, stmt, false); cerr != nil {
			log.Debug("procfilter: skipping rule %q: %s", r.RuleText, cerr)

			continue
		}

		stmts = append(stmts, stmt)
	}

	var css []string
	for _, r := range e.hiding {
		if e.applies(r, hostname) {
			css = append(css, r.CSS())
		}
	}

	p.Stylesheet = strings.Join(css, "\n")
	p.Statements = len(stmts)
	if len(stmts) == 0 {
		return p, nil
	}

	sb := &strings.Builder{}
	if err = payloadTmpl.Execute(sb, stmts); err != nil {
		return nil, fmt.Errorf("rendering payload: %w", err)
	}

	p.Source = sb.String()
	p.Script, err = NewScript("procfilter:"+hostname, p.Source)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// applies reports whether r applies to hostname and no exception disables
// it there.
func (e *PayloadEngine) applies(r *rules.CosmeticRule, hostname string) (ok bool) {
	if !r.Match(hostname) {
		return false
	}

	for _, x := range e.exceptions[r.Content] {
		if x.Match(hostname) {
			return false
		}
	}

	return true
}
