package proxy

import (
	"net/http"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/gomitmproxy/proxyutil"
)

// onRequest handles the outgoing HTTP requests.
func (s *Server) onRequest(sess *gomitmproxy.Session) (req *http.Request, res *http.Response) {
	r := sess.Request()
	if r.Method == http.MethodConnect {
		return nil, nil
	}

	session := NewSession(sess.ID(), r)

	log.Debug("proxy: id=%s: saving session", session.ID)
	sess.SetProp(sessionPropKey, session)

	if s.shouldSuppressCache(session) {
		suppressCache(r)
	}

	return r, nil
}

// onResponse filters the documents.  It returns nil for the responses it
// leaves intact.
func (s *Server) onResponse(sess *gomitmproxy.Session) (res *http.Response) {
	v, ok := sess.GetProp(sessionPropKey)
	if !ok {
		return nil
	}

	session, ok := v.(*Session)
	if !ok {
		log.Error("proxy: id=%s: session has wrong type %T", sess.ID(), v)

		return nil
	}

	res = sess.Response()
	if res == nil {
		return nil
	}

	session.SetResponse(res)
	if !shouldFilter(session) {
		return nil
	}

	p, err := s.engine.Payload(session.Hostname)
	if err != nil {
		log.Error("proxy: id=%s: building payload: %s", session.ID, err)

		return proxyutil.NewErrorResponse(session.HTTPRequest, err)
	} else if p.Script == nil && p.Stylesheet == "" {
		return nil
	}

	err = s.filterHTML(session, p)
	if err != nil {
		log.Error("proxy: id=%s: %s", session.ID, err)

		return proxyutil.NewErrorResponse(session.HTTPRequest, err)
	}

	return session.HTTPResponse
}

// shouldFilter reports whether the session's response is a document the
// proxy can parse.
func shouldFilter(session *Session) (ok bool) {
	res := session.HTTPResponse

	return session.Type == TypeDocument &&
		session.MediaType == "text/html" &&
		res.StatusCode == http.StatusOK &&
		canDecode(res.Header.Get("Content-Encoding"))
}
