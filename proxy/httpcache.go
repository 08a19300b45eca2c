package proxy

import (
	"net/http"
	"time"
)

// suppressCachePeriod is how long after startup document requests are made
// unconditional.  Pages cached before the proxy started were not filtered.
const suppressCachePeriod = 1 * time.Minute

// shouldSuppressCache reports whether the conditional headers of the
// session's request must be removed.
func (s *Server) shouldSuppressCache(session *Session) (ok bool) {
	if time.Since(s.createdAt) > suppressCachePeriod {
		return false
	}

	return session.Type == TypeDocument || session.Type == TypeOther
}

// suppressCache removes the conditional headers from r so that the server
// responds with the full body.
func suppressCache(r *http.Request) {
	// Last modified time based caching.
	r.Header.Del("If-Modified-Since")
	r.Header.Del("If-Unmodified-Since")

	// ETag based caching.
	r.Header.Del("If-None-Match")
	r.Header.Del("If-Match")
	r.Header.Del("If-Range")
}
