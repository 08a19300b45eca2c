package proxy

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/AdguardTeam/procfilter/filterutil"
)

// ResourceType is what the proxy assumes a response to be.  Only documents
// get the procedural payload.
type ResourceType uint8

// Resource types.
const (
	TypeOther ResourceType = iota
	TypeDocument
	TypeStylesheet
	TypeScript
	TypeImage
	TypeFont
	TypeMedia
)

// String implements the fmt.Stringer interface for ResourceType.
func (t ResourceType) String() (s string) {
	switch t {
	case TypeDocument:
		return "document"
	case TypeStylesheet:
		return "stylesheet"
	case TypeScript:
		return "script"
	case TypeImage:
		return "image"
	case TypeFont:
		return "font"
	case TypeMedia:
		return "media"
	default:
		return "other"
	}
}

// Session is the filtering state of one proxied request.
//
// It is created when the request headers arrive, and the resource type is
// guessed from the Accept header and the URL.  Once the response headers
// arrive, the guess is replaced by what the Content-Type says, and the
// response is filtered if it turns out to be a document.
type Session struct {
	ID string

	// Hostname is the normalized host of the request URL.
	Hostname string

	HTTPRequest  *http.Request
	HTTPResponse *http.Response

	// MediaType and Charset come from the response Content-Type.
	MediaType string
	Charset   string

	Type ResourceType
}

// NewSession creates a new session for req.
func NewSession(id string, req *http.Request) (s *Session) {
	return &Session{
		ID:          id,
		Hostname:    filterutil.NormalizeHost(req.URL.Host),
		HTTPRequest: req,
		Type:        assumeResourceType(req, nil),
	}
}

// SetResponse sets the response of this session and recalculates its
// resource type.
func (s *Session) SetResponse(res *http.Response) {
	s.HTTPResponse = res
	s.Type = assumeResourceType(s.HTTPRequest, res)

	mediaType, params, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	s.MediaType = mediaType
	s.Charset = params["charset"]
}

// assumeResourceType guesses the type from what is known at this point.  res
// is nil while the response has not arrived yet.
func assumeResourceType(req *http.Request, res *http.Response) (t ResourceType) {
	if res != nil {
		mediaType, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))

		return typeFromMediaType(mediaType)
	}

	t = typeFromMediaType(req.Header.Get("Accept"))
	if t == TypeOther {
		t = typeFromURL(req.URL)
	}

	return t
}

// mediaTypePrefixes maps media type prefixes to resource types.  The order
// matters: the first matching prefix wins.
var mediaTypePrefixes = []struct {
	prefix string
	typ    ResourceType
}{
	{"text/html", TypeDocument},
	{"application/xhtml", TypeDocument},
	{"text/css", TypeStylesheet},
	{"application/javascript", TypeScript},
	{"application/x-javascript", TypeScript},
	{"text/javascript", TypeScript},
	{"image/", TypeImage},
	{"font/", TypeFont},
	{"application/font", TypeFont},
	{"application/x-font-", TypeFont},
	{"audio/", TypeMedia},
	{"video/", TypeMedia},
}

// typeFromMediaType detects the resource type from a media type or an
// Accept header value.
func typeFromMediaType(mediaType string) (t ResourceType) {
	for _, p := range mediaTypePrefixes {
		if strings.HasPrefix(mediaType, p.prefix) {
			return p.typ
		}
	}

	return TypeOther
}

var fileExtensions = map[string]ResourceType{
	".htm":   TypeDocument,
	".html":  TypeDocument,
	".js":    TypeScript,
	".css":   TypeStylesheet,
	".gif":   TypeImage,
	".ico":   TypeImage,
	".jpeg":  TypeImage,
	".jpg":   TypeImage,
	".png":   TypeImage,
	".svg":   TypeImage,
	".webp":  TypeImage,
	".eot":   TypeFont,
	".otf":   TypeFont,
	".ttf":   TypeFont,
	".woff":  TypeFont,
	".woff2": TypeFont,
	".mp3":   TypeMedia,
	".mp4":   TypeMedia,
	".ogg":   TypeMedia,
	".webm":  TypeMedia,
}

// typeFromURL detects the resource type from the file extension of u.
func typeFromURL(u *url.URL) (t ResourceType) {
	if t, ok := fileExtensions[strings.ToLower(path.Ext(u.Path))]; ok {
		return t
	}

	return TypeOther
}
