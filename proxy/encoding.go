package proxy

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// contentDecoders maps the supported Content-Encoding values to the
// constructors of their decoders.
var contentDecoders = map[string]func(r io.Reader) (io.Reader, error){
	"": func(r io.Reader) (io.Reader, error) {
		return r, nil
	},
	"identity": func(r io.Reader) (io.Reader, error) {
		return r, nil
	},
	"gzip": func(r io.Reader) (io.Reader, error) {
		return gzip.NewReader(r)
	},
	"br": func(r io.Reader) (io.Reader, error) {
		return brotli.NewReader(r), nil
	},
}

// canDecode reports whether a body with the given Content-Encoding can be
// decoded.
func canDecode(encoding string) (ok bool) {
	_, ok = contentDecoders[normalizeEncoding(encoding)]

	return ok
}

// decodeBody returns the reader of the decoded body r.
func decodeBody(r io.Reader, encoding string) (dec io.Reader, err error) {
	encoding = normalizeEncoding(encoding)

	newDecoder, ok := contentDecoders[encoding]
	if !ok {
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}

	dec, err = newDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decoding %s body: %w", encoding, err)
	}

	return dec, nil
}

func normalizeEncoding(encoding string) (norm string) {
	return strings.ToLower(strings.TrimSpace(encoding))
}
