package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

// brotliRoundTripper adds "br" to the negotiated encodings and transparently
// decodes brotli response bodies. net/http's Transport already does this for
// gzip but has no brotli support, and some archive.org/PBS edge CDNs only
// offer brotli.
type brotliRoundTripper struct {
	next http.RoundTripper
}

func brotliTransport(next http.RoundTripper) http.RoundTripper {
	return &brotliRoundTripper{next: next}
}

func (t *brotliRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	reqClone := req.Clone(req.Context())
	explicitEncoding := reqClone.Header.Get("Accept-Encoding") != ""
	if !explicitEncoding {
		reqClone.Header.Set("Accept-Encoding", "gzip, br")
	}

	resp, err := t.next.RoundTrip(reqClone)
	if err != nil {
		return nil, err
	}
	if explicitEncoding {
		return resp, nil
	}
	// Setting Accept-Encoding ourselves turns off the Transport's own gzip
	// decoding, so gzip bodies are decoded here as well.
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		resp.Body = &brotliReadCloser{r: brotli.NewReader(resp.Body), underlying: resp.Body}
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		resp.Body = &brotliReadCloser{r: zr, underlying: resp.Body}
	default:
		return resp, nil
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	return resp, nil
}

type brotliReadCloser struct {
	r          io.Reader
	underlying interface{ Close() error }
}

func (b *brotliReadCloser) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *brotliReadCloser) Close() error               { return b.underlying.Close() }
