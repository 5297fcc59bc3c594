package openai

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"predictivecoder/logger"
)

// loggingTransport logs every request at debug level.
type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		logger.Debug("http %s %s failed after %v: %v", req.Method, req.URL.Redacted(), time.Since(start), err)
		return nil, err
	}
	logger.Debug("http %s %s -> %d (%v, %d bytes)", req.Method, req.URL.Redacted(), resp.StatusCode, time.Since(start), resp.ContentLength)
	return resp, nil
}

// brotliTransport asks for brotli-encoded responses and decodes them. Go's
// transport only decodes gzip on its own.
type brotliTransport struct {
	next http.RoundTripper
}

func (t *brotliTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept-Encoding", "br")

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "br") {
		resp.Body = &brotliBody{Reader: brotli.NewReader(resp.Body), closer: resp.Body}
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
		resp.Uncompressed = true
	}
	return resp, nil
}

type brotliBody struct {
	io.Reader
	closer io.Closer
}

func (b *brotliBody) Close() error { return b.closer.Close() }
