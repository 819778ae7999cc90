package llm

import (
	"context"
	"net/http"
	"sync"
)

// headerSink receives the headers of a throttled response. SDK errors do not
// expose response headers, so the adapter's transport copies them here.
type headerSink struct {
	mu     sync.Mutex
	header http.Header
}

func (s *headerSink) set(h http.Header) {
	s.mu.Lock()
	s.header = h.Clone()
	s.mu.Unlock()
}

func (s *headerSink) get() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header
}

type headerSinkKey struct{}

func withHeaderSink(ctx context.Context) (context.Context, *headerSink) {
	sink := &headerSink{}
	return context.WithValue(ctx, headerSinkKey{}, sink), sink
}

// throttleCapture records 429 response headers into the request's sink.
type throttleCapture struct {
	base http.RoundTripper
}

func newThrottleCapture(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &throttleCapture{base: base}
}

func (t *throttleCapture) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	if sink, ok := req.Context().Value(headerSinkKey{}).(*headerSink); ok {
		sink.set(resp.Header)
	}
	return resp, nil
}
