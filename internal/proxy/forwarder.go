// Package proxy relays unmatched requests to a live backend and streams
// the backend's response back.
package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBufferSize bounds the transfer buffer used when copying
	// bodies in either direction.
	DefaultBufferSize = 100000

	// DefaultReadTimeout bounds how long a misbehaving backend can keep
	// the upstream connection open.
	DefaultReadTimeout = 12 * time.Second
)

// Config configures a Forwarder. Zero values fall back to the defaults
// above. Transport is overridable for tests (VCR cassettes).
type Config struct {
	ReadTimeout      time.Duration
	BufferSize       int
	PropagateHeaders []string
	Transport        http.RoundTripper
}

// Result is the upstream's answer: status, the propagated subset of its
// headers, and the body as a stream. The caller owns closing Body; use
// CopyBody to drain it with the bounded transfer buffer.
type Result struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Forwarder streams a request to a real backend. Request headers are
// copied verbatim to the outbound call; response headers are propagated
// selectively: Content-Type always, others only when configured.
type Forwarder struct {
	client     *http.Client
	bufferSize int
	propagate  []string
	logger     *slog.Logger
}

// NewForwarder creates a Forwarder.
func NewForwarder(cfg Config, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Forwarder{
		client: &http.Client{
			Timeout:   timeout,
			Transport: cfg.Transport,
		},
		bufferSize: bufferSize,
		propagate:  cfg.PropagateHeaders,
		logger:     logger,
	}
}

// Forward sends the request upstream. body is ignored for methods with
// no body semantics, so a GET never triggers a single body read.
func (f *Forwarder) Forward(ctx context.Context, method, targetURL string, header http.Header, body io.Reader) (*Result, error) {
	if !methodHasBody(method) {
		body = nil
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	f.logger.Debug("forwarding",
		slog.String("method", method),
		slog.String("url", targetURL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forward to %s: %w", targetURL, err)
	}

	out := http.Header{}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Set("Content-Type", ct)
	}
	for _, name := range f.propagate {
		for _, v := range resp.Header.Values(name) {
			out.Add(name, v)
		}
	}

	return &Result{
		Status: resp.StatusCode,
		Header: out,
		Body:   resp.Body,
	}, nil
}

// CopyBody drains src into dst using the forwarder's bounded transfer
// buffer, so a large upstream body is never held in memory whole.
func (f *Forwarder) CopyBody(dst io.Writer, src io.Reader) (int64, error) {
	return io.CopyBuffer(dst, src, make([]byte, f.bufferSize))
}

func methodHasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return false
	}
	return true
}
