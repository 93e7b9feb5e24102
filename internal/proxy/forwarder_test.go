package proxy

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// countingReader fails the test if anything reads from it.
type countingReader struct {
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return 0, io.EOF
}

func TestForward_GetHasNoBodyReads(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("upstream received %d body bytes for GET", len(body))
		}
		w.Write([]byte("pong"))
	}))
	defer upstream.Close()

	f := NewForwarder(Config{}, nil)
	body := &countingReader{}
	res, err := f.Forward(context.Background(), http.MethodGet, upstream.URL+"/ping", nil, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer res.Body.Close()

	if body.reads != 0 {
		t.Errorf("expected zero body reads for GET, got %d", body.reads)
	}
	if res.Status != http.StatusOK {
		t.Errorf("unexpected status %d", res.Status)
	}
}

func TestForward_PostStreamsBodyByteExact(t *testing.T) {
	// Payload much larger than the transfer buffer, to cross buffer
	// boundaries in both directions.
	payload := make([]byte, 10_000)
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}

	var received []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.Write(received)
	}))
	defer upstream.Close()

	f := NewForwarder(Config{BufferSize: 64}, nil)
	res, err := f.Forward(context.Background(), http.MethodPost, upstream.URL+"/submit", nil, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer res.Body.Close()

	if !bytes.Equal(received, payload) {
		t.Fatalf("upstream received %d bytes, sent %d", len(received), len(payload))
	}

	var echoed bytes.Buffer
	if _, err := f.CopyBody(&echoed, res.Body); err != nil {
		t.Fatalf("copy body: %v", err)
	}
	if !bytes.Equal(echoed.Bytes(), payload) {
		t.Fatalf("response body truncated: got %d bytes, want %d", echoed.Len(), len(payload))
	}
}

func TestForward_RequestHeadersCopiedVerbatim(t *testing.T) {
	var got http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer upstream.Close()

	header := http.Header{}
	header.Set("X-Correlation-Id", "abc-123")
	header.Add("Accept", "text/plain")
	header.Add("Accept", "text/xml")

	f := NewForwarder(Config{}, nil)
	res, err := f.Forward(context.Background(), http.MethodPost, upstream.URL, header, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res.Body.Close()

	if got.Get("X-Correlation-Id") != "abc-123" {
		t.Errorf("header not copied: %v", got)
	}
	if accepts := got.Values("Accept"); len(accepts) != 2 {
		t.Errorf("multi-valued header not copied verbatim: %v", accepts)
	}
}

func TestForward_ResponseHeaderPropagation(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream-Secret", "hidden")
		w.Header().Set("Cache-Control", "no-store")
		w.Write([]byte("{}"))
	}))
	defer upstream.Close()

	// Default: content type only.
	f := NewForwarder(Config{}, nil)
	res, err := f.Forward(context.Background(), http.MethodGet, upstream.URL, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res.Body.Close()
	if res.Header.Get("Content-Type") != "application/json" {
		t.Errorf("content type not propagated: %v", res.Header)
	}
	if res.Header.Get("X-Upstream-Secret") != "" || res.Header.Get("Cache-Control") != "" {
		t.Errorf("unlisted headers leaked: %v", res.Header)
	}

	// Configured propagation list.
	f = NewForwarder(Config{PropagateHeaders: []string{"Cache-Control"}}, nil)
	res, err = f.Forward(context.Background(), http.MethodGet, upstream.URL, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res.Body.Close()
	if res.Header.Get("Cache-Control") != "no-store" {
		t.Errorf("configured header not propagated: %v", res.Header)
	}
	if res.Header.Get("X-Upstream-Secret") != "" {
		t.Errorf("unlisted header leaked: %v", res.Header)
	}
}

func TestURIMapper(t *testing.T) {
	m := NewURIMapper([]Mapping{
		{Prefix: "/billing", Target: "http://billing.internal/api"},
		{Prefix: "", Target: "http://fallback.internal"},
	})

	cases := []struct {
		path string
		want string
	}{
		{"/billing/invoices/42", "http://billing.internal/api/invoices/42"},
		{"/billing", "http://billing.internal/api"},
		{"/anything/else", "http://fallback.internal/anything/else"},
	}
	for _, tc := range cases {
		got, err := m.Map(tc.path)
		if err != nil {
			t.Fatalf("Map(%q): %v", tc.path, err)
		}
		if got != tc.want {
			t.Errorf("Map(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}

	empty := NewURIMapper(nil)
	if _, err := empty.Map("/x"); err == nil {
		t.Error("expected error for unmapped path")
	}
}
