// Package handler is the HTTP entry point for simulated endpoints: it
// builds the per-cycle context, composes the resolution policy (fixtures,
// forwarding, or fixtures with forward fallback), runs the interception
// pipeline and writes the outcome.
package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tjfontaine/httpsim/internal/matcher"
	"github.com/tjfontaine/httpsim/internal/proxy"
	"github.com/tjfontaine/httpsim/internal/record"
	"github.com/tjfontaine/httpsim/internal/server"
	"github.com/tjfontaine/httpsim/internal/simulator"
	"github.com/tjfontaine/httpsim/internal/storage"
)

// Options wires a Handler. Matcher is required; Forwarder+Mapper enable
// forward fallback for unmatched requests; Store enables interaction
// recording.
type Options struct {
	Root               string
	DefaultContentType string
	Pipeline           *simulator.Pipeline
	Matcher            *matcher.Matcher
	Forwarder          *proxy.Forwarder
	Mapper             *proxy.URIMapper
	Store              storage.InteractionStore
	Logger             *slog.Logger
}

// Handler serves every simulated endpoint under one catch-all route.
type Handler struct {
	root               string
	defaultContentType string
	pipeline           *simulator.Pipeline
	matcher            *matcher.Matcher
	forwarder          *proxy.Forwarder
	mapper             *proxy.URIMapper
	store              storage.InteractionStore
	logger             *slog.Logger
}

// New creates a Handler.
func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaultContentType := opts.DefaultContentType
	if defaultContentType == "" {
		defaultContentType = "text/plain"
	}
	return &Handler{
		root:               opts.Root,
		defaultContentType: defaultContentType,
		pipeline:           opts.Pipeline,
		matcher:            opts.Matcher,
		forwarder:          opts.Forwarder,
		mapper:             opts.Mapper,
		store:              opts.Store,
		logger:             logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	relPath := strings.Trim(r.URL.Path, "/")
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = h.defaultContentType
	}

	sc := simulator.NewContext(h.root, relPath, string(body), contentType)

	resolverRan := false
	forwarded := false

	resolve := func(ctx context.Context, rootPath, rootRelativePath, request, ct string) (*simulator.SimulatorResponse, error) {
		resolverRan = true
		resp, err := h.matcher.Resolve(ctx, rootPath, rootRelativePath, request, ct)
		if resp != nil || err != nil {
			return resp, err
		}
		if h.forwarder == nil || h.mapper == nil {
			return nil, nil
		}
		forwarded = true
		return h.forward(ctx, r, rootRelativePath, request)
	}

	resp, execErr := h.pipeline.Execute(r.Context(), sc, resolve)

	status := h.writeOutcome(w, sc, resp, execErr)

	if len(sc.Failures) > 0 {
		server.AddLogField(r.Context(), "hook_failures", strconv.Itoa(len(sc.Failures)))
	}
	if resp != nil && resp.MatchingRequest != "" {
		server.AddLogField(r.Context(), "matched_fixture", resp.MatchingRequest)
	}
	server.AddError(r.Context(), execErr)

	record.Record(r.Context(), h.store, record.Cycle{
		Method:         r.Method,
		Path:           relPath,
		SC:             sc,
		Status:         status,
		Forwarded:      forwarded,
		ShortCircuited: resp != nil && !resolverRan,
		Started:        start,
	})
}

// writeOutcome maps the pipeline result onto the HTTP response and
// returns the status written.
func (h *Handler) writeOutcome(w http.ResponseWriter, sc *simulator.Context, resp *simulator.SimulatorResponse, execErr error) int {
	switch {
	case execErr != nil:
		// Resolution itself failed; there is no safe partial result.
		http.Error(w, "resolution failed: "+execErr.Error(), http.StatusBadGateway)
		return http.StatusBadGateway

	case resp == nil:
		http.Error(w, fmt.Sprintf("no response found for %q", sc.RootRelativePath), http.StatusNotFound)
		return http.StatusNotFound

	default:
		contentType := resp.ContentType
		if contentType == "" {
			contentType = sc.ContentType
		}
		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write([]byte(resp.Payload))
		return status
	}
}

// forward relays an unmatched request upstream and adapts the streamed
// result into a resolution outcome the response hooks can rewrite. The
// body is drained through the forwarder's bounded buffer.
func (h *Handler) forward(ctx context.Context, r *http.Request, relPath, request string) (*simulator.SimulatorResponse, error) {
	target, err := h.mapper.Map("/" + relPath)
	if err != nil {
		// No upstream configured for this path: not a match, not an
		// error.
		h.logger.Debug("no upstream mapping", slog.String("path", relPath))
		return nil, nil
	}

	var body io.Reader
	if request != "" {
		body = strings.NewReader(request)
	}

	res, err := h.forwarder.Forward(ctx, r.Method, target, r.Header, body)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var buf bytes.Buffer
	if _, err := h.forwarder.CopyBody(&buf, res.Body); err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return &simulator.SimulatorResponse{
		Payload:     buf.String(),
		ContentType: res.Header.Get("Content-Type"),
		Status:      res.Status,
	}, nil
}
