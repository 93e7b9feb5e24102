// Package simulator implements the interception pipeline: the ordered
// application of customization hooks around a single request/response
// cycle, its short-circuit contract, and its failure-containment policy.
package simulator

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HookRole identifies one of the three fixed customization points.
type HookRole string

const (
	// RoleGlobalRequest runs once per cycle before resolution, from the
	// root of the simulation domain.
	RoleGlobalRequest HookRole = "global-request"
	// RoleLocalResponse runs after resolution, only when a fixture
	// matched, from the matched fixture's directory.
	RoleLocalResponse HookRole = "local-response"
	// RoleGlobalResponse runs last, from the root of the simulation
	// domain.
	RoleGlobalResponse HookRole = "global-response"
)

// HookRunner executes the customization unit for a role, if one exists.
// Implementations must contain every failure: a broken script degrades
// that one hook point only and never surfaces through Apply.
type HookRunner interface {
	Apply(ctx context.Context, role HookRole, sc *Context)
}

// ResolveFunc produces the resolution outcome for a request: a response
// identified by the fixture that matched, or nil when nothing matched.
// Whether the call consults stored fixtures or forwards to a live
// backend is the caller's policy; the pipeline only needs this shape.
type ResolveFunc func(ctx context.Context, rootPath, rootRelativePath, request, contentType string) (*SimulatorResponse, error)

// Pipeline orchestrates one request cycle: global-request hook,
// resolution, local-response hook, global-response hook. It owns the
// short-circuit rule (a response present after the global-request hook is
// returned immediately) and the mutation-propagation rule (the shared
// context is re-read after the pre-hook, so hook writes become the
// resolver's arguments).
type Pipeline struct {
	hooks  HookRunner
	logger *slog.Logger
	tracer trace.Tracer
}

// NewPipeline creates a pipeline using the given hook runner.
func NewPipeline(hooks HookRunner, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		hooks:  hooks,
		logger: logger,
		tracer: otel.Tracer("httpsim/simulator"),
	}
}

// Execute runs one cycle over the given context. Only a failure of the
// resolve step itself is returned as an error; hook failures have already
// been contained by the runner and show up in sc.Failures. A nil response
// with a nil error means nothing resolved the request.
func (p *Pipeline) Execute(ctx context.Context, sc *Context, resolve ResolveFunc) (*SimulatorResponse, error) {
	ctx, span := p.tracer.Start(ctx, "simulator.cycle")
	defer span.End()

	p.hooks.Apply(ctx, RoleGlobalRequest, sc)

	if sc.Response != nil {
		// The pre-hook fabricated a response: resolution and the
		// response hooks are skipped entirely.
		span.SetAttributes(attribute.Bool("simulator.short_circuit", true))
		p.logger.Debug("short-circuited by global request hook",
			slog.String("path", sc.RootRelativePath))
		return sc.Response, nil
	}

	// Arguments are re-read from the shared context, not from locals
	// captured before the pre-hook: this is what lets a script rewrite
	// the path, content type or body before matching.
	resp, err := resolve(ctx, sc.RootPath, sc.RootRelativePath, sc.Request, sc.ContentType)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("resolve %s: %w", sc.RootRelativePath, err)
	}
	sc.Response = resp

	p.hooks.Apply(ctx, RoleLocalResponse, sc)
	p.hooks.Apply(ctx, RoleGlobalResponse, sc)

	span.SetAttributes(attribute.Bool("simulator.matched", sc.Response != nil))
	return sc.Response, nil
}
