package script

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tjfontaine/httpsim/internal/simulator"
)

// Base names of the two global hook units. The local unit's name is
// derived from the matched fixture: Foo-Request.txt pairs with Foo.<ext>.
const (
	globalRequestBase  = "GlobalRequest"
	globalResponseBase = "GlobalResponse"
	requestFixtureMark = "-Request."
)

// Runner locates and executes the customization unit for a hook role.
// A missing unit is a silent no-op. A unit that fails to load, compile or
// run is logged, recorded on the context's failure list, and otherwise
// treated as if it were absent: a broken script degrades that one hook
// point only and never aborts the request cycle.
type Runner struct {
	engine Engine
	logger *slog.Logger
}

// NewRunner creates a runner backed by the given script engine.
func NewRunner(engine Engine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{engine: engine, logger: logger}
}

// Apply implements simulator.HookRunner.
func (r *Runner) Apply(ctx context.Context, role simulator.HookRole, sc *simulator.Context) {
	cust, ok := r.lookup(role, sc)
	if !ok {
		return
	}

	r.logger.Debug("applying customization",
		slog.String("role", string(role)),
		slog.String("script", cust.Name()))

	if err := cust.Apply(ctx, sc); err != nil {
		sc.Failures = append(sc.Failures, simulator.HookFailure{
			Role:   string(role),
			Script: cust.Name(),
			Err:    err.Error(),
		})
		r.logger.Error("customization failed",
			slog.String("role", string(role)),
			slog.String("script", cust.Name()),
			slog.String("error", err.Error()))
	}
}

// lookup resolves the unit location for a role. ok is false when no unit
// exists there, when the local role has no matched fixture to derive a
// location from, or when the location is malformed.
func (r *Runner) lookup(role simulator.HookRole, sc *simulator.Context) (Customization, bool) {
	var dir, name string

	switch role {
	case simulator.RoleGlobalRequest:
		dir, name = sc.RootPath, globalRequestBase+r.engine.Ext()
	case simulator.RoleGlobalResponse:
		dir, name = sc.RootPath, globalResponseBase+r.engine.Ext()
	case simulator.RoleLocalResponse:
		if sc.Response == nil || sc.Response.MatchingRequest == "" {
			// No fixture matched; there is no location to derive.
			return nil, false
		}
		dir = filepath.Dir(sc.Response.MatchingRequest)
		if dir == "." && !strings.Contains(sc.Response.MatchingRequest, string(filepath.Separator)) {
			// Fixture path without a parent directory.
			return nil, false
		}
		name = localUnitName(filepath.Base(sc.Response.MatchingRequest), r.engine.Ext())
		if name == "" {
			return nil, false
		}
	default:
		return nil, false
	}

	path := filepath.Join(dir, name)
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return nil, false
	}
	return &fileCustomization{engine: r.engine, path: path}, true
}

// localUnitName derives the local hook's file name from the matched
// fixture's file name: "Login-Request.txt" becomes "Login" + ext.
func localUnitName(fixture, ext string) string {
	idx := strings.LastIndex(fixture, requestFixtureMark)
	if idx <= 0 {
		return ""
	}
	return fixture[:idx] + ext
}

// fileCustomization is a Customization backed by a script file on disk.
type fileCustomization struct {
	engine Engine
	path   string
}

func (c *fileCustomization) Name() string { return filepath.Base(c.path) }

// Apply exposes the context to the script and absorbs its mutations.
// Engine panics are converted to errors here so containment holds for
// any engine implementation.
func (c *fileCustomization) Apply(ctx context.Context, sc *simulator.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("script panic: %v", rec)
		}
	}()

	vars := sc.Vars()
	if err := c.engine.Run(ctx, c.path, vars); err != nil {
		// Mutations made before the failure still count: absorb first.
		sc.AbsorbVars(vars)
		return err
	}
	sc.AbsorbVars(vars)
	return nil
}
