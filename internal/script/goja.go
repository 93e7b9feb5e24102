package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
)

// GojaEngine runs ECMAScript customization units in-process. Scripts see
// the shared context as the global object "vars"; property writes flow
// through to the underlying map.
type GojaEngine struct{}

// NewGojaEngine makes a new GojaEngine.
func NewGojaEngine() *GojaEngine {
	return &GojaEngine{}
}

func (e *GojaEngine) Ext() string { return ".js" }

func (e *GojaEngine) Run(ctx context.Context, path string, vars map[string]any) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	prog, err := goja.Compile(filepath.Base(path), string(src), true)
	if err != nil {
		return fmt.Errorf("compile script: %w", err)
	}

	// A fresh runtime per run: no state leaks between hook invocations
	// or between request cycles.
	rt := goja.New()
	if err := rt.Set("vars", vars); err != nil {
		return fmt.Errorf("bind vars: %w", err)
	}

	if _, err := rt.RunProgram(prog); err != nil {
		return fmt.Errorf("run script: %w", err)
	}
	return nil
}
