// Package script loads and executes customization units: small user
// scripts that rewrite the shared simulation context at the three fixed
// hook points. The pipeline only ever sees the Customization interface;
// which scripting technology runs underneath is a deployment choice.
package script

import (
	"context"

	"github.com/tjfontaine/httpsim/internal/simulator"
)

// Customization is one executable customization unit. Apply may read and
// write any key of the shared context; an error from Apply is contained
// by the Runner and never reaches the pipeline's caller.
type Customization interface {
	Name() string
	Apply(ctx context.Context, sc *simulator.Context) error
}

// Engine executes script source against the script-visible variable map.
// Mutations the script makes to vars must be visible to the caller after
// Run returns.
type Engine interface {
	// Ext is the file extension, including the dot, that scripts for
	// this engine carry. It determines the on-disk names of the three
	// hook units.
	Ext() string

	// Run executes the script at path with vars bound as the script's
	// single writable variable.
	Run(ctx context.Context, path string, vars map[string]any) error
}
