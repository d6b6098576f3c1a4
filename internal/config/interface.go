package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific run file loader.
type Loader interface {
	// Load reads configuration from the given paths, translates it into the
	// format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter binds raw plugin arguments to the Go types plugins declare.
type Converter interface {
	// DecodeBody decodes an 'arguments' block into a target Go struct,
	// applying the input definitions derived from that struct.
	DecodeBody(
		ctx context.Context,
		target any,
		args map[string]hcl.Expression,
		defs map[string]*InputDefinition,
		evalCtx *hcl.EvalContext,
	) error

	// ToCtyValue converts a native Go value into its cty.Value.
	ToCtyValue(v any) (cty.Value, error)
}
