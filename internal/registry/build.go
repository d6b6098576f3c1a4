package registry

import (
	"context"
	"fmt"

	"github.com/specialistvlad/sweptgrid/internal/config"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
)

// Kernel builds the kernel a run file selects. ValidateRegistry must have
// run first.
func (r *Registry) Kernel(ctx context.Context, conv config.Converter, p *config.Plugin, params kernel.Params) (kernel.Kernel, error) {
	const op = "equation"
	eq, ok := r.equations[p.Name]
	if !ok {
		return nil, runerr.New(runerr.Configuration, op, "unknown equation %q, registered: %v", p.Name, r.Equations())
	}
	args, err := decodeArgs(ctx, conv, p, eq.NewArgs, eq.inputs)
	if err != nil {
		return nil, runerr.Wrap(runerr.Configuration, op, fmt.Errorf("equation %q: %w", p.Name, err))
	}
	k, err := eq.New(args, params)
	if err != nil {
		return nil, runerr.Wrap(runerr.Configuration, op, fmt.Errorf("equation %q: %w", p.Name, err))
	}
	return k, nil
}

// Initial builds the initial condition a run file selects.
func (r *Registry) Initial(ctx context.Context, conv config.Converter, p *config.Plugin, d kernel.Domain) (kernel.Initial, error) {
	const op = "initial"
	ic, ok := r.initials[p.Name]
	if !ok {
		return nil, runerr.New(runerr.Configuration, op, "unknown initial condition %q, registered: %v", p.Name, r.Initials())
	}
	args, err := decodeArgs(ctx, conv, p, ic.NewArgs, ic.inputs)
	if err != nil {
		return nil, runerr.Wrap(runerr.Configuration, op, fmt.Errorf("initial condition %q: %w", p.Name, err))
	}
	gen, err := ic.New(args, d)
	if err != nil {
		return nil, runerr.Wrap(runerr.Configuration, op, fmt.Errorf("initial condition %q: %w", p.Name, err))
	}
	return gen, nil
}

func decodeArgs(ctx context.Context, conv config.Converter, p *config.Plugin, newArgs func() any, defs map[string]*config.InputDefinition) (any, error) {
	for name := range p.Arguments {
		if _, ok := defs[name]; !ok {
			return nil, fmt.Errorf("unsupported argument %q, supported: %v", name, sortedKeys(defs))
		}
	}
	if newArgs == nil {
		return nil, nil
	}
	args := newArgs()
	if err := conv.DecodeBody(ctx, args, p.Arguments, defs, p.EvalContext); err != nil {
		return nil, err
	}
	return args, nil
}
