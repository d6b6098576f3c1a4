// This file translates the decoded HCL blocks into the format-agnostic
// config model, applying defaults.

package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/sweptgrid/internal/config"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

const (
	defaultMode           = "swept"
	defaultBarrierTimeout = 5 * time.Minute
	defaultTransport      = "local"
	defaultFormat         = "memory"
)

// solverVars and domainVars are what argument expressions see as `solver`
// and `domain`.
type solverVars struct {
	Mode      string  `cty:"mode"`
	BlockSize int     `cty:"block_size"`
	Ops       int     `cty:"ops"`
	TSO       int     `cty:"tso"`
	T0        float64 `cty:"t0"`
	Tf        float64 `cty:"tf"`
	Dt        float64 `cty:"dt"`
}

type domainVars struct {
	Rows      int `cty:"rows"`
	Cols      int `cty:"cols"`
	Variables int `cty:"variables"`
}

var functions = map[string]function.Function{
	"abs":   stdlib.AbsoluteFunc,
	"ceil":  stdlib.CeilFunc,
	"floor": stdlib.FloorFunc,
	"max":   stdlib.MaxFunc,
	"min":   stdlib.MinFunc,
	"pow":   stdlib.PowFunc,
}

func translate(ctx context.Context, conv *Converter, root *fileRoot) (*config.Model, error) {
	if err := exactlyOne("solver", len(root.Solvers)); err != nil {
		return nil, err
	}
	if err := exactlyOne("domain", len(root.Domains)); err != nil {
		return nil, err
	}
	if err := exactlyOne("equation", len(root.Equations)); err != nil {
		return nil, err
	}
	if err := exactlyOne("initial", len(root.Initials)); err != nil {
		return nil, err
	}
	if len(root.Clusters) > 1 {
		return nil, fmt.Errorf("at most one cluster block is allowed, found %d", len(root.Clusters))
	}
	if len(root.Outputs) > 1 {
		return nil, fmt.Errorf("at most one output block is allowed, found %d", len(root.Outputs))
	}
	if len(root.Nodes) == 0 {
		return nil, fmt.Errorf("at least one node block is required")
	}

	solver, err := translateSolver(root.Solvers[0])
	if err != nil {
		return nil, err
	}
	domain := translateDomain(root.Domains[0])
	nodes, err := translateNodes(root.Nodes)
	if err != nil {
		return nil, err
	}
	cluster, err := translateCluster(root.Clusters)
	if err != nil {
		return nil, err
	}
	output, err := translateOutput(root.Outputs)
	if err != nil {
		return nil, err
	}

	evalCtx, err := evalContext(conv, solver, domain)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Built argument evaluation context.", "variables", len(evalCtx.Variables), "functions", len(evalCtx.Functions))

	equation, err := translatePlugin("equation", root.Equations[0], evalCtx)
	if err != nil {
		return nil, err
	}
	initial, err := translatePlugin("initial", root.Initials[0], evalCtx)
	if err != nil {
		return nil, err
	}

	return &config.Model{
		Solver:   solver,
		Domain:   domain,
		Equation: equation,
		Initial:  initial,
		Nodes:    nodes,
		Cluster:  cluster,
		Output:   output,
	}, nil
}

func exactlyOne(block string, n int) error {
	if n != 1 {
		return fmt.Errorf("exactly one %s block is required, found %d", block, n)
	}
	return nil
}

func translateSolver(s *solverBlock) (*config.Solver, error) {
	out := &config.Solver{
		Mode:             valueOr(s.Mode, defaultMode),
		BlockSize:        s.BlockSize,
		Ops:              valueOr(s.Ops, 1),
		TSO:              valueOr(s.TSO, 1),
		Affinity:         s.Affinity,
		T0:               s.T0,
		Tf:               s.Tf,
		Dt:               s.Dt,
		Periodic:         valueOr(s.Periodic, true),
		ExcludeGPUs:      s.ExcludeGPUs,
		AllowCPUFallback: s.AllowCPUFallback,
		BarrierTimeout:   defaultBarrierTimeout,
	}
	if s.BarrierTimeout != nil {
		d, err := time.ParseDuration(*s.BarrierTimeout)
		if err != nil {
			return nil, fmt.Errorf("solver: invalid barrier_timeout: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("solver: barrier_timeout must not be negative, got %s", d)
		}
		out.BarrierTimeout = d
	}
	return out, nil
}

func translateDomain(d *domainBlock) *config.Domain {
	return &config.Domain{Rows: d.Rows, Cols: d.Cols, Variables: valueOr(d.Variables, 1)}
}

func translateNodes(blocks []*nodeBlock) ([]*config.Node, error) {
	seen := make(map[string]struct{}, len(blocks))
	nodes := make([]*config.Node, 0, len(blocks))
	for _, n := range blocks {
		if _, dup := seen[n.Name]; dup {
			return nil, fmt.Errorf("node %q is declared more than once", n.Name)
		}
		seen[n.Name] = struct{}{}
		node := &config.Node{Name: n.Name, Cores: valueOr(n.Cores, 1), GPUs: n.GPUs}
		if node.Cores < 0 || node.GPUs < 0 {
			return nil, fmt.Errorf("node %q: cores and gpus must not be negative", n.Name)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func translateCluster(blocks []*clusterBlock) (*config.Cluster, error) {
	c := &config.Cluster{Transport: defaultTransport}
	if len(blocks) == 1 {
		c.Transport = valueOr(blocks[0].Transport, defaultTransport)
		c.Hub = blocks[0].Hub
	}
	switch c.Transport {
	case "local", "socketio":
		return c, nil
	default:
		return nil, fmt.Errorf("cluster: unknown transport %q, expected \"local\" or \"socketio\"", c.Transport)
	}
}

func translateOutput(blocks []*outputBlock) (*config.Output, error) {
	o := &config.Output{Format: defaultFormat}
	if len(blocks) == 1 {
		o.Format = valueOr(blocks[0].Format, defaultFormat)
		o.Path = blocks[0].Path
	}
	switch o.Format {
	case "memory":
	case "file":
		if o.Path == "" {
			return nil, fmt.Errorf("output: format \"file\" needs a path")
		}
	default:
		return nil, fmt.Errorf("output: unknown format %q, expected \"memory\" or \"file\"", o.Format)
	}
	return o, nil
}

func translatePlugin(kind string, p *pluginBlock, evalCtx *hcl.EvalContext) (*config.Plugin, error) {
	args, err := extractBodyAttributes(p.Arguments)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", kind, p.Name, err)
	}
	return &config.Plugin{Name: p.Name, Arguments: args, EvalContext: evalCtx}, nil
}

// extractBodyAttributes converts an arguments block into a map of
// expressions. Arguments are flat; nested blocks are an error.
func extractBodyAttributes(b *argsBlock) (map[string]hcl.Expression, error) {
	exprMap := make(map[string]hcl.Expression)
	if b == nil || b.Body == nil {
		return exprMap, nil
	}
	attrs, diags := b.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	for name, attr := range attrs {
		exprMap[name] = attr.Expr
	}
	return exprMap, nil
}

func evalContext(conv *Converter, s *config.Solver, d *config.Domain) (*hcl.EvalContext, error) {
	solver, err := conv.ToCtyValue(solverVars{
		Mode:      s.Mode,
		BlockSize: s.BlockSize,
		Ops:       s.Ops,
		TSO:       s.TSO,
		T0:        s.T0,
		Tf:        s.Tf,
		Dt:        s.Dt,
	})
	if err != nil {
		return nil, fmt.Errorf("building solver variables: %w", err)
	}
	domain, err := conv.ToCtyValue(domainVars{Rows: d.Rows, Cols: d.Cols, Variables: d.Variables})
	if err != nil {
		return nil, fmt.Errorf("building domain variables: %w", err)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"solver": solver, "domain": domain},
		Functions: functions,
	}, nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
