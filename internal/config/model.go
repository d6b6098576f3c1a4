package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of a run file.
type Model struct {
	Solver   *Solver
	Domain   *Domain
	Equation *Plugin
	Initial  *Plugin
	Nodes    []*Node
	Cluster  *Cluster
	Output   *Output
}

// Solver holds the decomposition and time stepping settings.
type Solver struct {
	Mode             string
	BlockSize        int
	Ops              int
	TSO              int
	Affinity         float64
	T0               float64
	Tf               float64
	Dt               float64
	Periodic         bool
	ExcludeGPUs      []int
	AllowCPUFallback bool
	BarrierTimeout   time.Duration
}

// Domain is the global grid.
type Domain struct {
	Rows      int
	Cols      int
	Variables int
}

// Plugin selects a registered equation or initial condition by name and
// carries its raw arguments.
type Plugin struct {
	Name      string
	Arguments map[string]hcl.Expression
	// EvalContext resolves references such as solver.dt inside arguments.
	EvalContext *hcl.EvalContext
}

// Node declares the resources of one rank, in rank order.
type Node struct {
	Name  string
	Cores int
	GPUs  int
}

// Cluster selects the transport between ranks.
type Cluster struct {
	// Transport is "local" (every rank in this process) or "socketio".
	Transport string
	Hub       string
}

// Output selects where write-outs go.
type Output struct {
	// Format is "memory" or "file".
	Format string
	Path   string
}

// InputDefinition defines a single plugin argument.
type InputDefinition struct {
	Name     string
	Type     cty.Type
	Optional bool
}
