package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot is used to decode all possible top-level blocks from any file.
// Singleton blocks are slices so duplicates across files can be reported.
type fileRoot struct {
	Solvers   []*solverBlock  `hcl:"solver,block"`
	Domains   []*domainBlock  `hcl:"domain,block"`
	Equations []*pluginBlock  `hcl:"equation,block"`
	Initials  []*pluginBlock  `hcl:"initial,block"`
	Nodes     []*nodeBlock    `hcl:"node,block"`
	Clusters  []*clusterBlock `hcl:"cluster,block"`
	Outputs   []*outputBlock  `hcl:"output,block"`
}

type solverBlock struct {
	Mode             *string `hcl:"mode,optional"`
	BlockSize        int     `hcl:"block_size"`
	Ops              *int    `hcl:"ops,optional"`
	TSO              *int    `hcl:"tso,optional"`
	Affinity         float64 `hcl:"affinity,optional"`
	T0               float64 `hcl:"t0,optional"`
	Tf               float64 `hcl:"tf"`
	Dt               float64 `hcl:"dt"`
	Periodic         *bool   `hcl:"periodic,optional"`
	ExcludeGPUs      []int   `hcl:"exclude_gpus,optional"`
	AllowCPUFallback bool    `hcl:"allow_cpu_fallback,optional"`
	BarrierTimeout   *string `hcl:"barrier_timeout,optional"`
}

type domainBlock struct {
	Rows      int  `hcl:"rows"`
	Cols      int  `hcl:"cols"`
	Variables *int `hcl:"variables,optional"`
}

// pluginBlock is an `equation "name" {}` or `initial "name" {}` block.
type pluginBlock struct {
	Name      string     `hcl:"name,label"`
	Arguments *argsBlock `hcl:"arguments,block"`
}

// argsBlock keeps the arguments undecoded until the plugin's Go type is
// known.
type argsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type nodeBlock struct {
	Name  string `hcl:"name,label"`
	Cores *int   `hcl:"cores,optional"`
	GPUs  int    `hcl:"gpus,optional"`
}

type clusterBlock struct {
	Transport *string `hcl:"transport,optional"`
	Hub       string  `hcl:"hub,optional"`
}

type outputBlock struct {
	Format *string `hcl:"format,optional"`
	Path   string  `hcl:"path,optional"`
}
