package hcl

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/sweptgrid/internal/config"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const fullRun = `
solver {
  mode               = "standard"
  block_size         = 8
  ops                = 2
  tso                = 2
  affinity           = 0.5
  t0                 = 0
  tf                 = 1
  dt                 = 0.25
  periodic           = false
  exclude_gpus       = [1]
  allow_cpu_fallback = true
  barrier_timeout    = "30s"
}

domain {
  rows      = 32
  cols      = 16
  variables = 2
}

equation "heat" {
  arguments {
    alpha = 0.1
  }
}

initial "gaussian" {
  arguments {
    amplitude = pow(2, 3)
    sigma     = solver.block_size / 2
  }
}

node "a" {
  cores = 2
}

node "b" {
  gpus = 2
}

cluster {
  transport = "socketio"
  hub       = "http://127.0.0.1:9000"
}

output {
  format = "file"
  path   = "out"
}
`

const minimalRun = `
solver {
  block_size = 4
  tf         = 1
  dt         = 0.5
}

domain {
  rows = 8
  cols = 8
}

equation "identity" {}

initial "constant" {
  arguments {
    value = 1
  }
}

node "only" {}
`

func TestLoad_FullRunFile(t *testing.T) {
	// Arrange
	ctx := testContext()
	path := writeFile(t, t.TempDir(), "run.hcl", fullRun)

	// Act
	model, conv, err := NewLoader().Load(ctx, path)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, conv)
	wantSolver := &config.Solver{
		Mode: "standard", BlockSize: 8, Ops: 2, TSO: 2, Affinity: 0.5,
		T0: 0, Tf: 1, Dt: 0.25, Periodic: false, ExcludeGPUs: []int{1},
		AllowCPUFallback: true, BarrierTimeout: 30 * time.Second,
	}
	if diff := cmp.Diff(wantSolver, model.Solver); diff != "" {
		t.Errorf("solver mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, &config.Domain{Rows: 32, Cols: 16, Variables: 2}, model.Domain)
	assert.Equal(t, []*config.Node{{Name: "a", Cores: 2}, {Name: "b", Cores: 1, GPUs: 2}}, model.Nodes)
	assert.Equal(t, &config.Cluster{Transport: "socketio", Hub: "http://127.0.0.1:9000"}, model.Cluster)
	assert.Equal(t, &config.Output{Format: "file", Path: "out"}, model.Output)
	assert.Equal(t, "heat", model.Equation.Name)
	assert.Contains(t, model.Equation.Arguments, "alpha")
	assert.Equal(t, "gaussian", model.Initial.Name)
	assert.Len(t, model.Initial.Arguments, 2)
}

func TestLoad_Defaults(t *testing.T) {
	// Arrange
	ctx := testContext()
	dir := t.TempDir()
	writeFile(t, dir, "run.hcl", minimalRun)
	writeFile(t, dir, "notes.txt", "not a run file")

	// Act
	model, _, err := NewLoader().Load(ctx, dir)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "swept", model.Solver.Mode)
	assert.Equal(t, 1, model.Solver.Ops)
	assert.Equal(t, 1, model.Solver.TSO)
	assert.True(t, model.Solver.Periodic)
	assert.Equal(t, 5*time.Minute, model.Solver.BarrierTimeout)
	assert.Equal(t, 1, model.Domain.Variables)
	assert.Equal(t, 1, model.Nodes[0].Cores)
	assert.Equal(t, "local", model.Cluster.Transport)
	assert.Equal(t, "memory", model.Output.Format)
	assert.Empty(t, model.Equation.Arguments)
}

func TestLoad_ArgumentsSeeSolverAndDomain(t *testing.T) {
	// Arrange
	ctx := testContext()
	path := writeFile(t, t.TempDir(), "run.hcl", fullRun)
	model, conv, err := NewLoader().Load(ctx, path)
	require.NoError(t, err)

	var args struct {
		Amplitude float64 `arg:"amplitude"`
		Sigma     float64 `arg:"sigma"`
	}
	defs := map[string]*config.InputDefinition{
		"amplitude": {Name: "amplitude", Type: cty.Number},
		"sigma":     {Name: "sigma", Type: cty.Number},
	}

	// Act
	err = conv.DecodeBody(ctx, &args, model.Initial.Arguments, defs, model.Initial.EvalContext)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 8.0, args.Amplitude)
	assert.Equal(t, 4.0, args.Sigma)
}

func TestLoad_SplitAcrossFiles(t *testing.T) {
	// Arrange
	ctx := testContext()
	dir := t.TempDir()
	writeFile(t, dir, "a.hcl", `
solver {
  block_size = 4
  tf         = 1
  dt         = 0.5
}
domain {
  rows = 8
  cols = 8
}
`)
	writeFile(t, dir, "b.hcl", `
equation "identity" {}
initial "constant" {}
node "x" {}
node "y" {}
`)

	// Act
	model, _, err := NewLoader().Load(ctx, dir)

	// Assert
	require.NoError(t, err)
	assert.Len(t, model.Nodes, 2)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no solver",
			content: "domain {\n rows = 8\n cols = 8\n}\nequation \"identity\" {}\ninitial \"constant\" {}\nnode \"a\" {}\n",
			wantErr: "exactly one solver block is required, found 0",
		},
		{
			name:    "no nodes",
			content: "solver {\n block_size = 4\n tf = 1\n dt = 1\n}\ndomain {\n rows = 8\n cols = 8\n}\nequation \"identity\" {}\ninitial \"constant\" {}\n",
			wantErr: "at least one node block is required",
		},
		{
			name:    "duplicate node",
			content: minimalRun + "node \"only\" {}\n",
			wantErr: `node "only" is declared more than once`,
		},
		{
			name:    "second equation",
			content: minimalRun + "equation \"heat\" {}\n",
			wantErr: "exactly one equation block is required, found 2",
		},
		{
			name:    "bad barrier timeout",
			content: "solver {\n block_size = 4\n tf = 1\n dt = 1\n barrier_timeout = \"soon\"\n}\ndomain {\n rows = 8\n cols = 8\n}\nequation \"identity\" {}\ninitial \"constant\" {}\nnode \"a\" {}\n",
			wantErr: "invalid barrier_timeout",
		},
		{
			name:    "unknown transport",
			content: minimalRun + "cluster {\n transport = \"pigeon\"\n}\n",
			wantErr: `unknown transport "pigeon"`,
		},
		{
			name:    "file output without path",
			content: minimalRun + "output {\n format = \"file\"\n}\n",
			wantErr: `format "file" needs a path`,
		},
		{
			name:    "unknown block",
			content: minimalRun + "scheduler {}\n",
			wantErr: "failed to decode HCL file",
		},
		{
			name:    "nested block in arguments",
			content: "solver {\n block_size = 4\n tf = 1\n dt = 1\n}\ndomain {\n rows = 8\n cols = 8\n}\nequation \"identity\" {\n arguments {\n inner {}\n }\n}\ninitial \"constant\" {}\nnode \"a\" {}\n",
			wantErr: `equation "identity"`,
		},
		{
			name:    "syntax error",
			content: "solver {",
			wantErr: "failed to parse HCL file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			ctx := testContext()
			path := writeFile(t, t.TempDir(), "run.hcl", tc.content)

			// Act
			_, _, err := NewLoader().Load(ctx, path)

			// Assert
			require.Error(t, err)
			assert.True(t, runerr.IsKind(err, runerr.Configuration), "got %v", err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_NoFiles(t *testing.T) {
	ctx := testContext()

	_, _, err := NewLoader().Load(ctx, filepath.Join(t.TempDir(), "missing.hcl"))

	require.Error(t, err)
	assert.True(t, runerr.IsKind(err, runerr.Configuration))
	assert.Contains(t, err.Error(), "no .hcl files found")
}
