package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/sweptgrid/internal/config"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/geometry"
	hcladapter "github.com/specialistvlad/sweptgrid/internal/hcl"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type scaleArgs struct {
	Factor float64 `arg:"factor"`
	Offset float64 `arg:"offset,optional"`
	Note   string  `arg:"-"`
}

type scaleKernel struct{ args scaleArgs }

func (scaleKernel) Step(kernel.Field, []geometry.Point, int, int) error { return nil }

type testModule struct{}

func (testModule) Register(r *Registry) {
	r.RegisterEquation("scale", &RegisteredEquation{
		NewArgs: func() any { return &scaleArgs{Offset: 1} },
		New: func(args any, p kernel.Params) (kernel.Kernel, error) {
			a := args.(*scaleArgs)
			if a.Factor == 0 {
				return nil, errors.New("factor must not be zero")
			}
			return scaleKernel{args: *a}, nil
		},
	})
	r.RegisterInitial("zero", &RegisteredInitial{
		New: func(any, kernel.Domain) (kernel.Initial, error) {
			return kernel.InitialFunc(func(int, int, int) float64 { return 0 }), nil
		},
	})
}

func setup(t *testing.T) (context.Context, *Registry) {
	t.Helper()
	ctx := testContext()
	r := New()
	testModule{}.Register(r)
	require.NoError(t, r.ValidateRegistry(ctx))
	return ctx, r
}

func plugin(t *testing.T, name string, args map[string]string) *config.Plugin {
	t.Helper()
	exprs := make(map[string]hcl.Expression, len(args))
	for k, src := range args {
		e, diags := hclsyntax.ParseExpression([]byte(src), "run.hcl", hcl.Pos{Line: 1, Column: 1})
		require.False(t, diags.HasErrors(), diags.Error())
		exprs[k] = e
	}
	return &config.Plugin{Name: name, Arguments: exprs}
}

func TestKernel_DecodesArguments(t *testing.T) {
	// Arrange
	ctx, r := setup(t)

	// Act
	k, err := r.Kernel(ctx, hcladapter.NewConverter(), plugin(t, "scale", map[string]string{"factor": "2"}), kernel.Params{})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, scaleKernel{args: scaleArgs{Factor: 2, Offset: 1}}, k)
}

func TestKernel_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		plugin  string
		args    map[string]string
		wantErr string
	}{
		{name: "unknown equation", plugin: "wave", wantErr: `unknown equation "wave", registered: [scale]`},
		{name: "unsupported argument", plugin: "scale", args: map[string]string{"factor": "1", "note": `"x"`}, wantErr: `unsupported argument "note", supported: [factor offset]`},
		{name: "missing argument", plugin: "scale", wantErr: `missing required argument "factor"`},
		{name: "constructor failure", plugin: "scale", args: map[string]string{"factor": "0"}, wantErr: "factor must not be zero"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			ctx, r := setup(t)

			// Act
			_, err := r.Kernel(ctx, hcladapter.NewConverter(), plugin(t, tc.plugin, tc.args), kernel.Params{})

			// Assert
			require.Error(t, err)
			assert.True(t, runerr.IsKind(err, runerr.Configuration), "got %v", err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestInitial_WithoutArguments(t *testing.T) {
	ctx, r := setup(t)

	ic, err := r.Initial(ctx, hcladapter.NewConverter(), plugin(t, "zero", nil), kernel.Domain{Rows: 1, Cols: 1, Vars: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, ic.Value(0, 0, 0))

	_, err = r.Initial(ctx, hcladapter.NewConverter(), plugin(t, "zero", map[string]string{"value": "1"}), kernel.Domain{})
	assert.ErrorContains(t, err, `unsupported argument "value", supported: []`)
}

func TestValidateRegistry_RejectsUntaggedFields(t *testing.T) {
	// Arrange
	type badArgs struct {
		Alpha float64
		Beta  chan int `arg:"beta"`
	}
	r := New()
	r.RegisterEquation("bad", &RegisteredEquation{
		NewArgs: func() any { return &badArgs{} },
		New:     func(any, kernel.Params) (kernel.Kernel, error) { return nil, nil },
	})
	r.RegisterInitial("broken", &RegisteredInitial{})

	// Act
	err := r.ValidateRegistry(testContext())

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "equation 'bad': field 'Alpha' has no arg tag")
	assert.Contains(t, err.Error(), "equation 'bad', input 'beta': could not imply cty type")
	assert.Contains(t, err.Error(), "initial condition 'broken': no constructor")
}

func TestRegister_DuplicatePanics(t *testing.T) {
	r := New()
	testModule{}.Register(r)

	assert.Panics(t, func() { testModule{}.Register(r) })
	assert.Equal(t, []string{"scale"}, r.Equations())
	assert.Equal(t, []string{"zero"}, r.Initials())
}
