package lane

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/sweptgrid/internal/buffer"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/device"
	"github.com/specialistvlad/sweptgrid/internal/geometry"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// countKernel writes src+1 at every point.
var countKernel = kernel.Func(func(f kernel.Field, pts []geometry.Point, src, counter int) error {
	for _, p := range pts {
		f.Set(counter, 0, p.Row, p.Col, f.At(src, 0, p.Row, p.Col)+1)
	}
	return nil
})

func newHost(t *testing.T) *buffer.Buffer {
	t.Helper()
	b, err := buffer.New(buffer.Spec{Capacity: 4, Vars: 1, Cols: 16, Owned: buffer.Range{Hi: 16}})
	require.NoError(t, err)
	return b
}

func upPhase(t *testing.T) Phase {
	t.Helper()
	g, err := geometry.Build(8, 1)
	require.NoError(t, err)
	return Phase{Name: "up", Sets: g.Up}
}

func snapshot(t *testing.T, b *buffer.Buffer, level int) []float64 {
	t.Helper()
	vals, err := b.Read(level, buffer.Region{Rows: b.Owned(), Cols: buffer.Range{Hi: 16}})
	require.NoError(t, err)
	return vals
}

func TestCPULane_DispatchUpPyramid(t *testing.T) {
	ctx := testContext()
	host := newHost(t)
	cfg := Config{Host: host, Rows: buffer.Range{Hi: 16}, BlockSize: 8, Kernel: countKernel, Params: kernel.Params{Vars: 1}}
	l := NewCPU(ctx, cfg, 3)
	defer l.Close()

	require.NoError(t, l.Dispatch(ctx, upPhase(t)))

	assert.Equal(t, 3.0, host.At(3, 0, 8+3, 8+4), "apex of block (8,8)")
	assert.Equal(t, 1.0, host.At(1, 0, 1, 1))
	assert.Equal(t, 0.0, host.At(1, 0, 0, 0), "outside the first up set")
	assert.Equal(t, 0.0, host.At(2, 0, 1, 1), "outside the second up set")
	assert.Equal(t, CPU, l.Kind())
}

func TestGPULane_MatchesCPULane(t *testing.T) {
	ctx := testContext()
	cpuHost, gpuHost := newHost(t), newHost(t)
	base := Config{Rows: buffer.Range{Hi: 16}, BlockSize: 8, Kernel: countKernel, Params: kernel.Params{Vars: 1}}

	cpuCfg := base
	cpuCfg.Host = cpuHost
	cpu := NewCPU(ctx, cpuCfg, 2)
	defer cpu.Close()

	gpuCfg := base
	gpuCfg.Host = gpuHost
	dev := device.Enumerate(1, nil)[0]
	gpu, err := NewGPU(ctx, gpuCfg, dev, 0)
	require.NoError(t, err)
	defer gpu.Close()

	g, err := geometry.Build(8, 1)
	require.NoError(t, err)
	phases := []Phase{
		{Name: "up", Sets: g.Up},
		{Name: "ybridge", Sets: g.YBridge, ColOffset: 4},
	}
	for _, p := range phases {
		require.NoError(t, cpu.Dispatch(ctx, p))
		require.NoError(t, gpu.Dispatch(ctx, p))
	}

	for level := 1; level <= 3; level++ {
		if diff := cmp.Diff(snapshot(t, cpuHost, level), snapshot(t, gpuHost, level)); diff != "" {
			t.Fatalf("level %d differs (-cpu +gpu):\n%s", level, diff)
		}
	}
	assert.Equal(t, int64(2), dev.Syncs(), "one synchronization per phase")
	assert.Equal(t, GPU, gpu.Kind())
}

func TestGPULane_ReadsExtensionRows(t *testing.T) {
	ctx := testContext()
	host, err := buffer.New(buffer.Spec{Capacity: 2, Vars: 1, Cols: 8, Owned: buffer.Range{Hi: 16}, Halo: 1})
	require.NoError(t, err)
	for c := 0; c < 8; c++ {
		host.Set(0, 0, 7, c, 5)
	}
	below := kernel.Func(func(f kernel.Field, pts []geometry.Point, src, counter int) error {
		for _, p := range pts {
			f.Set(counter, 0, p.Row, p.Col, f.At(src, 0, p.Row-1, p.Col))
		}
		return nil
	})
	cfg := Config{Host: host, Rows: buffer.Range{Lo: 8, Hi: 16}, BlockSize: 8, Kernel: below, Params: kernel.Params{Vars: 1}}
	gpu, err := NewGPU(ctx, cfg, device.Enumerate(1, nil)[0], 1)
	require.NoError(t, err)

	full := geometry.Set{}
	for c := 0; c < 8; c++ {
		full = append(full, geometry.Point{Row: 0, Col: c})
	}
	require.NoError(t, gpu.Dispatch(ctx, Phase{Name: "step", Sets: []geometry.Set{full}}))

	assert.Equal(t, 5.0, host.At(1, 0, 8, 3))
}

func TestDispatch_KernelFailure(t *testing.T) {
	ctx := testContext()
	boom := errors.New("boom")
	failing := kernel.Func(func(f kernel.Field, pts []geometry.Point, src, counter int) error {
		if len(pts) > 0 && pts[0].Row >= 8 {
			return boom
		}
		return nil
	})
	nonFinite := kernel.Func(func(f kernel.Field, pts []geometry.Point, src, counter int) error {
		for _, p := range pts {
			f.Set(counter, 0, p.Row, p.Col, math.NaN())
		}
		return nil
	})

	for name, k := range map[string]kernel.Kernel{"error": failing, "nan": nonFinite} {
		t.Run(name+"/cpu", func(t *testing.T) {
			cfg := Config{Host: newHost(t), Rows: buffer.Range{Hi: 16}, BlockSize: 8, Kernel: k, Params: kernel.Params{Vars: 1}}
			l := NewCPU(ctx, cfg, 2)
			defer l.Close()

			err := l.Dispatch(ctx, upPhase(t))
			require.Error(t, err)
			assert.True(t, runerr.IsKind(err, runerr.Computation), "got %v", err)
		})
		t.Run(name+"/gpu", func(t *testing.T) {
			cfg := Config{Host: newHost(t), Rows: buffer.Range{Hi: 16}, BlockSize: 8, Kernel: k, Params: kernel.Params{Vars: 1}}
			l, err := NewGPU(ctx, cfg, device.Enumerate(1, nil)[0], 0)
			require.NoError(t, err)

			err = l.Dispatch(ctx, upPhase(t))
			require.Error(t, err)
			assert.True(t, runerr.IsKind(err, runerr.Computation), "got %v", err)
		})
	}
}

func TestCPULane_EmptyBandAndClose(t *testing.T) {
	ctx := testContext()
	cfg := Config{Host: newHost(t), Rows: buffer.Range{Lo: 8, Hi: 8}, BlockSize: 8, Kernel: countKernel, Params: kernel.Params{Vars: 1}}
	l := NewCPU(ctx, cfg, 1)

	assert.NoError(t, l.Dispatch(ctx, upPhase(t)))
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close(), "Close is idempotent")
}

func TestCPULane_PoolSizedToBlocks(t *testing.T) {
	ctx := testContext()
	testCases := []struct {
		name    string
		rows    buffer.Range
		workers int
		want    int
	}{
		{name: "more cores than blocks", rows: buffer.Range{Hi: 16}, workers: 16, want: 4},
		{name: "fewer cores than blocks", rows: buffer.Range{Hi: 16}, workers: 3, want: 3},
		{name: "one block row", rows: buffer.Range{Lo: 8, Hi: 16}, workers: 8, want: 2},
		{name: "empty band", rows: buffer.Range{Lo: 8, Hi: 8}, workers: 4, want: 1},
		{name: "no cores", rows: buffer.Range{Hi: 16}, workers: 0, want: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{Host: newHost(t), Rows: tc.rows, BlockSize: 8, Kernel: countKernel, Params: kernel.Params{Vars: 1}}

			l := NewCPU(ctx, cfg, tc.workers)
			defer l.Close()

			assert.Equal(t, tc.want, l.Workers())
		})
	}
}

func TestPhaseLevels(t *testing.T) {
	p := Phase{Counter: 6, Sets: make([]geometry.Set, 4)}
	assert.Equal(t, buffer.Range{Lo: 7, Hi: 11}, p.Levels())
}
