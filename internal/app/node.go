package app

import (
	"context"

	"github.com/specialistvlad/sweptgrid/internal/cluster"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/device"
	"github.com/specialistvlad/sweptgrid/internal/exchange"
	"github.com/specialistvlad/sweptgrid/internal/output"
	"github.com/specialistvlad/sweptgrid/internal/partition"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
	"github.com/specialistvlad/sweptgrid/internal/scheduler"
)

// runNode runs one rank from partitioning to the last write-out.
func (a *App) runNode(ctx context.Context, comm *cluster.Comm, j *job) (res *scheduler.Result, plan *partition.Plan, err error) {
	rank := comm.Rank()
	ctx = ctxlog.With(ctx, "rank", rank)
	logger := ctxlog.FromContext(ctx)

	node := a.model.Nodes[rank]
	devs := device.Enumerate(node.GPUs, a.model.Solver.ExcludeGPUs)
	local := partition.Resources{Name: node.Name, Cores: node.Cores, GPUs: len(devs)}
	logger.Debug("Node resources.", "node", node.Name, "cores", node.Cores, "gpus", len(devs))

	plan, err = partition.Coordinate(ctx, comm, local, j.input)
	if err != nil {
		return nil, nil, err
	}
	assignment := plan.Assignments[rank]
	logger.Info("Rows assigned.",
		"row_start", assignment.RowStart,
		"rows", assignment.Rows,
		"gpu_rows", assignment.GPURows,
		"cpu_rows", assignment.CPURows,
	)

	w, closeWriter, err := a.writer(rank, j)
	if err != nil {
		return nil, plan, err
	}
	defer func() {
		if cerr := closeWriter(); cerr != nil && err == nil {
			err = runerr.Wrap(runerr.Resource, "output", cerr)
		}
	}()

	s, err := scheduler.New(ctx, j.solver, scheduler.Env{
		Assignment: assignment,
		Exchanger:  exchange.New(comm, j.solver.Periodic, a.metrics),
		Kernel:     j.kernel,
		Initial:    j.initial,
		Writer:     output.Logged{Next: w, Recorder: a.metrics},
		Devices:    devs,
		Cores:      node.Cores,
		Recorder:   a.metrics,
	})
	if err != nil {
		return nil, plan, err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	res, err = s.Run(ctx)
	return res, plan, err
}

// writer returns the rank's output store and a function releasing it.
func (a *App) writer(rank int, j *job) (output.Writer, func() error, error) {
	if a.memory != nil {
		return a.memory, func() error { return nil }, nil
	}
	f, err := output.NewFile(j.outputPath, rank)
	if err != nil {
		return nil, nil, runerr.Wrap(runerr.Resource, "output", err)
	}
	return f, f.Close, nil
}
