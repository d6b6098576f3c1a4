package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/specialistvlad/sweptgrid/internal/buffer"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/device"
	"github.com/specialistvlad/sweptgrid/internal/exchange"
	"github.com/specialistvlad/sweptgrid/internal/geometry"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/lane"
	"github.com/specialistvlad/sweptgrid/internal/metrics"
	"github.com/specialistvlad/sweptgrid/internal/output"
	"github.com/specialistvlad/sweptgrid/internal/partition"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
	"golang.org/x/sync/errgroup"
)

// Env is everything node specific the scheduler works with.
type Env struct {
	Assignment partition.Assignment
	Exchanger  *exchange.Exchanger
	Kernel     kernel.Kernel
	Initial    kernel.Initial
	Writer     output.Writer
	// Devices must hold at least one device per entry of
	// Assignment.GPURows.
	Devices []*device.Device
	Cores   int
	// Recorder may be nil.
	Recorder metrics.Recorder
}

// Result reports what a run produced.
type Result struct {
	Plan
	WriteOuts int
	// EndTime is the simulation time of the last full level written.
	EndTime float64
}

// Scheduler runs one node.
type Scheduler struct {
	cfg   Config
	env   Env
	plan  Plan
	geo   *geometry.Geometry
	buf   *buffer.Buffer
	lanes []lane.Lane

	written   int
	writeOuts int
}

// New validates the configuration, allocates the buffer and starts the
// node's lanes.
func New(ctx context.Context, cfg Config, env Env) (*Scheduler, error) {
	const op = "scheduler"
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if env.Exchanger == nil || env.Kernel == nil || env.Initial == nil || env.Writer == nil {
		return nil, runerr.New(runerr.Configuration, op, "exchanger, kernel, initial condition and writer are all required")
	}
	if env.Recorder == nil {
		env.Recorder = metrics.Nop{}
	}
	a := env.Assignment
	if a.Rows <= 0 || a.Rows%cfg.BlockSize != 0 {
		return nil, runerr.New(runerr.Configuration, op, "rank %d owns %d rows, not a positive multiple of block size %d", a.Rank, a.Rows, cfg.BlockSize)
	}
	steps, err := cfg.Steps()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{cfg: cfg, env: env}
	spec := buffer.Spec{Vars: cfg.Vars, Cols: cfg.Cols, Owned: buffer.Range{Hi: a.Rows}}
	ext := 0
	switch cfg.Mode {
	case Swept:
		if s.geo, err = geometry.Build(cfg.BlockSize, cfg.Ops); err != nil {
			return nil, err
		}
		s.plan = SweptPlan(steps, cfg.TSO, s.geo.MPSS)
		spec.Capacity = 2*s.geo.MPSS + cfg.TSO + 1
	case Standard:
		if cfg.Ops > a.Rows {
			return nil, runerr.New(runerr.Configuration, op, "ops %d exceeds the %d rows of rank %d", cfg.Ops, a.Rows, a.Rank)
		}
		s.plan = StandardPlan(steps, cfg.TSO)
		spec.Capacity = cfg.TSO + 1
		spec.Halo = cfg.Ops
		ext = cfg.Ops
	}
	if s.buf, err = buffer.New(spec); err != nil {
		return nil, runerr.Wrap(runerr.Configuration, op, err)
	}
	if err := s.startLanes(ctx, ext); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("Scheduler ready.",
		"mode", cfg.Mode,
		"row_start", a.RowStart,
		"rows", a.Rows,
		"lanes", len(s.lanes),
		"mpss", s.plan.MPSS,
		"mgst", s.plan.MGST,
		"buffer", humanize.Bytes(s.buf.Bytes()),
	)
	return s, nil
}

// startLanes lays the node's bands out GPU first, in device order, then the
// CPU band.
func (s *Scheduler) startLanes(ctx context.Context, ext int) error {
	a := s.env.Assignment
	if len(a.GPURows) > len(s.env.Devices) {
		return runerr.New(runerr.Resource, "scheduler", "rank %d was assigned %d devices but sees %d", a.Rank, len(a.GPURows), len(s.env.Devices))
	}
	band := func(lo, rows int) lane.Config {
		return lane.Config{
			Host:      s.buf,
			Rows:      buffer.Range{Lo: lo, Hi: lo + rows},
			BlockSize: s.cfg.BlockSize,
			Kernel:    s.env.Kernel,
			Params:    kernel.Params{Ops: s.cfg.Ops, TSO: s.cfg.TSO, Vars: s.cfg.Vars, Dt: s.cfg.Dt},
		}
	}

	lo := 0
	for i, rows := range a.GPURows {
		if rows == 0 {
			continue
		}
		l, err := lane.NewGPU(ctx, band(lo, rows), s.env.Devices[i], ext)
		if err != nil {
			return errors.Join(err, s.Close())
		}
		s.lanes = append(s.lanes, l)
		lo += rows
	}
	if a.CPURows > 0 {
		s.lanes = append(s.lanes, lane.NewCPU(ctx, band(lo, a.CPURows), s.env.Cores))
		lo += a.CPURows
	}
	if lo != a.Rows {
		err := runerr.New(runerr.Configuration, "scheduler", "lanes of rank %d cover %d of its %d rows", a.Rank, lo, a.Rows)
		return errors.Join(err, s.Close())
	}
	return nil
}

// Plan returns the level plan of the run.
func (s *Scheduler) Plan() Plan { return s.plan }

// Buffer exposes the node's time buffer.
func (s *Scheduler) Buffer() *buffer.Buffer { return s.buf }

// Run executes the whole schedule. It must be called once.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	if s.plan.Produced > s.plan.Levels {
		logger.Warn("Swept schedule runs past the requested end time.",
			"requested_tf", s.cfg.Tf,
			"adjusted_tf", s.endTime(),
			"requested_levels", s.plan.Levels,
			"produced_levels", s.plan.Produced,
		)
	}
	logger.Info("Run starting.", "steps", s.plan.Steps, "levels", s.plan.Produced)
	start := time.Now()

	s.loadInitial()
	if s.cfg.Mode == Standard {
		if err := s.env.Exchanger.SwapHalos(ctx, s.buf, s.cfg.Ops); err != nil {
			return nil, err
		}
	}
	if err := s.writeOut(ctx, 0); err != nil {
		return nil, err
	}

	var err error
	if s.cfg.Mode == Swept {
		err = s.runSwept(ctx)
	} else {
		err = s.runStandard(ctx)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Plan: s.plan, WriteOuts: s.writeOuts, EndTime: s.endTime()}
	logger.Info("Run finished.", "write_outs", res.WriteOuts, "end_time", res.EndTime, "elapsed", time.Since(start))
	return res, nil
}

func (s *Scheduler) endTime() float64 {
	return s.cfg.T0 + float64(s.plan.Produced/s.cfg.TSO)*s.cfg.Dt
}

// Close stops every lane.
func (s *Scheduler) Close() error {
	var errs []error
	for _, l := range s.lanes {
		errs = append(errs, l.Close())
	}
	s.lanes = nil
	return errors.Join(errs...)
}

func (s *Scheduler) loadInitial() {
	a := s.env.Assignment
	for v := 0; v < s.cfg.Vars; v++ {
		for r := 0; r < a.Rows; r++ {
			for c := 0; c < s.cfg.Cols; c++ {
				s.buf.Set(0, v, r, c, s.env.Initial.Value(v, a.RowStart+r, c))
			}
		}
	}
}

// dispatch runs a phase on every lane and waits for all of them.
func (s *Scheduler) dispatch(ctx context.Context, p lane.Phase) error {
	ctxlog.FromContext(ctx).Debug("Dispatching phase.", "phase", p.Name, "levels", p.Levels(), "col_offset", p.ColOffset)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range s.lanes {
		g.Go(func() error { return l.Dispatch(gctx, p) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("phase %s from level %d: %w", p.Name, p.Counter, err)
	}
	s.env.Recorder.ObservePhase(p.Name, time.Since(start))
	return nil
}

// writeOut hands one full level of the owned rows to the writer.
func (s *Scheduler) writeOut(ctx context.Context, level int) error {
	a := s.env.Assignment
	cols := buffer.Range{Hi: s.cfg.Cols}
	values, err := s.buf.Read(level, buffer.Region{Rows: s.buf.Owned(), Cols: cols})
	if err != nil {
		return runerr.Wrap(runerr.Computation, "write-out", fmt.Errorf("level %d: %w", level, err))
	}
	err = s.env.Writer.WriteSlice(ctx, output.Slice{
		Rank:         a.Rank,
		WriteCounter: level / s.cfg.TSO,
		Level:        level,
		Rows:         buffer.Range{Lo: a.RowStart, Hi: a.RowStart + a.Rows},
		Cols:         cols,
		Vars:         s.cfg.Vars,
		Values:       values,
	})
	if err != nil {
		return fmt.Errorf("writing level %d: %w", level, err)
	}
	s.written = level
	s.writeOuts++
	return nil
}

// flush writes every full level up to limit not written yet.
func (s *Scheduler) flush(ctx context.Context, limit int) error {
	for level := s.written + s.cfg.TSO; level <= limit; level += s.cfg.TSO {
		if err := s.writeOut(ctx, level); err != nil {
			return err
		}
	}
	return nil
}
