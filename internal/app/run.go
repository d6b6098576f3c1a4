package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/sweptgrid/internal/cluster"
	"github.com/specialistvlad/sweptgrid/internal/cluster/sio"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/output"
	"github.com/specialistvlad/sweptgrid/internal/partition"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
	"github.com/specialistvlad/sweptgrid/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

// Report summarises a finished run.
type Report struct {
	RunID string
	// Partition is the plan every rank agreed on.
	Partition *partition.Plan
	// Results is indexed by rank. Ranks that did not run in this process
	// are nil.
	Results []*scheduler.Result
}

// job is everything the ranks of one run share.
type job struct {
	solver         scheduler.Config
	kernel         kernel.Kernel
	initial        kernel.Initial
	input          partition.Input
	barrierTimeout time.Duration
	outputPath     string
}

// Run executes the loaded run file over the configured transport.
func (a *App) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("App.Run method started.")

	if err := a.startHealthcheckServer(ctx, a.cfg.HealthcheckPort); err != nil {
		return nil, runerr.Wrap(runerr.Resource, "healthcheck", err)
	}
	defer a.closeHealthcheckServer(ctx)

	j, err := a.prepare(ctx)
	if err != nil {
		return nil, err
	}

	n := len(a.model.Nodes)
	report := &Report{RunID: runID, Results: make([]*scheduler.Result, n)}
	logger.Info("🚀 Starting run.",
		"mode", j.solver.Mode,
		"equation", a.model.Equation.Name,
		"initial", a.model.Initial.Name,
		"nodes", n,
		"transport", a.model.Cluster.Transport,
	)

	switch a.model.Cluster.Transport {
	case "socketio":
		err = a.runSocketIO(ctx, j, report)
	default:
		err = a.runLocal(ctx, j, report)
	}
	if err != nil {
		logger.Error("Run failed.", "error", err)
		return report, err
	}

	for _, res := range report.Results {
		if res != nil {
			logger.Info("🏁 Run finished.", "end_time", res.EndTime, "write_outs", res.WriteOuts, "levels", res.Produced)
			break
		}
	}
	return report, nil
}

// prepare builds the plugins and the settings every rank shares.
func (a *App) prepare(ctx context.Context) (*job, error) {
	s, d := a.model.Solver, a.model.Domain

	k, err := a.registry.Kernel(ctx, a.converter, a.model.Equation, kernel.Params{Ops: s.Ops, TSO: s.TSO, Vars: d.Variables, Dt: s.Dt})
	if err != nil {
		return nil, err
	}
	ic, err := a.registry.Initial(ctx, a.converter, a.model.Initial, kernel.Domain{Rows: d.Rows, Cols: d.Cols, Vars: d.Variables})
	if err != nil {
		return nil, err
	}

	a.memory = nil
	if a.model.Output.Format == "memory" {
		a.memory = output.NewMemory(d.Rows, d.Cols, d.Variables)
	}

	return &job{
		solver: scheduler.Config{
			Mode:      scheduler.Mode(s.Mode),
			BlockSize: s.BlockSize,
			Ops:       s.Ops,
			TSO:       s.TSO,
			T0:        s.T0,
			Tf:        s.Tf,
			Dt:        s.Dt,
			Cols:      d.Cols,
			Vars:      d.Variables,
			Periodic:  s.Periodic,
		},
		kernel:  k,
		initial: ic,
		input: partition.Input{
			Rows:             d.Rows,
			Cols:             d.Cols,
			BlockSize:        s.BlockSize,
			Affinity:         s.Affinity,
			AllowCPUFallback: s.AllowCPUFallback,
		},
		barrierTimeout: s.BarrierTimeout,
		outputPath:     cmp.Or(a.cfg.OutputPath, a.model.Output.Path),
	}, nil
}

// runLocal runs every rank as a goroutine of this process.
func (a *App) runLocal(ctx context.Context, j *job, report *Report) error {
	n := len(a.model.Nodes)
	if a.cfg.Rank >= 0 {
		ctxlog.FromContext(ctx).Warn("Ignoring rank: the local transport runs every rank in this process.", "rank", a.cfg.Rank)
	}

	network := cluster.NewNetwork(n)
	errs := make([]error, n)
	var g errgroup.Group
	for rank := range n {
		g.Go(func() error {
			comm := cluster.NewComm(rank, n, network.Link(rank), j.barrierTimeout)
			defer comm.Close()
			res, plan, err := a.runNode(ctx, comm, j)
			if err != nil {
				comm.Abort(err)
				errs[rank] = err
				return err
			}
			report.Results[rank] = res
			if rank == 0 {
				report.Partition = plan
			}
			return nil
		})
	}
	if g.Wait() == nil {
		return nil
	}
	return rootCause(errs)
}

// rootCause prefers the error that made a rank abort over the aborts it
// caused on its peers.
func rootCause(errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, cluster.ErrAborted) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// runSocketIO runs the single rank selected on the command line and talks
// to its peers through a hub.
func (a *App) runSocketIO(ctx context.Context, j *job, report *Report) error {
	const op = "cluster"
	n, rank := len(a.model.Nodes), a.cfg.Rank
	if rank < 0 || rank >= n {
		return runerr.New(runerr.Configuration, op, "the socketio transport needs a rank between 0 and %d, got %d", n-1, rank)
	}

	hubURL := cmp.Or(a.cfg.Hub, a.model.Cluster.Hub)
	if a.cfg.ServeHub != "" {
		addr, stop, err := serveHub(ctx, a.cfg.ServeHub, j.barrierTimeout)
		if err != nil {
			return runerr.Wrap(runerr.Communication, op, err)
		}
		defer stop()
		if hubURL == "" {
			hubURL = "http://" + addr
		}
	}
	if hubURL == "" {
		return runerr.New(runerr.Configuration, op, "the socketio transport needs a hub URL")
	}

	link, err := sio.Dial(ctx, hubURL, rank, n)
	if err != nil {
		return runerr.Wrap(runerr.Communication, op, err)
	}
	comm := cluster.NewComm(rank, n, link, j.barrierTimeout)
	defer comm.Close()

	res, plan, err := a.runNode(ctx, comm, j)
	if err == nil {
		// The hub may live in this process; keep it up until every rank is done.
		err = comm.Barrier(ctx)
	}
	if err != nil {
		comm.Abort(err)
		return err
	}
	report.Results[rank] = res
	report.Partition = plan
	return nil
}

// serveHub starts a socketio hub on addr and returns the address it listens
// on. The returned stop waits up to drain for every rank to leave.
func serveHub(ctx context.Context, addr string, drain time.Duration) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("serving hub: %w", err)
	}
	hub := sio.NewHub(ctx)
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", hub.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := ctxlog.FromContext(ctx)
	go func() {
		logger.Info("Hub serving.", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Hub failed unexpectedly.", "error", err)
		}
	}()
	stop := func() {
		if drain <= 0 {
			drain = time.Minute
		}
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drain)
		defer cancel()
		if err := hub.WaitIdle(drainCtx); err != nil {
			logger.Warn("Stopping the hub before every rank left.", "error", err)
		}
		shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}
	return ln.Addr().String(), stop, nil
}
