package lane

import (
	"context"
	"sync"

	"github.com/specialistvlad/sweptgrid/internal/buffer"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/geometry"
)

type task struct {
	ctx    context.Context
	cancel context.CancelFunc
	phase  *Phase
	block  geometry.Block
	wg     *sync.WaitGroup
	errs   *firstError
}

type firstError struct {
	mu  sync.Mutex
	err error
}

func (f *firstError) set(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

// CPULane is a persistent worker pool writing straight into the host buffer.
type CPULane struct {
	cfg     Config
	blocks  []geometry.Block
	tasks   chan task
	size    int
	workers sync.WaitGroup
	once    sync.Once
}

// NewCPU starts a pool of at most workers goroutines, never more than the
// band has blocks. The pool lives until Close.
func NewCPU(ctx context.Context, cfg Config, workers int) *CPULane {
	blocks := cfg.blocks()
	workers = max(min(workers, len(blocks)), 1)
	l := &CPULane{
		cfg:    cfg,
		blocks: blocks,
		tasks:  make(chan task),
		size:   workers,
	}
	ctxlog.FromContext(ctx).Debug("CPU lane starting.", "workers", workers, "rows", cfg.Rows, "blocks", len(l.blocks))
	for i := 0; i < workers; i++ {
		l.workers.Add(1)
		go l.worker(ctx, i)
	}
	return l
}

// Workers returns the pool size.
func (l *CPULane) Workers() int { return l.size }

// worker is the processing loop for one pool worker.
func (l *CPULane) worker(ctx context.Context, workerID int) {
	defer l.workers.Done()
	logger := ctxlog.FromContext(ctx)
	var scratch []geometry.Point

	for t := range l.tasks {
		if t.ctx.Err() != nil {
			t.wg.Done()
			continue
		}
		var err error
		scratch, err = runBlock(l.cfg.Host, l.cfg, *t.phase, t.block, scratch)
		if err != nil {
			logger.Error("Block computation failed.", "workerID", workerID, "phase", t.phase.Name, "error", err)
			t.errs.set(err)
			t.cancel()
		}
		t.wg.Done()
	}
}

// Kind implements Lane.
func (l *CPULane) Kind() Kind { return CPU }

// Rows implements Lane.
func (l *CPULane) Rows() buffer.Range { return l.cfg.Rows }

// Dispatch runs the phase on every block and returns once all are done. The
// first failure cancels the blocks not yet started.
func (l *CPULane) Dispatch(ctx context.Context, p Phase) error {
	if len(l.blocks) == 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := &firstError{}
	wg.Add(len(l.blocks))
	for _, b := range l.blocks {
		l.tasks <- task{ctx: ctx, cancel: cancel, phase: &p, block: b, wg: &wg, errs: errs}
	}
	wg.Wait()

	if errs.err != nil {
		return errs.err
	}
	return ctx.Err()
}

// Close stops the workers.
func (l *CPULane) Close() error {
	l.once.Do(func() {
		close(l.tasks)
		l.workers.Wait()
	})
	return nil
}
