package scheduler

import (
	"context"
	"fmt"

	"github.com/specialistvlad/sweptgrid/internal/buffer"
	"github.com/specialistvlad/sweptgrid/internal/lane"
)

// invoke dispatches a phase object and advances its counter.
func (s *Scheduler) invoke(ctx context.Context, p *lane.Phase) error {
	if err := s.dispatch(ctx, *p); err != nil {
		return err
	}
	p.Counter += s.geo.MPSS
	return nil
}

// offsets returns the column offset of the x-bridge and of the phase that
// completes it for swept iteration i. The y-bridge uses the x-bridge's.
func offsets(i, half int) (bridge, center int) {
	if i%2 == 0 {
		return 0, half
	}
	return half, 0
}

func (s *Scheduler) runSwept(ctx context.Context) error {
	var (
		m    = s.geo.MPSS
		half = s.cfg.BlockSize / 2
		x    = s.env.Exchanger
	)

	up := lane.Phase{Name: "up", Sets: s.geo.Up}
	yb := lane.Phase{Name: "y-bridge", Sets: s.geo.YBridge, ColOffset: half}
	if err := s.invoke(ctx, &up); err != nil {
		return err
	}
	if err := s.invoke(ctx, &yb); err != nil {
		return err
	}
	if err := x.Barrier(ctx); err != nil {
		return err
	}

	if err := x.Shift(ctx, s.buf, buffer.Forward, half); err != nil {
		return fmt.Errorf("first forward shift: %w", err)
	}

	xb := lane.Phase{Name: "x-bridge", Sets: s.geo.XBridge}
	oct := lane.Phase{Name: "octahedron", Sets: s.geo.Octahedron}
	next := buffer.Backward
	for i := 0; i < s.plan.MGST; i++ {
		xb.ColOffset, oct.ColOffset = offsets(i, half)
		yb.ColOffset = xb.ColOffset

		if err := s.invoke(ctx, &xb); err != nil {
			return err
		}
		if err := s.invoke(ctx, &oct); err != nil {
			return err
		}
		if err := s.invoke(ctx, &yb); err != nil {
			return err
		}
		if err := x.Barrier(ctx); err != nil {
			return err
		}
		if err := s.rotate(ctx, next, (i+1)*m); err != nil {
			return fmt.Errorf("swept iteration %d: %w", i, err)
		}
		next = next.Opposite()
		s.buf.RollTo((i+1)*m + 1 - s.cfg.TSO)
	}

	n := s.plan.MGST
	down := lane.Phase{Name: "down", Counter: n * m, Sets: s.geo.Down}
	xb.ColOffset, down.ColOffset = offsets(n, half)
	if err := s.invoke(ctx, &xb); err != nil {
		return err
	}
	if err := s.invoke(ctx, &down); err != nil {
		return err
	}
	if err := x.Barrier(ctx); err != nil {
		return err
	}

	if next == buffer.Backward {
		if err := x.Shift(ctx, s.buf, buffer.Backward, half); err != nil {
			return fmt.Errorf("last backward shift: %w", err)
		}
	}
	return s.flush(ctx, s.plan.Produced)
}

// rotate performs one step of the Backward, Forward, ... alternation.
// Write-outs happen in the unshifted frame: a backward rotation returns to it
// before writing, a forward rotation leaves it after writing.
func (s *Scheduler) rotate(ctx context.Context, dir buffer.Side, limit int) error {
	half := s.cfg.BlockSize / 2
	if dir == buffer.Backward {
		if err := s.env.Exchanger.Shift(ctx, s.buf, buffer.Backward, half); err != nil {
			return err
		}
		return s.flush(ctx, limit)
	}
	if err := s.flush(ctx, limit); err != nil {
		return err
	}
	return s.env.Exchanger.Shift(ctx, s.buf, buffer.Forward, half)
}
