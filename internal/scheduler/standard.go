package scheduler

import (
	"context"

	"github.com/specialistvlad/sweptgrid/internal/geometry"
	"github.com/specialistvlad/sweptgrid/internal/lane"
)

func (s *Scheduler) runStandard(ctx context.Context) error {
	step := lane.Phase{Name: "step", Sets: []geometry.Set{geometry.Full(s.cfg.BlockSize)}}
	for level := 1; level <= s.plan.Levels; level++ {
		s.buf.RollTo(level - s.cfg.TSO)
		step.Counter = level - 1
		if err := s.dispatch(ctx, step); err != nil {
			return err
		}
		if err := s.env.Exchanger.SwapHalos(ctx, s.buf, s.cfg.Ops); err != nil {
			return err
		}
		if level%s.cfg.TSO == 0 {
			if err := s.writeOut(ctx, level); err != nil {
				return err
			}
		}
	}
	return nil
}
