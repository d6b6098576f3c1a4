package lane

import (
	"context"
	"fmt"

	"github.com/specialistvlad/sweptgrid/internal/buffer"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/device"
	"github.com/specialistvlad/sweptgrid/internal/geometry"
)

// GPULane drives one device. Every dispatch uploads the band once, runs each
// block through the whole set sequence on the device, synchronizes once and
// downloads the produced levels.
type GPULane struct {
	cfg    Config
	dev    *device.Device
	ext    int
	mem    *buffer.Buffer
	blocks []geometry.Block
}

// NewGPU allocates device memory for the band plus ext read-only rows on each
// side.
func NewGPU(ctx context.Context, cfg Config, dev *device.Device, ext int) (*GPULane, error) {
	spec := cfg.Host.Spec()
	mem, err := dev.Alloc(buffer.Spec{
		Capacity: spec.Capacity,
		Vars:     spec.Vars,
		Cols:     spec.Cols,
		Owned:    cfg.Rows,
		Halo:     ext,
	})
	if err != nil {
		return nil, fmt.Errorf("allocating band on %s: %w", dev.Name(), err)
	}
	l := &GPULane{cfg: cfg, dev: dev, ext: ext, mem: mem, blocks: cfg.blocks()}
	ctxlog.FromContext(ctx).Debug("GPU lane ready.", "device", dev.Name(), "rows", cfg.Rows, "blocks", len(l.blocks))
	return l, nil
}

// Kind implements Lane.
func (l *GPULane) Kind() Kind { return GPU }

// Rows implements Lane.
func (l *GPULane) Rows() buffer.Range { return l.cfg.Rows }

// Device returns the device backing the lane.
func (l *GPULane) Device() *device.Device { return l.dev }

// Dispatch implements Lane.
func (l *GPULane) Dispatch(ctx context.Context, p Phase) error {
	if len(l.blocks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.upload(p); err != nil {
		return err
	}

	l.dev.Launch(len(l.blocks), func(item int) error {
		_, err := runBlock(l.mem, l.cfg, p, l.blocks[item], nil)
		return err
	})
	if err := l.dev.Synchronize(); err != nil {
		ctxlog.FromContext(ctx).Error("Device phase failed.", "device", l.dev.Name(), "phase", p.Name, "error", err)
		return err
	}
	return l.dev.Download(l.cfg.Host, l.mem, l.cfg.Rows, p.Levels())
}

// upload copies the band, every slot, and the extension rows of the levels
// the phase reads. Extension rows belong to other lanes, which may be writing
// the phase's output slots concurrently.
func (l *GPULane) upload(p Phase) error {
	if err := l.dev.Upload(l.mem, l.cfg.Host, l.cfg.Rows); err != nil {
		return err
	}
	if l.ext == 0 {
		return nil
	}
	read := buffer.Range{Lo: l.cfg.Host.Base(), Hi: p.Counter + 1}
	for _, rows := range []buffer.Range{
		{Lo: l.cfg.Rows.Lo - l.ext, Hi: l.cfg.Rows.Lo},
		{Lo: l.cfg.Rows.Hi, Hi: l.cfg.Rows.Hi + l.ext},
	} {
		if err := l.dev.UploadLevels(l.mem, l.cfg.Host, rows, read); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Lane.
func (l *GPULane) Close() error { return nil }
