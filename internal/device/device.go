// Package device provides host-emulated accelerators.
//
// A Device owns its own memory (a buffer.Buffer the host never touches),
// runs launched work on a single asynchronous stream and reports failures at
// the next Synchronize, mirroring how a real driver surfaces errors.
package device

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/sweptgrid/internal/buffer"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
)

// Device is one emulated accelerator.
type Device struct {
	id   int
	name string

	wg    sync.WaitGroup
	mu    sync.Mutex
	err   error
	syncs atomic.Int64
	lost  atomic.Bool
}

// Enumerate returns the devices with IDs 0..count-1 that are not excluded.
func Enumerate(count int, exclude []int) []*Device {
	var out []*Device
	for id := 0; id < count; id++ {
		if slices.Contains(exclude, id) {
			continue
		}
		out = append(out, &Device{id: id, name: fmt.Sprintf("emulated-gpu-%d", id)})
	}
	return out
}

// ID returns the device identifier.
func (d *Device) ID() int { return d.id }

// Name returns a human readable device name.
func (d *Device) Name() string { return d.name }

// Syncs returns how many times Synchronize was called.
func (d *Device) Syncs() int64 { return d.syncs.Load() }

// Lose marks the device as unusable; every later call fails.
func (d *Device) Lose() { d.lost.Store(true) }

func (d *Device) check(op string) error {
	if d.lost.Load() {
		return runerr.New(runerr.Resource, op, "device %s is lost", d.name)
	}
	return nil
}

// Alloc reserves device memory shaped like spec.
func (d *Device) Alloc(spec buffer.Spec) (*buffer.Buffer, error) {
	if err := d.check("alloc"); err != nil {
		return nil, err
	}
	mem, err := buffer.New(spec)
	if err != nil {
		return nil, runerr.Wrap(runerr.Resource, "alloc", err)
	}
	return mem, nil
}

// Upload copies host rows, every level, into device memory.
func (d *Device) Upload(mem, host *buffer.Buffer, rows buffer.Range) error {
	if err := d.check("upload"); err != nil {
		return err
	}
	return runerr.Wrap(runerr.Resource, "upload", buffer.CopyRows(mem, host, rows))
}

// UploadLevels copies the given levels of host rows into device memory.
func (d *Device) UploadLevels(mem, host *buffer.Buffer, rows, levels buffer.Range) error {
	if err := d.check("upload"); err != nil {
		return err
	}
	return runerr.Wrap(runerr.Resource, "upload", buffer.CopyLevels(mem, host, rows, levels))
}

// Download copies the given levels of device rows back to the host.
func (d *Device) Download(host, mem *buffer.Buffer, rows, levels buffer.Range) error {
	if err := d.check("download"); err != nil {
		return err
	}
	return runerr.Wrap(runerr.Resource, "download", buffer.CopyLevels(host, mem, rows, levels))
}

// Launch enqueues fn over a grid of n work items and returns immediately.
// Errors surface at the next Synchronize.
func (d *Device) Launch(n int, fn func(item int) error) {
	if err := d.check("launch"); err != nil {
		d.fail(err)
		return
	}
	d.wg.Add(n)
	for i := 0; i < n; i++ {
		go func(item int) {
			defer d.wg.Done()
			if err := fn(item); err != nil {
				d.fail(err)
			}
		}(i)
	}
}

func (d *Device) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err == nil {
		d.err = err
	}
}

// Synchronize blocks until all launched work finished and returns the first
// error raised since the previous Synchronize.
func (d *Device) Synchronize() error {
	d.wg.Wait()
	d.syncs.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.err
	d.err = nil
	return err
}
