package buffer

import "fmt"

// Side names one end of the owned row range.
type Side int

const (
	// Backward is the low-row end, facing the backward neighbor.
	Backward Side = iota
	// Forward is the high-row end, facing the forward neighbor.
	Forward
)

// String implements fmt.Stringer.
func (s Side) String() string {
	if s == Forward {
		return "forward"
	}
	return "backward"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Forward {
		return Backward
	}
	return Forward
}

// Strip is a block of whole rows carrying every slot of the ring, the unit
// exchanged between neighbors.
type Strip struct {
	Width    int       `msgpack:"width"`
	Base     int       `msgpack:"base"`
	Capacity int       `msgpack:"capacity"`
	Vars     int       `msgpack:"vars"`
	Cols     int       `msgpack:"cols"`
	Data     []float64 `msgpack:"data"`
}

func (b *Buffer) newStrip(width int) Strip {
	return Strip{
		Width:    width,
		Base:     b.base,
		Capacity: b.spec.Capacity,
		Vars:     b.spec.Vars,
		Cols:     b.spec.Cols,
		Data:     make([]float64, b.spec.Capacity*b.spec.Vars*width*b.spec.Cols),
	}
}

func (b *Buffer) compatible(s Strip) error {
	if s.Capacity != b.spec.Capacity || s.Vars != b.spec.Vars || s.Cols != b.spec.Cols {
		return fmt.Errorf("strip %dx%dx%d, buffer %dx%dx%d: %w",
			s.Capacity, s.Vars, s.Cols, b.spec.Capacity, b.spec.Vars, b.spec.Cols, ErrShape)
	}
	if s.Base != b.base {
		return fmt.Errorf("strip base level %d, buffer base level %d: %w", s.Base, b.base, ErrShape)
	}
	if len(s.Data) != s.Capacity*s.Vars*s.Width*s.Cols {
		return fmt.Errorf("strip holds %d values for width %d: %w", len(s.Data), s.Width, ErrShape)
	}
	return nil
}

// copyOut copies rows [lo, lo+s.Width) of every slot into s.
func (b *Buffer) copyOut(s Strip, lo int) {
	i := 0
	for slot := 0; slot < b.spec.Capacity; slot++ {
		for v := 0; v < b.spec.Vars; v++ {
			off := b.rowSpan(slot, v, lo)
			i += copy(s.Data[i:], b.data[off:off+s.Width*b.spec.Cols])
		}
	}
}

// copyIn copies s into rows [lo, lo+s.Width) of every slot.
func (b *Buffer) copyIn(s Strip, lo int) {
	i := 0
	n := s.Width * b.spec.Cols
	for slot := 0; slot < b.spec.Capacity; slot++ {
		for v := 0; v < b.spec.Vars; v++ {
			off := b.rowSpan(slot, v, lo)
			copy(b.data[off:off+n], s.Data[i:i+n])
			i += n
		}
	}
}

// HaloSlice copies the width owned rows at side, for every slot.
func (b *Buffer) HaloSlice(side Side, width int) (Strip, error) {
	if width < 0 || width > b.spec.Owned.Len() {
		return Strip{}, fmt.Errorf("strip width %d for %d owned rows: %w", width, b.spec.Owned.Len(), ErrOutOfRange)
	}
	s := b.newStrip(width)
	lo := b.spec.Owned.Lo
	if side == Forward {
		lo = b.spec.Owned.Hi - width
	}
	b.copyOut(s, lo)
	return s, nil
}

// ApplyHalo installs a strip received from the neighbor at side into the halo
// rows on that side.
func (b *Buffer) ApplyHalo(side Side, s Strip) error {
	if err := b.compatible(s); err != nil {
		return err
	}
	if s.Width > b.spec.Halo {
		return fmt.Errorf("strip width %d exceeds halo %d: %w", s.Width, b.spec.Halo, ErrOutOfRange)
	}
	lo := b.spec.Owned.Lo - s.Width
	if side == Forward {
		lo = b.spec.Owned.Hi
	}
	b.copyIn(s, lo)
	return nil
}

// ReplicateHalo fills width halo rows at side with copies of the outermost
// owned row, for every slot. It implements a zero-gradient boundary.
func (b *Buffer) ReplicateHalo(side Side, width int) error {
	if width > b.spec.Halo {
		return fmt.Errorf("width %d exceeds halo %d: %w", width, b.spec.Halo, ErrOutOfRange)
	}
	edge, first := b.spec.Owned.Lo, b.spec.Owned.Lo-width
	if side == Forward {
		edge, first = b.spec.Owned.Hi-1, b.spec.Owned.Hi
	}
	for slot := 0; slot < b.spec.Capacity; slot++ {
		for v := 0; v < b.spec.Vars; v++ {
			src := b.rowSpan(slot, v, edge)
			for r := first; r < first+width; r++ {
				dst := b.rowSpan(slot, v, r)
				copy(b.data[dst:dst+b.spec.Cols], b.data[src:src+b.spec.Cols])
			}
		}
	}
	return nil
}

// Shift moves the owned row window by in.Width rows. Shifting toward Forward
// moves content to higher rows and installs in at the backward end; shifting
// toward Backward moves content to lower rows and installs in at the forward
// end. The caller extracts the outgoing edge with HaloSlice beforehand.
func (b *Buffer) Shift(toward Side, in Strip) error {
	if err := b.compatible(in); err != nil {
		return err
	}
	w, owned := in.Width, b.spec.Owned
	if w > owned.Len() {
		return fmt.Errorf("shift of %d rows for %d owned rows: %w", w, owned.Len(), ErrOutOfRange)
	}
	keep := (owned.Len() - w) * b.spec.Cols
	for slot := 0; slot < b.spec.Capacity; slot++ {
		for v := 0; v < b.spec.Vars; v++ {
			lo := b.rowSpan(slot, v, owned.Lo)
			if toward == Forward {
				copy(b.data[lo+w*b.spec.Cols:], b.data[lo:lo+keep])
			} else {
				copy(b.data[lo:lo+keep], b.data[lo+w*b.spec.Cols:lo+w*b.spec.Cols+keep])
			}
		}
	}
	if toward == Forward {
		b.copyIn(in, owned.Lo)
	} else {
		b.copyIn(in, owned.Hi-w)
	}
	return nil
}

// CopyRows copies rows of every slot from src into dst and aligns dst's base
// level with src.
func CopyRows(dst, src *Buffer, rows Range) error {
	return copyRows(dst, src, rows, Range{}, true)
}

// CopyLevels copies rows of the given levels from src into dst.
func CopyLevels(dst, src *Buffer, rows, levels Range) error {
	return copyRows(dst, src, rows, levels, false)
}

func copyRows(dst, src *Buffer, rows, levels Range, all bool) error {
	if dst.spec.Capacity != src.spec.Capacity || dst.spec.Vars != src.spec.Vars || dst.spec.Cols != src.spec.Cols {
		return fmt.Errorf("copy between %+v and %+v: %w", dst.spec, src.spec, ErrShape)
	}
	if !dst.stored.Contains(rows) || !src.stored.Contains(rows) {
		return fmt.Errorf("rows %+v: %w", rows, ErrOutOfRange)
	}
	n := rows.Len() * src.spec.Cols
	copySlot := func(slot int) {
		for v := 0; v < src.spec.Vars; v++ {
			s := src.rowSpan(slot, v, rows.Lo)
			d := dst.rowSpan(slot, v, rows.Lo)
			copy(dst.data[d:d+n], src.data[s:s+n])
		}
	}
	if all {
		for slot := 0; slot < src.spec.Capacity; slot++ {
			copySlot(slot)
		}
		dst.base = src.base
		return nil
	}
	if levels.Len() > src.spec.Capacity {
		return fmt.Errorf("levels %+v exceed capacity %d: %w", levels, src.spec.Capacity, ErrOutOfRange)
	}
	for l := levels.Lo; l < levels.Hi; l++ {
		copySlot(l % src.spec.Capacity)
	}
	return nil
}
