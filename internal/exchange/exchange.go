// Package exchange moves boundary rows between ring neighbors.
//
// Nodes form a ring ordered by row ownership. Every call is collective: all
// nodes must make the same call in the same phase, and each call ends with a
// cluster-wide barrier so no node reads across a boundary before its
// neighbor finished the phase that produced the rows.
package exchange

import (
	"context"
	"fmt"

	"github.com/specialistvlad/sweptgrid/internal/buffer"
	"github.com/specialistvlad/sweptgrid/internal/cluster"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
	"github.com/vmihailenco/msgpack/v5"
)

// Topology is a node's place in the ring.
type Topology struct {
	Rank     int
	Size     int
	Periodic bool
}

// Forward returns the next rank, or -1 at the open end.
func (t Topology) Forward() int {
	if t.Rank+1 < t.Size {
		return t.Rank + 1
	}
	if t.Periodic {
		return 0
	}
	return -1
}

// Backward returns the previous rank, or -1 at the open end.
func (t Topology) Backward() int {
	if t.Rank > 0 {
		return t.Rank - 1
	}
	if t.Periodic {
		return t.Size - 1
	}
	return -1
}

// Neighbor returns the rank facing side.
func (t Topology) Neighbor(side buffer.Side) int {
	if side == buffer.Forward {
		return t.Forward()
	}
	return t.Backward()
}

// BytesRecorder is told how many payload bytes left the node.
type BytesRecorder interface {
	ExchangeBytes(n int)
}

// Exchanger performs the ring exchanges for one node.
type Exchanger struct {
	comm     *cluster.Comm
	topo     Topology
	recorder BytesRecorder
}

// New creates an Exchanger. recorder may be nil.
func New(comm *cluster.Comm, periodic bool, recorder BytesRecorder) *Exchanger {
	return &Exchanger{
		comm:     comm,
		topo:     Topology{Rank: comm.Rank(), Size: comm.Size(), Periodic: periodic},
		recorder: recorder,
	}
}

// Topology returns the node's ring position.
func (x *Exchanger) Topology() Topology { return x.topo }

// Barrier waits for every node.
func (x *Exchanger) Barrier(ctx context.Context) error {
	return x.comm.Barrier(ctx)
}

func (x *Exchanger) encode(s buffer.Strip) ([]byte, error) {
	raw, err := msgpack.Marshal(&s)
	if err != nil {
		return nil, runerr.Wrap(runerr.Communication, "exchange", fmt.Errorf("encoding strip: %w", err))
	}
	if x.recorder != nil {
		x.recorder.ExchangeBytes(len(raw))
	}
	return raw, nil
}

func decode(raw []byte) (buffer.Strip, error) {
	var s buffer.Strip
	if err := msgpack.Unmarshal(raw, &s); err != nil {
		return s, runerr.Wrap(runerr.Communication, "exchange", fmt.Errorf("decoding strip: %w", err))
	}
	return s, nil
}

func tag(kind string, travel buffer.Side) string {
	return kind + ":" + travel.String()
}

// Shift moves the node's row window by width rows toward side: the width
// owned rows at that end travel to the neighbor there, and the neighbor on
// the other side fills the vacated rows. Both ends must have a neighbor.
func (x *Exchanger) Shift(ctx context.Context, buf *buffer.Buffer, toward buffer.Side, width int) error {
	to, from := x.topo.Neighbor(toward), x.topo.Neighbor(toward.Opposite())
	if to < 0 || from < 0 {
		return runerr.New(runerr.Configuration, "exchange", "shifting %s needs a periodic ring", toward)
	}
	ctxlog.FromContext(ctx).Debug("Shifting row window.", "toward", toward, "width", width, "to", to, "from", from)

	out, err := buf.HaloSlice(toward, width)
	if err != nil {
		return runerr.Wrap(runerr.Communication, "exchange", err)
	}
	payload, err := x.encode(out)
	if err != nil {
		return err
	}
	raw, err := x.comm.SendRecv(ctx, to, from, tag("shift", toward), payload)
	if err != nil {
		return err
	}
	in, err := decode(raw)
	if err != nil {
		return err
	}
	if err := buf.Shift(toward, in); err != nil {
		return runerr.Wrap(runerr.Communication, "exchange", fmt.Errorf("installing strip from rank %d: %w", from, err))
	}
	return x.comm.Barrier(ctx)
}

// SwapHalos fills both halos with width rows from the neighbors. Open ends
// replicate their outermost owned row instead.
func (x *Exchanger) SwapHalos(ctx context.Context, buf *buffer.Buffer, width int) error {
	for _, travel := range []buffer.Side{buffer.Forward, buffer.Backward} {
		to, from := x.topo.Neighbor(travel), x.topo.Neighbor(travel.Opposite())
		var payload []byte
		if to >= 0 {
			out, err := buf.HaloSlice(travel, width)
			if err != nil {
				return runerr.Wrap(runerr.Communication, "exchange", err)
			}
			if payload, err = x.encode(out); err != nil {
				return err
			}
		}

		// Strips travelling forward land in the receiver's backward halo.
		landing := travel.Opposite()
		var raw []byte
		var err error
		switch {
		case to >= 0 && from >= 0:
			raw, err = x.comm.SendRecv(ctx, to, from, tag("halo", travel), payload)
		case to >= 0:
			err = x.comm.Send(ctx, to, tag("halo", travel), payload)
		case from >= 0:
			raw, err = x.comm.Recv(ctx, from, tag("halo", travel))
		}
		if err != nil {
			return err
		}

		if from < 0 {
			if err := buf.ReplicateHalo(landing, width); err != nil {
				return runerr.Wrap(runerr.Communication, "exchange", err)
			}
			continue
		}
		in, err := decode(raw)
		if err != nil {
			return err
		}
		if err := buf.ApplyHalo(landing, in); err != nil {
			return runerr.Wrap(runerr.Communication, "exchange", fmt.Errorf("installing halo from rank %d: %w", from, err))
		}
	}
	return x.comm.Barrier(ctx)
}
