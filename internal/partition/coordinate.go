package partition

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
	"github.com/vmihailenco/msgpack/v5"
)

// Collective is the part of the cluster communicator the coordinator needs.
type Collective interface {
	Rank() int
	Gather(ctx context.Context, root int, payload []byte) ([][]byte, error)
	Broadcast(ctx context.Context, root int, payload []byte) ([]byte, error)
}

// verdict is what rank 0 broadcasts: either a plan or the reason there is
// none.
type verdict struct {
	Plan *Plan  `msgpack:"plan"`
	Err  string `msgpack:"err"`
	Kind int    `msgpack:"kind"`
}

// Coordinate gathers every node's resources on rank 0, partitions there and
// hands the same plan (or the same error) to every node. in.Nodes is
// ignored; it is rebuilt from the gathered resources in rank order.
func Coordinate(ctx context.Context, c Collective, local Resources, in Input) (*Plan, error) {
	const op = "partition"
	raw, err := msgpack.Marshal(&local)
	if err != nil {
		return nil, fmt.Errorf("encoding resources: %w", err)
	}
	all, err := c.Gather(ctx, 0, raw)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if c.Rank() == 0 {
		v := decide(all, in)
		if payload, err = msgpack.Marshal(&v); err != nil {
			return nil, fmt.Errorf("encoding plan: %w", err)
		}
	}
	payload, err = c.Broadcast(ctx, 0, payload)
	if err != nil {
		return nil, err
	}

	var v verdict
	if err := msgpack.Unmarshal(payload, &v); err != nil {
		return nil, runerr.Wrap(runerr.Communication, op, fmt.Errorf("decoding plan: %w", err))
	}
	if v.Err != "" {
		return nil, runerr.Wrap(runerr.Kind(v.Kind), op, errors.New(v.Err))
	}
	if v.Plan == nil || len(v.Plan.Assignments) <= c.Rank() {
		return nil, runerr.New(runerr.Communication, op, "plan has no assignment for rank %d", c.Rank())
	}
	if v.Plan.FellBack {
		ctxlog.FromContext(ctx).Warn("No GPUs available, running every block row on CPU lanes.", "affinity", in.Affinity)
	}
	return v.Plan, nil
}

func decide(all [][]byte, in Input) verdict {
	in.Nodes = make([]Resources, len(all))
	for r, raw := range all {
		if err := msgpack.Unmarshal(raw, &in.Nodes[r]); err != nil {
			return verdict{Err: fmt.Sprintf("decoding resources of rank %d: %v", r, err), Kind: int(runerr.Communication)}
		}
	}
	plan, err := Partition(in)
	if err != nil {
		var re *runerr.Error
		if errors.As(err, &re) {
			return verdict{Err: re.Err.Error(), Kind: int(re.Kind)}
		}
		return verdict{Err: err.Error(), Kind: int(runerr.Configuration)}
	}
	return verdict{Plan: plan}
}
