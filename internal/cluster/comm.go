package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/sweptgrid/internal/runerr"
)

const (
	tagBarrier   = "barrier"
	tagRelease   = "release"
	tagBroadcast = "broadcast"
	tagGather    = "gather"
)

// ErrBarrierTimeout marks a barrier that outlived its own timeout, as opposed
// to one whose caller gave up.
var ErrBarrierTimeout = errors.New("barrier timed out")

// Comm is one rank's view of the cluster.
type Comm struct {
	rank    int
	size    int
	link    Link
	timeout time.Duration
}

// NewComm wraps a link. A positive barrierTimeout bounds every barrier.
func NewComm(rank, size int, link Link, barrierTimeout time.Duration) *Comm {
	return &Comm{rank: rank, size: size, link: link, timeout: barrierTimeout}
}

// Rank returns this node's rank.
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks.
func (c *Comm) Size() int { return c.size }

func (c *Comm) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return runerr.Wrap(runerr.Communication, op, fmt.Errorf("rank %d: %w", c.rank, err))
}

// Send delivers payload to rank to.
func (c *Comm) Send(ctx context.Context, to int, tag string, payload []byte) error {
	return c.wrap("send", c.link.Send(ctx, to, tag, payload))
}

// Recv waits for the next payload from rank from.
func (c *Comm) Recv(ctx context.Context, from int, tag string) ([]byte, error) {
	p, err := c.link.Recv(ctx, from, tag)
	return p, c.wrap("recv", err)
}

// SendRecv sends to one rank and receives from another (possibly the same,
// possibly itself) and returns once both completed.
func (c *Comm) SendRecv(ctx context.Context, to, from int, tag string, payload []byte) ([]byte, error) {
	sent := make(chan error, 1)
	go func() { sent <- c.link.Send(ctx, to, tag, payload) }()
	got, recvErr := c.link.Recv(ctx, from, tag)
	sendErr := <-sent
	if err := errors.Join(sendErr, recvErr); err != nil {
		return nil, c.wrap("sendrecv", err)
	}
	return got, nil
}

// Barrier returns once every rank called Barrier. Rank 0 collects arrivals
// and releases everyone.
func (c *Comm) Barrier(ctx context.Context) error {
	if c.size == 1 {
		return nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, c.timeout, ErrBarrierTimeout)
		defer cancel()
	}
	err := c.barrier(ctx)
	if err != nil && errors.Is(context.Cause(ctx), ErrBarrierTimeout) {
		err = fmt.Errorf("%w after %s: %w", ErrBarrierTimeout, c.timeout, err)
	}
	return c.wrap("barrier", err)
}

func (c *Comm) barrier(ctx context.Context) error {
	if c.rank != 0 {
		if err := c.link.Send(ctx, 0, tagBarrier, nil); err != nil {
			return err
		}
		_, err := c.link.Recv(ctx, 0, tagRelease)
		return err
	}
	for r := 1; r < c.size; r++ {
		if _, err := c.link.Recv(ctx, r, tagBarrier); err != nil {
			return err
		}
	}
	for r := 1; r < c.size; r++ {
		if err := c.link.Send(ctx, r, tagRelease, nil); err != nil {
			return err
		}
	}
	return nil
}

// Broadcast returns root's payload on every rank.
func (c *Comm) Broadcast(ctx context.Context, root int, payload []byte) ([]byte, error) {
	if c.rank != root {
		return c.Recv(ctx, root, tagBroadcast)
	}
	for r := 0; r < c.size; r++ {
		if r == root {
			continue
		}
		if err := c.Send(ctx, r, tagBroadcast, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// Gather collects one payload per rank on root, indexed by rank. Other ranks
// get nil.
func (c *Comm) Gather(ctx context.Context, root int, payload []byte) ([][]byte, error) {
	if c.rank != root {
		return nil, c.Send(ctx, root, tagGather, payload)
	}
	out := make([][]byte, c.size)
	out[root] = payload
	for r := 0; r < c.size; r++ {
		if r == root {
			continue
		}
		p, err := c.Recv(ctx, r, tagGather)
		if err != nil {
			return nil, err
		}
		out[r] = p
	}
	return out, nil
}

// Abort broadcasts err to every rank so that peers blocked in a collective
// fail instead of hanging.
func (c *Comm) Abort(err error) {
	c.link.Abort(err)
}

// Close releases the link.
func (c *Comm) Close() error {
	return c.link.Close()
}
