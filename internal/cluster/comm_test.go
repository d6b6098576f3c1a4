package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/sweptgrid/internal/runerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// runRanks runs fn once per rank of an in-process network.
func runRanks(t *testing.T, size int, timeout time.Duration, fn func(ctx context.Context, c *Comm) error) error {
	t.Helper()
	net := NewNetwork(size)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		c := NewComm(r, size, net.Link(r), timeout)
		g.Go(func() error { return fn(ctx, c) })
	}
	return g.Wait()
}

func TestBarrier(t *testing.T) {
	var arrived atomic.Int32

	err := runRanks(t, 4, 0, func(ctx context.Context, c *Comm) error {
		arrived.Add(1)
		if err := c.Barrier(ctx); err != nil {
			return err
		}
		if n := arrived.Load(); n != 4 {
			return fmt.Errorf("rank %d passed the barrier with %d arrivals", c.Rank(), n)
		}
		return c.Barrier(ctx)
	})

	require.NoError(t, err)
}

func TestBroadcastAndGather(t *testing.T) {
	err := runRanks(t, 3, 0, func(ctx context.Context, c *Comm) error {
		var payload []byte
		if c.Rank() == 1 {
			payload = []byte("plan")
		}
		got, err := c.Broadcast(ctx, 1, payload)
		if err != nil {
			return err
		}
		if string(got) != "plan" {
			return fmt.Errorf("rank %d got %q", c.Rank(), got)
		}

		all, err := c.Gather(ctx, 0, []byte{byte(c.Rank())})
		if err != nil {
			return err
		}
		if c.Rank() == 0 {
			if len(all) != 3 || all[2][0] != 2 {
				return fmt.Errorf("gathered %v", all)
			}
		} else if all != nil {
			return errors.New("non-root received gathered payloads")
		}
		return nil
	})

	require.NoError(t, err)
}

func TestSendRecv_Ring(t *testing.T) {
	const size = 3
	got := make([]byte, size)

	err := runRanks(t, size, 0, func(ctx context.Context, c *Comm) error {
		fwd, bwd := (c.Rank()+1)%size, (c.Rank()+size-1)%size
		p, err := c.SendRecv(ctx, fwd, bwd, "ring", []byte{byte(c.Rank())})
		if err != nil {
			return err
		}
		got[c.Rank()] = p[0]
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 1}, got)
}

func TestSendRecv_Self(t *testing.T) {
	net := NewNetwork(1)
	c := NewComm(0, 1, net.Link(0), 0)

	got, err := c.SendRecv(context.Background(), 0, 0, "self", []byte("x"))

	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
	assert.NoError(t, c.Barrier(context.Background()))
}

func TestAbort_WakesPeers(t *testing.T) {
	err := runRanks(t, 3, 0, func(ctx context.Context, c *Comm) error {
		if c.Rank() == 2 {
			c.Abort(errors.New("kernel blew up"))
			return nil
		}
		return c.Barrier(ctx)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.True(t, runerr.IsKind(err, runerr.Communication))
	assert.Contains(t, err.Error(), "kernel blew up")
}

func TestBarrier_Timeout(t *testing.T) {
	net := NewNetwork(2)
	c := NewComm(0, 2, net.Link(0), 20*time.Millisecond)

	err := c.Barrier(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrBarrierTimeout)
	assert.Contains(t, err.Error(), "barrier timed out after 20ms")
	assert.True(t, runerr.IsKind(err, runerr.Communication))
}

func TestBarrier_CallerDeadlineIsNotABarrierTimeout(t *testing.T) {
	net := NewNetwork(2)
	c := NewComm(0, 2, net.Link(0), time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Barrier(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrBarrierTimeout)
	assert.NotContains(t, err.Error(), "timed out after")
}

func TestLocalLink_RejectsUnknownRank(t *testing.T) {
	l := NewNetwork(2).Link(0)

	assert.Error(t, l.Send(context.Background(), 2, "x", nil))
	_, err := l.Recv(context.Background(), -1, "x")
	assert.Error(t, err)
	assert.NoError(t, l.Close())
}
