package sio

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/zishang520/socket.io/v2/socket"
)

// Hub relays envelopes between connected ranks. Envelopes for a rank that has
// not joined yet are queued until it does. The sender's acknowledgement is
// answered once the receiving rank acknowledged.
type Hub struct {
	ctx     context.Context
	io      *socket.Server
	mu      sync.Mutex
	peers   map[int]*socket.Socket
	pending map[int][]delivery
	changed chan struct{}
}

// delivery is an envelope on its way to a rank.
type delivery struct {
	msg  string
	done func()
}

// NewHub creates a hub. Mount Handler under "/socket.io/".
func NewHub(ctx context.Context) *Hub {
	h := &Hub{
		ctx:     ctx,
		io:      socket.NewServer(nil, nil),
		peers:   make(map[int]*socket.Socket),
		pending: make(map[int][]delivery),
		changed: make(chan struct{}),
	}
	h.io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		h.serve(client)
	})
	return h
}

// Handler returns the HTTP handler speaking socket.io.
func (h *Hub) Handler() http.Handler {
	return h.io.ServeHandler(nil)
}

// WaitIdle blocks until no rank is connected or ctx ends.
func (h *Hub) WaitIdle(ctx context.Context) error {
	for {
		h.mu.Lock()
		idle := len(h.peers) == 0
		changed := h.changed
		h.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// notify wakes WaitIdle. The caller holds h.mu.
func (h *Hub) notify() {
	close(h.changed)
	h.changed = make(chan struct{})
}

func (h *Hub) serve(client *socket.Socket) {
	logger := ctxlog.FromContext(h.ctx)
	var rank atomic.Int64
	rank.Store(-1)

	client.On(eventJoin, func(args ...any) {
		if len(args) == 0 {
			return
		}
		r, ok := toInt(args[0])
		if !ok {
			logger.Warn("Ignoring join with a non-numeric rank.", "value", args[0])
			return
		}
		rank.Store(int64(r))
		h.mu.Lock()
		defer h.mu.Unlock()
		h.peers[r] = client
		h.notify()
		queued := h.pending[r]
		delete(h.pending, r)

		logger.Info("Rank joined the hub.", "rank", r, "queued", len(queued))
		client.Emit(eventJoined, r)
		for _, d := range queued {
			client.Emit(eventMsg, d.msg, d.ack())
		}
	})

	client.On(eventMsg, func(args ...any) {
		e, err := decodeEnvelope(args)
		if err != nil {
			logger.Warn("Dropping malformed envelope.", "error", err)
			acknowledge(args)
			return
		}
		h.route(e.To, delivery{msg: args[0].(string), done: func() { acknowledge(args) }})
	})

	client.On(eventAbort, func(args ...any) {
		reason := firstString(args)
		logger.Warn("Rank aborted the run.", "rank", rank.Load(), "reason", reason)
		h.mu.Lock()
		peers := make([]*socket.Socket, 0, len(h.peers))
		for _, p := range h.peers {
			peers = append(peers, p)
		}
		h.mu.Unlock()
		for _, p := range peers {
			p.Emit(eventAbort, reason)
		}
		acknowledge(args)
	})

	client.On(eventLeave, func(args ...any) {
		h.drop(int(rank.Load()), client)
		logger.Debug("Rank left the hub.", "rank", rank.Load())
		acknowledge(args)
	})

	client.On("disconnect", func(...any) {
		h.drop(int(rank.Load()), client)
		logger.Debug("Rank disconnected from the hub.", "rank", rank.Load())
	})
}

// drop forgets client if it still holds rank r.
func (h *Hub) drop(r int, client *socket.Socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r >= 0 && h.peers[r] == client {
		delete(h.peers, r)
		h.notify()
	}
}

// ack asks the receiving rank to acknowledge and then answers the sender.
func (d delivery) ack() func([]any, error) {
	return func(_ []any, err error) {
		if err == nil {
			d.done()
		}
	}
}

// route forwards under the lock so queued and live envelopes keep their order.
func (h *Hub) route(to int, d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peer, ok := h.peers[to]; ok {
		peer.Emit(eventMsg, d.msg, d.ack())
		return
	}
	h.pending[to] = append(h.pending[to], d)
}
