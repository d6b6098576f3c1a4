// Package cluster connects the nodes of a run.
//
// A Link moves tagged byte payloads between ranks; Comm layers the
// collectives the engine needs (barrier, broadcast, gather, combined
// send/receive and abort) on top of any Link. Payloads addressed to the same
// (source, tag) pair are delivered in order.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrAborted is returned by every pending and future call once any rank
// aborted the run.
var ErrAborted = errors.New("run aborted")

// Link is a point-to-point transport between ranks.
type Link interface {
	Send(ctx context.Context, to int, tag string, payload []byte) error
	Recv(ctx context.Context, from int, tag string) ([]byte, error)
	// Abort tells every rank the run is over.
	Abort(reason error)
	Close() error
}

// AbortError carries the reason a peer gave when aborting.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string { return fmt.Sprintf("%v: %s", ErrAborted, e.Reason) }

// Unwrap lets errors.Is match ErrAborted.
func (e *AbortError) Unwrap() error { return ErrAborted }

// mailboxKey addresses one ordered stream of payloads.
type mailboxKey struct {
	from, to int
	tag      string
}

// Mailboxes is an ordered, abortable message store shared by the in-process
// network and the socket.io client.
type Mailboxes struct {
	mu      sync.Mutex
	boxes   map[mailboxKey]chan []byte
	aborted chan struct{}
	once    sync.Once
	reason  string
}

// NewMailboxes creates an empty store.
func NewMailboxes() *Mailboxes {
	return &Mailboxes{boxes: make(map[mailboxKey]chan []byte), aborted: make(chan struct{})}
}

const mailboxDepth = 64

func (m *Mailboxes) box(from, to int, tag string) chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := mailboxKey{from: from, to: to, tag: tag}
	b, ok := m.boxes[k]
	if !ok {
		b = make(chan []byte, mailboxDepth)
		m.boxes[k] = b
	}
	return b
}

// Put delivers a payload.
func (m *Mailboxes) Put(ctx context.Context, from, to int, tag string, payload []byte) error {
	select {
	case m.box(from, to, tag) <- payload:
		return nil
	case <-m.aborted:
		return m.abortErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Take waits for the next payload of a stream.
func (m *Mailboxes) Take(ctx context.Context, from, to int, tag string) ([]byte, error) {
	select {
	case p := <-m.box(from, to, tag):
		return p, nil
	case <-m.aborted:
		return nil, m.abortErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Abort wakes every waiter. Only the first reason is kept.
func (m *Mailboxes) Abort(reason string) {
	m.once.Do(func() {
		m.mu.Lock()
		m.reason = reason
		m.mu.Unlock()
		close(m.aborted)
	})
}

func (m *Mailboxes) abortErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &AbortError{Reason: m.reason}
}

// Network is an in-process cluster: every rank is a goroutine in the same
// process and payloads never leave memory.
type Network struct {
	size int
	mail *Mailboxes
}

// NewNetwork creates a network for size ranks.
func NewNetwork(size int) *Network {
	return &Network{size: size, mail: NewMailboxes()}
}

// Link returns the endpoint of one rank.
func (n *Network) Link(rank int) Link {
	return &localLink{net: n, rank: rank}
}

type localLink struct {
	net  *Network
	rank int
}

func (l *localLink) valid(peer int) error {
	if peer < 0 || peer >= l.net.size {
		return fmt.Errorf("rank %d outside cluster of %d", peer, l.net.size)
	}
	return nil
}

func (l *localLink) Send(ctx context.Context, to int, tag string, payload []byte) error {
	if err := l.valid(to); err != nil {
		return err
	}
	return l.net.mail.Put(ctx, l.rank, to, tag, payload)
}

func (l *localLink) Recv(ctx context.Context, from int, tag string) ([]byte, error) {
	if err := l.valid(from); err != nil {
		return nil, err
	}
	return l.net.mail.Take(ctx, from, l.rank, tag)
}

func (l *localLink) Abort(reason error) {
	l.net.mail.Abort(fmt.Sprintf("rank %d: %v", l.rank, reason))
}

func (l *localLink) Close() error { return nil }
