package sio

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/specialistvlad/sweptgrid/internal/cluster"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Link is one rank's connection to a Hub. Every envelope is acknowledged by
// the receiving rank, so a Send that returned has been delivered.
type Link struct {
	rank   int
	size   int
	io     *socket.Socket
	mail   *cluster.Mailboxes
	logger *slog.Logger
}

// farewellTimeout bounds the abort and leave handshakes, which run when the
// caller's context may already be gone.
const farewellTimeout = 5 * time.Second

var _ cluster.Link = (*Link)(nil)

// Dial connects rank to the hub at hubURL and waits until the hub confirmed
// the join.
func Dial(ctx context.Context, hubURL string, rank, size int) (*Link, error) {
	logger := ctxlog.FromContext(ctx).With("hub", hubURL, "rank", rank)

	parsedURL, err := url.Parse(hubURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hub URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket("/", opts)
	l := &Link{rank: rank, size: size, io: io, mail: cluster.NewMailboxes(), logger: logger}

	joined := make(chan struct{}, 1)
	connectErr := make(chan error, 1)

	io.On(types.EventName("connect"), func(...any) {
		logger.Debug("Connected to hub, joining.", "sid", io.Id())
		io.Emit(eventJoin, rank)
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		select {
		case connectErr <- fmt.Errorf("connecting to hub: %v", errs):
		default:
		}
	})
	io.On(types.EventName(eventJoined), func(...any) {
		select {
		case joined <- struct{}{}:
		default:
		}
	})
	io.On(types.EventName(eventMsg), func(args ...any) {
		defer acknowledge(args)
		e, err := decodeEnvelope(args)
		if err != nil {
			logger.Warn("Dropping malformed envelope.", "error", err)
			return
		}
		if err := l.mail.Put(context.Background(), e.From, e.To, e.Tag, e.Payload); err != nil {
			logger.Debug("Envelope arrived after abort.", "tag", e.Tag, "error", err)
		}
	})
	io.On(types.EventName(eventAbort), func(args ...any) {
		l.mail.Abort(firstString(args))
	})

	io.Connect()

	select {
	case <-joined:
		logger.Info("Joined hub.")
		return l, nil
	case err := <-connectErr:
		io.Disconnect()
		return nil, err
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("timed out while joining hub: %w", ctx.Err())
	}
}

// Send implements cluster.Link. It returns once rank to has the envelope.
func (l *Link) Send(ctx context.Context, to int, tag string, payload []byte) error {
	if to < 0 || to >= l.size {
		return fmt.Errorf("rank %d outside cluster of %d", to, l.size)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := encodeEnvelope(envelope{From: l.rank, To: to, Tag: tag, Payload: payload})
	if err != nil {
		return err
	}
	if err := l.emitAcked(ctx, eventMsg, msg); err != nil {
		return fmt.Errorf("delivering %q to rank %d: %w", tag, to, err)
	}
	return nil
}

// emitAcked emits ev and waits for its acknowledgement.
func (l *Link) emitAcked(ctx context.Context, ev string, args ...any) error {
	acked := make(chan error, 1)
	err := l.io.Emit(ev, append(args, func(_ []any, err error) { acked <- err })...)
	if err != nil {
		return err
	}
	select {
	case err := <-acked:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv implements cluster.Link.
func (l *Link) Recv(ctx context.Context, from int, tag string) ([]byte, error) {
	if from < 0 || from >= l.size {
		return nil, fmt.Errorf("rank %d outside cluster of %d", from, l.size)
	}
	return l.mail.Take(ctx, from, l.rank, tag)
}

// Abort implements cluster.Link. The local mailboxes are aborted right away;
// peers learn about it through the hub.
func (l *Link) Abort(reason error) {
	msg := fmt.Sprintf("rank %d: %v", l.rank, reason)
	l.mail.Abort(msg)
	if !l.io.Connected() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), farewellTimeout)
	defer cancel()
	if err := l.emitAcked(ctx, eventAbort, msg); err != nil {
		l.logger.Warn("Hub did not confirm the abort.", "error", err)
	}
}

// Close implements cluster.Link. The hub reads acknowledgements inline, so
// once it confirms the leave every earlier one has been forwarded.
func (l *Link) Close() error {
	if !l.io.Connected() {
		l.io.Disconnect()
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), farewellTimeout)
	defer cancel()
	err := l.emitAcked(ctx, eventLeave, l.rank)
	l.io.Disconnect()
	if err != nil {
		return fmt.Errorf("leaving hub: %w", err)
	}
	return nil
}
