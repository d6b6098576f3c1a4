// Package sio runs the cluster over socket.io: a Hub relays envelopes between
// ranks and every rank connects to it with a Link.
package sio

import (
	"encoding/base64"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	eventJoin   = "join"
	eventJoined = "joined"
	eventMsg    = "msg"
	eventAbort  = "abort"
	eventLeave  = "leave"
)

// envelope is the routed unit. It travels as a base64 string so that every
// socket.io parser delivers it unchanged.
type envelope struct {
	From    int    `msgpack:"from"`
	To      int    `msgpack:"to"`
	Tag     string `msgpack:"tag"`
	Payload []byte `msgpack:"payload"`
}

func encodeEnvelope(e envelope) (string, error) {
	raw, err := msgpack.Marshal(&e)
	if err != nil {
		return "", fmt.Errorf("encoding envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeEnvelope(args []any) (envelope, error) {
	var e envelope
	if len(args) == 0 {
		return e, fmt.Errorf("empty %s event", eventMsg)
	}
	s, ok := args[0].(string)
	if !ok {
		return e, fmt.Errorf("unexpected %s payload type %T", eventMsg, args[0])
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return e, fmt.Errorf("decoding envelope: %w", err)
	}
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("decoding envelope: %w", err)
	}
	return e, nil
}

// toInt accepts the numeric types socket.io parsers produce.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func firstString(args []any) string {
	if len(args) == 0 {
		return ""
	}
	if s, ok := args[0].(string); ok {
		return s
	}
	return fmt.Sprint(args[0])
}

// acknowledge answers an event whose sender asked for an acknowledgement.
// The reply carries a value because an empty ack packet does not decode.
func acknowledge(args []any) {
	if len(args) == 0 {
		return
	}
	if fn, ok := args[len(args)-1].(func([]any, error)); ok {
		fn([]any{true}, nil)
	}
}
