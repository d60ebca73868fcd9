package push

import "encoding/json"

const (
	frameEvent      = "event"
	frameInvocation = "invocation"
	frameAck        = "ack"
	framePing       = "ping"
	framePong       = "pong"
)

// frame is the wire envelope for the hub connection. Events carry a target
// name and an opaque payload; invocations carry a correlation id that the
// matching ack echoes back.
type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Args    []string        `json:"args,omitempty"`
	Error   string          `json:"error,omitempty"`
}
