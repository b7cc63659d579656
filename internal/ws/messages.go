package ws

import (
	"encoding/json"

	"chatrelaygo/internal/store"
)

// Envelope wraps every WS frame, both directions.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "join", "message"
	Body  json.RawMessage `json:"body,omitempty"` // event payload
}

// ──────────────────────────── client → server ────────────────────────────

// JoinRequest is the body for "join".
type JoinRequest struct {
	Room string `json:"room" validate:"required"`
}

// MessageRequest is the body for "message". Room and Handle are still sent
// by older clients; the server ignores them and uses the identity bound to
// the session at join.
type MessageRequest struct {
	Room   string `json:"room"`
	Handle string `json:"handle"`
	Text   string `json:"text" validate:"required"`
}

// ──────────────────────────── server → client ────────────────────────────

// HistoryBody is the "message_history" payload, unicast once per join.
type HistoryBody struct {
	Messages []store.Message `json:"messages"`
}

// MessageBody is the "message" payload broadcast to the room.
type MessageBody struct {
	Handle string `json:"handle"`
	Text   string `json:"text"`
}

// ErrorBody is returned for protocol failures.
type ErrorBody struct {
	Error string `json:"error"`
}

// mkFrame marshals an enveloped frame.
func mkFrame(event string, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Body: raw})
}
