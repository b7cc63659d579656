// Package store is the durability boundary of the relay. Every operation is
// best-effort: callers log failures and carry on, nothing here is allowed to
// fail a user-facing action.
package store

import (
	"context"
	"time"
)

// Message is one persisted chat line. Field names follow the wire shape of
// the message_history event.
type Message struct {
	RoomID      string    `json:"room_id"`
	UserHandle  string    `json:"user_handle"`
	MessageText string    `json:"message_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessageStore is the single adapter the gateway talks to. Implementations
// must tolerate concurrent use from many in-flight connections.
type MessageStore interface {
	// Enabled reports whether a backing database is configured.
	Enabled() bool

	// SaveMessage appends one message. The returned error is informational;
	// the broadcast path never waits on or reacts to it beyond logging.
	SaveMessage(ctx context.Context, roomID, handle, text string) error

	// History returns up to limit messages for the room, ordered by
	// created_at ascending. Unreachable store yields an error; unknown room
	// yields an empty slice.
	History(ctx context.Context, roomID string, limit int) ([]Message, error)

	// EnsureRoom upserts the room marker row. Duplicates are not an error.
	EnsureRoom(ctx context.Context, roomID string) error

	// CleanupOldMessages is a retention stub: it logs what would be removed
	// for messages older than the given age and deletes nothing.
	CleanupOldMessages(ctx context.Context, days int) error
}
