package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

type postgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresStore wraps a pooled *sql.DB. Every call is bounded by timeout
// (10 s when zero) so a hung database cannot stall a connection's read loop
// past that.
func NewPostgresStore(db *sql.DB, timeout time.Duration) MessageStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &postgresStore{db: db, timeout: timeout}
}

func (s *postgresStore) Enabled() bool { return true }

func (s *postgresStore) SaveMessage(ctx context.Context, roomID, handle, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room_id, user_handle, message_text) VALUES ($1, $2, $3)`,
		strings.TrimSpace(roomID), strings.TrimSpace(handle), strings.TrimSpace(text),
	)
	return err
}

func (s *postgresStore) History(ctx context.Context, roomID string, limit int) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, user_handle, message_text, created_at
		   FROM messages
		  WHERE room_id = $1
		  ORDER BY created_at ASC
		  LIMIT $2`,
		strings.TrimSpace(roomID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.RoomID, &m.UserHandle, &m.MessageText, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *postgresStore) EnsureRoom(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Duplicate room creation is success, not an error.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		strings.TrimSpace(roomID),
	)
	return err
}

func (s *postgresStore) CleanupOldMessages(ctx context.Context, days int) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE created_at < now() - make_interval(days => $1)`,
		days,
	).Scan(&n)
	if err != nil {
		return err
	}
	// Retention is not implemented yet; report only.
	zap.L().Info("store.cleanup_dry_run",
		zap.Int("older_than_days", days),
		zap.Int("would_delete", n),
	)
	return nil
}
