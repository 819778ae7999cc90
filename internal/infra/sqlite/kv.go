package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = 12 * time.Hour

// opTimeout bounds each storage call made through the context-free Session API.
const opTimeout = 5 * time.Second

// SessionKV is a key/value table partitioned by session id. Entries expire
// ttl after their last write.
type SessionKV struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSessionKV returns a store over an already-migrated database.
// A non-positive ttl selects DefaultSessionTTL.
func NewSessionKV(db *sql.DB, ttl time.Duration) *SessionKV {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionKV{db: db, ttl: ttl, now: time.Now}
}

// Session returns the view of one session. It satisfies conversation.Storage.
func (kv *SessionKV) Session(id string) *Session {
	return &Session{kv: kv, id: id}
}

// PurgeExpired deletes every expired entry across all sessions.
func (kv *SessionKV) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := kv.db.ExecContext(ctx,
		"DELETE FROM session_kv WHERE expires_at <= ?", kv.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("session kv: purge: %w", err)
	}
	return res.RowsAffected()
}

// Session is a SessionKV scoped to a single session id.
type Session struct {
	kv *SessionKV
	id string
}

func (s *Session) ID() string { return s.id }

// Get reports ok=false for a missing or expired key.
func (s *Session) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var value string
	err := s.kv.db.QueryRowContext(ctx,
		"SELECT value FROM session_kv WHERE session_id = ? AND key = ? AND expires_at > ?",
		s.id, key, s.kv.now().Unix(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session kv: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes key and pushes its expiry ttl into the future.
func (s *Session) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := s.kv.now()
	_, err := s.kv.db.ExecContext(ctx, `
		INSERT INTO session_kv (session_id, key, value, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id, key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		s.id, key, value, now.Unix(), now.Add(s.kv.ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("session kv: set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Session) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := s.kv.db.ExecContext(ctx,
		"DELETE FROM session_kv WHERE session_id = ? AND key = ?", s.id, key,
	); err != nil {
		return fmt.Errorf("session kv: remove %q: %w", key, err)
	}
	return nil
}
