package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Store holds the server's persistent records. Timestamps are stored as
// unix seconds.
type Store struct {
	db *Database
}

// Ban is an entry of the ban list.
type Ban struct {
	UserID    uint32    `json:"user_id"`
	Reason    string    `json:"reason"`
	BannedBy  string    `json:"banned_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one play session of a user.
type Session struct {
	ID       int64      `json:"id"`
	UserID   uint32     `json:"user_id"`
	Username string     `json:"username"`
	NetID    uint32     `json:"net_id"`
	Remote   string     `json:"remote"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}

// ChatLine is a logged chat message.
type ChatLine struct {
	ID        int64     `json:"id"`
	UserID    uint32    `json:"user_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Open opens the database at path and migrates its schema.
func Open(path string) (*Store, error) {
	database, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: database}
	if err := s.migrate(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS bans (
			user_id INTEGER PRIMARY KEY,
			reason TEXT NOT NULL DEFAULT '',
			banned_by TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			username TEXT NOT NULL,
			net_id INTEGER NOT NULL,
			remote TEXT NOT NULL DEFAULT '',
			joined_at INTEGER NOT NULL,
			left_at INTEGER
		);

		CREATE TABLE IF NOT EXISTS chat_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			username TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_open ON sessions(left_at);
		CREATE INDEX IF NOT EXISTS idx_chat_log_created_at ON chat_log(created_at);
	`

	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	log.Debug().Msg("database schema migrated")
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// ---- Bans ----

// Ban adds userID to the ban list or updates its reason.
func (s *Store) Ban(ctx context.Context, userID uint32, reason, by string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bans (user_id, reason, banned_by, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET reason = excluded.reason, banned_by = excluded.banned_by
	`, userID, reason, by, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to ban user %d: %w", userID, err)
	}

	log.Info().
		Uint32("user_id", userID).
		Str("reason", reason).
		Str("by", by).
		Msg("user banned")
	return nil
}

// Unban removes userID from the ban list. It reports whether a ban existed.
func (s *Store) Unban(ctx context.Context, userID uint32) (bool, error) {
	res, err := s.db.Exec(ctx, "DELETE FROM bans WHERE user_id = ?", userID)
	if err != nil {
		return false, fmt.Errorf("failed to unban user %d: %w", userID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// BanReason reports whether userID is banned and why.
func (s *Store) BanReason(ctx context.Context, userID uint32) (string, bool, error) {
	var reason string
	err := s.db.QueryRow(ctx, "SELECT reason FROM bans WHERE user_id = ?", userID).Scan(&reason)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ban lookup failed: %w", err)
	}
	return reason, true, nil
}

// Bans returns the ban list, newest first.
func (s *Store) Bans(ctx context.Context) ([]Ban, error) {
	rows, err := s.db.Query(ctx,
		"SELECT user_id, reason, banned_by, created_at FROM bans ORDER BY created_at DESC, user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans []Ban
	for rows.Next() {
		var b Ban
		var created int64
		if err := rows.Scan(&b.UserID, &b.Reason, &b.BannedBy, &created); err != nil {
			return nil, err
		}
		b.CreatedAt = time.Unix(created, 0)
		bans = append(bans, b)
	}
	return bans, rows.Err()
}

// ---- Sessions ----

// RecordJoin opens a session row.
func (s *Store) RecordJoin(ctx context.Context, userID uint32, username string, netID uint32, remote string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO sessions (user_id, username, net_id, remote, joined_at) VALUES (?, ?, ?, ?, ?)",
		userID, username, netID, remote, at.Unix())
	return err
}

// RecordLeave closes the open session of userID with netID.
func (s *Store) RecordLeave(ctx context.Context, userID, netID uint32, at time.Time) error {
	_, err := s.db.Exec(ctx,
		"UPDATE sessions SET left_at = ? WHERE user_id = ? AND net_id = ? AND left_at IS NULL",
		at.Unix(), userID, netID)
	return err
}

// CloseOpenSessions ends every open session, for example after a crash.
func (s *Store) CloseOpenSessions(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.db.Exec(ctx, "UPDATE sessions SET left_at = ? WHERE left_at IS NULL", at.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, username, net_id, remote, joined_at, left_at
		FROM sessions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var rec Session
		var joined int64
		var left sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Username, &rec.NetID, &rec.Remote, &joined, &left); err != nil {
			return nil, err
		}
		rec.JoinedAt = time.Unix(joined, 0)
		if left.Valid {
			t := time.Unix(left.Int64, 0)
			rec.LeftAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ---- Chat ----

// LogChat appends a chat line.
func (s *Store) LogChat(ctx context.Context, userID uint32, username, message string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO chat_log (user_id, username, message, created_at) VALUES (?, ?, ?, ?)",
		userID, username, message, at.Unix())
	return err
}

// RecentChat returns up to limit chat lines, newest first.
func (s *Store) RecentChat(ctx context.Context, limit int) ([]ChatLine, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, user_id, username, message, created_at FROM chat_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatLine
	for rows.Next() {
		var c ChatLine
		var created int64
		if err := rows.Scan(&c.ID, &c.UserID, &c.Username, &c.Message, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneChat deletes chat lines older than the given number of days.
func (s *Store) PruneChat(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	res, err := s.db.Exec(ctx, "DELETE FROM chat_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune chat log: %w", err)
	}
	return res.RowsAffected()
}
