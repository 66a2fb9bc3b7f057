// Package store is a local SQLite write-through cache of sessions and
// messages, so an agent console can still render last-known history while
// the gateway is unreachable. The gateway stays authoritative; the cache is
// never read back into the live directory.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"helpdesk/internal/domain"
	"helpdesk/internal/identity"

	_ "modernc.org/sqlite"
)

// Store wraps the cache database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and migrates) the cache at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open cache: %w", err)
	}

	// Single connection: SQLite writes are serialized anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		channel       TEXT NOT NULL,
		ticket_id     TEXT,
		agent_id      TEXT,
		status        TEXT,
		display_name  TEXT,
		avatar        TEXT,
		created_at    TEXT,
		cached_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role        TEXT NOT NULL,
		sender_id   TEXT,
		content     TEXT,
		media       TEXT,
		read_at     TEXT,
		created_at  TEXT,
		cached_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, cached_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertSession records a session's current shape. The resolved display
// identity is denormalized so the cache is renderable without the variant.
func (s *Store) UpsertSession(ctx context.Context, sess domain.Session) error {
	d := identity.Resolve(&sess)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, channel, ticket_id, agent_id, status, display_name, avatar, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   ticket_id=excluded.ticket_id,
		   agent_id=excluded.agent_id,
		   status=excluded.status,
		   display_name=excluded.display_name,
		   avatar=excluded.avatar,
		   cached_at=CURRENT_TIMESTAMP`,
		sess.ID, string(sess.Channel), sess.TicketID, sess.AgentID, sess.Status,
		d.Name, d.Avatar, sess.CreatedAt,
	)
	return err
}

// AppendMessage caches one message. Re-delivered ids are ignored: the cache
// keys on the server-assigned message id even though the live merge does no
// deduplication.
func (s *Store) AppendMessage(ctx context.Context, m domain.Message) error {
	media, err := json.Marshal(m.Media)
	if err != nil {
		return err
	}
	var readAt any
	if m.ReadAt != nil {
		readAt = *m.ReadAt
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages (id, session_id, role, sender_id, content, media, read_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, string(m.Role), m.SenderID, m.Content, string(media), readAt, m.CreatedAt,
	)
	return err
}

// Messages returns the cached timeline for a session, oldest first.
func (s *Store) Messages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, sender_id, content, media, read_at, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY cached_at ASC, rowid ASC LIMIT ?`, sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var role, media string
		var senderID, readAt sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &senderID, &m.Content, &media, &readAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		m.SenderID = senderID.String
		if readAt.Valid {
			v := readAt.String
			m.ReadAt = &v
		}
		if media != "" {
			if err := json.Unmarshal([]byte(media), &m.Media); err != nil {
				s.logger.Warn("bad media in cache", "message", m.ID, "err", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Sweep deletes cached rows older than retentionDays.
func (s *Store) Sweep(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE cached_at < ?`, cutoff)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE cached_at < ? AND id NOT IN (SELECT DISTINCT session_id FROM messages)`, cutoff); err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("cache swept", "messages_removed", n, "retention_days", retentionDays)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
