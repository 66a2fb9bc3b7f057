package stream

import (
	"context"
	"log/slog"
	"time"

	"helpdesk/internal/cursor"
	"helpdesk/internal/domain"
	"helpdesk/internal/roster"
	"helpdesk/internal/store"
)

// Merger fans one inbound message out to every structure that displays it:
// the session directory and, when the message belongs to the selected
// session, the active timeline. Both appends happen inside one loop command,
// so no reader sees the message in one place but not the other.
type Merger struct {
	roster *roster.Roster
	cursor *cursor.Cursor
	cache  *store.Store // optional
	logger *slog.Logger

	// notify fires after a message merged into a known session. Bridges use
	// it to relay agent replies outward.
	notify func(domain.Message, domain.Session)
}

// NewMerger creates a Merger. cache may be nil.
func NewMerger(ro *roster.Roster, cu *cursor.Cursor, cache *store.Store, logger *slog.Logger) *Merger {
	return &Merger{roster: ro, cursor: cu, cache: cache, logger: logger}
}

// SetNotify installs the post-merge hook. Call before the loop starts.
func (m *Merger) SetNotify(fn func(domain.Message, domain.Session)) {
	m.notify = fn
}

// Apply merges one live message. Must run on the loop goroutine.
func (m *Merger) Apply(msg domain.Message) {
	merged := m.roster.ApplyInbound(msg)
	m.cursor.ApplyInbound(msg)

	if m.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := m.cache.AppendMessage(ctx, msg); err != nil {
			m.logger.Warn("message not cached", "message", msg.ID, "err", err)
		}
		cancel()
	}

	if merged && m.notify != nil {
		if sess, ok := m.roster.Get(msg.SessionID); ok {
			m.notify(msg, sess)
		}
	}
}

// Replace installs a bulk-load result and caches the refreshed sessions.
// Must run on the loop goroutine.
func (m *Merger) Replace(list []domain.Session) {
	m.roster.Replace(list)

	if m.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := range list {
		if err := m.cache.UpsertSession(ctx, list[i]); err != nil {
			m.logger.Warn("session not cached", "session", list[i].ID, "err", err)
			return
		}
	}
}
