// Package cursor tracks the one session currently open for message display.
// Its timeline is authoritative-on-demand: populated by a history replay
// after joining the session's room, then extended in place by live events,
// independent of directory refreshes.
package cursor

import (
	"log/slog"
	"sync"

	"helpdesk/internal/domain"
	"helpdesk/internal/metrics"
)

// State is the cursor's position in its selection lifecycle.
type State int

const (
	// Idle: no session selected.
	Idle State = iota
	// Joining: a session was selected, the room join is out, and the
	// history replay has not arrived yet.
	Joining
	// Populated: the replay landed; the list grows in place from live
	// events until the selection changes.
	Populated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Joining:
		return "joining"
	case Populated:
		return "populated"
	default:
		return "unknown"
	}
}

// Cursor is the active-conversation state machine. At most one session is
// selected at a time per client.
type Cursor struct {
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	sessionID string
	messages  []domain.Message
}

// New creates an idle cursor.
func New(logger *slog.Logger) *Cursor {
	return &Cursor{logger: logger}
}

// Select records a new target session and clears the visible list while the
// history replay is awaited. Reselecting the unchanged id is a no-op — a
// populated list must never be cleared by a redundant selection — and the
// false return tells the caller no room join is needed.
func (c *Cursor) Select(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle && c.sessionID == sessionID {
		c.logger.Debug("session reselected, keeping list", "session", sessionID)
		return false
	}

	c.state = Joining
	c.sessionID = sessionID
	c.messages = nil
	c.logger.Debug("session selected", "session", sessionID)
	return true
}

// Clear returns the cursor to Idle.
func (c *Cursor) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Idle
	c.sessionID = ""
	c.messages = nil
}

// ApplyHistory installs a replay, replacing the list wholesale, discarding
// anything accumulated before it. A replay whose session no longer matches
// the current target is stale and ignored; an id-less replay is accepted
// only while a join is pending, for gateways that omit the session id.
func (c *Cursor) ApplyHistory(sessionID string, msgs []domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		metrics.StaleReplaysTotal.Inc()
		return false
	}
	if sessionID == "" {
		if c.state != Joining {
			metrics.StaleReplaysTotal.Inc()
			return false
		}
	} else if sessionID != c.sessionID {
		c.logger.Debug("stale history replay ignored",
			"replay", sessionID, "current", c.sessionID)
		metrics.StaleReplaysTotal.Inc()
		return false
	}

	c.messages = make([]domain.Message, len(msgs))
	copy(c.messages, msgs)
	c.state = Populated
	c.logger.Debug("history replay applied", "session", c.sessionID, "messages", len(msgs))
	return true
}

// ApplyInbound extends the active list with one live message if it belongs
// to the selected session. Messages for other sessions never touch it.
func (c *Cursor) ApplyInbound(msg domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle || msg.SessionID != c.sessionID {
		return false
	}
	c.messages = append(c.messages, msg)
	return true
}

// Session returns the selected session id and current state.
func (c *Cursor) Session() (string, State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.state
}

// Messages returns a copy of the active timeline.
func (c *Cursor) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}
