// Package rooms expresses "this client wants events for room X" as
// idempotent, fire-and-forget join requests. The gateway is the source of
// truth for room-scoped delivery; redundant membership is harmless and there
// is no leave operation — membership dies with the transport.
package rooms

import (
	"log/slog"
	"sync"

	"helpdesk/internal/domain"
)

// Manager tracks the rooms this client has asked for, so they can be
// re-announced after a reconnect. Membership never survives a reconnect on
// the gateway side.
type Manager struct {
	em     domain.Emitter
	logger *slog.Logger

	mu        sync.Mutex
	aggregate string
	session   string
}

// New creates a Manager emitting through em.
func New(em domain.Emitter, logger *slog.Logger) *Manager {
	return &Manager{em: em, logger: logger}
}

// JoinAggregate joins the room carrying every session visible to the
// identity: the fixed agent broadcast room, or the customer's own id.
func (m *Manager) JoinAggregate(id domain.Identity) {
	room := id.AggregateRoom()
	m.mu.Lock()
	m.aggregate = room
	m.mu.Unlock()
	m.join(domain.EventJoinAllSessions, domain.JoinAllSessionsPayload{RoomID: room})
}

// JoinSession joins one session's live-event room. Callable repeatedly while
// switching sessions; the previous room is never left explicitly.
func (m *Manager) JoinSession(sessionID string) {
	m.mu.Lock()
	m.session = sessionID
	m.mu.Unlock()
	m.join(domain.EventJoinRoom, domain.JoinRoomPayload{SessionID: sessionID})
}

// RejoinAll re-announces every remembered room. Called on each connected
// transition, first connect included.
func (m *Manager) RejoinAll() {
	m.mu.Lock()
	aggregate, session := m.aggregate, m.session
	m.mu.Unlock()

	if aggregate != "" {
		m.join(domain.EventJoinAllSessions, domain.JoinAllSessionsPayload{RoomID: aggregate})
	}
	if session != "" {
		m.join(domain.EventJoinRoom, domain.JoinRoomPayload{SessionID: session})
	}
}

func (m *Manager) join(event string, payload any) {
	if err := m.em.Emit(event, payload); err != nil {
		// Fire-and-forget: a failed join is re-announced on the next
		// connected transition.
		m.logger.Warn("room join not delivered", "event", event, "err", err)
	}
}
