// Package roster holds the authoritative local copy of every session the
// current identity can see: a bulk-loaded list kept fresh by incremental
// message events.
package roster

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"helpdesk/internal/domain"
	"helpdesk/internal/metrics"
)

const (
	// Bounded buffer for messages that arrive before their session does
	// (a brand-new session's first message racing the last bulk load).
	orphanLimit  = 64
	orphanWindow = 30 * time.Second
)

type orphan struct {
	msg domain.Message
	at  time.Time
}

// Roster is the in-memory session directory. All mutation happens on the
// stream loop goroutine; the internal lock exists so read accessors can be
// called from anywhere without observing a torn update.
type Roster struct {
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	order    []string
	sessions map[string]*domain.Session
	orphans  []orphan
}

// New creates an empty roster.
func New(logger *slog.Logger) *Roster {
	return &Roster{
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*domain.Session),
	}
}

// Replace installs a fresh bulk-load result wholesale, preserving the
// server's ordering, then splices in any buffered orphan messages whose
// session has now appeared.
func (r *Roster) Replace(list []domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = r.order[:0]
	r.sessions = make(map[string]*domain.Session, len(list))
	for i := range list {
		s := list[i]
		if _, dup := r.sessions[s.ID]; dup {
			// Redundant aggregate joins can make the gateway send a
			// session twice in one load; the first copy wins.
			continue
		}
		r.order = append(r.order, s.ID)
		r.sessions[s.ID] = &s
	}
	metrics.DirectorySessions.Set(int64(len(r.order)))

	r.spliceOrphansLocked()
}

// ApplyInbound appends a live message to its session's list. Unknown
// sessions buffer the message for a short window instead of dropping it;
// the return value reports whether the append landed.
func (r *Roster) ApplyInbound(msg domain.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepOrphansLocked()

	s, ok := r.sessions[msg.SessionID]
	if !ok {
		if len(r.orphans) >= orphanLimit {
			r.logger.Warn("orphan buffer full, dropping message",
				"session", msg.SessionID, "message", msg.ID)
			metrics.OrphansDroppedTotal.Inc()
			return false
		}
		r.orphans = append(r.orphans, orphan{msg: msg, at: r.now()})
		metrics.OrphansWaiting.Set(int64(len(r.orphans)))
		r.logger.Debug("message buffered for unknown session",
			"session", msg.SessionID, "message", msg.ID)
		return false
	}

	s.Messages = append(s.Messages, msg)
	metrics.MessagesMergedTotal.Inc()
	return true
}

// spliceOrphansLocked appends buffered messages, in arrival order, to
// sessions that have since appeared. Expired leftovers are dropped.
func (r *Roster) spliceOrphansLocked() {
	if len(r.orphans) == 0 {
		return
	}
	cutoff := r.now().Add(-orphanWindow)
	kept := r.orphans[:0]
	for _, o := range r.orphans {
		if s, ok := r.sessions[o.msg.SessionID]; ok {
			s.Messages = append(s.Messages, o.msg)
			metrics.MessagesMergedTotal.Inc()
			continue
		}
		if o.at.Before(cutoff) {
			r.logger.Warn("orphan message expired",
				"session", o.msg.SessionID, "message", o.msg.ID)
			metrics.OrphansDroppedTotal.Inc()
			continue
		}
		kept = append(kept, o)
	}
	r.orphans = kept
	metrics.OrphansWaiting.Set(int64(len(r.orphans)))
}

func (r *Roster) sweepOrphansLocked() {
	if len(r.orphans) == 0 {
		return
	}
	cutoff := r.now().Add(-orphanWindow)
	kept := r.orphans[:0]
	for _, o := range r.orphans {
		if o.at.Before(cutoff) {
			r.logger.Warn("orphan message expired",
				"session", o.msg.SessionID, "message", o.msg.ID)
			metrics.OrphansDroppedTotal.Inc()
			continue
		}
		kept = append(kept, o)
	}
	r.orphans = kept
	metrics.OrphansWaiting.Set(int64(len(r.orphans)))
}

// Contains reports whether the directory knows the session.
func (r *Roster) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Get returns a snapshot copy of one session.
func (r *Roster) Get(id string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return snapshot(s), true
}

// Len returns the number of sessions held.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// List returns snapshot copies of every session matching the filter, in
// directory order. A nil filter matches everything.
func (r *Roster) List(filter func(*domain.Session) bool) []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Session, 0, len(r.order))
	for _, id := range r.order {
		s := r.sessions[id]
		if filter == nil || filter(s) {
			out = append(out, snapshot(s))
		}
	}
	return out
}

// NoTicket matches help-desk conversations not linked to a support ticket.
func NoTicket(s *domain.Session) bool { return s.TicketID == "" }

// Unassigned matches the pending queue: sessions with no agent.
func Unassigned(s *domain.Session) bool { return s.AgentID == "" }

// WithStatus matches sessions by literal status value.
func WithStatus(status string) func(*domain.Session) bool {
	return func(s *domain.Session) bool { return s.Status == status }
}

// Search returns sessions whose participant name/email or message content
// contains q, case-insensitively.
func (r *Roster) Search(q string) []domain.Session {
	q = strings.ToLower(q)
	return r.List(func(s *domain.Session) bool {
		if strings.Contains(strings.ToLower(participantText(s.Participant)), q) {
			return true
		}
		for i := range s.Messages {
			if strings.Contains(strings.ToLower(s.Messages[i].Content), q) {
				return true
			}
		}
		return false
	})
}

func participantText(p domain.Participant) string {
	switch v := p.(type) {
	case domain.WebParticipant:
		return v.Name + " " + v.Email + " " + v.UserID
	case domain.DiscordParticipant:
		return v.Username
	case domain.TelegramParticipant:
		return v.Username
	default:
		return ""
	}
}

// Stats are derived counts computed over the current list on demand, never
// maintained separately, so they cannot drift.
type Stats struct {
	Total      int
	ByStatus   map[string]int
	Assigned   int
	Unassigned int
}

// Stats computes directory statistics.
func (r *Roster) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Stats{ByStatus: make(map[string]int)}
	for _, id := range r.order {
		s := r.sessions[id]
		st.Total++
		st.ByStatus[s.Status]++
		if s.AgentID == "" {
			st.Unassigned++
		} else {
			st.Assigned++
		}
	}
	return st
}

// snapshot copies a session so readers never alias the live message slice.
func snapshot(s *domain.Session) domain.Session {
	out := *s
	out.Messages = make([]domain.Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}
