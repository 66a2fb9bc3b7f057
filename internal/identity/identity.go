// Package identity turns a session's channel-specific participant variant
// into one uniform display identity, so list rows and message headers render
// the same way regardless of where the customer came from.
package identity

import "helpdesk/internal/domain"

// Display is the channel-independent rendering of a participant.
type Display struct {
	Name   string
	Avatar string
}

// Resolve maps a session's participant to its display identity. Resolution
// is per-render and derives nothing ahead of time; a web visitor with no
// profile falls back to email, then to their raw user id.
func Resolve(sess *domain.Session) Display {
	switch p := sess.Participant.(type) {
	case domain.WebParticipant:
		name := p.Name
		if name == "" {
			name = p.Email
		}
		if name == "" {
			name = p.UserID
		}
		return Display{Name: name}
	case domain.DiscordParticipant:
		return Display{Name: p.Username, Avatar: p.Avatar}
	case domain.TelegramParticipant:
		return Display{Name: p.Username, Avatar: p.Avatar}
	default:
		return Display{Name: "unknown"}
	}
}
