package domain

import "time"

// Role determines which side of the conversation a message belongs to.
type Role string

const (
	RoleUser      Role = "USER"      // the customer
	RoleBot       Role = "BOT"       // system-originated, no sender
	RoleAssistant Role = "ASSISTANT" // a support agent
)

// Message is one chat turn within a session. The gateway assigns the id;
// the sending client only ever sees its own message once the gateway echoes
// it back through the room like any other member's.
type Message struct {
	ID        string   `json:"id"`
	SessionID string   `json:"sessionId"`
	Role      Role     `json:"role"`
	SenderID  string   `json:"senderId,omitempty"` // empty for BOT messages
	Content   string   `json:"content"`            // may be empty only when Media is not
	Media     []string `json:"media,omitempty"`    // 0-3 durable image URLs, server-written
	ReadAt    *string  `json:"readAt"`             // set once the counterpart has viewed it
	CreatedAt string   `json:"createdAt"`
}

// CreatedTime parses the epoch-millisecond creation timestamp.
func (m *Message) CreatedTime() time.Time {
	return epochMillis(m.CreatedAt)
}
