package domain

import (
	"context"
	"encoding/json"
)

// Event names spoken on the gateway socket.
const (
	EventJoinAllSessions = "joinAllSessions"
	EventJoinRoom        = "joinRoom"
	EventSendMessage     = "sendMessage"
	EventSessionHistory  = "getSessionHistory"
	EventReceiveMessage  = "receiveMessage"
)

// Envelope frames every event on the wire in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinAllSessionsPayload joins the aggregate room for an identity.
type JoinAllSessionsPayload struct {
	RoomID string `json:"roomId"`
}

// JoinRoomPayload joins one session's live-event room.
type JoinRoomPayload struct {
	SessionID string `json:"sessionId"`
}

// FilePayload carries one raw attachment. The server persists the bytes and
// rewrites the broadcast message's media field to durable URLs; the client
// never computes the final URL.
type FilePayload struct {
	Filename string `json:"filename"`
	Buffer   []byte `json:"buffer"`
}

// SendMessagePayload submits one outbound message.
type SendMessagePayload struct {
	Content   string        `json:"content"`
	Files     []FilePayload `json:"files,omitempty"`
	SessionID string        `json:"sessionId"`
	// ClientID is a client-generated correlation id. The current gateway
	// ignores it; it exists so an optimistic-rendering mode could reconcile
	// the echo later without a protocol change.
	ClientID string `json:"clientId,omitempty"`
}

// SessionHistoryPayload is the full replay for a just-joined session room.
// SessionID may be absent on older gateways; callers then fall back to the
// session id of the first replayed message.
type SessionHistoryPayload struct {
	SessionID string    `json:"sessionId,omitempty"`
	Messages  []Message `json:"messages"`
}

// ReceiveMessagePayload delivers one new message for any session.
type ReceiveMessagePayload struct {
	Message Message `json:"message"`
}

// Emitter sends fire-and-forget events to the gateway. An error means the
// event was not handed to the wire; there is no acknowledgement beyond that.
type Emitter interface {
	Emit(event string, data any) error
}

// GatewaySink receives transport lifecycle transitions and inbound events.
// Calls arrive from a single transport goroutine in delivery order; the sink
// must not reorder them.
type GatewaySink interface {
	OnConnected()
	OnDisconnected(err error)
	OnEvent(ev Envelope)
}

// Transport is the one persistent connection a client process owns.
type Transport interface {
	Emitter
	Connect(ctx context.Context) error
	Close() error
}

// Identity is what the auth collaborator supplies about the local user. It
// is used solely to pick the aggregate room.
type Identity struct {
	UserID string
	Role   string // "USER" for customers; anything else is an agent
}

// AggregateRoom returns the room carrying every session visible to this
// identity: a customer's own id, or the shared agent broadcast room.
func (id Identity) AggregateRoom() string {
	if id.Role == "USER" {
		return id.UserID
	}
	return "ASSISTANT"
}
