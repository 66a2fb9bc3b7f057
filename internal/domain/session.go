// Package domain holds the session-layer types shared by every package:
// sessions, messages, participants, and the gateway wire protocol.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Channel is the surface a conversation arrived through.
type Channel string

const (
	ChannelWeb      Channel = "WEB"
	ChannelDiscord  Channel = "DISCORD"
	ChannelTelegram Channel = "TELEGRAM"
)

// Session status values the gateway is known to send. The field stays an
// open string so an unknown status flows through display untouched instead
// of failing decode.
const (
	StatusActive   = "ACTIVE"
	StatusResolved = "RESOLVED"
)

// Participant identifies who the customer is, shaped by the channel they
// came through. Exactly one variant is populated per session.
type Participant interface {
	participant()
}

// WebParticipant is a storefront visitor, possibly anonymous.
type WebParticipant struct {
	UserID string
	Name   string
	Email  string
}

// DiscordParticipant is a customer bridged in from Discord.
type DiscordParticipant struct {
	Username string
	Avatar   string
}

// TelegramParticipant is a customer bridged in from Telegram.
type TelegramParticipant struct {
	Username string
	Avatar   string
}

func (WebParticipant) participant()      {}
func (DiscordParticipant) participant()  {}
func (TelegramParticipant) participant() {}

// Session is one customer conversation. Messages holds what has merged in
// from the aggregate stream; the complete timeline lives behind the active
// conversation's history replay.
type Session struct {
	ID          string
	Channel     Channel
	TicketID    string
	AgentID     string
	Participant Participant
	Status      string
	CreatedAt   string // epoch milliseconds as sent by the gateway
	Messages    []Message
}

// sessionWire is the flat shape the gateway speaks: participant fields are
// channel-prefixed columns, not a nested object.
type sessionWire struct {
	ID               string    `json:"id"`
	Channel          Channel   `json:"channel"`
	TicketID         *string   `json:"ticketId"`
	AgentID          *string   `json:"agentId"`
	Status           string    `json:"status"`
	CreatedAt        string    `json:"createdAt"`
	Messages         []Message `json:"messages"`
	UserID           *string   `json:"userId"`
	UserName         *string   `json:"userName"`
	UserEmail        *string   `json:"userEmail"`
	DiscordUsername  *string   `json:"discordUsername"`
	DiscordAvatar    *string   `json:"discordAvatar"`
	TelegramUsername *string   `json:"telegramUsername"`
	TelegramAvatar   *string   `json:"telegramAvatar"`
}

// UnmarshalJSON folds the gateway's flat session row into the variant form.
func (s *Session) UnmarshalJSON(data []byte) error {
	var w sessionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	p, err := decodeParticipant(&w)
	if err != nil {
		return err
	}

	s.ID = w.ID
	s.Channel = w.Channel
	s.TicketID = deref(w.TicketID)
	s.AgentID = deref(w.AgentID)
	s.Participant = p
	s.Status = w.Status
	s.CreatedAt = w.CreatedAt
	s.Messages = w.Messages
	return nil
}

// MarshalJSON writes the same flat shape back out, so cached or re-emitted
// sessions round-trip.
func (s Session) MarshalJSON() ([]byte, error) {
	w := sessionWire{
		ID:        s.ID,
		Channel:   s.Channel,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		Messages:  s.Messages,
	}
	if s.TicketID != "" {
		w.TicketID = &s.TicketID
	}
	if s.AgentID != "" {
		w.AgentID = &s.AgentID
	}
	switch p := s.Participant.(type) {
	case WebParticipant:
		w.UserID, w.UserName, w.UserEmail = &p.UserID, &p.Name, &p.Email
	case DiscordParticipant:
		w.DiscordUsername, w.DiscordAvatar = &p.Username, &p.Avatar
	case TelegramParticipant:
		w.TelegramUsername, w.TelegramAvatar = &p.Username, &p.Avatar
	}
	return json.Marshal(w)
}

func decodeParticipant(w *sessionWire) (Participant, error) {
	switch w.Channel {
	case ChannelWeb:
		return WebParticipant{
			UserID: deref(w.UserID),
			Name:   deref(w.UserName),
			Email:  deref(w.UserEmail),
		}, nil
	case ChannelDiscord:
		return DiscordParticipant{
			Username: deref(w.DiscordUsername),
			Avatar:   deref(w.DiscordAvatar),
		}, nil
	case ChannelTelegram:
		return TelegramParticipant{
			Username: deref(w.TelegramUsername),
			Avatar:   deref(w.TelegramAvatar),
		}, nil
	default:
		return nil, fmt.Errorf("session %s: unknown channel %q", w.ID, w.Channel)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreatedTime parses the epoch-millisecond creation timestamp.
func (s *Session) CreatedTime() time.Time {
	return epochMillis(s.CreatedAt)
}

func epochMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
