package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSessionDecodeWebParticipant(t *testing.T) {
	raw := `{
		"id": "s1", "channel": "WEB", "status": "ACTIVE",
		"ticketId": null, "agentId": "agent-9",
		"userId": "u1", "userName": "Dana", "userEmail": "dana@example.com",
		"createdAt": "1700000000000",
		"messages": [{"id":"m1","sessionId":"s1","role":"USER","content":"hi","readAt":null,"createdAt":"1700000000001"}]
	}`

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	p, ok := s.Participant.(WebParticipant)
	if !ok {
		t.Fatalf("participant = %T, want WebParticipant", s.Participant)
	}
	if p.Name != "Dana" || p.Email != "dana@example.com" || p.UserID != "u1" {
		t.Errorf("participant = %+v", p)
	}
	if s.TicketID != "" {
		t.Errorf("ticketId = %q, want empty for null", s.TicketID)
	}
	if s.AgentID != "agent-9" {
		t.Errorf("agentId = %q", s.AgentID)
	}
	if len(s.Messages) != 1 || s.Messages[0].ID != "m1" {
		t.Errorf("messages = %+v", s.Messages)
	}
}

func TestSessionDecodeDiscordParticipant(t *testing.T) {
	raw := `{"id":"s2","channel":"DISCORD","status":"ACTIVE","discordUsername":"gamer","discordAvatar":"https://cdn/av.png","createdAt":"1700000000000"}`

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p, ok := s.Participant.(DiscordParticipant)
	if !ok {
		t.Fatalf("participant = %T, want DiscordParticipant", s.Participant)
	}
	if p.Username != "gamer" || p.Avatar != "https://cdn/av.png" {
		t.Errorf("participant = %+v", p)
	}
}

func TestSessionDecodeUnknownChannel(t *testing.T) {
	raw := `{"id":"s3","channel":"CARRIER_PIGEON","status":"ACTIVE"}`
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	in := Session{
		ID:          "s4",
		Channel:     ChannelTelegram,
		Status:      StatusResolved,
		Participant: TelegramParticipant{Username: "tg_user"},
		CreatedAt:   "1700000000000",
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Participant != in.Participant {
		t.Errorf("participant = %+v, want %+v", out.Participant, in.Participant)
	}
	if out.Status != StatusResolved {
		t.Errorf("status = %q", out.Status)
	}
}

func TestCreatedTime(t *testing.T) {
	s := Session{CreatedAt: "1700000000000"}
	want := time.UnixMilli(1700000000000)
	if got := s.CreatedTime(); !got.Equal(want) {
		t.Errorf("CreatedTime = %v, want %v", got, want)
	}

	bad := Session{CreatedAt: "not-a-number"}
	if !bad.CreatedTime().IsZero() {
		t.Error("expected zero time for unparseable timestamp")
	}
}

func TestAggregateRoom(t *testing.T) {
	customer := Identity{UserID: "u42", Role: "USER"}
	if got := customer.AggregateRoom(); got != "u42" {
		t.Errorf("customer room = %q, want own id", got)
	}

	agent := Identity{UserID: "a7", Role: "ASSISTANT"}
	if got := agent.AggregateRoom(); got != "ASSISTANT" {
		t.Errorf("agent room = %q, want ASSISTANT", got)
	}
}
