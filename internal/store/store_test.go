package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"helpdesk/internal/domain"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"), slog.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertSessionAndMessages(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	sess := domain.Session{
		ID:          "s1",
		Channel:     domain.ChannelDiscord,
		Status:      domain.StatusActive,
		Participant: domain.DiscordParticipant{Username: "gamer", Avatar: "https://cdn/av.png"},
		CreatedAt:   "1700000000000",
	}
	if err := s.UpsertSession(ctx, sess); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	msgs := []domain.Message{
		{ID: "m1", SessionID: "s1", Role: domain.RoleUser, Content: "first"},
		{ID: "m2", SessionID: "s1", Role: domain.RoleAssistant, SenderID: "agent-1", Content: "second", Media: []string{"https://cdn/img.png"}},
	}
	for _, m := range msgs {
		if err := s.AppendMessage(ctx, m); err != nil {
			t.Fatalf("append %s: %v", m.ID, err)
		}
	}

	got, err := s.Messages(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if got[1].SenderID != "agent-1" || len(got[1].Media) != 1 {
		t.Errorf("m2 = %+v", got[1])
	}
}

func TestAppendMessageIdempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.UpsertSession(ctx, domain.Session{ID: "s1", Channel: domain.ChannelWeb, Participant: domain.WebParticipant{UserID: "u1"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	m := domain.Message{ID: "m1", SessionID: "s1", Role: domain.RoleUser, Content: "once"}
	if err := s.AppendMessage(ctx, m); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendMessage(ctx, m); err != nil {
		t.Fatalf("re-append: %v", err)
	}

	got, _ := s.Messages(ctx, "s1", 0)
	if len(got) != 1 {
		t.Fatalf("duplicate cached: %d rows", len(got))
	}
}

func TestUpsertUpdatesInPlace(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	sess := domain.Session{ID: "s1", Channel: domain.ChannelWeb, Status: domain.StatusActive, Participant: domain.WebParticipant{UserID: "u1"}}
	s.UpsertSession(ctx, sess)

	sess.Status = domain.StatusResolved
	sess.AgentID = "agent-1"
	if err := s.UpsertSession(ctx, sess); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var status, agent string
	row := s.db.QueryRowContext(ctx, `SELECT status, agent_id FROM sessions WHERE id = ?`, "s1")
	if err := row.Scan(&status, &agent); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if status != domain.StatusResolved || agent != "agent-1" {
		t.Errorf("status/agent = %q/%q", status, agent)
	}
}

func TestMessagesUnknownSession(t *testing.T) {
	s := openTest(t)
	got, err := s.Messages(context.Background(), "nope", 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d rows", len(got))
	}
}
