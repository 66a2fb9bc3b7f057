package cursor

import (
	"log/slog"
	"testing"

	"helpdesk/internal/domain"
)

func msg(id, sessionID, content string) domain.Message {
	return domain.Message{ID: id, SessionID: sessionID, Role: domain.RoleUser, Content: content}
}

func TestSelectTransitions(t *testing.T) {
	c := New(slog.Default())

	if _, state := c.Session(); state != Idle {
		t.Fatalf("initial state = %v, want Idle", state)
	}

	if !c.Select("s1") {
		t.Fatal("first selection should request a join")
	}
	if sid, state := c.Session(); sid != "s1" || state != Joining {
		t.Fatalf("after select: %q/%v", sid, state)
	}

	if !c.ApplyHistory("s1", []domain.Message{msg("m1", "s1", "hello")}) {
		t.Fatal("replay for the selected session must apply")
	}
	if _, state := c.Session(); state != Populated {
		t.Fatalf("after replay: %v, want Populated", state)
	}
	if got := c.Messages(); len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("messages = %+v", got)
	}
}

func TestRedundantSelectKeepsList(t *testing.T) {
	c := New(slog.Default())
	c.Select("s1")
	c.ApplyHistory("s1", []domain.Message{msg("m1", "s1", "hello")})

	if c.Select("s1") {
		t.Fatal("reselecting the active session must be a no-op")
	}
	if got := c.Messages(); len(got) != 1 {
		t.Fatalf("redundant select cleared the list: %+v", got)
	}
	if _, state := c.Session(); state != Populated {
		t.Fatalf("state = %v, want Populated", state)
	}
}

func TestSwitchClearsList(t *testing.T) {
	c := New(slog.Default())
	c.Select("s1")
	c.ApplyHistory("s1", []domain.Message{msg("m1", "s1", "hello")})

	if !c.Select("s2") {
		t.Fatal("switching sessions should request a join")
	}
	if got := c.Messages(); len(got) != 0 {
		t.Fatalf("old messages visible after switch: %+v", got)
	}
}

func TestStaleReplayIgnored(t *testing.T) {
	c := New(slog.Default())
	c.Select("s1")
	c.Select("s2")

	// The replay for s1 arrives after the user already moved to s2.
	if c.ApplyHistory("s1", []domain.Message{msg("m1", "s1", "old")}) {
		t.Fatal("stale replay must be ignored")
	}
	if got := c.Messages(); len(got) != 0 {
		t.Fatalf("stale replay leaked into the list: %+v", got)
	}

	if !c.ApplyHistory("s2", []domain.Message{msg("m2", "s2", "new")}) {
		t.Fatal("current replay must apply")
	}
}

func TestReplayAfterClearIgnored(t *testing.T) {
	c := New(slog.Default())
	c.Select("s1")
	c.Clear()

	if c.ApplyHistory("s1", []domain.Message{msg("m1", "s1", "late")}) {
		t.Fatal("replay must not apply while idle")
	}
}

func TestIdlessReplayOnlyWhileJoining(t *testing.T) {
	c := New(slog.Default())
	c.Select("s1")

	if !c.ApplyHistory("", nil) {
		t.Fatal("id-less empty replay must apply while joining")
	}
	if _, state := c.Session(); state != Populated {
		t.Fatalf("state = %v, want Populated", state)
	}

	// A second id-less replay after population has no join to match; drop it.
	c.ApplyInbound(msg("m1", "s1", "live"))
	if c.ApplyHistory("", nil) {
		t.Fatal("id-less replay outside a pending join must be ignored")
	}
	if got := c.Messages(); len(got) != 1 {
		t.Fatalf("messages = %+v", got)
	}
}

func TestReplayReplacesWholesale(t *testing.T) {
	c := New(slog.Default())
	c.Select("s1")
	c.ApplyInbound(msg("live1", "s1", "raced the replay"))

	c.ApplyHistory("s1", []domain.Message{msg("m1", "s1", "a"), msg("m2", "s1", "b")})
	got := c.Messages()
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("replay did not replace wholesale: %+v", got)
	}
}

func TestApplyInboundScoping(t *testing.T) {
	c := New(slog.Default())
	c.Select("s1")
	c.ApplyHistory("s1", nil)

	if !c.ApplyInbound(msg("m1", "s1", "mine")) {
		t.Fatal("message for the selected session must append")
	}
	if c.ApplyInbound(msg("m2", "s2", "other")) {
		t.Fatal("message for another session must not touch the active list")
	}
	if got := c.Messages(); len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("messages = %+v", got)
	}
}

func TestApplyInboundWhileIdle(t *testing.T) {
	c := New(slog.Default())
	if c.ApplyInbound(msg("m1", "s1", "noise")) {
		t.Fatal("idle cursor must not accept messages")
	}
}
