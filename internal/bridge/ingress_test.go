package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmit(t *testing.T) {
	var got CustomerMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ingress/message" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"sessionId":"s-new"}`))
	}))
	defer srv.Close()

	in := NewIngress(srv.URL, "tok", slog.Default())
	sid, err := in.Submit(context.Background(), CustomerMessage{
		Channel:  "DISCORD",
		ChatID:   "chan-1",
		SenderID: "user-1",
		Username: "gamer",
		Content:  "where is my order?",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sid != "s-new" {
		t.Errorf("sessionId = %q", sid)
	}
	if got.Channel != "DISCORD" || got.Content != "where is my order?" {
		t.Errorf("gateway received %+v", got)
	}
}

func TestSubmitRejectsEmptySessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	in := NewIngress(srv.URL, "", slog.Default())
	if _, err := in.Submit(context.Background(), CustomerMessage{Content: "hi"}); err == nil {
		t.Fatal("expected error for missing session id")
	}
}

func TestSubmitGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	in := NewIngress(srv.URL, "", slog.Default())
	if _, err := in.Submit(context.Background(), CustomerMessage{Content: "hi"}); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestSessionMap(t *testing.T) {
	m := newSessionMap()
	m.bind("chat-1", "s1")

	if sid, ok := m.session("chat-1"); !ok || sid != "s1" {
		t.Errorf("session(chat-1) = %q, %v", sid, ok)
	}
	if chat, ok := m.chat("s1"); !ok || chat != "chat-1" {
		t.Errorf("chat(s1) = %q, %v", chat, ok)
	}
	if _, ok := m.chat("unknown"); ok {
		t.Error("unknown session resolved to a chat")
	}

	// Rebinding the same chat (new session after resolve) wins.
	m.bind("chat-1", "s2")
	if sid, _ := m.session("chat-1"); sid != "s2" {
		t.Errorf("rebound session = %q", sid)
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 100); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short = %v", got)
	}

	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789\n"
	}
	chunks := splitMessage(long, 100)
	if len(chunks) < 2 {
		t.Fatalf("long message not split: %d chunks", len(chunks))
	}
	rejoined := ""
	for _, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk exceeds limit: %d bytes", len(c))
		}
		rejoined += c
	}
	if rejoined != long {
		t.Error("chunks do not reassemble the original")
	}
}
