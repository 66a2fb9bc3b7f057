// Package bridge connects external chat platforms to the storefront gateway:
// customer messages flow in through the gateway's intake API, and agent
// replies flow back out through the platform bot.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// CustomerMessage is one inbound platform message handed to the gateway.
type CustomerMessage struct {
	Channel  string `json:"channel"` // "DISCORD" | "TELEGRAM"
	ChatID   string `json:"chatId"`
	SenderID string `json:"senderId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Content  string `json:"content"`
}

// Ingress submits customer messages to the gateway intake endpoint. The
// gateway owns session creation: a first message from a new chat id comes
// back with a freshly minted session.
type Ingress struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewIngress creates an Ingress against baseURL.
func NewIngress(baseURL, token string, logger *slog.Logger) *Ingress {
	return &Ingress{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type ingressResponse struct {
	SessionID string `json:"sessionId"`
}

// Submit delivers one customer message and returns the session it landed in.
func (in *Ingress) Submit(ctx context.Context, msg CustomerMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		in.baseURL+"/api/ingress/message", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if in.token != "" {
		req.Header.Set("Authorization", "Bearer "+in.token)
	}

	resp, err := in.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ingress submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("ingress submit: gateway returned %s", resp.Status)
	}

	var out ingressResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ingress submit: decode: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("ingress submit: gateway returned no session id")
	}
	return out.SessionID, nil
}
