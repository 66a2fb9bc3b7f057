package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"helpdesk/internal/domain"
	"helpdesk/internal/metrics"
)

// LoaderConfig configures the bulk session fetch. Scoping is server-side:
// the auth layer decides whether the caller sees every session (agents) or
// only their own (customers), keyed off the same credentials the websocket
// carries.
type LoaderConfig struct {
	APIBase   string // e.g. https://shop.example.com
	AuthToken string
	Cookie    string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Loader performs the bulk session list fetch that seeds the roster after
// every connect.
type Loader struct {
	cfg    LoaderConfig
	client *http.Client
	logger *slog.Logger
}

// NewLoader creates a Loader with its own http.Client.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger,
	}
}

type sessionListResponse struct {
	Data []domain.Session `json:"data"`
}

// Fetch returns the full session list for the caller's scope.
func (l *Loader) Fetch(ctx context.Context) ([]domain.Session, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.APIBase+"/api/sessions", nil)
	if err != nil {
		return nil, err
	}
	if l.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+l.cfg.AuthToken)
	}
	if l.cfg.Cookie != "" {
		req.Header.Set("Cookie", l.cfg.Cookie)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session bulk load: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session bulk load: gateway returned %s", resp.Status)
	}

	var out sessionListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("session bulk load: decode: %w", err)
	}

	metrics.BulkLoadsTotal.Inc()
	l.logger.Info("session bulk load complete",
		"sessions", len(out.Data),
		"took", time.Since(start),
	)
	return out.Data, nil
}
