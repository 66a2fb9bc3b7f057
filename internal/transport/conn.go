package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"helpdesk/internal/domain"
	"helpdesk/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the gateway.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong before the connection is
	// considered dead.
	pongWait = 60 * time.Second

	// Ping period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxMessageSize = 512 * 1024
)

// ErrNotConnected is returned by Emit while the socket is down. Emission is
// fire-and-forget; callers surface the error to the user, nothing retries.
var ErrNotConnected = errors.New("transport: not connected")

// Config configures the gateway connection. Credentials ride as transport
// headers, never as application payload.
type Config struct {
	URL         string // ws:// or wss:// gateway endpoint
	AuthToken   string // sent as Authorization: Bearer <token>
	Cookie      string // session cookie forwarded verbatim
	DialTimeout time.Duration
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	Logger      *slog.Logger
}

// Conn owns the single persistent websocket to the chat gateway. It redials
// automatically with capped backoff and reports every successful dial, first
// or subsequent, through the sink so the application can rejoin everything.
// Message ordering correctness depends on the transport being reliable and
// ordered, so there is no polling fallback.
type Conn struct {
	cfg    Config
	sink   domain.GatewaySink
	logger *slog.Logger
	id     string // per-process connection id, for log correlation

	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	mu sync.Mutex // serializes writes and guards ws
	ws *websocket.Conn
}

// New creates an unconnected Conn delivering to sink.
func New(cfg Config, sink domain.GatewaySink) *Conn {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Conn{
		cfg:    cfg,
		sink:   sink,
		logger: cfg.Logger,
		id:     uuid.NewString(),
		done:   make(chan struct{}),
	}
}

// Connect starts the connection manager. It is idempotent: the underlying
// channel is established only if not already running.
func (c *Conn) Connect(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(runCtx)
	return nil
}

// Close tears the connection down at application teardown.
func (c *Conn) Close() error {
	if !c.started.Load() {
		return nil
	}
	c.cancel()
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
	}
	c.mu.Unlock()
	<-c.done
	return nil
}

// run dials, pumps, and redials until the context ends.
func (c *Conn) run(ctx context.Context) {
	defer close(c.done)

	backoff := c.cfg.MinBackoff
	for {
		ws, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("gateway dial failed", "conn", c.id, "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			continue
		}
		backoff = c.cfg.MinBackoff

		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()

		metrics.ConnectionUp.Set(1)
		metrics.ReconnectsTotal.Inc()
		c.logger.Info("gateway connected", "conn", c.id, "url", c.cfg.URL)
		c.sink.OnConnected()

		readErr := c.readLoop(ctx, ws)

		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		ws.Close()

		metrics.ConnectionUp.Set(0)
		c.sink.OnDisconnected(readErr)

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("gateway disconnected", "conn", c.id, "err", readErr)
	}
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}
	if c.cfg.Cookie != "" {
		header.Set("Cookie", c.cfg.Cookie)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	ws, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return ws, err
}

// readLoop delivers inbound envelopes to the sink in arrival order until the
// socket fails. It also keeps the connection alive with pings.
func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) error {
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.pingLoop(ws, stopPing)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				c.logger.Error("gateway read error", "conn", c.id, "err", err)
			}
			return err
		}

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("invalid gateway frame", "conn", c.id, "err", err)
			continue
		}
		metrics.EventsInTotal.Inc()
		c.sink.OnEvent(env)
	}
}

func (c *Conn) pingLoop(ws *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Emit marshals one event and hands it to the wire. Writes are serialized;
// delivery is fire-and-forget.
func (c *Conn) Emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	env := domain.Envelope{Event: event, Data: raw}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		c.logger.Warn("emit while disconnected, dropping", "conn", c.id, "event", event)
		return ErrNotConnected
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(env); err != nil {
		return err
	}
	metrics.EventsOutTotal.Inc()
	return nil
}
