// Package console is the agent-facing session layer: one websocket in, a
// session directory, an active conversation, and an outbound composer. It
// implements the transport's sink, so every gateway event funnels through
// here onto the stream loop.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"helpdesk/internal/composer"
	"helpdesk/internal/cursor"
	"helpdesk/internal/domain"
	"helpdesk/internal/metrics"
	"helpdesk/internal/rooms"
	"helpdesk/internal/roster"
	"helpdesk/internal/stream"
	"helpdesk/internal/store"
)

var (
	// ErrUnknownSession means the requested session is not in the directory.
	ErrUnknownSession = errors.New("console: unknown session")
	// ErrNoActiveSession means no session is selected.
	ErrNoActiveSession = errors.New("console: no session selected")
	// ErrClosed means the console is shutting down.
	ErrClosed = errors.New("console: closed")
)

// Console owns the session layer for one connected identity.
type Console struct {
	logger   *slog.Logger
	identity domain.Identity

	tr       domain.Transport
	loop     *stream.Loop
	rooms    *rooms.Manager
	roster   *roster.Roster
	loader   *roster.Loader
	cursor   *cursor.Cursor
	merger   *stream.Merger
	composer *composer.Composer
	cache    *store.Store

	// generation invalidates in-flight bulk loads across reconnects.
	// Touched only on the loop goroutine.
	generation int
}

// Options configures a Console.
type Options struct {
	Identity domain.Identity
	Loader   *roster.Loader
	Cache    *store.Store // optional
	Logger   *slog.Logger
}

// New builds a console. The transport is attached afterwards, because the
// transport wants the console as its sink.
func New(opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Console{
		logger:   logger,
		identity: opts.Identity,
		loop:     stream.NewLoop(logger),
		roster:   roster.New(logger),
		loader:   opts.Loader,
		cursor:   cursor.New(logger),
		cache:    opts.Cache,
	}
	c.merger = stream.NewMerger(c.roster, c.cursor, opts.Cache, logger)
	return c
}

// Attach wires the transport. Must be called before Start.
func (c *Console) Attach(tr domain.Transport) {
	c.tr = tr
	c.rooms = rooms.New(tr, c.logger)
	c.composer = composer.New(tr, c.logger)
}

// SetNotify installs a hook that fires for every message merged into a known
// session. Bridges use it to relay agent replies outward. Call before Start.
func (c *Console) SetNotify(fn func(domain.Message, domain.Session)) {
	c.merger.SetNotify(fn)
}

// Start runs the stream loop and the transport. Returns once both are up;
// shutdown follows ctx.
func (c *Console) Start(ctx context.Context) error {
	go c.loop.Run(ctx)
	return c.tr.Connect(ctx)
}

// Close tears down the transport and waits for the loop to drain.
func (c *Console) Close() error {
	err := c.tr.Close()
	c.loop.Wait()
	return err
}

// OnConnected implements domain.GatewaySink. Every connected transition is
// handled identically, first connect included: join everything the client
// wants, then refresh the directory from scratch.
func (c *Console) OnConnected() {
	c.loop.Do(func() {
		c.generation++
		gen := c.generation

		c.rooms.JoinAggregate(c.identity)
		if sid, state := c.cursor.Session(); state != cursor.Idle {
			c.rooms.JoinSession(sid)
		}

		go c.bulkLoad(gen)
	})
}

// OnDisconnected implements domain.GatewaySink.
func (c *Console) OnDisconnected(err error) {
	if err != nil {
		c.logger.Warn("gateway connection lost", "err", err)
	}
}

// bulkLoad fetches the session list and installs it, unless a newer connect
// superseded this one while the fetch was in flight.
func (c *Console) bulkLoad(gen int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	list, err := c.loader.Fetch(ctx)
	if err != nil {
		c.logger.Error("session bulk load failed", "err", err)
		return
	}

	c.loop.Do(func() {
		if gen != c.generation {
			c.logger.Debug("stale bulk load discarded", "generation", gen)
			metrics.StaleLoadsTotal.Inc()
			return
		}
		c.merger.Replace(list)
	})
}

// OnEvent implements domain.GatewaySink. Runs on the transport read
// goroutine; all state changes are posted to the loop.
func (c *Console) OnEvent(ev domain.Envelope) {
	switch ev.Event {
	case domain.EventSessionHistory:
		var p domain.SessionHistoryPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.logger.Warn("bad history payload", "err", err)
			return
		}
		sid := p.SessionID
		if sid == "" && len(p.Messages) > 0 {
			// Some gateway builds omit the top-level id; the messages
			// carry it.
			sid = p.Messages[0].SessionID
		}
		c.loop.Do(func() { c.cursor.ApplyHistory(sid, p.Messages) })

	case domain.EventReceiveMessage:
		var p domain.ReceiveMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.logger.Warn("bad message payload", "err", err)
			return
		}
		c.loop.Do(func() { c.merger.Apply(p.Message) })

	default:
		c.logger.Debug("unhandled gateway event", "event", ev.Event)
	}
}

// Select makes sessionID the active conversation: clears the visible list,
// joins the session room, and waits for the history replay. Selecting the
// already-active session is a no-op.
func (c *Console) Select(sessionID string) error {
	errc := make(chan error, 1)
	ok := c.loop.Do(func() {
		if !c.roster.Contains(sessionID) {
			errc <- ErrUnknownSession
			return
		}
		if c.cursor.Select(sessionID) {
			c.rooms.JoinSession(sessionID)
		}
		errc <- nil
	})
	if !ok {
		return ErrClosed
	}
	return <-errc
}

// Clear deselects the active conversation.
func (c *Console) Clear() {
	c.loop.Do(func() { c.cursor.Clear() })
}

// Active returns the selected session id and cursor state.
func (c *Console) Active() (string, cursor.State) {
	return c.cursor.Session()
}

// ActiveMessages returns a copy of the active conversation's timeline.
func (c *Console) ActiveMessages() []domain.Message {
	return c.cursor.Messages()
}

// Sessions returns the directory, optionally filtered.
func (c *Console) Sessions(filter func(*domain.Session) bool) []domain.Session {
	return c.roster.List(filter)
}

// Session returns one directory entry.
func (c *Console) Session(id string) (domain.Session, bool) {
	return c.roster.Get(id)
}

// Search matches sessions by participant text or message content.
func (c *Console) Search(q string) []domain.Session {
	return c.roster.Search(q)
}

// Stats returns directory statistics.
func (c *Console) Stats() roster.Stats {
	return c.roster.Stats()
}

// SetDraft replaces the outbound draft text.
func (c *Console) SetDraft(text string) {
	c.composer.SetText(text)
}

// StageAttachment validates and stages one attachment.
func (c *Console) StageAttachment(a composer.Attachment) error {
	return c.composer.Stage(a)
}

// StagedAttachments returns the staging area.
func (c *Console) StagedAttachments() []composer.Attachment {
	return c.composer.Staged()
}

// Send submits the current draft to the active session. The message shows up
// in the timeline only when the gateway echoes it back.
func (c *Console) Send() error {
	sid, state := c.cursor.Session()
	if state == cursor.Idle {
		return ErrNoActiveSession
	}
	return c.composer.Send(sid)
}

// SendText is a convenience for bridges and scripting: set text, send, in
// one call, to an explicit session.
func (c *Console) SendText(sessionID, text string) error {
	if !c.roster.Contains(sessionID) {
		return ErrUnknownSession
	}
	one := composer.New(c.tr, c.logger)
	one.SetText(text)
	return one.Send(sessionID)
}

// CachedHistory reads the offline cache for a session. Returns nil when no
// cache is configured.
func (c *Console) CachedHistory(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if c.cache == nil {
		return nil, nil
	}
	return c.cache.Messages(ctx, sessionID, limit)
}
