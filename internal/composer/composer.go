// Package composer stages an outbound message (text plus image attachments)
// and submits it over the transport. Nothing is appended locally on send:
// the sent message appears when the gateway echoes it back through the live
// stream, so the visible list only ever contains server-acknowledged
// messages.
package composer

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"helpdesk/internal/domain"
)

const (
	// MaxAttachments is the per-message attachment cap.
	MaxAttachments = 3
	// MaxAttachmentBytes is the per-file size cap.
	MaxAttachmentBytes = 5 << 20
)

var (
	// ErrEmptyMessage means Send was called with no text and no files.
	ErrEmptyMessage = errors.New("composer: nothing to send")
	// ErrNotAnImage means the staged file is not an image type.
	ErrNotAnImage = errors.New("composer: only image attachments are accepted")
	// ErrAttachmentTooLarge means the staged file exceeds the size cap.
	ErrAttachmentTooLarge = errors.New("composer: attachment exceeds 5 MB")
	// ErrTooManyAttachments means the staging area is full.
	ErrTooManyAttachments = errors.New("composer: attachment limit reached")
)

// Attachment is one staged file.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Composer accumulates a draft for the active session.
type Composer struct {
	em     domain.Emitter
	logger *slog.Logger

	mu     sync.Mutex
	text   string
	staged []Attachment
}

// New creates an empty composer emitting through em.
func New(em domain.Emitter, logger *slog.Logger) *Composer {
	return &Composer{em: em, logger: logger}
}

// SetText replaces the draft text.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

// Stage validates and adds one attachment. Rejections happen at staging
// time, before any bytes travel.
func (c *Composer) Stage(a Attachment) error {
	if !strings.HasPrefix(a.ContentType, "image/") {
		return fmt.Errorf("%w: %s is %s", ErrNotAnImage, a.Filename, a.ContentType)
	}
	if len(a.Data) > MaxAttachmentBytes {
		return fmt.Errorf("%w: %s is %d bytes", ErrAttachmentTooLarge, a.Filename, len(a.Data))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.staged) >= MaxAttachments {
		return ErrTooManyAttachments
	}
	c.staged = append(c.staged, a)
	return nil
}

// Unstage removes the attachment at index i, if present.
func (c *Composer) Unstage(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.staged) {
		return
	}
	c.staged = append(c.staged[:i], c.staged[i+1:]...)
}

// Staged returns a copy of the staging area.
func (c *Composer) Staged() []Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Attachment, len(c.staged))
	copy(out, c.staged)
	return out
}

// Reset discards the draft.
func (c *Composer) Reset() {
	c.mu.Lock()
	c.text = ""
	c.staged = nil
	c.mu.Unlock()
}

// Send submits the draft to sessionID. An all-whitespace draft with no
// attachments is rejected here, at send time. The draft is cleared only
// after the transport accepts the frame, so a send attempted while
// disconnected keeps the draft intact for retry.
func (c *Composer) Send(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := strings.TrimSpace(c.text)
	if text == "" && len(c.staged) == 0 {
		return ErrEmptyMessage
	}

	files := make([]domain.FilePayload, 0, len(c.staged))
	for _, a := range c.staged {
		files = append(files, domain.FilePayload{
			Filename: a.Filename,
			Buffer:   a.Data,
		})
	}

	payload := domain.SendMessagePayload{
		Content:   text,
		Files:     files,
		SessionID: sessionID,
		ClientID:  uuid.NewString(),
	}
	if err := c.em.Emit(domain.EventSendMessage, payload); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	c.logger.Debug("message submitted",
		"session", sessionID, "chars", len(text), "files", len(files))
	c.text = ""
	c.staged = nil
	return nil
}
