package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// Telegram relays Telegram chats into the gateway and delivers agent replies
// back via long polling.
type Telegram struct {
	token     string
	allowFrom []int64 // allowed user IDs (empty = allow all)
	ingress   *Ingress
	bot       *tgbotapi.BotAPI
	chats     *sessionMap
	logger    *slog.Logger
}

// TelegramConfig configures the Telegram bridge.
type TelegramConfig struct {
	Token     string
	AllowFrom []string // user IDs as strings
	Ingress   *Ingress
	Logger    *slog.Logger
}

// NewTelegram creates the bridge; Start connects it.
func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		ingress:   cfg.Ingress,
		chats:     newSessionMap(),
		logger:    cfg.Logger,
	}
}

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bridge connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram bridge stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", userID,
			"username", update.Message.From.UserName,
		)
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}

	t.logger.Info("telegram message received",
		"user_id", userID,
		"chat_id", chatID,
		"text_len", len(text),
	)

	username := update.Message.From.UserName
	if username == "" {
		username = strings.TrimSpace(update.Message.From.FirstName + " " + update.Message.From.LastName)
	}

	subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	chat := strconv.FormatInt(chatID, 10)
	sid, err := t.ingress.Submit(subCtx, CustomerMessage{
		Channel:  "TELEGRAM",
		ChatID:   chat,
		SenderID: strconv.FormatInt(userID, 10),
		Username: username,
		Content:  text,
	})
	if err != nil {
		t.logger.Error("telegram message not relayed", "chat_id", chatID, "err", err)
		return
	}
	t.chats.bind(chat, sid)
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// Deliver sends an agent reply to the chat bound to sessionID.
func (t *Telegram) Deliver(sessionID, content string) {
	chat, ok := t.chats.chat(sessionID)
	if !ok {
		return
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		t.logger.Error("invalid chat id in session map", "chat", chat, "err", err)
		return
	}
	for _, chunk := range splitMessage(content, telegramMaxMsgLen) {
		t.sendChunk(chatID, chunk)
	}
}

// sendChunk sends a single chunk with retry and rate-limit backoff.
func (t *Telegram) sendChunk(chatID int64, text string) {
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		if attempt < telegramMaxSendRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", telegramMaxSendRetries+1)
	}
}
