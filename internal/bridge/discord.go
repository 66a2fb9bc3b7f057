package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const discordMaxMsgLen = 2000

// Discord relays Discord DMs and guild messages into the gateway and
// delivers agent replies back to the originating channel.
type Discord struct {
	token   string
	guildID string
	ingress *Ingress
	session *discordgo.Session
	chats   *sessionMap
	logger  *slog.Logger
}

// DiscordConfig configures the Discord bridge.
type DiscordConfig struct {
	Token   string
	GuildID string
	Ingress *Ingress
	Logger  *slog.Logger
}

// NewDiscord creates the bridge; Start connects it.
func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		ingress: cfg.Ingress,
		chats:   newSessionMap(),
		logger:  cfg.Logger,
	}
}

// Start connects to Discord with a bot token and relays messages until ctx
// is cancelled.
func (d *Discord) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		// Ignore the bot's own messages.
		if m.Author.ID == s.State.User.ID {
			return
		}
		if d.guildID != "" && m.GuildID != d.guildID {
			return
		}
		if strings.TrimSpace(m.Content) == "" {
			return
		}

		d.logger.Info("discord message received",
			"author", m.Author.Username,
			"channel_id", m.ChannelID,
			"content_len", len(m.Content),
		)

		subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		sid, err := d.ingress.Submit(subCtx, CustomerMessage{
			Channel:  "DISCORD",
			ChatID:   m.ChannelID,
			SenderID: m.Author.ID,
			Username: m.Author.Username,
			Avatar:   m.Author.AvatarURL(""),
			Content:  m.Content,
		})
		if err != nil {
			d.logger.Error("discord message not relayed", "channel", m.ChannelID, "err", err)
			return
		}
		d.chats.bind(m.ChannelID, sid)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord bridge connected", "user", session.State.User.Username)

	<-ctx.Done()
	d.logger.Info("discord bridge disconnecting")
	return session.Close()
}

// Deliver sends an agent reply to the channel bound to sessionID. Replies
// for sessions this bridge never saw are ignored.
func (d *Discord) Deliver(sessionID, content string) {
	channelID, ok := d.chats.chat(sessionID)
	if !ok {
		return
	}
	for _, chunk := range splitMessage(content, discordMaxMsgLen) {
		if _, err := d.session.ChannelMessageSend(channelID, chunk); err != nil {
			d.logger.Error("discord send failed", "channel", channelID, "err", err)
		}
	}
}

// splitMessage splits a message into chunks that fit within the max length,
// trying to split on newlines when possible.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}

		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}

		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
