package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const discordMessageLimit = 2000

// DiscordAdapter talks to Discord through the bot gateway.
type DiscordAdapter struct {
	token       string
	session     *discordgo.Session
	handler     MessageHandler
	personas    map[string]*Persona
	webhooks    map[string]string // channelID -> webhook URL for persona messages
	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

func NewDiscordAdapter(token string, logger *zap.Logger) *DiscordAdapter {
	personas := make(map[string]*Persona, len(DefaultPersonas))
	for k, v := range DefaultPersonas {
		personas[k] = v
	}
	return &DiscordAdapter{
		token:    token,
		personas: personas,
		webhooks: make(map[string]string),
		logger:   logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

func (a *DiscordAdapter) OnMessage(h MessageHandler) { a.handler = h }

// SetPersona overrides the display identity of an agent for webhook posts.
func (a *DiscordAdapter) SetPersona(agentID string, persona *Persona) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.personas[agentID] = persona
}

// SetWebhook registers a webhook for a channel so replies carry the persona's
// name and avatar.
func (a *DiscordAdapter) SetWebhook(channelID, webhookURL string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.webhooks[channelID] = webhookURL
}

// Connect opens the gateway websocket.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.fail(fmt.Sprintf("session create: %v", err))
		return fmt.Errorf("discord session: %w", err)
	}
	a.session = session

	a.session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	a.session.AddHandler(a.onMessageCreate)

	if err := a.session.Open(); err != nil {
		a.fail(fmt.Sprintf("open failed: %v", err))
		return fmt.Errorf("discord open: %w", err)
	}

	a.mu.Lock()
	a.connected = true
	a.connectedAt = time.Now()
	a.lastError = ""
	a.mu.Unlock()

	guildCount := len(a.session.State.Guilds)
	if guildCount == 0 {
		a.logger.Warn("discord bot is not a member of any server")
	}
	a.logger.Info("discord adapter connected",
		zap.String("user", a.session.State.User.Username),
		zap.Int("guilds", guildCount))
	return nil
}

func (a *DiscordAdapter) fail(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	a.lastError = msg
}

func (a *DiscordAdapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if a.handler == nil {
		return
	}

	a.handler(&InboundMessage{
		Platform:  "discord",
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		ReplyTo:   m.ID,
	})
}

// Send posts a reply in 2000-character pieces. With a channel webhook and a
// known persona the pieces go out under the persona's name.
func (a *DiscordAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	if a.session == nil {
		return fmt.Errorf("discord send: not connected")
	}
	a.mu.RLock()
	webhookURL := a.webhooks[msg.ChannelID]
	persona, hasPersona := a.personas[msg.Persona]
	a.mu.RUnlock()

	for i, part := range SplitMessage(msg.Content, discordMessageLimit) {
		var err error
		switch {
		case webhookURL != "" && hasPersona:
			err = a.sendViaWebhook(webhookURL, persona, part)
		case i == 0 && msg.ReplyTo != "":
			_, err = a.session.ChannelMessageSendReply(msg.ChannelID, part, &discordgo.MessageReference{
				MessageID: msg.ReplyTo,
				ChannelID: msg.ChannelID,
			})
		default:
			_, err = a.session.ChannelMessageSend(msg.ChannelID, part)
		}
		if err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}

func (a *DiscordAdapter) sendViaWebhook(webhookURL string, persona *Persona, content string) error {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return err
	}
	params := &discordgo.WebhookParams{
		Content:  content,
		Username: persona.Name,
	}
	if persona.IconURL != "" {
		params.AvatarURL = persona.IconURL
	}
	if _, err := a.session.WebhookExecute(id, token, false, params); err != nil {
		return fmt.Errorf("discord webhook execute: %w", err)
	}
	return nil
}

// parseWebhookURL extracts the ID and token from
// https://discord.com/api/webhooks/{id}/{token}.
func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url %q: want .../webhooks/{id}/{token}", raw)
}

// Broadcast posts to the first writable text channel of every guild.
func (a *DiscordAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	if a.session == nil {
		return fmt.Errorf("discord broadcast: not connected")
	}
	content := fmt.Sprintf("**%s**\n%s", msg.Title, msg.Content)
	parts := SplitMessage(content, discordMessageLimit)

	for _, guild := range a.session.State.Guilds {
		channels, err := a.session.GuildChannels(guild.ID)
		if err != nil {
			a.logger.Warn("discord list channels failed",
				zap.String("guild", guild.ID), zap.Error(err))
			continue
		}
		for _, ch := range channels {
			if ch.Type != discordgo.ChannelTypeGuildText {
				continue
			}
			if a.sendAll(ch.ID, parts) == nil {
				break
			}
		}
	}
	return nil
}

func (a *DiscordAdapter) sendAll(channelID string, parts []string) error {
	for _, p := range parts {
		if _, err := a.session.ChannelMessageSend(channelID, p); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts down the Discord session.
func (a *DiscordAdapter) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}

func (a *DiscordAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "discord",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
		if a.session != nil && a.session.State != nil && a.session.State.User != nil {
			s.Details = fmt.Sprintf("bot=%s, guilds=%d", a.session.State.User.Username, len(a.session.State.Guilds))
		}
	}
	return s
}
