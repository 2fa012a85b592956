package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

const slackMessageLimit = 3900

// DefaultPersonas are the display identities of the agents whose output
// reaches chat.
var DefaultPersonas = map[string]*Persona{
	"editor":       {Name: "Sports Editor", Emoji: ":newspaper:"},
	"stats_writer": {Name: "Stats Desk", Emoji: ":bar_chart:"},
	"mlb_writer":   {Name: "MLB Desk", Emoji: ":baseball:"},
	"rulebook":     {Name: "Rulebook", Emoji: ":books:"},
}

// SlackAdapter talks to Slack over Socket Mode.
type SlackAdapter struct {
	client      *slack.Client
	socket      *socketmode.Client
	handler     MessageHandler
	personas    map[string]*Persona
	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewSlackAdapter creates a Slack adapter. botToken is the bot OAuth token
// (xoxb-...), appToken the app-level Socket Mode token (xapp-...).
func NewSlackAdapter(botToken, appToken string, logger *zap.Logger) *SlackAdapter {
	client := slack.New(botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socket := socketmode.New(client,
		socketmode.OptionLog(zap.NewStdLog(logger)),
	)

	personas := make(map[string]*Persona, len(DefaultPersonas))
	for k, v := range DefaultPersonas {
		personas[k] = v
	}
	return &SlackAdapter{
		client:   client,
		socket:   socket,
		personas: personas,
		logger:   logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

func (a *SlackAdapter) OnMessage(h MessageHandler) { a.handler = h }

// SetPersona overrides the display identity of an agent.
func (a *SlackAdapter) SetPersona(agentID string, persona *Persona) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.personas[agentID] = persona
}

// Connect starts the Socket Mode event loop in the background.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			a.setState(false, err.Error())
			a.logger.Error("slack socket mode error", zap.Error(err))
		}
	}()
	a.logger.Info("slack adapter started")
	return nil
}

func (a *SlackAdapter) setState(connected bool, errMsg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if connected && !a.connected {
		a.connectedAt = time.Now()
	}
	a.connected = connected
	a.lastError = errMsg
}

func (a *SlackAdapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.processEvent(evt)
		}
	}
}

func (a *SlackAdapter) processEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		a.setState(true, "")
	case socketmode.EventTypeConnectionError:
		a.setState(false, "connection error")
	case socketmode.EventTypeEventsAPI:
		eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)

		if eventsAPI.Type != slackevents.CallbackEvent {
			return
		}
		switch inner := eventsAPI.InnerEvent.Data.(type) {
		case *slackevents.MessageEvent:
			// Bot messages would loop back through the crew.
			if inner.BotID != "" || inner.SubType != "" {
				return
			}
			a.handleSlackMessage(inner)
		case *slackevents.AppMentionEvent:
			a.dispatch(inner.Channel, inner.User, inner.Text, inner.ThreadTimeStamp, inner.TimeStamp)
		}
	}
}

func (a *SlackAdapter) handleSlackMessage(ev *slackevents.MessageEvent) {
	a.dispatch(ev.Channel, ev.User, ev.Text, ev.ThreadTimeStamp, ev.TimeStamp)
}

func (a *SlackAdapter) dispatch(channel, user, text, threadTS, ts string) {
	if a.handler == nil {
		return
	}
	if threadTS == "" {
		threadTS = ts
	}
	a.handler(&InboundMessage{
		Platform:  "slack",
		ChannelID: channel,
		UserID:    user,
		UserName:  user,
		Content:   text,
		Timestamp: time.Now(),
		ReplyTo:   threadTS,
	})
}

// Send posts a reply in the originating thread, split to fit Slack's limit.
func (a *SlackAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	for _, part := range SplitMessage(msg.Content, slackMessageLimit) {
		opts := []slack.MsgOption{slack.MsgOptionText(part, false)}
		if msg.ReplyTo != "" {
			opts = append(opts, slack.MsgOptionTS(msg.ReplyTo))
		}
		opts = append(opts, a.personaOpts(msg.Persona)...)

		if _, _, err := a.client.PostMessage(msg.ChannelID, opts...); err != nil {
			a.logger.Error("slack send failed",
				zap.String("channel", msg.ChannelID), zap.Error(err))
			return fmt.Errorf("slack send: %w", err)
		}
	}
	return nil
}

func (a *SlackAdapter) personaOpts(id string) []slack.MsgOption {
	if id == "" {
		return nil
	}
	a.mu.RLock()
	p, ok := a.personas[id]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	opts := []slack.MsgOption{slack.MsgOptionUsername(p.Name)}
	if p.IconURL != "" {
		opts = append(opts, slack.MsgOptionIconURL(p.IconURL))
	} else if p.Emoji != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(p.Emoji))
	}
	return opts
}

// Broadcast posts to every channel the bot is a member of.
func (a *SlackAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	text := fmt.Sprintf("*%s*\n%s", msg.Title, msg.Content)

	channels, _, err := a.client.GetConversationsForUser(&slack.GetConversationsForUserParameters{
		Types: []string{"public_channel", "private_channel"},
		Limit: 200,
	})
	if err != nil {
		return fmt.Errorf("slack list channels: %w", err)
	}

	for _, ch := range channels {
		for _, part := range SplitMessage(text, slackMessageLimit) {
			opts := append([]slack.MsgOption{slack.MsgOptionText(part, false)}, a.personaOpts(msg.Persona)...)
			if _, _, err := a.client.PostMessage(ch.ID, opts...); err != nil {
				a.logger.Warn("slack broadcast to channel failed",
					zap.String("channel", ch.ID), zap.Error(err))
				break
			}
		}
	}
	return nil
}

// Close is a no-op; cancelling the Connect context stops the socket.
func (a *SlackAdapter) Close() error {
	return nil
}

func (a *SlackAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{Platform: "slack", Connected: a.connected, Error: a.lastError}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
	}
	return s
}
