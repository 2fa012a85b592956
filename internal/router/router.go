// Package router turns chat messages into slash commands or crew runs and
// sends the replies back through the gateway.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/statcrew/internal/command"
	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/nidhogg/statcrew/internal/gateway"
	"go.uber.org/zap"
)

// Asker answers crew requests. *crew.Service satisfies it.
type Asker interface {
	Ask(ctx context.Context, req crew.AskRequest) (*crew.Answer, error)
}

// Sender delivers replies. *gateway.Gateway satisfies it.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// MessageRouter routes inbound messages to commands or the crew.
type MessageRouter struct {
	crew     Asker
	gw       Sender
	commands *command.Registry
	graphs   []crew.GraphName
	timeout  time.Duration
	ack      bool
	logger   *zap.Logger
}

// Options tunes a MessageRouter.
type Options struct {
	// Graphs may be addressed explicitly with "@<graph> request".
	Graphs []crew.GraphName
	// Timeout bounds one crew run; zero means no limit.
	Timeout time.Duration
	// Ack sends a short notice before a crew run starts. REST callers
	// never receive it.
	Ack bool
}

func New(asker Asker, gw Sender, commands *command.Registry, opts Options, logger *zap.Logger) *MessageRouter {
	return &MessageRouter{
		crew:     asker,
		gw:       gw,
		commands: commands,
		graphs:   opts.Graphs,
		timeout:  opts.Timeout,
		ack:      opts.Ack,
		logger:   logger,
	}
}

// Handle routes one inbound message. It matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	ctx := context.Background()
	mr.logger.Info("routing message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName))

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}

	if command.IsCommand(content) {
		cc := &command.CommandContext{
			Platform:  msg.Platform,
			ChannelID: msg.ChannelID,
			UserID:    msg.UserID,
			UserName:  msg.UserName,
		}
		result, err := mr.commands.Dispatch(ctx, content, cc)
		if err != nil {
			mr.logger.Error("command dispatch error", zap.Error(err))
			mr.sendReply(ctx, msg, "", "Command error: "+err.Error())
			return
		}
		mr.sendReply(ctx, msg, "", result.Content)
		return
	}

	graph, text := mr.resolveGraph(content)
	// A REST request completes on its first reply, so it gets no ack.
	if mr.ack && msg.Platform != "rest" {
		name := graph
		if name == "" {
			name = crew.SelectGraph(text)
		}
		mr.sendReply(ctx, msg, "", fmt.Sprintf("Working on it (%s)...", name))
	}

	if mr.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mr.timeout)
		defer cancel()
	}
	ans, err := mr.crew.Ask(ctx, crew.AskRequest{Text: text, Graph: graph})
	if err != nil {
		mr.logger.Error("crew request failed", zap.Error(err))
		mr.sendReply(context.WithoutCancel(ctx), msg, "", "Sorry, the crew could not answer: "+err.Error())
		return
	}
	mr.sendReplyRun(ctx, msg, persona(ans), ans.Display, ans.RunID)
}

// resolveGraph strips a leading "@<graph>" mention.
func (mr *MessageRouter) resolveGraph(content string) (crew.GraphName, string) {
	if !strings.HasPrefix(content, "@") {
		return "", content
	}
	mention, rest, _ := strings.Cut(content[1:], " ")
	for _, g := range mr.graphs {
		if strings.EqualFold(mention, string(g)) {
			return g, strings.TrimSpace(rest)
		}
	}
	return "", content
}

// persona is the agent that produced the final output.
func persona(ans *crew.Answer) string {
	if ans.Result == nil || ans.Result.Graph == nil {
		return ""
	}
	if t := ans.Result.Graph.Terminal(); t != nil {
		return t.AgentID
	}
	return ""
}

func (mr *MessageRouter) sendReply(ctx context.Context, orig *gateway.InboundMessage, persona, text string) {
	mr.sendReplyRun(ctx, orig, persona, text, "")
}

func (mr *MessageRouter) sendReplyRun(ctx context.Context, orig *gateway.InboundMessage, persona, text, runID string) {
	err := mr.gw.Send(ctx, &gateway.OutboundMessage{
		Platform:  orig.Platform,
		ChannelID: orig.ChannelID,
		Persona:   persona,
		Content:   text,
		ReplyTo:   orig.ReplyTo,
		RunID:     runID,
	})
	if err != nil {
		mr.logger.Error("send reply failed", zap.Error(err))
	}
}
