package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nidhogg/statcrew/internal/command"
	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/nidhogg/statcrew/internal/gateway"
	"go.uber.org/zap"
)

type fakeAsker struct {
	req crew.AskRequest
	err error
}

func (f *fakeAsker) Ask(_ context.Context, req crew.AskRequest) (*crew.Answer, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &crew.Answer{RunID: "r1", Graph: crew.GraphPlayerStats, Display: "Raw Data:\n[]\n\nHuman-Readable Summary:\nok"}, nil
}

type fakeSender struct{ sent []*gateway.OutboundMessage }

func (f *fakeSender) Send(_ context.Context, m *gateway.OutboundMessage) error {
	f.sent = append(f.sent, m)
	return nil
}

func newRouter(a Asker, s Sender, ack bool) *MessageRouter {
	reg := command.NewRegistry()
	reg.Register(&command.Command{Name: "ping", Handler: func(context.Context, string, *command.CommandContext) (*command.CommandResult, error) {
		return &command.CommandResult{Content: "pong"}, nil
	}})
	return New(a, s, reg, Options{Graphs: crew.DefaultDefinitions().GraphNames(), Ack: ack}, zap.NewNop())
}

func TestHandleCommand(t *testing.T) {
	asker, sender := &fakeAsker{}, &fakeSender{}
	newRouter(asker, sender, false).Handle(&gateway.InboundMessage{Platform: "slack", ChannelID: "C1", Content: "/ping", ReplyTo: "123.4"})

	if len(sender.sent) != 1 || sender.sent[0].Content != "pong" || sender.sent[0].ReplyTo != "123.4" {
		t.Fatalf("sent = %+v", sender.sent)
	}
	if asker.req.Text != "" {
		t.Error("command reached the crew")
	}
}

func TestHandleCrewRequest(t *testing.T) {
	asker, sender := &fakeAsker{}, &fakeSender{}
	newRouter(asker, sender, true).Handle(&gateway.InboundMessage{Platform: "discord", ChannelID: "42", Content: "Who are the all-time assists leaders?"})

	if asker.req.Text != "Who are the all-time assists leaders?" || asker.req.Graph != "" {
		t.Errorf("request = %+v", asker.req)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages", len(sender.sent))
	}
	if sender.sent[0].Content != "Working on it (player_stats)..." {
		t.Errorf("ack = %q", sender.sent[0].Content)
	}
	if sender.sent[1].RunID != "r1" || !strings.HasPrefix(sender.sent[1].Content, "Raw Data:") {
		t.Errorf("reply = %+v", sender.sent[1])
	}
}

func TestHandleRESTSkipsAck(t *testing.T) {
	asker, sender := &fakeAsker{}, &fakeSender{}
	newRouter(asker, sender, true).Handle(&gateway.InboundMessage{Platform: "rest", ChannelID: "rest-1", Content: "Lakers last night"})
	if len(sender.sent) != 1 || sender.sent[0].RunID != "r1" {
		t.Fatalf("sent = %+v", sender.sent)
	}
}

func TestHandleGraphMention(t *testing.T) {
	asker, sender := &fakeAsker{}, &fakeSender{}
	newRouter(asker, sender, false).Handle(&gateway.InboundMessage{Content: "@MLB_GAME_RECAP Yankees yesterday"})
	if asker.req.Graph != crew.GraphMLBGameRecap || asker.req.Text != "Yankees yesterday" {
		t.Errorf("request = %+v", asker.req)
	}

	newRouter(asker, sender, false).Handle(&gateway.InboundMessage{Content: "@someone hello"})
	if asker.req.Graph != "" || asker.req.Text != "@someone hello" {
		t.Errorf("unknown mention stripped: %+v", asker.req)
	}
}

func TestHandleCrewFailure(t *testing.T) {
	asker, sender := &fakeAsker{err: errors.New("task research_game failed: 503")}, &fakeSender{}
	newRouter(asker, sender, false).Handle(&gateway.InboundMessage{Content: "Lakers game"})
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0].Content, "503") {
		t.Errorf("sent = %+v", sender.sent)
	}
}
