package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/statcrew/internal/crew"
	"go.uber.org/zap"
)

const maxHistory = 100

// BroadcastRecord tracks a sent broadcast for history.
type BroadcastRecord struct {
	Message *BroadcastMessage `json:"message"`
	SentAt  time.Time         `json:"sent_at"`
	Targets []string          `json:"targets"`
}

// Broadcaster announces messages on every connected platform. As a
// crew.EventSink it announces finished runs and ignores task-level events.
type Broadcaster struct {
	gateway *Gateway
	mu      sync.Mutex
	history []BroadcastRecord
	logger  *zap.Logger
}

func NewBroadcaster(gw *Gateway, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		gateway: gw,
		logger:  logger,
	}
}

// Send broadcasts msg and records it.
func (b *Broadcaster) Send(ctx context.Context, msg *BroadcastMessage) error {
	if msg.Type == "" {
		return errors.New("broadcast type is required")
	}

	b.logger.Info("sending broadcast",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title))

	if err := b.gateway.Broadcast(ctx, msg); err != nil {
		return err
	}

	targets := msg.Platforms
	if len(targets) == 0 {
		targets = b.gateway.Adapters()
	}

	b.mu.Lock()
	b.history = append(b.history, BroadcastRecord{Message: msg, SentAt: time.Now(), Targets: targets})
	if len(b.history) > maxHistory {
		b.history = b.history[len(b.history)-maxHistory:]
	}
	b.mu.Unlock()
	return nil
}

// Publish turns a run-level event into an announcement.
func (b *Broadcaster) Publish(ctx context.Context, ev *crew.Event) error {
	msg := RunAnnouncement(ev)
	if msg == nil {
		return nil
	}
	return b.Send(ctx, msg)
}

// RunAnnouncement builds the broadcast for a finished run, or nil for task
// events and runs still in progress.
func RunAnnouncement(ev *crew.Event) *BroadcastMessage {
	if ev.TaskID != "" {
		return nil
	}
	switch ev.Status {
	case crew.TaskCompleted:
		return &BroadcastMessage{
			Type:    BroadcastRunCompleted,
			Title:   fmt.Sprintf("%s finished in %s", ev.Graph, ev.Duration.Round(time.Second)),
			Content: crew.Display(ev.Graph, ev.Output),
			Persona: "editor",
		}
	case crew.TaskFailed:
		return &BroadcastMessage{
			Type:    BroadcastRunFailed,
			Title:   fmt.Sprintf("%s failed", ev.Graph),
			Content: ev.Error,
		}
	}
	return nil
}

// History returns up to limit of the most recent records.
func (b *Broadcaster) History(limit int) []BroadcastRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	out := make([]BroadcastRecord, limit)
	copy(out, b.history[len(b.history)-limit:])
	return out
}
