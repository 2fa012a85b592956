// Package bus streams crew task events over Redis Streams.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "statcrew:events"

// maxLen caps the stream; older entries are trimmed approximately.
const maxLen = 10000

// EventBus publishes crew events to a Redis stream and tails it.
// It satisfies crew.EventSink.
type EventBus struct {
	rdb    *redis.Client
	stream string
	logger *zap.Logger
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL, stream string, logger *zap.Logger) (*EventBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &EventBus{rdb: rdb, stream: stream, logger: logger}, nil
}

// Stream returns the stream key.
func (b *EventBus) Stream() string { return b.stream }

// Publish appends ev to the stream.
func (b *EventBus) Publish(ctx context.Context, ev *crew.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"run":  ev.RunID,
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.stream, err)
	}

	b.logger.Debug("published event",
		zap.String("run", ev.RunID),
		zap.String("task", ev.TaskID),
		zap.String("status", string(ev.Status)))
	return nil
}

// SubscribeOptions selects what a subscription receives.
type SubscribeOptions struct {
	// RunID limits delivery to one run when set.
	RunID string
	// FromStart replays the retained stream before following it.
	FromStart bool
}

// Subscribe tails the stream until ctx is cancelled. The returned channel
// is closed when the subscription ends.
func (b *EventBus) Subscribe(ctx context.Context, opts SubscribeOptions) <-chan *crew.Event {
	ch := make(chan *crew.Event, 16)

	go func() {
		defer close(ch)
		lastID := "$"
		if opts.FromStart {
			lastID = "0"
		}

		for {
			if ctx.Err() != nil {
				return
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{b.stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if !errors.Is(err, redis.Nil) {
					b.logger.Warn("read events", zap.String("stream", b.stream), zap.Error(err))
					select {
					case <-time.After(time.Second):
					case <-ctx.Done():
						return
					}
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					ev, ok := decode(msg.Values)
					if !ok || (opts.RunID != "" && ev.RunID != opts.RunID) {
						continue
					}
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

func decode(values map[string]interface{}) (*crew.Event, bool) {
	data, ok := values["data"].(string)
	if !ok {
		return nil, false
	}
	var ev crew.Event
	if json.Unmarshal([]byte(data), &ev) != nil {
		return nil, false
	}
	return &ev, true
}

// Close shuts down the Redis connection.
func (b *EventBus) Close() error {
	return b.rdb.Close()
}

// Fanout delivers each event to several sinks. Failures are joined; every
// sink is tried.
type Fanout []crew.EventSink

func (f Fanout) Publish(ctx context.Context, ev *crew.Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
