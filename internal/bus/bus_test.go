package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/nidhogg/statcrew/internal/crew"
)

func TestDecode(t *testing.T) {
	ev, ok := decode(map[string]interface{}{
		"data": `{"run_id":"r1","graph":"game_info","task_id":"research_game","status":"running","timestamp":"2024-03-01T12:00:00Z"}`,
	})
	if !ok || ev.RunID != "r1" || ev.Status != crew.TaskRunning || ev.Graph != crew.GraphGameInfo {
		t.Errorf("decoded %+v, %v", ev, ok)
	}
	if _, ok := decode(map[string]interface{}{"data": "{"}); ok {
		t.Error("malformed payload accepted")
	}
	if _, ok := decode(map[string]interface{}{"other": "x"}); ok {
		t.Error("missing data accepted")
	}
}

type sinkFunc func(context.Context, *crew.Event) error

func (f sinkFunc) Publish(ctx context.Context, ev *crew.Event) error { return f(ctx, ev) }

func TestFanoutTriesEverySink(t *testing.T) {
	var got []string
	f := Fanout{
		sinkFunc(func(context.Context, *crew.Event) error { return errors.New("redis down") }),
		nil,
		sinkFunc(func(_ context.Context, ev *crew.Event) error {
			got = append(got, ev.RunID)
			return nil
		}),
	}
	err := f.Publish(context.Background(), &crew.Event{RunID: "r1"})
	if err == nil || len(got) != 1 {
		t.Errorf("err = %v, delivered %v", err, got)
	}
}
