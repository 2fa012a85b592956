package crew

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/statcrew/internal/agent"
	"github.com/nidhogg/statcrew/internal/provider"
	"go.uber.org/zap"
)

// fakeExecutor answers "<agent>:<n>" and records prompts per agent.
type fakeExecutor struct {
	mu      sync.Mutex
	prompts map[string]string
	order   []string
	fail    map[string]error
	delay   time.Duration
	active  int
	peak    int
	output  map[string]string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{prompts: map[string]string{}, fail: map[string]error{}, output: map[string]string{}}
}

func (f *fakeExecutor) Execute(ctx context.Context, a *agent.Agent, prompt string) (*agent.ExecuteResult, error) {
	f.mu.Lock()
	f.prompts[a.ID] = prompt
	f.order = append(f.order, a.ID)
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	err := f.fail[a.ID]
	out, ok := f.output[a.ID]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		out = "output of " + a.ID
	}
	return &agent.ExecuteResult{
		Content: out,
		Chain:   &agent.ThinkingChain{AgentID: a.ID},
		Usage:   provider.Usage{TotalTokens: 10},
	}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []*Event
}

func (s *recordingSink) Publish(_ context.Context, ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func buildGameInfo(t *testing.T) *Graph {
	t.Helper()
	g, err := testBuilder(nil).Build(GraphGameInfo, Request{Text: "Lakers game last night"})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestRunSequential(t *testing.T) {
	exec := newFakeExecutor()
	sink := &recordingSink{}
	r := NewRunner(exec, RunnerConfig{Parallelism: 1}, sink, zap.NewNop())

	res, err := r.Run(context.Background(), buildGameInfo(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantOrder := "researcher,statistician,writer_llama,writer_gemma,writer_mixtral,editor"
	if got := strings.Join(exec.order, ","); got != wantOrder {
		t.Errorf("execution order = %s", got)
	}
	if res.Output != "output of editor" {
		t.Errorf("output = %q", res.Output)
	}
	if res.Status() != TaskCompleted {
		t.Errorf("status = %s", res.Status())
	}
	if res.Usage.TotalTokens != 60 {
		t.Errorf("usage = %d", res.Usage.TotalTokens)
	}

	// Researcher prompt is rendered and has no context.
	rp := exec.prompts["researcher"]
	if !strings.Contains(rp, "use 2024-02-29 as the game date") || !strings.Contains(rp, "User prompt: Lakers game last night") {
		t.Errorf("researcher prompt:\n%s", rp)
	}
	if strings.Contains(rp, "context you're working with") {
		t.Error("first task should have no context")
	}
	// The editor sees all five upstream outputs in context order.
	ep := exec.prompts["editor"]
	idx := -1
	for _, id := range []string{"researcher", "statistician", "writer_llama", "writer_gemma", "writer_mixtral"} {
		i := strings.Index(ep, "output of "+id)
		if i <= idx {
			t.Errorf("editor context missing or out of order at %s:\n%s", id, ep)
		}
		idx = i
	}

	// 6 x (running, completed) + run completed.
	if len(sink.events) != 13 {
		t.Errorf("got %d events", len(sink.events))
	}
	last := sink.events[len(sink.events)-1]
	if last.TaskID != "" || last.Status != TaskCompleted {
		t.Errorf("last event = %+v", last)
	}
}

func TestRunParallelSiblingsWithBarrier(t *testing.T) {
	exec := newFakeExecutor()
	exec.delay = 30 * time.Millisecond
	r := NewRunner(exec, RunnerConfig{Parallelism: 3}, nil, zap.NewNop())

	res, err := r.Run(context.Background(), buildGameInfo(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.peak != 3 {
		t.Errorf("peak concurrency = %d, want 3", exec.peak)
	}
	if exec.order[len(exec.order)-1] != "editor" {
		t.Errorf("editor did not run last: %v", exec.order)
	}
	edit := res.Tasks["edit_recap"]
	for _, id := range []string{"write_recap_llama", "write_recap_gemma", "write_recap_mixtral"} {
		if res.Tasks[id].CompletedAt.After(*edit.StartedAt) {
			t.Errorf("%s completed after the editor started", id)
		}
	}
}

func TestRunFailureAborts(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["statistician"] = errors.New("stats.nba.com API error 503")
	sink := &recordingSink{}
	r := NewRunner(exec, RunnerConfig{Parallelism: 1}, sink, zap.NewNop())

	res, err := r.Run(context.Background(), buildGameInfo(t))
	var te *TaskError
	if !errors.As(err, &te) || te.TaskID != "retrieve_player_stats" {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("cause lost: %v", err)
	}
	if len(exec.order) != 2 {
		t.Errorf("tasks after failure ran: %v", exec.order)
	}
	if res.Tasks["retrieve_player_stats"].Status != TaskFailed {
		t.Errorf("failed task status = %s", res.Tasks["retrieve_player_stats"].Status)
	}
	if res.Tasks["edit_recap"].Status != TaskPending {
		t.Errorf("downstream status = %s", res.Tasks["edit_recap"].Status)
	}
	if res.Output != "" || res.Status() != TaskFailed {
		t.Errorf("failed run has output %q status %s", res.Output, res.Status())
	}
	last := sink.events[len(sink.events)-1]
	if last.Status != TaskFailed || last.TaskID != "" {
		t.Errorf("last event = %+v", last)
	}
}

func TestRunParallelFailureCancelsSiblings(t *testing.T) {
	exec := newFakeExecutor()
	exec.delay = 200 * time.Millisecond
	exec.fail["writer_gemma"] = fmt.Errorf("model unreachable")
	r := NewRunner(&failFast{exec}, RunnerConfig{Parallelism: 3}, nil, zap.NewNop())

	start := time.Now()
	_, err := r.Run(context.Background(), buildGameInfo(t))
	if err == nil {
		t.Fatal("expected failure")
	}
	for _, a := range exec.order {
		if a == "editor" {
			t.Fatal("editor ran after a sibling failed")
		}
	}
	if time.Since(start) > 2*time.Second {
		t.Error("siblings were not cancelled")
	}
}

// failFast fails configured agents immediately instead of after the delay.
type failFast struct{ *fakeExecutor }

func (f *failFast) Execute(ctx context.Context, a *agent.Agent, prompt string) (*agent.ExecuteResult, error) {
	f.mu.Lock()
	err := f.fail[a.ID]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.fakeExecutor.Execute(ctx, a, prompt)
}

func TestRunTaskTimeout(t *testing.T) {
	exec := newFakeExecutor()
	exec.delay = time.Second
	r := NewRunner(exec, RunnerConfig{TaskTimeout: 20 * time.Millisecond}, nil, zap.NewNop())

	g, err := testBuilder(nil).Build(GraphPlayerStats, Request{Text: "all-time leaders"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), g)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("deadline not in chain: %v", err)
	}
	if res.Tasks["get_all_time_leaders"].Status != TaskFailed {
		t.Errorf("status = %s", res.Tasks["get_all_time_leaders"].Status)
	}
}

func TestServiceAskPlayerStats(t *testing.T) {
	exec := newFakeExecutor()
	exec.output["stats_writer"] = "[{\"PLAYER_NAME\": \"John Stockton\", \"AST\": 15806, \"RANK\": 1}]\n---\nJohn Stockton leads."
	rec := &memRecorder{}
	svc := NewService(testBuilder(nil), NewRunner(exec, RunnerConfig{}, nil, zap.NewNop()), rec, zap.NewNop())

	ans, err := svc.Ask(context.Background(), AskRequest{Text: "Who are the all-time assists leaders?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Graph != GraphPlayerStats || ans.Split == nil || !ans.Split.OK {
		t.Fatalf("answer = %+v", ans)
	}
	if !strings.HasPrefix(ans.Display, "Raw Data:\n[{") || !strings.HasSuffix(ans.Display, "Human-Readable Summary:\nJohn Stockton leads.") {
		t.Errorf("display:\n%s", ans.Display)
	}
	if len(rec.saved) != 1 || rec.errs[0] != nil {
		t.Errorf("recorder = %+v", rec)
	}
}

func TestServiceAskRecordsFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["researcher"] = errors.New("connection refused")
	rec := &memRecorder{}
	svc := NewService(testBuilder(nil), NewRunner(exec, RunnerConfig{}, nil, zap.NewNop()), rec, zap.NewNop())

	if _, err := svc.Ask(context.Background(), AskRequest{Text: "Lakers game"}); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.saved) != 1 || rec.errs[0] == nil {
		t.Errorf("failed run not recorded: %+v", rec)
	}
	if _, err := svc.Ask(context.Background(), AskRequest{Text: "  "}); err == nil {
		t.Error("empty request accepted")
	}
}

type memRecorder struct {
	saved []*Result
	errs  []error
}

func (m *memRecorder) SaveRun(_ context.Context, res *Result, runErr error) error {
	m.saved = append(m.saved, res)
	m.errs = append(m.errs, runErr)
	return nil
}

func TestBuildPromptMissingContext(t *testing.T) {
	task := &Task{ID: "b", Description: "d", DependsOn: []string{"a"}}
	if _, err := BuildPrompt(task, nil, map[string]string{}); err == nil {
		t.Error("expected missing context error")
	}
}
