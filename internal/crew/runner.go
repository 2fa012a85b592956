package crew

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/statcrew/internal/agent"
	"github.com/nidhogg/statcrew/internal/provider"
	"go.uber.org/zap"
)

// DefaultTaskTimeout bounds a task when no timeout is configured.
const DefaultTaskTimeout = 3 * time.Minute

// Executor runs one prompt through an agent. *agent.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, a *agent.Agent, prompt string) (*agent.ExecuteResult, error)
}

// EventSink receives task lifecycle events. Publish failures are logged and
// never fail the run.
type EventSink interface {
	Publish(ctx context.Context, ev *Event) error
}

// Event is one task state change within a run.
type Event struct {
	RunID     string        `json:"run_id"`
	Graph     GraphName     `json:"graph"`
	TaskID    string        `json:"task_id,omitempty"`
	AgentID   string        `json:"agent_id,omitempty"`
	Status    TaskStatus    `json:"status"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// TaskRun is the record of one task within a run.
type TaskRun struct {
	TaskID      string         `json:"task_id"`
	AgentID     string         `json:"agent_id"`
	Model       string         `json:"model"`
	Status      TaskStatus     `json:"status"`
	Output      string         `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	ToolCalls   []string       `json:"tool_calls,omitempty"`
	Usage       provider.Usage `json:"usage"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

func (tr *TaskRun) transition(to TaskStatus) error {
	if err := Transition(tr.Status, to); err != nil {
		return fmt.Errorf("task %s: %w", tr.TaskID, err)
	}
	tr.Status = to
	return nil
}

// Result is the outcome of a run. On failure it still carries the state of
// every task.
type Result struct {
	RunID    string              `json:"run_id"`
	Graph    *Graph              `json:"-"`
	Name     GraphName           `json:"graph"`
	Request  string              `json:"request"`
	Output   string              `json:"output"`
	Outputs  map[string]string   `json:"outputs"`
	Order    []string            `json:"order"`
	Tasks    map[string]*TaskRun `json:"tasks"`
	Usage    provider.Usage      `json:"usage"`
	Started  time.Time           `json:"started"`
	Duration time.Duration       `json:"duration"`
}

// Status is completed when every task completed, otherwise failed.
func (r *Result) Status() TaskStatus {
	for _, tr := range r.Tasks {
		if tr.Status != TaskCompleted {
			return TaskFailed
		}
	}
	return TaskCompleted
}

// TaskError wraps the failure of a single task.
type TaskError struct {
	TaskID string
	Err    error
}

func (e *TaskError) Error() string { return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err) }
func (e *TaskError) Unwrap() error { return e.Err }

// RunnerConfig tunes execution.
type RunnerConfig struct {
	// Parallelism bounds concurrent sibling tasks; 1 runs sequentially.
	Parallelism int
	TaskTimeout time.Duration
}

// Runner executes graphs level by level. Siblings in a level may run
// concurrently on a bounded pool; the next level starts only after every
// sibling has finished.
type Runner struct {
	exec        Executor
	parallelism int
	taskTimeout time.Duration
	events      EventSink
	logger      *zap.Logger
}

// NewRunner creates a runner. events may be nil.
func NewRunner(exec Executor, cfg RunnerConfig, events EventSink, logger *zap.Logger) *Runner {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	return &Runner{
		exec:        exec,
		parallelism: cfg.Parallelism,
		taskTimeout: cfg.TaskTimeout,
		events:      events,
		logger:      logger,
	}
}

// Run executes g in its cached topological order. The first task failure
// cancels the run and is returned as a *TaskError alongside the partial
// result.
func (r *Runner) Run(ctx context.Context, g *Graph) (*Result, error) {
	res := &Result{
		RunID:   uuid.New().String(),
		Graph:   g,
		Name:    g.Name,
		Request: g.Request,
		Outputs: make(map[string]string, len(g.Tasks)),
		Order:   g.Order(),
		Tasks:   make(map[string]*TaskRun, len(g.Tasks)),
		Started: time.Now(),
	}
	for _, t := range g.Tasks {
		a, _ := g.Agent(t.AgentID)
		res.Tasks[t.ID] = &TaskRun{TaskID: t.ID, AgentID: t.AgentID, Model: a.Model, Status: TaskPending}
	}

	r.logger.Info("run started",
		zap.String("run", res.RunID),
		zap.String("graph", string(g.Name)),
		zap.Int("tasks", len(g.Tasks)))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var runErr error
	for _, level := range g.Levels() {
		if err := r.runLevel(runCtx, cancel, g, res, level); err != nil {
			runErr = err
			break
		}
		// Outputs are shared only after the barrier.
		for _, id := range level {
			res.Outputs[id] = res.Tasks[id].Output
		}
	}

	for _, tr := range res.Tasks {
		res.Usage.PromptTokens += tr.Usage.PromptTokens
		res.Usage.CompletionTokens += tr.Usage.CompletionTokens
		res.Usage.TotalTokens += tr.Usage.TotalTokens
	}
	res.Duration = time.Since(res.Started)

	if runErr != nil {
		r.logger.Error("run failed",
			zap.String("run", res.RunID),
			zap.String("graph", string(g.Name)),
			zap.Error(runErr))
		r.publish(ctx, &Event{RunID: res.RunID, Graph: g.Name, Status: TaskFailed, Error: runErr.Error(), Duration: res.Duration})
		return res, runErr
	}

	if term := g.Terminal(); term != nil {
		res.Output = res.Outputs[term.ID]
	}
	r.logger.Info("run completed",
		zap.String("run", res.RunID),
		zap.String("graph", string(g.Name)),
		zap.Duration("duration", res.Duration),
		zap.Int("tokens", res.Usage.TotalTokens))
	r.publish(ctx, &Event{RunID: res.RunID, Graph: g.Name, Status: TaskCompleted, Output: res.Output, Duration: res.Duration})
	return res, nil
}

// runLevel executes one dependency level and waits for all of it.
func (r *Runner) runLevel(ctx context.Context, cancel context.CancelFunc, g *Graph, res *Result, level []string) error {
	if r.parallelism == 1 || len(level) == 1 {
		for _, id := range level {
			if err := r.runTask(ctx, g, res, id); err != nil {
				return err
			}
		}
		return nil
	}

	pool := make(chan struct{}, r.parallelism)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, id := range level {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			pool <- struct{}{}
			defer func() { <-pool }()

			if err := r.runTask(ctx, g, res, id); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return firstErr
}

// runTask drives one task through pending -> running -> completed|failed.
// It writes only to its own TaskRun and reads outputs of earlier levels.
func (r *Runner) runTask(ctx context.Context, g *Graph, res *Result, id string) error {
	task, _ := g.Task(id)
	a, _ := g.Agent(task.AgentID)
	tr := res.Tasks[id]

	if err := ctx.Err(); err != nil {
		return &TaskError{TaskID: id, Err: err}
	}
	if err := tr.transition(TaskRunning); err != nil {
		return &TaskError{TaskID: id, Err: err}
	}
	start := time.Now()
	tr.StartedAt = &start
	r.publish(ctx, &Event{RunID: res.RunID, Graph: g.Name, TaskID: id, AgentID: a.ID, Status: TaskRunning})

	prompt, err := BuildPrompt(task, g.Inputs, res.Outputs)
	if err == nil {
		r.logger.Info("executing task",
			zap.String("task", id),
			zap.String("agent", a.ID),
			zap.String("model", a.Model))

		tctx, cancel := context.WithTimeout(ctx, r.taskTimeout)
		var out *agent.ExecuteResult
		out, err = r.exec.Execute(tctx, a, prompt)
		if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", r.taskTimeout, err)
		}
		cancel()
		if err == nil {
			tr.Output = out.Content
			tr.Usage = out.Usage
			if out.Chain != nil {
				tr.ToolCalls = out.Chain.ToolCalls()
			}
		}
	}

	done := time.Now()
	tr.CompletedAt = &done
	tr.Duration = done.Sub(start)

	if err != nil {
		tr.Error = err.Error()
		_ = tr.transition(TaskFailed)
		r.publish(ctx, &Event{RunID: res.RunID, Graph: g.Name, TaskID: id, AgentID: a.ID, Status: TaskFailed, Error: tr.Error, Duration: tr.Duration})
		return &TaskError{TaskID: id, Err: err}
	}

	_ = tr.transition(TaskCompleted)
	r.publish(ctx, &Event{RunID: res.RunID, Graph: g.Name, TaskID: id, AgentID: a.ID, Status: TaskCompleted, Output: tr.Output, Duration: tr.Duration})
	return nil
}

func (r *Runner) publish(ctx context.Context, ev *Event) {
	if r.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	// Failure events must still go out after the run context is cancelled.
	if err := r.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.Warn("publish event", zap.String("run", ev.RunID), zap.Error(err))
	}
}

// BuildPrompt renders a task's instruction and appends the outputs of its
// context tasks, separated by blank lines.
func BuildPrompt(t *Task, inputs, outputs map[string]string) (string, error) {
	desc, err := Render(t.Description, inputs)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Current Task: ")
	b.WriteString(strings.TrimSpace(desc))
	b.WriteString("\n\nThis is the expected criteria for your final answer: ")
	b.WriteString(strings.TrimSpace(t.ExpectedOutput))
	b.WriteString("\nyou MUST return the actual complete content as the final answer, not a summary.")

	ids := t.ContextIDs()
	if len(ids) > 0 {
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			out, ok := outputs[id]
			if !ok {
				return "", fmt.Errorf("context task %s has no output", id)
			}
			parts = append(parts, out)
		}
		b.WriteString("\n\nThis is the context you're working with:\n")
		b.WriteString(strings.Join(parts, "\n\n"))
	}
	return b.String(), nil
}
