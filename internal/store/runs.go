package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/statcrew/internal/crew"
)

// Run is one persisted crew run.
type Run struct {
	ID               string        `json:"id"`
	Graph            string        `json:"graph"`
	Request          string        `json:"request"`
	Status           string        `json:"status"`
	Output           string        `json:"output"`
	Error            string        `json:"error,omitempty"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	Tasks            []TaskRecord  `json:"tasks,omitempty"`
}

// TaskRecord is one task of a persisted run, in execution order.
type TaskRecord struct {
	TaskID      string        `json:"task_id"`
	AgentID     string        `json:"agent_id"`
	Model       string        `json:"model"`
	Status      string        `json:"status"`
	Output      string        `json:"output,omitempty"`
	Error       string        `json:"error,omitempty"`
	ToolCalls   []string      `json:"tool_calls,omitempty"`
	TotalTokens int           `json:"total_tokens"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// NewRun flattens a crew result into its persisted form.
func NewRun(res *crew.Result, runErr error) *Run {
	r := &Run{
		ID:               res.RunID,
		Graph:            string(res.Name),
		Request:          res.Request,
		Status:           string(res.Status()),
		Output:           res.Output,
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
		StartedAt:        res.Started,
		Duration:         res.Duration,
	}
	if runErr != nil {
		r.Status = string(crew.TaskFailed)
		r.Error = runErr.Error()
	}
	for _, id := range res.Order {
		tr, ok := res.Tasks[id]
		if !ok {
			continue
		}
		r.Tasks = append(r.Tasks, TaskRecord{
			TaskID:      tr.TaskID,
			AgentID:     tr.AgentID,
			Model:       tr.Model,
			Status:      string(tr.Status),
			Output:      tr.Output,
			Error:       tr.Error,
			ToolCalls:   tr.ToolCalls,
			TotalTokens: tr.Usage.TotalTokens,
			StartedAt:   tr.StartedAt,
			CompletedAt: tr.CompletedAt,
			Duration:    tr.Duration,
		})
	}
	return r
}

// SaveRun records a finished run and its task outputs. It satisfies
// crew.RunRecorder.
func (s *Store) SaveRun(ctx context.Context, res *crew.Result, runErr error) error {
	return s.InsertRun(ctx, NewRun(res, runErr))
}

// InsertRun upserts r and replaces its task rows in one transaction.
func (s *Store) InsertRun(ctx context.Context, r *Run) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, graph, request, status, output, error,
		                  prompt_tokens, completion_tokens, total_tokens, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			output = EXCLUDED.output,
			error = EXCLUDED.error,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			total_tokens = EXCLUDED.total_tokens,
			duration_ms = EXCLUDED.duration_ms`,
		r.ID, r.Graph, r.Request, r.Status, r.Output, r.Error,
		r.PromptTokens, r.CompletionTokens, r.TotalTokens, r.StartedAt, r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM task_outputs WHERE run_id = $1`, r.ID); err != nil {
		return fmt.Errorf("clear tasks of run %s: %w", r.ID, err)
	}
	for i, t := range r.Tasks {
		calls, err := json.Marshal(nonNil(t.ToolCalls))
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO task_outputs (run_id, position, task_id, agent_id, model, status, output, error,
			                          tool_calls, total_tokens, started_at, completed_at, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			r.ID, i, t.TaskID, t.AgentID, t.Model, t.Status, t.Output, t.Error,
			calls, t.TotalTokens, t.StartedAt, t.CompletedAt, t.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("save task %s of run %s: %w", t.TaskID, r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run %s: %w", r.ID, err)
	}
	return nil
}

const runColumns = `id, graph, request, status, output, error,
	prompt_tokens, completion_tokens, total_tokens, started_at, duration_ms`

func scanRun(row pgx.Row) (*Run, error) {
	var (
		r  Run
		ms int64
	)
	err := row.Scan(&r.ID, &r.Graph, &r.Request, &r.Status, &r.Output, &r.Error,
		&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.StartedAt, &ms)
	if err != nil {
		return nil, err
	}
	r.Duration = time.Duration(ms) * time.Millisecond
	return &r, nil
}

// GetRun loads a run with its tasks.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT task_id, agent_id, model, status, output, error, tool_calls,
		       total_tokens, started_at, completed_at, duration_ms
		FROM task_outputs WHERE run_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get tasks of run %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t     TaskRecord
			calls []byte
			ms    int64
		)
		if err := rows.Scan(&t.TaskID, &t.AgentID, &t.Model, &t.Status, &t.Output, &t.Error, &calls,
			&t.TotalTokens, &t.StartedAt, &t.CompletedAt, &ms); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := json.Unmarshal(calls, &t.ToolCalls); err != nil {
			return nil, fmt.Errorf("decode tool calls of %s: %w", t.TaskID, err)
		}
		t.Duration = time.Duration(ms) * time.Millisecond
		r.Tasks = append(r.Tasks, t)
	}
	return r, rows.Err()
}

// ListRuns returns the most recent runs, newest first, without task rows.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
