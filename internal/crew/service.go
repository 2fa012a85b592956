package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RunRecorder persists finished runs. runErr is nil for successful runs.
type RunRecorder interface {
	SaveRun(ctx context.Context, res *Result, runErr error) error
}

// AskRequest is one user question. Graph overrides routing when set.
type AskRequest struct {
	Text         string
	Graph        GraphName
	FallbackDate time.Time
}

// Answer is the outcome of Ask.
type Answer struct {
	RunID   string    `json:"run_id"`
	Graph   GraphName `json:"graph"`
	Output  string    `json:"output"`
	Split   *Split    `json:"split,omitempty"`
	Display string    `json:"display"`
	Result  *Result   `json:"result"`
}

// Service routes, builds and runs requests.
type Service struct {
	builder  *Builder
	runner   *Runner
	recorder RunRecorder
	logger   *zap.Logger
}

// NewService wires a builder and runner. recorder may be nil.
func NewService(builder *Builder, runner *Runner, recorder RunRecorder, logger *zap.Logger) *Service {
	return &Service{builder: builder, runner: runner, recorder: recorder, logger: logger}
}

// Builder returns the service's graph builder.
func (s *Service) Builder() *Builder { return s.builder }

// Ask answers one request end to end.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("ask: empty request")
	}
	name := req.Graph
	if name == "" {
		name = SelectGraph(req.Text)
	}
	s.logger.Info("request routed", zap.String("graph", string(name)))

	g, err := s.builder.Build(name, Request{Text: req.Text, FallbackDate: req.FallbackDate})
	if err != nil {
		return nil, err
	}

	res, runErr := s.runner.Run(ctx, g)
	if s.recorder != nil {
		if err := s.recorder.SaveRun(context.WithoutCancel(ctx), res, runErr); err != nil {
			s.logger.Warn("save run", zap.String("run", res.RunID), zap.Error(err))
		}
	}
	if runErr != nil {
		return nil, fmt.Errorf("run %s (%s): %w", res.RunID, name, runErr)
	}

	ans := &Answer{
		RunID:   res.RunID,
		Graph:   name,
		Output:  res.Output,
		Display: Display(name, res.Output),
		Result:  res,
	}
	if name == GraphPlayerStats {
		sp := SplitResult(res.Output)
		ans.Split = &sp
	}
	return ans, nil
}
