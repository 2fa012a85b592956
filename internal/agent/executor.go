package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nidhogg/statcrew/internal/provider"
	"go.uber.org/zap"
)

// Chatter sends one chat completion. *provider.Router satisfies it.
type Chatter interface {
	Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error)
}

// DefaultMaxToolRounds bounds the tool loop when no limit is configured.
const DefaultMaxToolRounds = 5

// Executor runs a single prompt through an agent's model and tool loop.
// It holds no per-agent state and is safe for concurrent use.
type Executor struct {
	chat          Chatter
	tools         *ToolRegistry
	maxToolRounds int
	maxTokens     int
	logger        *zap.Logger
}

// NewExecutor creates an executor backed by the given chat client and tools.
func NewExecutor(chat Chatter, tools *ToolRegistry, maxToolRounds int, logger *zap.Logger) *Executor {
	if maxToolRounds <= 0 {
		maxToolRounds = DefaultMaxToolRounds
	}
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Executor{
		chat:          chat,
		tools:         tools,
		maxToolRounds: maxToolRounds,
		maxTokens:     4096,
		logger:        logger,
	}
}

// Tools returns the executor's tool registry.
func (e *Executor) Tools() *ToolRegistry { return e.tools }

// ExecuteResult holds the output of an agent execution.
type ExecuteResult struct {
	Content string         `json:"content"`
	Chain   *ThinkingChain `json:"chain"`
	Usage   provider.Usage `json:"usage"`
}

// Execute runs prompt against the agent. Only the agent's permitted tools are
// offered to the model; a request for any other tool is answered with a
// "tool not permitted" payload and never executed. Model and tool upstream
// failures abort the execution.
func (e *Executor) Execute(ctx context.Context, a *Agent, prompt string) (*ExecuteResult, error) {
	if a == nil {
		return nil, errors.New("execute: nil agent")
	}
	defs, err := e.tools.Definitions(a.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.ID, err)
	}

	chain := &ThinkingChain{
		ID:        uuid.New().String(),
		AgentID:   a.ID,
		Model:     a.Model,
		StartedAt: time.Now(),
	}

	req := &provider.ChatRequest{
		Model: a.Model,
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: a.SystemPrompt()},
			{Role: provider.RoleUser, Content: prompt},
		},
		MaxTokens: e.maxTokens,
	}
	if len(defs) > 0 {
		req.Tools = defs
		req.ToolChoice = "auto"
	}

	var usage provider.Usage
	var resp *provider.ChatResponse
	for round := 0; ; round++ {
		if round == e.maxToolRounds {
			// Out of tool budget: ask for a final answer without tools.
			req.Tools = nil
			req.ToolChoice = ""
		}
		chain.add(StepReasoning, "", fmt.Sprintf("round %d: sending request to %s", round+1, a.Model))

		resp, err = e.chat.Chat(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("agent %s model %s: %w", a.ID, a.Model, err)
		}
		usage.PromptTokens += resp.Usage.PromptTokens
		usage.CompletionTokens += resp.Usage.CompletionTokens
		usage.TotalTokens += resp.Usage.TotalTokens

		if len(resp.ToolCalls) == 0 || resp.FinishReason != provider.FinishToolCalls || round == e.maxToolRounds {
			break
		}

		req.Messages = append(req.Messages, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			result, err := e.dispatch(ctx, a, chain, tc)
			if err != nil {
				return nil, err
			}
			req.Messages = append(req.Messages, provider.Message{
				Role:       provider.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}

		e.logger.Debug("tool round complete",
			zap.String("agent", a.ID),
			zap.Int("round", round+1),
			zap.Int("tool_calls", len(resp.ToolCalls)))
	}

	chain.Steps = append(chain.Steps, ThinkStep{
		Type:       StepResponse,
		Content:    truncateStr(resp.Content, 200),
		Timestamp:  time.Now(),
		TokensUsed: usage.TotalTokens,
	})
	chain.Duration = time.Since(chain.StartedAt)

	return &ExecuteResult{
		Content: resp.Content,
		Chain:   chain,
		Usage:   usage,
	}, nil
}

// dispatch resolves one tool call against the agent's allow-list.
func (e *Executor) dispatch(ctx context.Context, a *Agent, chain *ThinkingChain, tc provider.ToolCall) (string, error) {
	name := tc.Function.Name
	if !a.Permits(name) {
		e.logger.Warn("tool not permitted",
			zap.String("agent", a.ID),
			zap.String("tool", name))
		chain.add(StepToolDenied, name, ErrToolNotPermitted.Error())
		return ErrorPayload(fmt.Sprintf("%s: %s", ErrToolNotPermitted, name)), nil
	}

	chain.add(StepToolCall, name, tc.Function.Arguments)
	result, err := e.tools.Execute(ctx, name, tc.Function.Arguments)
	if errors.Is(err, ErrUnknownTool) {
		chain.add(StepToolDenied, name, err.Error())
		return ErrorPayload(err.Error()), nil
	}
	if err != nil {
		return "", fmt.Errorf("agent %s tool %s: %w", a.ID, name, err)
	}
	chain.add(StepToolResult, name, truncateStr(result, 200))
	return result, nil
}

func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
