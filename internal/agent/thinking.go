package agent

import (
	"time"
)

// StepType identifies the kind of thinking step.
type StepType string

const (
	StepReasoning  StepType = "reasoning"
	StepToolCall   StepType = "tool_call"
	StepToolResult StepType = "tool_result"
	StepToolDenied StepType = "tool_denied"
	StepResponse   StepType = "response"
)

// ThinkingChain records the trace of one agent execution.
type ThinkingChain struct {
	ID        string        `json:"id"`
	AgentID   string        `json:"agent_id"`
	Model     string        `json:"model"`
	Steps     []ThinkStep   `json:"steps"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// ThinkStep is a single step in the thinking chain.
type ThinkStep struct {
	Type       StepType  `json:"type"`
	Content    string    `json:"content"`
	Tool       string    `json:"tool,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	TokensUsed int       `json:"tokens_used,omitempty"`
}

func (c *ThinkingChain) add(t StepType, tool, content string) {
	c.Steps = append(c.Steps, ThinkStep{
		Type:      t,
		Tool:      tool,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// ToolCalls returns the names of the tools that actually ran, in order.
func (c *ThinkingChain) ToolCalls() []string {
	var names []string
	for _, s := range c.Steps {
		if s.Type == StepToolResult {
			names = append(names, s.Tool)
		}
	}
	return names
}
