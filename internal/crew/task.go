package crew

// Task is one prompt in a graph, bound to an agent by ID.
type Task struct {
	ID             string   `json:"id"`
	Description    string   `json:"description"`
	ExpectedOutput string   `json:"expected_output"`
	AgentID        string   `json:"agent_id"`
	DependsOn      []string `json:"depends_on,omitempty"`
	// Context lists the tasks whose outputs are fed to this one. Empty
	// means DependsOn. Every entry must be an ancestor.
	Context []string `json:"context,omitempty"`
}

// ContextIDs returns the tasks whose outputs form this task's context.
func (t *Task) ContextIDs() []string {
	if len(t.Context) > 0 {
		return t.Context
	}
	return t.DependsOn
}
