package skill

// Skill is a named bundle of tools plus the prompt fragment that teaches an
// agent when to use them. Crew agents list skills; the skill set resolves to
// the agent's tool allow-list.
type Skill struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	PromptFragment string   `json:"prompt_fragment"`
	ToolNames      []string `json:"tool_names"`
	Source         string   `json:"source"` // "builtin" or "plugin"
}
