package agent

import (
	"fmt"
	"strings"
)

// Agent is a persona bound to one model and an allow-list of tools.
// Agents are built fresh for every graph and carry no state between runs.
type Agent struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	Goal      string   `json:"goal"`
	Backstory string   `json:"backstory"`
	Model     string   `json:"model"`
	Tools     []string `json:"tools"`
	Skills    []string `json:"skills,omitempty"`

	// SkillPrompt is appended to the system prompt when non-empty.
	SkillPrompt string `json:"-"`
}

// Permits reports whether the agent may invoke the named tool.
func (a *Agent) Permits(tool string) bool {
	for _, t := range a.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// SystemPrompt renders the persona as a system message.
func (a *Agent) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s\nYour personal goal is: %s", a.Role, a.Backstory, a.Goal)
	if len(a.Tools) == 0 {
		b.WriteString("\nYou have no tools. Answer using only the information you are given.")
	}
	if a.SkillPrompt != "" {
		b.WriteString("\n\n")
		b.WriteString(a.SkillPrompt)
	}
	return b.String()
}
