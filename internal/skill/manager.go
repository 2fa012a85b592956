package skill

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownSkill is returned when a referenced skill is not in the pool.
var ErrUnknownSkill = errors.New("unknown skill")

// Manager holds the skill pool. All operations are thread-safe.
type Manager struct {
	mu     sync.RWMutex
	skills map[string]*Skill
}

// NewManager creates an empty Manager ready for use.
func NewManager() *Manager {
	return &Manager{skills: make(map[string]*Skill)}
}

// Add registers a skill in the pool, replacing any skill with the same ID.
func (m *Manager) Add(s *Skill) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skills[s.ID] = s
}

// Get returns a skill by ID, or nil if not found.
func (m *Manager) Get(id string) *Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.skills[id]
}

// All returns every skill in the pool sorted by ID.
func (m *Manager) All() []*Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Skill, 0, len(m.skills))
	for _, s := range m.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve looks up the given skill IDs in order.
func (m *Manager) Resolve(ids []string) ([]*Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Skill, 0, len(ids))
	for _, id := range ids {
		s, ok := m.skills[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSkill, id)
		}
		out = append(out, s)
	}
	return out, nil
}

// ToolNames returns the deduplicated tool names of the skills, in order.
func ToolNames(skills []*Skill) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, s := range skills {
		for _, t := range s.ToolNames {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				names = append(names, t)
			}
		}
	}
	return names
}

// FormatSkillPrompt formats a slice of skills into a markdown block suitable
// for injection into an agent's system prompt.
func FormatSkillPrompt(skills []*Skill) string {
	if len(skills) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Available Skills\n")
	for _, s := range skills {
		fmt.Fprintf(&b, "\n### %s\n%s\n", s.Name, s.Description)
		if s.PromptFragment != "" {
			fmt.Fprintf(&b, "\n%s\n", s.PromptFragment)
		}
	}
	return b.String()
}
