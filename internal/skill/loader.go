package skill

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromDir scans dir for plugin subdirectories. Each one holds a
// skill.json or skill.yaml, plus an optional prompt.md that replaces the
// prompt fragment. A missing dir yields no skills.
func LoadFromDir(dir string) ([]*Skill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading skill directory %s: %w", dir, err)
	}

	var skills []*Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		s, err := loadSkillFromSubdir(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading skill %s: %w", entry.Name(), err)
		}
		if s != nil {
			skills = append(skills, s)
		}
	}
	return skills, nil
}

func loadSkillFromSubdir(dir string) (*Skill, error) {
	var s Skill
	data, err := os.ReadFile(filepath.Join(dir, "skill.json"))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing skill.json: %w", err)
		}
	case os.IsNotExist(err):
		data, err = os.ReadFile(filepath.Join(dir, "skill.yaml"))
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading skill.yaml: %w", err)
		}
		var y struct {
			ID             string   `yaml:"id"`
			Name           string   `yaml:"name"`
			Description    string   `yaml:"description"`
			PromptFragment string   `yaml:"prompt_fragment"`
			ToolNames      []string `yaml:"tool_names"`
		}
		if err := yaml.Unmarshal(data, &y); err != nil {
			return nil, fmt.Errorf("parsing skill.yaml: %w", err)
		}
		s = Skill{ID: y.ID, Name: y.Name, Description: y.Description, PromptFragment: y.PromptFragment, ToolNames: y.ToolNames}
	default:
		return nil, fmt.Errorf("reading skill.json: %w", err)
	}

	if s.ID == "" {
		return nil, errors.New("skill has no id")
	}
	if s.Name == "" {
		s.Name = s.ID
	}
	s.Source = "plugin"

	if promptData, err := os.ReadFile(filepath.Join(dir, "prompt.md")); err == nil {
		s.PromptFragment = strings.TrimSpace(string(promptData))
	}
	return &s, nil
}
