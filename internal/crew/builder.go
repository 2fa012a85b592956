package crew

import (
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/statcrew/internal/agent"
	"github.com/nidhogg/statcrew/internal/skill"
	"go.uber.org/zap"
)

// ErrNoModel is returned when an agent's model key has no configured model.
var ErrNoModel = errors.New("no model configured")

// Template input names.
const (
	InputUserPrompt  = "user_prompt"
	InputDefaultDate = "default_date"
)

// Config controls graph construction.
type Config struct {
	// Models maps a model key (usually the agent key) to a model identifier.
	Models              map[string]string
	DefaultLookbackDays int
	// Now is the clock used for the fallback date. Defaults to time.Now.
	Now func() time.Time
}

// Request is the user's question plus an optional explicit fallback date.
type Request struct {
	Text         string
	FallbackDate time.Time
}

// Builder assembles graphs from definitions. It does no I/O.
type Builder struct {
	cfg    Config
	defs   *Definitions
	skills *skill.Manager
	logger *zap.Logger
}

// NewBuilder creates a builder. A nil skill manager is replaced by one
// holding the built-in skills.
func NewBuilder(cfg Config, defs *Definitions, skills *skill.Manager, logger *zap.Logger) *Builder {
	if cfg.DefaultLookbackDays <= 0 {
		cfg.DefaultLookbackDays = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if defs == nil {
		defs = DefaultDefinitions()
	}
	if skills == nil {
		skills = skill.NewManager()
		skill.RegisterBuiltins(skills)
	}
	return &Builder{cfg: cfg, defs: defs, skills: skills, logger: logger}
}

// Definitions returns the catalogue the builder reads from.
func (b *Builder) Definitions() *Definitions { return b.defs }

// FallbackDate is the date used when the request names none.
func (b *Builder) FallbackDate(req Request) time.Time {
	if !req.FallbackDate.IsZero() {
		return req.FallbackDate
	}
	return b.cfg.Now().AddDate(0, 0, -b.cfg.DefaultLookbackDays)
}

// Build constructs a fresh graph for name. Every call creates new agents.
func (b *Builder) Build(name GraphName, req Request) (*Graph, error) {
	def, err := b.defs.Graph(name)
	if err != nil {
		return nil, err
	}

	inputs := map[string]string{
		InputUserPrompt:  req.Text,
		InputDefaultDate: b.FallbackDate(req).Format("2006-01-02"),
	}

	var (
		agents []*agent.Agent
		built  = make(map[string]*agent.Agent)
		tasks  = make([]*Task, 0, len(def.Tasks))
	)
	for _, id := range def.Tasks {
		td, ok := b.defs.Tasks[id]
		if !ok {
			return nil, fmt.Errorf("build %s: unknown task %q", name, id)
		}
		if _, err := Render(td.Description, inputs); err != nil {
			return nil, fmt.Errorf("build %s: task %s: %w", name, id, err)
		}
		if _, ok := built[td.Agent]; !ok {
			a, err := b.newAgent(td.Agent)
			if err != nil {
				return nil, fmt.Errorf("build %s: %w", name, err)
			}
			built[td.Agent] = a
			agents = append(agents, a)
		}
		tasks = append(tasks, &Task{
			ID:             id,
			Description:    td.Description,
			ExpectedOutput: td.ExpectedOutput,
			AgentID:        td.Agent,
			DependsOn:      append([]string(nil), td.DependsOn...),
			Context:        append([]string(nil), td.Context...),
		})
	}

	if err := b.checkDistinctModels(def, built); err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}

	g, err := NewGraph(name, req.Text, inputs, agents, tasks)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	b.logger.Debug("graph built",
		zap.String("graph", string(name)),
		zap.Int("tasks", len(tasks)),
		zap.String("default_date", inputs[InputDefaultDate]))
	return g, nil
}

func (b *Builder) newAgent(key string) (*agent.Agent, error) {
	ad, ok := b.defs.Agents[key]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", key)
	}
	modelKey := ad.Model
	if modelKey == "" {
		modelKey = key
	}
	model := b.cfg.Models[modelKey]
	if model == "" {
		return nil, fmt.Errorf("agent %s: %w for %q", key, ErrNoModel, modelKey)
	}

	skills, err := b.skills.Resolve(ad.Skills)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", key, err)
	}
	tools := append([]string(nil), ad.Tools...)
	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		seen[t] = true
	}
	for _, t := range skill.ToolNames(skills) {
		if !seen[t] {
			seen[t] = true
			tools = append(tools, t)
		}
	}

	return &agent.Agent{
		ID:          key,
		Role:        ad.Role,
		Goal:        ad.Goal,
		Backstory:   ad.Backstory,
		Model:       model,
		Tools:       tools,
		Skills:      append([]string(nil), ad.Skills...),
		SkillPrompt: skill.FormatSkillPrompt(skills),
	}, nil
}

func (b *Builder) checkDistinctModels(def GraphDef, built map[string]*agent.Agent) error {
	owner := make(map[string]string, len(def.DistinctModels))
	for _, taskID := range def.DistinctModels {
		td, ok := b.defs.Tasks[taskID]
		if !ok {
			return fmt.Errorf("distinct_models: unknown task %q", taskID)
		}
		a, ok := built[td.Agent]
		if !ok {
			return fmt.Errorf("distinct_models: task %q is not in the graph", taskID)
		}
		if prev, dup := owner[a.Model]; dup {
			return fmt.Errorf("tasks %s and %s share model %s; they need distinct models", prev, taskID, a.Model)
		}
		owner[a.Model] = taskID
	}
	return nil
}
