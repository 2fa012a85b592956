package crew

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed crew.yaml
var builtinDefinitions []byte

// ErrUnknownGraph is returned for a graph name with no definition.
var ErrUnknownGraph = errors.New("unknown graph")

// AgentDef is the persona data for one agent. Model is the key looked up in
// the configured model map and defaults to the agent's own key.
type AgentDef struct {
	Role      string   `yaml:"role" json:"role"`
	Goal      string   `yaml:"goal" json:"goal"`
	Backstory string   `yaml:"backstory" json:"backstory"`
	Model     string   `yaml:"model,omitempty" json:"model,omitempty"`
	Tools     []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	Skills    []string `yaml:"skills,omitempty" json:"skills,omitempty"`
}

// TaskDef is a task template.
type TaskDef struct {
	Agent          string   `yaml:"agent" json:"agent"`
	Description    string   `yaml:"description" json:"description"`
	ExpectedOutput string   `yaml:"expected_output" json:"expected_output"`
	DependsOn      []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Context        []string `yaml:"context,omitempty" json:"context,omitempty"`
}

// GraphDef lists a graph's tasks in declaration order. DistinctModels names
// tasks whose agents must all be bound to different models.
type GraphDef struct {
	Description    string   `yaml:"description" json:"description"`
	Tasks          []string `yaml:"tasks" json:"tasks"`
	DistinctModels []string `yaml:"distinct_models,omitempty" json:"distinct_models,omitempty"`
}

// Definitions is the full crew catalogue.
type Definitions struct {
	Agents map[string]AgentDef    `yaml:"agents" json:"agents"`
	Tasks  map[string]TaskDef     `yaml:"tasks" json:"tasks"`
	Graphs map[GraphName]GraphDef `yaml:"graphs" json:"graphs"`
}

// ParseDefinitions decodes a YAML catalogue.
func ParseDefinitions(data []byte) (*Definitions, error) {
	var d Definitions
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse crew definitions: %w", err)
	}
	if d.Agents == nil {
		d.Agents = make(map[string]AgentDef)
	}
	if d.Tasks == nil {
		d.Tasks = make(map[string]TaskDef)
	}
	if d.Graphs == nil {
		d.Graphs = make(map[GraphName]GraphDef)
	}
	return &d, nil
}

// DefaultDefinitions returns the embedded catalogue.
func DefaultDefinitions() *Definitions {
	d, err := ParseDefinitions(builtinDefinitions)
	if err != nil {
		panic(err)
	}
	return d
}

// LoadDefinitions returns the embedded catalogue with the file at path
// merged over it. Entries in the file replace built-in entries with the
// same key. An empty path yields the built-ins.
func LoadDefinitions(path string) (*Definitions, error) {
	d := DefaultDefinitions()
	if path == "" {
		return d, d.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crew definitions: %w", err)
	}
	override, err := ParseDefinitions(data)
	if err != nil {
		return nil, err
	}
	d.Merge(override)
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Merge copies every entry of o into d.
func (d *Definitions) Merge(o *Definitions) {
	for k, v := range o.Agents {
		d.Agents[k] = v
	}
	for k, v := range o.Tasks {
		d.Tasks[k] = v
	}
	for k, v := range o.Graphs {
		d.Graphs[k] = v
	}
}

// Validate checks cross references. Graph shape is checked by NewGraph at
// build time.
func (d *Definitions) Validate() error {
	for id, t := range d.Tasks {
		if _, ok := d.Agents[t.Agent]; !ok {
			return fmt.Errorf("task %s: unknown agent %q", id, t.Agent)
		}
	}
	for name, g := range d.Graphs {
		if len(g.Tasks) == 0 {
			return fmt.Errorf("graph %s: no tasks", name)
		}
		for _, id := range g.Tasks {
			if _, ok := d.Tasks[id]; !ok {
				return fmt.Errorf("graph %s: unknown task %q", name, id)
			}
		}
	}
	return nil
}

// GraphNames returns the defined graph names, sorted.
func (d *Definitions) GraphNames() []GraphName {
	names := make([]GraphName, 0, len(d.Graphs))
	for n := range d.Graphs {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Graph returns the definition for name.
func (d *Definitions) Graph(name GraphName) (GraphDef, error) {
	g, ok := d.Graphs[name]
	if !ok {
		return GraphDef{}, fmt.Errorf("%w: %s", ErrUnknownGraph, name)
	}
	return g, nil
}
