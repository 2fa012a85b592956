package crew

import (
	"fmt"
	"strings"

	"github.com/nidhogg/statcrew/internal/agent"
)

// GraphErrorKind classifies a graph validation failure.
type GraphErrorKind string

const (
	ErrKindEmptyID            GraphErrorKind = "empty_id"
	ErrKindDuplicateID        GraphErrorKind = "duplicate_id"
	ErrKindUnknownDependency  GraphErrorKind = "unknown_dependency"
	ErrKindSelfDependency     GraphErrorKind = "self_dependency"
	ErrKindUnknownAgent       GraphErrorKind = "unknown_agent"
	ErrKindContextNotAncestor GraphErrorKind = "context_not_ancestor"
	ErrKindCycle              GraphErrorKind = "cycle"
)

// GraphError reports why a graph was rejected.
type GraphError struct {
	Kind   GraphErrorKind
	TaskID string
	Detail string
}

func (e *GraphError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("invalid graph: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("invalid graph: %s: task %s: %s", e.Kind, e.TaskID, e.Detail)
}

// Graph is a validated DAG of tasks with their agents. The topological
// order and dependency levels are computed once in NewGraph.
type Graph struct {
	Name    GraphName         `json:"name"`
	Request string            `json:"request"`
	Inputs  map[string]string `json:"inputs"`
	Tasks   []*Task           `json:"tasks"`
	Agents  []*agent.Agent    `json:"agents"`

	tasks  map[string]*Task
	agents map[string]*agent.Agent
	order  []string
	levels [][]string
}

// NewGraph validates tasks and agents and returns the graph. Tasks keep
// their declaration order, which also breaks ties in the topological order.
func NewGraph(name GraphName, request string, inputs map[string]string, agents []*agent.Agent, tasks []*Task) (*Graph, error) {
	g := &Graph{
		Name:    name,
		Request: request,
		Inputs:  inputs,
		Tasks:   tasks,
		Agents:  agents,
		tasks:   make(map[string]*Task, len(tasks)),
		agents:  make(map[string]*agent.Agent, len(agents)),
	}
	for _, a := range agents {
		g.agents[a.ID] = a
	}

	for _, t := range tasks {
		if strings.TrimSpace(t.ID) == "" {
			return nil, &GraphError{Kind: ErrKindEmptyID, Detail: "task has no id"}
		}
		if _, dup := g.tasks[t.ID]; dup {
			return nil, &GraphError{Kind: ErrKindDuplicateID, TaskID: t.ID, Detail: "declared twice"}
		}
		g.tasks[t.ID] = t
	}

	for _, t := range tasks {
		if _, ok := g.agents[t.AgentID]; !ok {
			return nil, &GraphError{Kind: ErrKindUnknownAgent, TaskID: t.ID, Detail: fmt.Sprintf("agent %q not in graph", t.AgentID)}
		}
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return nil, &GraphError{Kind: ErrKindSelfDependency, TaskID: t.ID, Detail: "depends on itself"}
			}
			if _, ok := g.tasks[dep]; !ok {
				return nil, &GraphError{Kind: ErrKindUnknownDependency, TaskID: t.ID, Detail: fmt.Sprintf("depends on unknown task %q", dep)}
			}
		}
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}

	for _, t := range tasks {
		anc := g.ancestors(t.ID)
		for _, c := range t.Context {
			if !anc[c] {
				return nil, &GraphError{Kind: ErrKindContextNotAncestor, TaskID: t.ID, Detail: fmt.Sprintf("context task %q is not an ancestor", c)}
			}
		}
	}

	g.order = g.topoOrder()
	g.levels = g.computeLevels()
	return g, nil
}

// checkAcyclic walks dependencies with three-colour DFS.
func (g *Graph) checkAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	colour := make(map[string]int, len(g.Tasks))
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		colour[id] = grey
		path = append(path, id)
		for _, dep := range g.tasks[id].DependsOn {
			switch colour[dep] {
			case grey:
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), dep)
				return &GraphError{Kind: ErrKindCycle, TaskID: dep, Detail: strings.Join(cycle, " -> ")}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		colour[id] = black
		return nil
	}

	for _, t := range g.Tasks {
		if colour[t.ID] == white {
			if err := visit(t.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) ancestors(id string) map[string]bool {
	seen := make(map[string]bool)
	stack := append([]string{}, g.tasks[id].DependsOn...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.tasks[n].DependsOn...)
	}
	return seen
}

// topoOrder is Kahn's algorithm, always taking the earliest declared ready task.
func (g *Graph) topoOrder() []string {
	done := make(map[string]bool, len(g.Tasks))
	order := make([]string, 0, len(g.Tasks))
	for len(order) < len(g.Tasks) {
		for _, t := range g.Tasks {
			if done[t.ID] || !g.ready(t, done) {
				continue
			}
			done[t.ID] = true
			order = append(order, t.ID)
			break
		}
	}
	return order
}

func (g *Graph) ready(t *Task, done map[string]bool) bool {
	for _, dep := range t.DependsOn {
		if !done[dep] {
			return false
		}
	}
	return true
}

// computeLevels groups tasks by longest dependency chain. Tasks in one
// level do not depend on each other.
func (g *Graph) computeLevels() [][]string {
	level := make(map[string]int, len(g.order))
	max := 0
	for _, id := range g.order {
		l := 0
		for _, dep := range g.tasks[id].DependsOn {
			if level[dep]+1 > l {
				l = level[dep] + 1
			}
		}
		level[id] = l
		if l > max {
			max = l
		}
	}
	if len(g.order) == 0 {
		return nil
	}
	levels := make([][]string, max+1)
	for _, id := range g.order {
		levels[level[id]] = append(levels[level[id]], id)
	}
	return levels
}

// Order returns the cached topological order.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// Levels returns the cached dependency levels, each in topological order.
func (g *Graph) Levels() [][]string {
	out := make([][]string, len(g.levels))
	for i, l := range g.levels {
		out[i] = append([]string(nil), l...)
	}
	return out
}

// Task looks up a task by ID.
func (g *Graph) Task(id string) (*Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Agent looks up an agent by ID.
func (g *Graph) Agent(id string) (*agent.Agent, bool) {
	a, ok := g.agents[id]
	return a, ok
}

// Terminal returns the last task in topological order, whose output is the
// graph's result.
func (g *Graph) Terminal() *Task {
	if len(g.order) == 0 {
		return nil
	}
	return g.tasks[g.order[len(g.order)-1]]
}

// DOT renders the dependency graph in Graphviz syntax.
func (g *Graph) DOT() string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", string(g.Name))
	for _, id := range g.order {
		t := g.tasks[id]
		model := ""
		if a, ok := g.agents[t.AgentID]; ok {
			model = a.Model
		}
		fmt.Fprintf(&b, "  %q [label=%q];\n", id, id+" / "+t.AgentID+" ("+model+")")
	}
	for _, id := range g.order {
		for _, dep := range g.tasks[id].DependsOn {
			fmt.Fprintf(&b, "  %q -> %q;\n", dep, id)
		}
	}
	b.WriteString("}\n")
	return b.String()
}
