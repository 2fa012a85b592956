package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/nidhogg/statcrew/internal/gateway"
	"github.com/nidhogg/statcrew/internal/skill"
)

// GraphCatalog describes the available crew graphs. *crew.Definitions
// satisfies it.
type GraphCatalog interface {
	GraphNames() []crew.GraphName
	Graph(name crew.GraphName) (crew.GraphDef, error)
}

// StatusProvider reports chat adapter state. *gateway.Gateway satisfies it.
type StatusProvider interface {
	Statuses() []gateway.AdapterStatus
}

// RegisterBuiltins registers /help, /graphs, /skills and, when status is
// non-nil, /status.
func RegisterBuiltins(reg *Registry, graphs GraphCatalog, skills *skill.Manager, status StatusProvider) {
	reg.Register(helpCommand(reg))
	reg.Register(graphsCommand(graphs))
	reg.Register(skillsCommand(skills))
	if status != nil {
		reg.Register(statusCommand(status))
	}
}

func helpCommand(reg *Registry) *Command {
	return &Command{
		Name:        "help",
		Description: "List all available commands",
		Usage:       "/help",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, c := range reg.List() {
				fmt.Fprintf(&b, "  /%s: %s\n", c.Name, c.Description)
				if c.Usage != "" {
					fmt.Fprintf(&b, "    Usage: %s\n", c.Usage)
				}
			}
			b.WriteString("Anything else is answered by the crew.\n")
			return &CommandResult{Content: b.String()}, nil
		},
	}
}

func graphsCommand(graphs GraphCatalog) *Command {
	return &Command{
		Name:        "graphs",
		Description: "List crew workflows and their tasks",
		Usage:       "/graphs",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			names := graphs.GraphNames()
			var b strings.Builder
			b.WriteString("Crew graphs:\n")
			for _, name := range names {
				def, err := graphs.Graph(name)
				if err != nil {
					return nil, err
				}
				fmt.Fprintf(&b, "  %s (%d tasks)", name, len(def.Tasks))
				if def.Description != "" {
					fmt.Fprintf(&b, ": %s", def.Description)
				}
				fmt.Fprintf(&b, "\n    %s\n", strings.Join(def.Tasks, " -> "))
			}
			return &CommandResult{Content: b.String(), Data: names}, nil
		},
	}
}

func skillsCommand(mgr *skill.Manager) *Command {
	return &Command{
		Name:        "skills",
		Description: "List agent skills and the tools they grant",
		Usage:       "/skills",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			skills := mgr.All()
			if len(skills) == 0 {
				return &CommandResult{Content: "No skills registered."}, nil
			}
			var b strings.Builder
			b.WriteString("Available skills:\n")
			for _, s := range skills {
				fmt.Fprintf(&b, "  %s: %s [%s]", s.ID, s.Description, strings.Join(s.ToolNames, ", "))
				if s.Source != "" && s.Source != "builtin" {
					fmt.Fprintf(&b, " (source: %s)", s.Source)
				}
				b.WriteByte('\n')
			}
			return &CommandResult{Content: b.String()}, nil
		},
	}
}

func statusCommand(provider StatusProvider) *Command {
	return &Command{
		Name:        "status",
		Description: "Show chat adapter connection status",
		Usage:       "/status",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			adapters := provider.Statuses()
			if len(adapters) == 0 {
				return &CommandResult{Content: "No adapters configured."}, nil
			}
			var b strings.Builder
			b.WriteString("Adapter status:\n")
			for _, a := range adapters {
				state := "disconnected"
				if a.Connected {
					state = "connected"
				}
				fmt.Fprintf(&b, "  %s: %s", a.Platform, state)
				if a.Error != "" {
					fmt.Fprintf(&b, " (%s)", a.Error)
				}
				b.WriteByte('\n')
			}
			return &CommandResult{Content: b.String()}, nil
		},
	}
}
