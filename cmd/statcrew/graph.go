package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/spf13/cobra"
)

var graphDOT bool

var graphCmd = &cobra.Command{
	Use:   "graph [NAME]",
	Short: "List crew graphs or show one graph's tasks",
	Long: `Without arguments, list the defined graphs. With a name, build the graph
(validating it) and print its tasks in execution order with their levels.
--dot prints Graphviz instead.

Example:
  statcrew graph game_info --dot | dot -Tpng > game_info.png`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().BoolVar(&graphDOT, "dot", false, "Print the graph in Graphviz DOT format")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	defs := a.builder.Definitions()

	if len(args) == 0 {
		for _, name := range defs.GraphNames() {
			g, _ := defs.Graph(name)
			fmt.Printf("%-16s %d tasks  %s\n", name, len(g.Tasks), g.Description)
		}
		return nil
	}

	g, err := a.builder.Build(crew.GraphName(args[0]), crew.Request{Text: "(preview)"})
	if err != nil {
		return err
	}
	if graphDOT {
		fmt.Print(g.DOT())
		return nil
	}

	level := make(map[string]int)
	for i, ids := range g.Levels() {
		for _, id := range ids {
			level[id] = i
		}
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LEVEL\tTASK\tAGENT\tMODEL\tDEPENDS ON\tTOOLS")
	for _, id := range g.Order() {
		t, _ := g.Task(id)
		ag, _ := g.Agent(t.AgentID)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			level[id], id, ag.ID, ag.Model, strings.Join(t.DependsOn, ","), strings.Join(ag.Tools, ","))
	}
	return w.Flush()
}
