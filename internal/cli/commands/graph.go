package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapfm/internal/cli/output"
	"github.com/leapstack-labs/leapfm/internal/dag"
	"github.com/leapstack-labs/leapfm/internal/linker"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	var focus string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the output dependency graph",
		Long: `Display the dependency graph of all output aliases.

Aliases are grouped by execution level: an alias only reads aliases from
earlier levels. Each alias lists the aliases it depends on and the
aliases that read it.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the graph
  leapfm graph

  # Output as JSON
  leapfm graph --output json

  # Only the aliases feeding or fed by subs
  leapfm graph --focus subs

  # Output as Markdown
  leapfm graph --output markdown`,
		Aliases: []string{"dag"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraph(cmd, focus)
		},
	}

	cmd.Flags().StringVar(&focus, "focus", "", "Limit the graph to an alias and its upstream and downstream aliases")

	return cmd
}

func runGraph(cmd *cobra.Command, focus string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	if err := cmdCtx.Cfg.ValidateFiles(); err != nil {
		return err
	}
	src, err := os.ReadFile(cmdCtx.Cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}

	linked, err := linker.ParseAndLink(string(src))
	if err != nil {
		return err
	}
	graph, err := dag.BuildOutputGraph(linked.File, linked.Index)
	if err != nil {
		return err
	}
	if focus != "" {
		if graph, err = graph.Focus(focus); err != nil {
			return err
		}
	}

	levels, err := graph.Levels()
	if err != nil {
		return fmt.Errorf("failed to get execution levels: %w", err)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return graphJSON(r, graph, levels)
	case output.ModeMarkdown, output.ModeCSV:
		return graphMarkdown(r, graph, levels)
	default:
		return graphText(r, graph, levels)
	}
}

func nodeLabel(og *dag.OutputGraph, alias string) string {
	n, ok := og.Graph.GetNode(alias)
	if !ok {
		return alias
	}
	on, ok := n.Data.(*dag.OutputNode)
	if !ok || on.Object.Name == alias {
		return alias
	}
	return fmt.Sprintf("%s (%s)", alias, on.Object.Name)
}

// graphText outputs the graph in styled text format.
func graphText(r *output.Renderer, og *dag.OutputGraph, levels [][]string) error {
	styles := r.Styles()

	r.Header(1, "Dependency Graph")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, alias := range level {
			r.Printf("  %s\n", styles.ModelPath.Render(nodeLabel(og, alias)))
			if deps := og.Deps[alias]; len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if users := og.Dependents[alias]; len(users) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(users, ", "))
			}
		}
		r.Println("")
	}

	r.Printf("%s %s\n", styles.Muted.Render("sources:"), strings.Join(og.Sources(), ", "))
	r.Printf("%s %s\n", styles.Muted.Render("sinks:"), strings.Join(og.Sinks(), ", "))
	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d aliases, %d dependencies", og.Graph.NodeCount(), og.Graph.EdgeCount())))

	return nil
}

// graphMarkdown outputs the graph in markdown format.
func graphMarkdown(r *output.Renderer, og *dag.OutputGraph, levels [][]string) error {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println("")

	for i, level := range levels {
		levelName := fmt.Sprintf("Level %d", i)
		if i == 0 {
			levelName = "Level 0 (Sources)"
		}
		r.Println(output.FormatHeader(2, levelName))

		for _, alias := range level {
			r.Printf("- %s\n", nodeLabel(og, alias))
			if deps := og.Deps[alias]; len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if users := og.Dependents[alias]; len(users) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(users, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Aliases", fmt.Sprintf("%d", og.Graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", og.Graph.EdgeCount())))
	r.Println(output.FormatKeyValue("Sources", strings.Join(og.Sources(), ", ")))
	r.Println(output.FormatKeyValue("Sinks", strings.Join(og.Sinks(), ", ")))

	return nil
}

// graphJSON outputs the graph in JSON format.
func graphJSON(r *output.Renderer, og *dag.OutputGraph, levels [][]string) error {
	out := output.GraphOutput{
		Levels:       make([]output.GraphLevel, 0, len(levels)),
		TotalAliases: og.Graph.NodeCount(),
		TotalEdges:   og.Graph.EdgeCount(),
		Sources:      og.Sources(),
		Sinks:        og.Sinks(),
	}

	for i, level := range levels {
		gl := output.GraphLevel{
			Level:   i,
			Aliases: make([]output.GraphNode, 0, len(level)),
		}
		for _, alias := range level {
			node := output.GraphNode{
				Alias:     alias,
				Object:    alias,
				DependsOn: og.Deps[alias],
				UsedBy:    og.Dependents[alias],
			}
			if n, ok := og.Graph.GetNode(alias); ok {
				if on, ok := n.Data.(*dag.OutputNode); ok {
					node.Object = on.Object.Name
					node.Type = on.Object.FnName
				}
			}
			gl.Aliases = append(gl.Aliases, node)
		}
		out.Levels = append(out.Levels, gl)
	}

	return r.JSON(out)
}
