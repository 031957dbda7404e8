package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapfm/internal/assumptions"
	"github.com/leapstack-labs/leapfm/internal/cli/output"
	"github.com/leapstack-labs/leapfm/internal/dag"
	"github.com/leapstack-labs/leapfm/internal/functions"
	"github.com/leapstack-labs/leapfm/internal/linker"
	"github.com/leapstack-labs/leapfm/internal/parser"
	"github.com/leapstack-labs/leapfm/internal/schema"
)

// Check stages, in the order they run.
const (
	stageParse       = "parse"
	stageLink        = "link"
	stageGraph       = "graph"
	stageSchema      = "schema"
	stageTypes       = "types"
	stageFunctions   = "functions"
	stageScenario    = "scenario"
	stageAssumptions = "assumptions"
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the model without running it",
		Long: `Parse, link and graph the model, then check it against the schema,
the function registry and the scenario.

Every stage that can run reports its problems, so one pass shows as much
as possible. The command fails when any problem is found.`,
		Example: `  # Validate the project
  leapfm check

  # Machine-readable report
  leapfm check -o json`,
		Aliases: []string{"validate"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd)
		},
	}
	return cmd
}

func runCheck(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	if err := cmdCtx.Cfg.ValidateFiles(); err != nil {
		return err
	}
	src, err := os.ReadFile(cmdCtx.Cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}

	report := checkModel(cmdCtx, string(src))
	if err := renderCheck(r, report); err != nil {
		return err
	}

	if !report.Valid {
		return fmt.Errorf("check failed: %d problem(s)", len(report.Problems))
	}
	return nil
}

// checkModel runs every validation stage it can reach.
func checkModel(cmdCtx *CommandContext, src string) *output.CheckOutput {
	report := &output.CheckOutput{}
	fail := func(stage string, err error) {
		report.Problems = append(report.Problems, output.CheckIssue{Stage: stage, Message: err.Error()})
	}
	warn := func(stage string, msg string) {
		report.Warnings = append(report.Warnings, output.CheckIssue{Stage: stage, Message: msg})
	}
	defer func() { report.Valid = len(report.Problems) == 0 }()

	file, err := parser.Parse(src)
	if err != nil {
		fail(stageParse, err)
		return report
	}
	linked, err := linker.IndexAndLink(file)
	if err != nil {
		fail(stageLink, err)
		return report
	}
	report.Objects = linked.Index.ObjectCount()
	report.Aliases = linked.Index.AliasCount()

	graph, err := dag.BuildOutputGraph(linked.File, linked.Index)
	if err != nil {
		fail(stageGraph, err)
	} else {
		report.Edges = graph.Graph.EdgeCount()
	}

	sch, err := schema.Load(cmdCtx.Cfg.Schema)
	if err != nil {
		fail(stageSchema, err)
		return report
	}

	funcs := functions.Builtins()
	if _, err := functions.LoadStarlark(funcs, cmdCtx.Cfg.FunctionsDir, cmdCtx.Logger); err != nil {
		fail(stageFunctions, err)
	}

	typesOK := true
	for _, node := range linked.File.Objects {
		td, ok := sch.Type(node.FnName)
		if !ok {
			typesOK = false
			fail(stageTypes, fmt.Errorf("line %d: object %q: unknown type %q (known: %s)", node.Line, node.Name, node.FnName, strings.Join(sch.TypeNames(), ", ")))
			continue
		}
		if len(td.Channels) == 0 {
			fail(stageTypes, fmt.Errorf("type %q declares no channels", td.Name))
		}
		for _, alias := range node.Outputs {
			if td.HasChannel(alias) {
				warn(stageTypes, fmt.Sprintf("line %d: alias %q is also a channel of type %q; result keys named %q are read as that channel",
					node.Line, alias, td.Name, alias))
			}
		}
		if _, ok := funcs.Get(td.Impl); !ok {
			fail(stageFunctions, fmt.Errorf("type %q: implementation %q is not registered", td.Name, td.Impl))
		}
	}

	sc, err := loadScenario(cmdCtx.Cfg.Scenario)
	if err != nil {
		fail(stageScenario, err)
		return report
	}
	if !typesOK {
		return report
	}

	set, err := assumptions.Defaults(sch, linked.Index, cmdCtx.Cfg.Timeline())
	if err != nil {
		fail(stageAssumptions, err)
		return report
	}
	if _, err := set.Apply(sch, linked.Index, sc.Entries()); err != nil {
		fail(stageAssumptions, err)
	}
	for _, o := range sc.Overrides {
		if _, ok := linked.Index.Alias(o.Alias); !ok {
			fail(stageScenario, fmt.Errorf("override targets unknown alias %q", o.Alias))
		}
		if o.Month >= cmdCtx.Cfg.Timeline().Months {
			fail(stageScenario, fmt.Errorf("override of %s.%s: month %d is past the horizon", o.Alias, o.Channel, o.Month))
		}
	}
	return report
}

func renderCheck(r *output.Renderer, report *output.CheckOutput) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(report)
	case output.ModeMarkdown, output.ModeCSV:
		renderCheckMarkdown(r, report)
	default:
		renderCheckText(r, report)
	}
	return nil
}

func renderCheckText(r *output.Renderer, report *output.CheckOutput) {
	styles := r.Styles()
	title := cases.Title(language.English)

	r.Header(1, "Model Check")
	r.Printf("  %s %d objects, %d aliases, %d dependencies\n\n",
		styles.Muted.Render("model:"), report.Objects, report.Aliases, report.Edges)

	for _, w := range report.Warnings {
		r.StatusLine(title.String(w.Stage), "warning", w.Message)
	}
	if report.Valid {
		r.Success("No problems found")
		return
	}
	for _, p := range report.Problems {
		r.StatusLine(title.String(p.Stage), "error", p.Message)
	}
}

func renderCheckMarkdown(r *output.Renderer, report *output.CheckOutput) {
	title := cases.Title(language.English)

	r.Println(output.FormatHeader(1, "Model Check"))
	r.Println("")
	r.Println(output.FormatKeyValue("Objects", fmt.Sprintf("%d", report.Objects)))
	r.Println(output.FormatKeyValue("Aliases", fmt.Sprintf("%d", report.Aliases)))
	r.Println(output.FormatKeyValue("Dependencies", fmt.Sprintf("%d", report.Edges)))
	r.Println("")

	if len(report.Warnings) > 0 {
		r.Println(output.FormatHeader(2, "Warnings"))
		for _, w := range report.Warnings {
			r.Printf("- **%s:** %s\n", title.String(w.Stage), w.Message)
		}
		r.Println("")
	}
	if report.Valid {
		r.Println("No problems found.")
		return
	}
	r.Println(output.FormatHeader(2, "Problems"))
	for _, p := range report.Problems {
		r.Printf("- **%s:** %s\n", title.String(p.Stage), p.Message)
	}
}
