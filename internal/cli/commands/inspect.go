package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapfm/internal/aggregate"
	"github.com/leapstack-labs/leapfm/internal/cli/output"
	"github.com/leapstack-labs/leapfm/internal/engine"
	"github.com/leapstack-labs/leapfm/internal/schema"
)

const inspectPrompt = "leapfm> "

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Explore computed series interactively",
		Long: `Run the model and open a REPL over its results.

Type a store key (alias.channel) or a line item code to print its values.
Tab completes keys and codes; history is kept next to the state database.`,
		Example: `  # Start the REPL
  leapfm inspect

  # Inspect a different scenario
  leapfm inspect --scenario scenarios/high.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd)
		},
	}
	return cmd
}

func runInspect(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)

	project, err := cmdCtx.LoadProject("")
	if err != nil {
		return err
	}
	ev, err := cmdCtx.Evaluate(cmd.Context(), project, nil)
	if err != nil {
		return err
	}

	// Tables in a REPL are for humans even when piped.
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeText)
	in := newInspector(r, ev.Result, ev.Statements, project.Schema)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          inspectPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "inspect_history"),
		AutoComplete:    in.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r.Printf("leapfm inspect (scenario: %s, %d months)\n", ev.Scenario.Name, ev.Result.Context.Months)
	r.Println("Type .help for commands, .quit to exit")
	r.Println("")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if quit := in.handle(line); quit {
			break
		}
	}
	return nil
}

// inspector answers REPL lines against one evaluated run.
type inspector struct {
	r      *output.Renderer
	res    *engine.Result
	stmts  *aggregate.Result
	sch    *schema.Schema
	annual bool
}

func newInspector(r *output.Renderer, res *engine.Result, stmts *aggregate.Result, sch *schema.Schema) *inspector {
	return &inspector{r: r, res: res, stmts: stmts, sch: sch}
}

// handle processes one line and reports whether the REPL should exit.
func (in *inspector) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ".") {
		return in.dotCommand(line)
	}

	for _, name := range strings.Fields(line) {
		if err := in.show(name); err != nil {
			in.r.Error(err.Error())
		}
	}
	in.r.Println("")
	return false
}

func (in *inspector) show(name string) error {
	if _, ok := in.res.Store[name]; ok {
		values := map[string][]float64{name: in.res.Store[name]}
		if in.annual {
			values = annualStore(in.res, in.sch, []string{name})
		}
		return in.r.Table(seriesTable(in.r, in.res, in.sch, []string{name}, values, in.annual))
	}

	stmts := in.stmts
	if in.annual {
		stmts = aggregate.Annualize(stmts, in.res.Context.Years)
	}
	if v, ok := stmts.Value(name); ok {
		t := output.Table{
			Columns:     append([]string{"Line item"}, output.PeriodColumns(len(v), in.annual)...),
			NumericFrom: 1,
		}
		row := []string{name}
		for _, x := range v {
			row = append(row, in.r.FormatNumber(x))
		}
		t.Rows = append(t.Rows, row)
		if err := in.r.Table(t); err != nil {
			return err
		}
		for _, c := range stmts.Contributors[name] {
			in.r.Printf("  %s %s.%s (%s)\n", in.r.Styles().Muted.Render("from"), c.Alias, c.Channel, c.ObjectType)
		}
		return nil
	}
	return fmt.Errorf("no series or line item named %q (try .keys)", name)
}

func (in *inspector) dotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printInspectHelp(in.r.Writer())

	case ".keys":
		prefix := ""
		if len(parts) > 1 {
			prefix = parts[1]
		}
		for _, k := range in.res.Store.Keys() {
			if strings.HasPrefix(k, prefix) {
				in.r.Println(k)
			}
		}

	case ".items":
		for _, code := range in.lineItemCodes() {
			in.r.Println(code)
		}

	case ".order":
		in.r.Println(strings.Join(in.res.Order, " -> "))

	case ".annual":
		in.annual = !in.annual
		if len(parts) > 1 {
			in.annual = parts[1] == "on"
		}
		state := "off"
		if in.annual {
			state = "on"
		}
		in.r.Printf("annual view %s\n", state)

	case ".clear":
		in.r.Printf("\033[H\033[2J")

	default:
		in.r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", command))
	}
	return false
}

func (in *inspector) lineItemCodes() []string {
	var codes []string
	for _, st := range in.stmts.Statements {
		for _, li := range st.LineItems {
			codes = append(codes, li.Code)
		}
	}
	return codes
}

func printInspectHelp(w io.Writer) {
	help := `
Commands:
  <key> [key...]   Show series (alias.channel) or line items (e.g. pnl.revenue)
  .keys [prefix]   List series keys
  .items           List line item codes
  .order           Show the evaluation order
  .annual [on|off] Toggle yearly columns
  .clear           Clear the screen
  .quit / .exit    Exit the REPL

Tips:
  - Use arrow keys to navigate history
  - Tab completion works for keys and line item codes
`
	_, _ = fmt.Fprintln(w, help)
}

// completer creates a readline completer for keys, codes and dot-commands.
func (in *inspector) completer() *readline.PrefixCompleter {
	names := append(in.res.Store.Keys(), in.lineItemCodes()...)
	sort.Strings(names)

	items := make([]readline.PrefixCompleterInterface, 0, len(names)+7)
	for _, n := range names {
		items = append(items, readline.PcItem(n))
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".keys"),
		readline.PcItem(".items"),
		readline.PcItem(".order"),
		readline.PcItem(".annual", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
	)
	return readline.NewPrefixCompleter(items...)
}
