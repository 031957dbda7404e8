package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapfm/internal/aggregate"
	"github.com/leapstack-labs/leapfm/internal/cli/output"
	"github.com/leapstack-labs/leapfm/internal/engine"
	"github.com/leapstack-labs/leapfm/internal/scenario"
	"github.com/leapstack-labs/leapfm/internal/series"
	"github.com/leapstack-labs/leapfm/internal/state"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select     string
	JSONOutput bool
	Save       bool
	Annual     bool
	Compare    []string
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the model and show its series and statements",
		Long: `Execute the model in dependency order and aggregate its statements.

By default every series is shown. Use --select to show one alias and
everything it depends on. Use --compare to run several scenarios side by
side; they are evaluated concurrently.`,
		Example: `  # Run the model
  leapfm run

  # Show one alias and its upstream series, by year
  leapfm run --select subs --annual

  # Record the run in history
  leapfm run --save

  # Compare scenarios
  leapfm run --compare scenarios/low.yaml,scenarios/high.yaml

  # Run with JSON output for CI/CD integration
  leapfm run --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Alias to show with its upstream dependencies")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Record the run in the history database")
	cmd.Flags().BoolVar(&opts.Annual, "annual", false, "Fold months into years")
	cmd.Flags().StringSliceVar(&opts.Compare, "compare", nil, "Scenario files to compare")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx := NewCommandContext(cmd)
	if opts.JSONOutput {
		cmdCtx.WithMode(cmd, output.ModeJSON)
	}
	r := cmdCtx.Renderer

	project, err := cmdCtx.LoadProject("")
	if err != nil {
		return err
	}

	if len(opts.Compare) > 0 {
		return runCompare(cmd, cmdCtx, project, opts)
	}

	var store *state.SQLiteStore
	var run *state.Run
	if opts.Save {
		store, err = cmdCtx.OpenState()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		tl := cmdCtx.Cfg.Timeline()
		run, err = store.CreateRun(project.ModelPath, project.Scenario.Name, tl.Months, tl.Years)
		if err != nil {
			return err
		}
	}

	start := time.Now()
	ev, err := cmdCtx.Evaluate(cmd.Context(), project, nil)
	if run != nil {
		if err := recordRun(store, run, ev, err); err != nil {
			return err
		}
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	cmdCtx.Logger.Debug("model evaluated", "aliases", len(ev.Result.Order), "duration_ms", time.Since(start).Milliseconds())

	keys, err := selectKeys(ev.Result, opts.Select)
	if err != nil {
		return err
	}

	values := make(map[string][]float64, len(keys))
	for _, k := range keys {
		values[k] = ev.Result.Store[k]
	}
	stmts := ev.Statements
	if opts.Annual {
		values = annualStore(ev.Result, project.Schema, keys)
		stmts = aggregate.Annualize(stmts, ev.Result.Context.Years)
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := output.RunOutput{
			Scenario:  ev.Scenario.Name,
			Months:    ev.Result.Context.Months,
			Years:     ev.Result.Context.Years,
			Order:     ev.Result.Order,
			Series:    values,
			LineItems: stmts.LineItems,
			Annual:    opts.Annual,
		}
		if run != nil {
			out.RunID = run.ID
		}
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Run: %s", ev.Scenario.Name))
	if err := r.Table(seriesTable(r, ev.Result, project.Schema, keys, values, opts.Annual)); err != nil {
		return err
	}
	if opts.Select == "" {
		r.Println("")
		tables, err := statementTables(r, stmts, "")
		if err != nil {
			return err
		}
		if err := renderTables(r, tables); err != nil {
			return err
		}
	}

	r.Println("")
	if run != nil {
		r.StatusLine("saved", string(state.RunStatusCompleted), run.ID)
	}
	r.Success(fmt.Sprintf("Evaluated %d aliases over %d months in %s",
		len(ev.Result.Order), ev.Result.Context.Months, time.Since(start).Round(time.Millisecond)))
	return nil
}

// recordRun completes a history entry and stores its values on success.
func recordRun(store *state.SQLiteStore, run *state.Run, ev *Evaluation, runErr error) error {
	if runErr != nil {
		return store.CompleteRun(run.ID, state.RunStatusFailed, runErr.Error())
	}
	if err := store.SaveSeries(run.ID, ev.Result.Store); err != nil {
		return err
	}
	if err := store.SaveLineItems(run.ID, ev.Statements.LineItems); err != nil {
		return err
	}
	return store.CompleteRun(run.ID, state.RunStatusCompleted, "")
}

// selectKeys returns the store keys to show. With an alias, only that
// alias and its upstream aliases are kept.
func selectKeys(res *engine.Result, alias string) ([]string, error) {
	all := res.Store.Keys()
	if alias == "" {
		return all, nil
	}
	if _, ok := res.Index.Alias(alias); !ok {
		return nil, fmt.Errorf("unknown alias %q", alias)
	}

	keep := make(map[string]bool)
	for _, a := range res.Graph.Upstream(alias) {
		keep[a] = true
	}
	var keys []string
	for _, k := range all {
		name, _, _ := strings.Cut(k, ".")
		if keep[name] {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// runCompare evaluates each scenario concurrently and shows the final-year
// value of every line item per scenario.
func runCompare(cmd *cobra.Command, cmdCtx *CommandContext, project *Project, opts *RunOptions) error {
	r := cmdCtx.Renderer

	scenarios := make([]*scenario.Scenario, len(opts.Compare))
	for i, path := range opts.Compare {
		sc, err := loadScenario(path)
		if err != nil {
			return err
		}
		scenarios[i] = sc
	}

	results := make([]*aggregate.Result, len(scenarios))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, sc := range scenarios {
		g.Go(func() error {
			ev, err := cmdCtx.Evaluate(ctx, project, sc)
			if err != nil {
				return fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
			results[i] = aggregate.Annualize(ev.Statements, ev.Result.Context.Years)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	years := cmdCtx.Cfg.Timeline().Years
	if r.EffectiveMode() == output.ModeJSON {
		out := make(map[string]map[string][]float64, len(scenarios))
		for i, sc := range scenarios {
			out[sc.Name] = results[i].LineItems
		}
		return r.JSON(out)
	}

	t := output.Table{
		Title:       fmt.Sprintf("Scenario comparison (Y%d)", years),
		Columns:     []string{"Line item"},
		NumericFrom: 1,
	}
	for _, sc := range scenarios {
		t.Columns = append(t.Columns, sc.Name)
	}
	codes := make([]string, 0, len(results[0].LineItems))
	for _, st := range results[0].Statements {
		for _, li := range st.LineItems {
			codes = append(codes, li.Code)
		}
	}
	if len(codes) == 0 {
		for code := range results[0].LineItems {
			codes = append(codes, code)
		}
		sort.Strings(codes)
	}
	for _, code := range codes {
		row := []string{code}
		for _, res := range results {
			v, _ := res.Value(code)
			row = append(row, r.FormatNumber(series.At(v, years-1)))
		}
		t.Rows = append(t.Rows, row)
	}
	return r.Table(t)
}
