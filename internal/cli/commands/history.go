package commands

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapfm/internal/cli/output"
	"github.com/leapstack-labs/leapfm/internal/state"
)

// NewHistoryCommand creates the history command with its show subcommand.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved runs",
		Long: `List runs recorded with 'leapfm run --save' or 'leapfm export',
newest first.`,
		Example: `  # Show the last 10 runs
  leapfm history --limit 10

  # Show the values of one run
  leapfm history show <run-id>`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.AddCommand(newHistoryShowCommand())

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id|latest>",
		Short: "Show a saved run and its line items",
		Long: `Show a saved run and its line items. "latest" selects the most recent
run of the configured model.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, args[0])
		},
	}
}

func runHistory(cmd *cobra.Command, limit int) error {
	if limit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, err := cmdCtx.OpenState()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}

	summaries := make([]output.RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, runSummary(run))
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(summaries)
	}
	if len(summaries) == 0 {
		r.Println("No saved runs. Use 'leapfm run --save' to record one.")
		return nil
	}

	t := output.Table{
		Title:   "Run history",
		Columns: []string{"ID", "Scenario", "Status", "Months", "Started", "Error"},
	}
	for _, s := range summaries {
		t.Rows = append(t.Rows, []string{s.ID, s.Scenario, s.Status, strconv.Itoa(s.Months), s.StartedAt, s.Error})
	}
	return r.Table(t)
}

func runSummary(run *state.Run) output.RunSummary {
	s := output.RunSummary{
		ID:        run.ID,
		Model:     run.Model,
		Scenario:  run.Scenario,
		Status:    string(run.Status),
		Months:    run.Months,
		StartedAt: run.StartedAt.Local().Format(time.DateTime),
		Error:     run.Error,
	}
	if run.CompletedAt != nil {
		s.CompletedAt = run.CompletedAt.Local().Format(time.DateTime)
	}
	return s
}

func runHistoryShow(cmd *cobra.Command, id string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, err := cmdCtx.OpenState()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := resolveRun(store, id, cmdCtx.Cfg.Model)
	if err != nil {
		return err
	}
	items, err := store.GetLineItems(run.ID)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			output.RunSummary
			LineItems map[string][]float64 `json:"lineItems"`
		}{runSummary(run), items})
	}

	s := runSummary(run)
	r.Header(1, "Run "+s.ID)
	r.StatusLine("model", s.Model, "")
	r.StatusLine("scenario", s.Scenario, "")
	r.StatusLine("status", s.Status, s.Error)
	r.StatusLine("started", s.StartedAt, "")
	if s.CompletedAt != "" {
		r.StatusLine("completed", s.CompletedAt, "")
	}
	r.Println("")

	if len(items) == 0 {
		return nil
	}
	return r.Table(lineItemTable(r, items, run.Months))
}

// lineItemTable lists saved line items by code.
func lineItemTable(r *output.Renderer, items map[string][]float64, periods int) output.Table {
	codes := make([]string, 0, len(items))
	for code := range items {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	t := output.Table{
		Title:       "Line items",
		Columns:     append([]string{"Line item"}, output.PeriodColumns(periods, false)...),
		NumericFrom: 1,
	}
	for _, code := range codes {
		row := []string{code}
		for _, v := range items[code] {
			row = append(row, r.FormatNumber(v))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// resolveRun looks a run up by id, or the newest run of model for "latest".
func resolveRun(store *state.SQLiteStore, id, model string) (*state.Run, error) {
	if id != "latest" {
		return store.GetRun(id)
	}
	run, err := store.GetLatestRun(model)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("no saved runs for %s", model)
	}
	return run, nil
}
