package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapfm/internal/aggregate"
	"github.com/leapstack-labs/leapfm/internal/cli/output"
)

// StatementsOptions holds options for the statements command.
type StatementsOptions struct {
	Statement    string
	Annual       bool
	Contributors bool
}

// NewStatementsCommand creates the statements command.
func NewStatementsCommand() *cobra.Command {
	opts := &StatementsOptions{}

	cmd := &cobra.Command{
		Use:   "statements",
		Short: "Show the aggregated financial statements",
		Long: `Run the model and show its financial statements.

Channels with destinations are accumulated into line items; formula line
items are then computed from them. Use --annual for yearly columns: flows
are summed and running totals keep their year-end value.`,
		Example: `  # Monthly P&L and cash flow
  leapfm statements

  # Yearly cash flow only
  leapfm statements --statement cash --annual

  # Show which channels feed each line item
  leapfm statements --contributors`,
		Aliases: []string{"stmt"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatements(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Statement, "statement", "", "Only show the named statement")
	cmd.Flags().BoolVar(&opts.Annual, "annual", false, "Fold months into years")
	cmd.Flags().BoolVar(&opts.Contributors, "contributors", false, "List the channels feeding each line item")

	return cmd
}

func runStatements(cmd *cobra.Command, opts *StatementsOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	project, err := cmdCtx.LoadProject("")
	if err != nil {
		return err
	}
	ev, err := cmdCtx.Evaluate(cmd.Context(), project, nil)
	if err != nil {
		return err
	}

	stmts := ev.Statements
	if opts.Annual {
		stmts = aggregate.Annualize(stmts, ev.Result.Context.Years)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(stmts)
	}

	tables, err := statementTables(r, stmts, opts.Statement)
	if err != nil {
		return err
	}
	if err := renderTables(r, tables); err != nil {
		return err
	}

	if opts.Contributors {
		r.Println("")
		return r.Table(contributorTable(stmts))
	}
	return nil
}

func contributorTable(res *aggregate.Result) output.Table {
	t := output.Table{
		Title:   "Contributors",
		Columns: []string{"Line item", "Type", "Alias", "Channel"},
	}
	for _, st := range res.Statements {
		for _, li := range st.LineItems {
			for _, c := range res.Contributors[li.Code] {
				t.Rows = append(t.Rows, []string{li.Code, c.ObjectType, c.Alias, c.Channel})
			}
		}
	}
	return t
}
