package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapfm/internal/aggregate"
	"github.com/leapstack-labs/leapfm/internal/ast"
	"github.com/leapstack-labs/leapfm/internal/cli/output"
	"github.com/leapstack-labs/leapfm/internal/engine"
	"github.com/leapstack-labs/leapfm/internal/schema"
	"github.com/leapstack-labs/leapfm/internal/series"
)

// formatCell renders one value according to a schema format.
func formatCell(r *output.Renderer, v float64, format string) string {
	if format == "percent" {
		return fmt.Sprintf("%.1f%%", v*100)
	}
	return r.FormatNumber(v)
}

// channelFormat returns the schema format of a store key, looking the
// name up as an alias first and then as an object roll-up.
func channelFormat(res *engine.Result, sch *schema.Schema, key string) string {
	name, channel, ok := strings.Cut(key, ".")
	if !ok {
		return ""
	}
	var node *ast.ObjectNode
	if entry, ok := res.Index.Alias(name); ok {
		node = entry.Node
	} else if obj, ok := res.Index.Object(name); ok {
		node = obj
	}
	if node == nil {
		return ""
	}
	td, ok := sch.Type(node.FnName)
	if !ok {
		return ""
	}
	return td.Channels[channel].Format
}

// annualStore folds every series into years. Currency channels are flows
// and are summed; everything else is a level and keeps its year-end value.
func annualStore(res *engine.Result, sch *schema.Schema, keys []string) map[string][]float64 {
	out := make(map[string][]float64, len(keys))
	for _, k := range keys {
		stock := channelFormat(res, sch, k) != "currency"
		out[k] = series.Annual(res.Store[k], res.Context.Years, stock)
	}
	return out
}

// seriesTable builds a table with one row per store key.
func seriesTable(r *output.Renderer, res *engine.Result, sch *schema.Schema, keys []string, values map[string][]float64, annual bool) output.Table {
	periods := 0
	for _, k := range keys {
		if n := len(values[k]); n > periods {
			periods = n
		}
	}
	t := output.Table{
		Title:       "Series",
		Columns:     append([]string{"Key"}, output.PeriodColumns(periods, annual)...),
		NumericFrom: 1,
	}
	for _, k := range keys {
		format := channelFormat(res, sch, k)
		row := []string{k}
		for _, v := range values[k] {
			row = append(row, formatCell(r, v, format))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// statementTables builds one table per statement. A non-empty only keeps
// the statement with that name.
func statementTables(r *output.Renderer, res *aggregate.Result, only string) ([]output.Table, error) {
	var tables []output.Table
	for _, st := range res.Statements {
		if only != "" && st.Name != only {
			continue
		}
		title := st.Label
		if title == "" {
			title = st.Name
		}
		t := output.Table{
			Title:       title,
			Columns:     append([]string{"Line item"}, output.PeriodColumns(res.Periods, res.Annual)...),
			NumericFrom: 1,
			Totals:      make(map[int]bool),
		}
		for _, li := range st.LineItems {
			label := li.Label
			if label == "" {
				label = li.Code
			}
			row := []string{strings.Repeat("  ", li.Depth()-1) + label}
			for _, v := range res.LineItems[li.Code] {
				row = append(row, formatCell(r, v, li.Format))
			}
			if li.Formula != "" {
				t.Totals[len(t.Rows)] = true
			}
			t.Rows = append(t.Rows, row)
		}
		tables = append(tables, t)
	}
	if only != "" && len(tables) == 0 {
		names := make([]string, 0, len(res.Statements))
		for _, st := range res.Statements {
			names = append(names, st.Name)
		}
		return nil, fmt.Errorf("unknown statement %q (available: %s)", only, strings.Join(names, ", "))
	}
	return tables, nil
}

// renderTables writes tables one after another.
func renderTables(r *output.Renderer, tables []output.Table) error {
	for i, t := range tables {
		if err := r.Table(t); err != nil {
			return err
		}
		if i < len(tables)-1 && r.EffectiveMode() == output.ModeText {
			r.Println("")
		}
	}
	return nil
}
