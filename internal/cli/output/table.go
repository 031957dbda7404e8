package output

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table is a grid of pre-formatted cells.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
	// NumericFrom is the index of the first right-aligned column.
	NumericFrom int
	// Totals marks rows rendered bold in text mode.
	Totals map[int]bool
}

// PeriodColumns returns "M1".."Mn", or "Y1".."Yn" when annual.
func PeriodColumns(n int, annual bool) []string {
	prefix := "M"
	if annual {
		prefix = "Y"
	}
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return cols
}

// Table renders t in the effective mode.
func (r *Renderer) Table(t Table) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return r.JSON(tableRecords(t))
	case ModeCSV:
		return r.tableCSV(t)
	case ModeMarkdown:
		if t.Title != "" {
			r.Println(FormatHeader(2, t.Title))
			r.Println("")
		}
		tw := r.tableWriter(t, false)
		tw.RenderMarkdown()
		r.Println("")
		return nil
	default:
		tw := r.tableWriter(t, true)
		if t.Title != "" {
			tw.SetTitle(r.styles.Header2.Render(t.Title))
		}
		tw.Render()
		return nil
	}
}

func (r *Renderer) tableWriter(t Table, styled bool) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)

	var configs []table.ColumnConfig
	for i := t.NumericFrom; t.NumericFrom > 0 && i < len(t.Columns); i++ {
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
	}
	tw.SetColumnConfigs(configs)

	for i, cells := range t.Rows {
		row := make(table.Row, len(cells))
		for j, c := range cells {
			if styled && t.Totals[i] {
				c = r.styles.Total.Render(c)
			}
			row[j] = c
		}
		tw.AppendRow(row)
	}
	return tw
}

func (r *Renderer) tableCSV(t Table) error {
	w := csv.NewWriter(r.out)
	if err := w.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, ",", "")
		}
		if err := w.Write(cells); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func tableRecords(t Table) []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				rec[c] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}
