package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeAuto},
		{in: "text", want: ModeText},
		{in: "md", want: ModeMarkdown},
		{in: "markdown", want: ModeMarkdown},
		{in: "json", want: ModeJSON},
		{in: "csv", want: ModeCSV},
		{in: "yaml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{"auto on terminal", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"explicit json", ModeJSON, true, ModeJSON},
		{"empty is auto", "", false, ModeMarkdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_Messages(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeMarkdown, false)

	r.Header(1, "Statements")
	r.Success("saved")
	r.Warning("destination missing")
	r.Error("boom")
	r.StatusLine("run", "completed", "3 months")

	assert.Contains(t, out.String(), "# Statements")
	assert.Contains(t, out.String(), "✓ saved")
	assert.Contains(t, out.String(), "completed  3 months")
	assert.Contains(t, errOut.String(), "! destination missing")
	assert.Contains(t, errOut.String(), "✗ boom")
}

func TestRenderer_FormatNumber(t *testing.T) {
	r, _, _ := newTestRenderer(ModeText, false)
	assert.Equal(t, "1,234,567.50", r.FormatNumber(1234567.5))
	assert.Equal(t, "-50.00", r.FormatNumber(-50))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Summary", FormatHeader(2, "Summary"))
	assert.Equal(t, "# Top", FormatHeader(0, "Top"))
	assert.Equal(t, "- **Aliases:** 3", FormatKeyValue("Aliases", "3"))
	assert.Equal(t, []string{"M1", "M2"}, PeriodColumns(2, false))
	assert.Equal(t, []string{"Y1"}, PeriodColumns(1, true))
}

func sampleTable() Table {
	return Table{
		Title:       "P&L",
		Columns:     []string{"Line item", "M1", "M2"},
		Rows:        [][]string{{"Revenue", "1,000.00", "1,900.00"}, {"EBITDA", "500.00", "600.00"}},
		NumericFrom: 1,
		Totals:      map[int]bool{1: true},
	}
}

func TestRenderer_Table(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		require.NoError(t, r.Table(sampleTable()))
		s := out.String()
		assert.Contains(t, s, "## P&L")
		assert.Contains(t, s, "| Line item | M1 | M2 |")
		assert.Contains(t, s, "| Revenue |")
	})

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeText, false)
		require.NoError(t, r.Table(sampleTable()))
		assert.Contains(t, out.String(), "1,900.00")
		assert.Contains(t, out.String(), "┌")
	})

	t.Run("csv", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeCSV, false)
		require.NoError(t, r.Table(sampleTable()))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "Line item,M1,M2", lines[0])
		assert.Equal(t, "Revenue,1000.00,1900.00", lines[1])
	})

	t.Run("json", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeJSON, false)
		require.NoError(t, r.Table(sampleTable()))
		var recs []map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &recs))
		require.Len(t, recs, 2)
		assert.Equal(t, "EBITDA", recs[1]["Line item"])
	})
}
