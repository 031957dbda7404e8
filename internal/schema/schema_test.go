package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	retention, ok := s.Type("retention")
	require.True(t, ok)
	assert.Equal(t, "retention", retention.Name)
	assert.Equal(t, []string{"active", "added", "churned"}, retention.ChannelNames())

	revenue, ok := s.Type("revenue")
	require.True(t, ok)
	assert.Equal(t, "scale", revenue.Impl, "types may share an implementation")
	assert.Equal(t, []string{"pnl.revenue.recurring"}, revenue.Channels["val"].Destinations)

	require.Len(t, s.Statements, 2)
	assert.Equal(t, "pnl", s.Statements[0].Name)
}

func TestParse_Normalizes(t *testing.T) {
	s, err := Parse([]byte(`
types:
  thing:
    channels:
      val: {}
    assumptions:
      object:
        - { name: amount, default: 2.5, supports: [single, monthly] }
        - { name: enabled, type: boolean, default: true }
statements:
  - name: pnl
    lineItems:
      - { code: pnl.revenue }
      - { code: pnl.revenue.a, sign: -1 }
`))
	require.NoError(t, err)

	thing, ok := s.Type("thing")
	require.True(t, ok)
	assert.Equal(t, "thing", thing.Impl, "impl defaults to the type name")

	amount := thing.Assumptions.Object[0]
	assert.Equal(t, 2.5, amount.DefaultNumber())
	assert.True(t, amount.Supports.Has(CapMonthly))
	assert.False(t, amount.Supports.Has(CapGrowth))

	enabled := thing.Assumptions.Object[1]
	assert.True(t, enabled.IsBoolean())
	assert.True(t, enabled.DefaultBool())

	items := s.Statements[0].LineItems
	assert.Equal(t, 1.0, items[0].Sign)
	assert.Equal(t, 1, items[0].Level)
	assert.Equal(t, -1.0, items[1].Sign)
	assert.Equal(t, 2, items[1].Level)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"invalid yaml", "types: [unterminated"},
		{"nil type", "types:\n  bad:\n"},
		{"missing code", "statements:\n  - name: pnl\n    lineItems:\n      - { label: x }\n"},
		{"duplicate code", "statements:\n  - name: pnl\n    lineItems:\n      - { code: a }\n      - { code: a }\n"},
		{"unnamed field", "types:\n  t:\n    assumptions:\n      object:\n        - { type: number }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, s.TypeNames())

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("types:\n  x:\n    impl: sum\n"), 0o600))
	s, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, s.TypeNames())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
