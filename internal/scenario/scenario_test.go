package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfm/internal/assumptions"
)

const sample = `
name: upside
objects:
  Leads:
    amount: { annual: [100, 150], smoothing: true }
    startMonth: 2
  Flags:
    enabled: false
outputs:
  Sales:
    subs:
      factor: 49.5
      discount: { monthly: [null, 0.1] }
overrides:
  - { alias: subs, channel: val, month: 3, value: 1000 }
  - { alias: Leads, month: 0, value: 1 }
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "upside", s.Name)

	amount := s.Objects["Leads"]["amount"]
	assert.Equal(t, []float64{100, 150}, amount.Annual)
	assert.True(t, amount.Smoothing)

	start := s.Objects["Leads"]["startMonth"]
	require.NotNil(t, start.Single, "bare numbers are single values")
	assert.Equal(t, 2.0, *start.Single)

	enabled := s.Objects["Flags"]["enabled"]
	require.NotNil(t, enabled.Bool, "bare booleans are flags")
	assert.False(t, *enabled.Bool)

	factor := s.Outputs["Sales"]["subs"]["factor"]
	require.NotNil(t, factor.Single)
	assert.Equal(t, 49.5, *factor.Single)

	discount := s.Outputs["Sales"]["subs"]["discount"]
	require.Len(t, discount.Monthly, 2)
	assert.Nil(t, discount.Monthly[0])
	require.NotNil(t, discount.Monthly[1])
	assert.Equal(t, 0.1, *discount.Monthly[1])

	require.Len(t, s.Overrides, 2)
	assert.Equal(t, DefaultChannel, s.Overrides[1].Channel)
}

func TestScenario_Entries(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	var keys []assumptions.Key
	for _, e := range s.Entries() {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []assumptions.Key{
		{Object: "Flags", Field: "enabled"},
		{Object: "Leads", Field: "amount"},
		{Object: "Leads", Field: "startMonth"},
		{Object: "Sales", Output: "subs", Field: "discount"},
		{Object: "Sales", Output: "subs", Field: "factor"},
	}, keys)
}

func TestScenario_OverrideMap(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	o := s.OverrideMap()
	assert.Equal(t, 1000.0, o["subs"]["val"][3])
	assert.Equal(t, 1.0, o["Leads"]["val"][0])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		contains string
	}{
		{"missing alias", "overrides:\n  - { month: 1, value: 2 }\n", "alias is required"},
		{"negative month", "overrides:\n  - { alias: a, month: -1, value: 2 }\n", "must not be negative"},
		{"unknown raw key", "objects:\n  A:\n    amount: { anual: [1] }\n", "anual"},
		{"bad yaml", "objects: [", "invalid scenario yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoad(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, s.Entries())
	assert.Empty(t, s.OverrideMap())

	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	s, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "upside", s.Name)
	assert.Len(t, s.Entries(), 5)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
