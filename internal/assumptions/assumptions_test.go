package assumptions

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfm/internal/parser"
	"github.com/leapstack-labs/leapfm/internal/registry"
	"github.com/leapstack-labs/leapfm/internal/schema"
	"github.com/leapstack-labs/leapfm/internal/series"
)

var allCaps = schema.Capabilities{
	schema.CapSingle, schema.CapAnnual, schema.CapGrowth, schema.CapMonthly,
	schema.CapSmoothing, schema.CapDateRange, schema.CapSeasonal,
}

func numberField(def float64) schema.FieldDescriptor {
	return schema.FieldDescriptor{Name: "amount", Type: schema.FieldNumber, Default: def, Supports: allCaps}
}

func ptr[T any](v T) *T { return &v }

func TestMaterialize_SingleAndDefault(t *testing.T) {
	ctx := series.Context{Months: 3, Years: 1}

	f, err := Materialize(numberField(7), Raw{}, ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7, 7}, f.Value)

	f, err = Materialize(numberField(7), Raw{Single: ptr(2.0)}, ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2}, f.Value)
}

func TestMaterialize_Boolean(t *testing.T) {
	desc := schema.FieldDescriptor{Name: "enabled", Type: schema.FieldBoolean, Default: true}
	ctx := series.NewContext(1)

	f, err := Materialize(desc, Raw{}, ctx)
	require.NoError(t, err)
	assert.Nil(t, f.Value)
	assert.True(t, f.Flag)

	f, err = Materialize(desc, Raw{Bool: ptr(false), Annual: []float64{1, 2}}, ctx)
	require.NoError(t, err)
	assert.Nil(t, f.Value, "boolean fields never produce a series")
	assert.False(t, f.Flag)
	assert.Equal(t, 0.0, f.Scalar(3))
}

func TestMaterialize_Growth(t *testing.T) {
	ctx := series.NewContext(2)
	f, err := Materialize(numberField(0), Raw{Single: ptr(100.0), Growth: ptr(0.2)}, ctx)
	require.NoError(t, err)

	require.Len(t, f.Value, 24)
	assert.Equal(t, 100.0, f.Value[0])
	assert.InDelta(t, 120.0, f.Value[12], 1e-9, "one year of compounding reaches the annual rate")
	monthly := math.Pow(1.2, 1.0/12)
	assert.InDelta(t, 100*monthly, f.Value[1], 1e-9)
}

func TestMaterialize_GrowthWinsOverAnnual(t *testing.T) {
	ctx := series.NewContext(2)
	f, err := Materialize(numberField(0), Raw{Annual: []float64{50, 999}, Growth: ptr(0.0)}, ctx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, f.Value[0], "growth uses the first annual value as base")
	assert.Equal(t, 50.0, f.Value[23])
}

func TestMaterialize_Annual(t *testing.T) {
	ctx := series.NewContext(3)
	f, err := Materialize(numberField(0), Raw{Annual: []float64{10, 20}}, ctx)
	require.NoError(t, err)

	assert.Equal(t, 10.0, f.Value[0])
	assert.Equal(t, 10.0, f.Value[11])
	assert.Equal(t, 20.0, f.Value[12])
	assert.Equal(t, 20.0, f.Value[35], "years past the array repeat the last value")
}

func TestMaterialize_Smoothing(t *testing.T) {
	ctx := series.NewContext(2)
	f, err := Materialize(numberField(0), Raw{Annual: []float64{0, 12}, Smoothing: true}, ctx)
	require.NoError(t, err)

	assert.Equal(t, 0.0, f.Value[0])
	assert.InDelta(t, 6.0, f.Value[6], 1e-9)
	assert.InDelta(t, 11.0, f.Value[11], 1e-9)
	for m := 12; m < 24; m++ {
		assert.Equal(t, 12.0, f.Value[m], "final year stays flat at month %d", m)
	}
}

func TestMaterialize_SeasonalMonthlyDateRange(t *testing.T) {
	ctx := series.NewContext(2)
	seasonal := make([]float64, 12)
	for i := range seasonal {
		seasonal[i] = 1
	}
	seasonal[11] = 2

	raw := Raw{
		Single:   ptr(10.0),
		Seasonal: seasonal,
		Monthly:  []*float64{nil, ptr(99.0)},
		Start:    ptr(1),
		End:      ptr(22),
	}
	f, err := Materialize(numberField(0), raw, ctx)
	require.NoError(t, err)

	assert.Equal(t, 0.0, f.Value[0], "masked before start")
	assert.Equal(t, 99.0, f.Value[1], "monthly override wins")
	assert.Equal(t, 10.0, f.Value[2])
	assert.Equal(t, 20.0, f.Value[11], "december multiplier")
	assert.Equal(t, 10.0, f.Value[22])
	assert.Equal(t, 0.0, f.Value[23], "masked after end")
}

func TestMaterialize_Idempotent(t *testing.T) {
	ctx := series.NewContext(3)
	raw := Raw{Annual: []float64{1.1, 2.7, 3.3}, Smoothing: true, Monthly: []*float64{ptr(4.2)}}

	a, err := Materialize(numberField(0), raw, ctx)
	require.NoError(t, err)
	b, err := Materialize(numberField(0), raw, ctx)
	require.NoError(t, err)

	require.Equal(t, len(a.Value), len(b.Value))
	for i := range a.Value {
		assert.Equal(t, math.Float64bits(a.Value[i]), math.Float64bits(b.Value[i]))
	}
}

func TestMaterialize_Errors(t *testing.T) {
	ctx := series.NewContext(1)
	singleOnly := schema.FieldDescriptor{Name: "startMonth", Type: schema.FieldNumber, Supports: schema.Capabilities{schema.CapSingle}}

	tests := []struct {
		name     string
		desc     schema.FieldDescriptor
		raw      Raw
		contains string
	}{
		{"unsupported annual", singleOnly, Raw{Annual: []float64{1}}, "does not support annual"},
		{"unsupported monthly", singleOnly, Raw{Monthly: []*float64{ptr(1.0)}}, "does not support monthly"},
		{"short seasonal", numberField(0), Raw{Seasonal: []float64{1, 2}}, "needs 12 multipliers"},
		{"growth below -100%", numberField(0), Raw{Growth: ptr(-1.0)}, "greater than -100%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Materialize(tt.desc, tt.raw, ctx)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func testIndex(t *testing.T) (*schema.Schema, *registry.Index) {
	t.Helper()
	sch, err := schema.Default()
	require.NoError(t, err)
	file, err := parser.Parse(`Main:
  Leads = start(10)
  Sales = revenue(Leads.val) => subs
`)
	require.NoError(t, err)
	idx, err := registry.Build(file)
	require.NoError(t, err)
	return sch, idx
}

func TestDefaults(t *testing.T) {
	sch, idx := testIndex(t)
	set, err := Defaults(sch, idx, series.NewContext(1))
	require.NoError(t, err)

	amount, ok := set.Get("Leads", "", "amount")
	require.True(t, ok)
	assert.Equal(t, series.Zeros(12), amount.Value)

	factor, ok := set.Get("Sales", "subs", "factor")
	require.True(t, ok)
	assert.Len(t, factor.Value, 12)

	assert.Len(t, set.ObjectFields("Sales"), 1)
	assert.Len(t, set.OutputFields("Sales", "subs"), 1)
}

func TestSet_UpdateIsolation(t *testing.T) {
	sch, idx := testIndex(t)
	base, err := Defaults(sch, idx, series.NewContext(1))
	require.NoError(t, err)

	key := Key{Object: "Leads", Field: "amount"}
	next, err := base.Apply(sch, idx, []Entry{{Key: key, Raw: Raw{Single: ptr(5.0)}}})
	require.NoError(t, err)

	old, _ := base.Get("Leads", "", "amount")
	updated, _ := next.Get("Leads", "", "amount")
	assert.Equal(t, 0.0, old.Value[0], "previous set is untouched")
	assert.Equal(t, 5.0, updated.Value[0])

	oldStart, _ := base.Get("Leads", "", "startMonth")
	newStart, _ := next.Get("Leads", "", "startMonth")
	assert.Equal(t, oldStart, newStart, "other fields are carried over")
	assert.Equal(t, base.Len(), next.Len())
}

func TestSet_ApplyErrors(t *testing.T) {
	sch, idx := testIndex(t)
	base, err := Defaults(sch, idx, series.NewContext(1))
	require.NoError(t, err)

	tests := []struct {
		name     string
		key      Key
		contains string
	}{
		{"unknown object", Key{Object: "Nope", Field: "amount"}, "unknown object"},
		{"foreign output", Key{Object: "Leads", Output: "subs", Field: "factor"}, "is not an output"},
		{"unknown field", Key{Object: "Leads", Field: "price"}, "has no field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := base.Apply(sch, idx, []Entry{{Key: tt.key, Raw: Raw{Single: ptr(1.0)}}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
