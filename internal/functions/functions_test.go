package functions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfm/internal/series"
	"github.com/leapstack-labs/leapfm/internal/testutil"
)

func opts(months int, params Params) Options {
	return Options{Object: "X", Output: "X", OutputNames: []string{"X"}, Months: months, Params: params}
}

func TestRetention(t *testing.T) {
	added := make([]float64, 6)
	added[0] = 100

	res, err := Retention(context.Background(), [][]float64{added}, opts(6, Params{
		"churn":      series.Const(6, 0.1),
		"startMonth": series.Const(6, 0),
	}))
	require.NoError(t, err)

	assert.InDelta(t, 100, res["active"][0], 1e-9)
	assert.InDelta(t, 90, res["active"][1], 1e-9)
	assert.InDelta(t, 81, res["active"][2], 1e-9)
	assert.InDelta(t, 10, res["churned"][1], 1e-9)
	assert.Equal(t, 100.0, res["added"][0])
}

func TestRetention_ResetsBeforeStart(t *testing.T) {
	res, err := Retention(context.Background(), [][]float64{series.Const(4, 10)}, opts(4, Params{
		"startMonth": series.Const(4, 2),
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 10, 20}, res["active"])
	assert.Equal(t, []float64{0, 0, 10, 10}, res["added"])
}

func TestDelay(t *testing.T) {
	src := []float64{10, 20, 0, 0, 0, 0}
	res, err := Delay(context.Background(), [][]float64{src}, opts(6, Params{"delayMonths": series.Const(6, 2)}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 10, 20, 0, 0}, res[DefaultChannel])
}

func TestDelay_TimeVaryingAndHorizon(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	res, err := Delay(context.Background(), [][]float64{src}, opts(4, Params{"delayMonths": {1, 0, 5, 0}}))
	require.NoError(t, err)
	// month 0 lands on 1, month 1 stays, month 2 falls past the horizon
	assert.Equal(t, []float64{0, 3, 0, 4}, res[DefaultChannel])
}

func TestScaleAndStart(t *testing.T) {
	res, err := Scale(context.Background(), [][]float64{{1, 2, 3}, {1, 1, 1}}, opts(3, Params{
		"factor":     {10, 10, 20},
		"startMonth": series.Const(3, 1),
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 30, 80}, res[DefaultChannel])

	res, err = Start(context.Background(), nil, opts(3, Params{
		"amount":     series.Const(3, 5),
		"startMonth": series.Const(3, 2),
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 5}, res[DefaultChannel])
}

func TestHeadcount(t *testing.T) {
	res, err := Headcount(context.Background(), [][]float64{{100, 50}}, opts(2, Params{
		"productivity": {25, 0},
		"salary":       series.Const(2, 1000),
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0}, res["heads"], "zero productivity yields no heads")
	assert.Equal(t, []float64{4000, 0}, res["cost"])
}

func TestSupplementalBuiltins(t *testing.T) {
	ctx := context.Background()

	res, err := Sum(ctx, [][]float64{{1, 2}, {3, 4}}, opts(2, nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 6}, res[DefaultChannel])

	res, err = Cumulative(ctx, [][]float64{{1, 2, 3}}, opts(3, nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 6}, res[DefaultChannel])

	res, err = Difference(ctx, [][]float64{{10, 10}, {1, 2}, {3, 3}}, opts(2, nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 5}, res[DefaultChannel])

	res, err = Ratio(ctx, [][]float64{{10, 10}, {4, 0}}, opts(2, nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 0}, res[DefaultChannel])

	_, err = Ratio(ctx, [][]float64{{1}}, opts(1, nil))
	assert.Error(t, err)

	res, err = Growth(ctx, [][]float64{{0, 0, 0}}, opts(3, Params{"initial": {100}}))
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 100, 100}, res[DefaultChannel])
}

func TestRegistry(t *testing.T) {
	r := Builtins()
	for _, name := range []string{"scale", "start", "retention", "delay", "sum", "headcount"} {
		_, ok := r.Get(name)
		assert.True(t, ok, "builtin %q", name)
	}
	assert.Error(t, r.Register("sum", Sum), "names are unique")
	assert.Contains(t, r.Names(), "ratio")
}

func TestLoadStarlark(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.star"), []byte(`
def tiered(ctx, inputs, opts):
    factor = opts.params["factor"]
    out = fm.zeros(ctx.months)
    for m in range(ctx.months):
        out[m] = inputs[0][m] * factor[m]
    return {"val": out}

def flat(ctx, inputs, opts):
    print("flat for", opts.output)
    return fm.const(ctx.months, opts.output_index + 1)
`), 0o600))

	r := Builtins()
	names, err := LoadStarlark(r, dir, testutil.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"pricing.flat", "pricing.tiered"}, names)

	tiered, ok := r.Get("pricing.tiered")
	require.True(t, ok)
	res, err := tiered(context.Background(), [][]float64{{1, 2}}, opts(2, Params{"factor": {3, 4}}))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 8}, res[DefaultChannel])

	flat, _ := r.Get("pricing.flat")
	o := opts(2, nil)
	o.OutputIndex = 1
	res, err = flat(context.Background(), nil, o)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, res[DefaultChannel], "a bare list is the default channel")
}

func TestLoadStarlark_RuntimeError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.star"), []byte(`
def boom(ctx, inputs, opts):
    return 1 // 0
`), 0o600))

	r := NewRegistry()
	_, err := LoadStarlark(r, dir, nil)
	require.NoError(t, err)

	boom, _ := r.Get("bad.boom")
	_, err = boom(context.Background(), nil, opts(1, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.boom")
}
