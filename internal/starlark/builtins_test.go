package starlark

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func evalFM(t *testing.T, expr string) starlark.Value {
	t.Helper()
	thread := &starlark.Thread{Name: "test"}
	v, err := starlark.Eval(thread, "expr", expr, Predeclared()) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	require.NoError(t, err, "eval %s", expr)
	return v
}

func TestPredeclared_Helpers(t *testing.T) {
	tests := []struct {
		expr string
		want []float64
	}{
		{"fm.zeros(3)", []float64{0, 0, 0}},
		{"fm.const(2, 1.5)", []float64{1.5, 1.5}},
		{"fm.cumsum([1, 2, 3])", []float64{1, 3, 6}},
		{"fm.add([1, 2], [10, 20, 30])", []float64{11, 22, 30}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ToSeries(evalFM(t, tt.expr))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.star"), []byte(`
RATE = 0.5

def _helper(x):
    return x * RATE

def discounted(ctx, inputs, opts):
    return {"val": [_helper(v) for v in inputs[0]]}

def flat(ctx, inputs, opts):
    return fm.const(ctx.months, 1)
`), 0o600))

	modules, err := NewLoader(dir, Predeclared()).Load()
	require.NoError(t, err)
	require.Len(t, modules, 1)

	m := modules[0]
	assert.Equal(t, "pricing", m.Namespace)
	assert.Equal(t, []string{"discounted", "flat"}, m.Names(), "private names and non-callables are not exported")
}

func TestLoader_MissingDirectory(t *testing.T) {
	modules, err := NewLoader(filepath.Join(t.TempDir(), "nope"), nil).Load()
	require.NoError(t, err)
	assert.Empty(t, modules)

	modules, err = NewLoader("", nil).Load()
	require.NoError(t, err)
	assert.Empty(t, modules)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		src      string
		contains string
	}{
		{"syntax error", "bad.star", "def broken(:\n", "Starlark execution error"},
		{"bad namespace", "1bad.star", "x = 1\n", "identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.src), 0o600))

			_, err := NewLoader(dir, Predeclared()).Load()
			require.Error(t, err)

			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
