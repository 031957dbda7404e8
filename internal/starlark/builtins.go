package starlark

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Predeclared returns the builtins visible to every function file: an
// "fm" module with series helpers.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"fm": &starlarkstruct.Module{
			Name: "fm",
			Members: starlark.StringDict{
				"zeros":  starlark.NewBuiltin("fm.zeros", fmZeros),
				"const":  starlark.NewBuiltin("fm.const", fmConst),
				"cumsum": starlark.NewBuiltin("fm.cumsum", fmCumsum),
				"add":    starlark.NewBuiltin("fm.add", fmAdd),
			},
		},
	}
}

// fm.zeros(n) returns n zeros.
func fmZeros(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var n int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &n); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%s: negative length %d", b.Name(), n)
	}
	return SeriesToStarlark(make([]float64, n)), nil
}

// fm.const(n, v) returns n copies of v.
func fmConst(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var n int
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &n, &v); err != nil {
		return nil, err
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return nil, fmt.Errorf("%s: expected a number, got %s", b.Name(), v.Type())
	}
	if n < 0 {
		return nil, fmt.Errorf("%s: negative length %d", b.Name(), n)
	}
	s := make([]float64, n)
	for i := range s {
		s[i] = f
	}
	return SeriesToStarlark(s), nil
}

// fm.cumsum(list) returns the running total.
func fmCumsum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var in starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &in); err != nil {
		return nil, err
	}
	s, err := ToSeries(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	total := 0.0
	for i, v := range s {
		total += v
		s[i] = total
	}
	return SeriesToStarlark(s), nil
}

// fm.add(a, b, ...) sums lists elementwise; the result has the length of
// the longest list.
func fmAdd(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	var out []float64
	for i, arg := range args {
		s, err := ToSeries(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", b.Name(), i+1, err)
		}
		if len(s) > len(out) {
			out = append(out, make([]float64, len(s)-len(out))...)
		}
		for m, v := range s {
			out[m] += v
		}
	}
	return SeriesToStarlark(out), nil
}
