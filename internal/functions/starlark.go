package functions

import (
	"context"
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	fmstar "github.com/leapstack-labs/leapfm/internal/starlark"
)

// LoadStarlark registers every exported function of the .star files in
// dir as "<file>.<function>" and returns the registered names. A missing
// directory registers nothing.
//
// A user function is called as fn(ctx, inputs, opts): ctx has months,
// inputs is a list of number lists and opts carries object, output,
// output_index, output_names, channels and params. It returns a dict of
// channel lists or a single list.
func LoadStarlark(r *Registry, dir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	modules, err := fmstar.NewLoader(dir, fmstar.Predeclared()).Load()
	if err != nil {
		return nil, err
	}

	pool := fmstar.NewThreadPool(4, func(thread *starlark.Thread, msg string) {
		logger.Info(msg, "function", thread.Name)
	})

	var names []string
	for _, m := range modules {
		for _, fnName := range m.Names() {
			name := m.Namespace + "." + fnName
			if err := r.Register(name, starlarkFunc(pool, name, m.Exports[fnName])); err != nil {
				return nil, err
			}
			logger.Debug("registered starlark function", "name", name, "path", m.Path)
			names = append(names, name)
		}
	}
	return names, nil
}

func starlarkFunc(pool *fmstar.ThreadPool, name string, fn starlark.Callable) Func {
	return func(ctx context.Context, inputs [][]float64, opts Options) (Result, error) {
		in := make([]starlark.Value, len(inputs))
		for i, s := range inputs {
			in[i] = fmstar.SeriesToStarlark(s)
		}
		params, err := fmstar.GoToStarlark(map[string][]float64(opts.Params))
		if err != nil {
			return nil, err
		}
		outputNames, _ := fmstar.GoToStarlark(opts.OutputNames)
		channels, _ := fmstar.GoToStarlark(opts.Channels)

		sctx := starlarkstruct.FromStringDict(starlark.String("ctx"), starlark.StringDict{
			"months": starlark.MakeInt(opts.Months),
		})
		sopts := starlarkstruct.FromStringDict(starlark.String("opts"), starlark.StringDict{
			"object":       starlark.String(opts.Object),
			"output":       starlark.String(opts.Output),
			"output_index": starlark.MakeInt(opts.OutputIndex),
			"output_names": outputNames,
			"channels":     channels,
			"params":       params,
		})

		v, err := pool.Call(ctx, name, fn, starlark.Tuple{sctx, starlark.NewList(in), sopts})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out, err := fmstar.ToChannels(v, DefaultChannel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return Result(out), nil
	}
}
