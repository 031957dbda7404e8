// Package engine executes a linked FM model: it walks the output graph in
// dependency order, feeds each alias its routed inputs and assumption
// parameters, calls the type's implementation and stores the resulting
// channel series.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapfm/internal/assumptions"
	"github.com/leapstack-labs/leapfm/internal/ast"
	"github.com/leapstack-labs/leapfm/internal/dag"
	"github.com/leapstack-labs/leapfm/internal/functions"
	"github.com/leapstack-labs/leapfm/internal/registry"
	"github.com/leapstack-labs/leapfm/internal/schema"
	"github.com/leapstack-labs/leapfm/internal/series"
)

// Input is everything one execution reads. Nothing in it is modified.
type Input struct {
	File        *ast.File
	Index       *registry.Index
	Graph       *dag.OutputGraph
	Schema      *schema.Schema
	Assumptions assumptions.Set
	Overrides   series.Overrides
	Context     series.Context
	Functions   *functions.Registry
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Result is the outcome of an execution.
type Result struct {
	File        *ast.File
	Index       *registry.Index
	Graph       *dag.OutputGraph
	Assumptions assumptions.Set
	Context     series.Context
	Store       Store
	// Order is the alias evaluation order.
	Order []string
}

// Execute evaluates every alias of in.Graph in order. ctx is checked
// between aliases.
func Execute(ctx context.Context, in Input) (*Result, error) {
	logger := in.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := in.Context.Validate(); err != nil {
		return nil, err
	}
	funcs := in.Functions
	if funcs == nil {
		funcs = functions.Builtins()
	}

	ex := &executor{in: in, funcs: funcs, logger: logger, store: make(Store)}
	logger.Debug("executing model", "order_len", len(in.Graph.Order), "months", in.Context.Months)

	for _, alias := range in.Graph.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ex.evalAlias(ctx, alias); err != nil {
			return nil, err
		}
	}
	ex.rollUp()

	return &Result{
		File:        in.File,
		Index:       in.Index,
		Graph:       in.Graph,
		Assumptions: in.Assumptions,
		Context:     in.Context,
		Store:       ex.store,
		Order:       append([]string(nil), in.Graph.Order...),
	}, nil
}

type executor struct {
	in     Input
	funcs  *functions.Registry
	logger *slog.Logger
	store  Store
}

func (ex *executor) evalAlias(ctx context.Context, alias string) error {
	entry, ok := ex.in.Index.Alias(alias)
	if !ok {
		return fmt.Errorf("alias %q is not indexed", alias)
	}
	node := entry.Node

	td, ok := ex.in.Schema.Type(node.FnName)
	if !ok {
		return &UnknownTypeError{Object: node.Name, Line: node.Line, Type: node.FnName}
	}
	if len(td.Channels) == 0 {
		return &ChannelError{Object: node.Name, Alias: alias, Type: td.Name, Msg: "type declares no channels"}
	}
	fn, ok := ex.funcs.Get(td.Impl)
	if !ok {
		return &UnknownImplError{Type: td.Name, Impl: td.Impl}
	}

	args, err := ast.ArgsFor(node, entry.Index)
	if err != nil {
		return err
	}
	inputs, err := ex.gather(node, alias, args)
	if err != nil {
		return err
	}

	opts := functions.Options{
		Object:      node.Name,
		Output:      alias,
		OutputIndex: entry.Index,
		OutputNames: []string{alias},
		Channels:    td.ChannelNames(),
		Months:      ex.in.Context.Months,
		Params:      ex.params(node.Name, alias),
	}

	ex.logger.Debug("evaluating alias", "alias", alias, "object", node.Name, "impl", td.Impl, "inputs", len(inputs))
	res, err := fn(ctx, inputs, opts)
	if err != nil {
		return fmt.Errorf("object %q (output %q): %w", node.Name, alias, err)
	}

	channels, err := resolveChannels(res, td, node.Name, alias)
	if err != nil {
		return err
	}
	for ch, s := range channels {
		if len(s) != ex.in.Context.Months {
			return &ChannelError{Object: node.Name, Alias: alias, Type: td.Name,
				Msg: fmt.Sprintf("channel %q has %d months, expected %d", ch, len(s), ex.in.Context.Months)}
		}
		ex.store[Key(alias, ch)] = ex.in.Overrides.Apply(alias, ch, series.Clone(s))
	}
	return nil
}

// gather turns routed args into input series.
func (ex *executor) gather(node *ast.ObjectNode, alias string, args []ast.Arg) ([][]float64, error) {
	n := ex.in.Context.Months
	inputs := make([][]float64, 0, len(args))
	for _, arg := range args {
		switch arg.Kind {
		case ast.ArgLiteral:
			if !arg.IsNumber {
				return nil, &LiteralError{Object: node.Name, Literal: arg.Raw}
			}
			inputs = append(inputs, series.Const(n, arg.Number))

		case ast.ArgRef:
			var sources []string
			if arg.Target == ast.TargetObject {
				sources = ex.in.Index.Outputs(arg.Name)
			} else {
				sources = []string{arg.Name}
			}
			sum := make([]float64, n)
			for _, src := range sources {
				s, ok := ex.store.Get(src, arg.Field)
				if !ok {
					return nil, &MissingSeriesError{Object: node.Name, Alias: alias, Key: Key(src, arg.Field), Available: ex.store.Keys()}
				}
				series.AddInto(sum, s, 1)
			}
			inputs = append(inputs, sum)

		default:
			return nil, fmt.Errorf("object %q: unlinked argument %q", node.Name, arg.Raw)
		}
	}
	return inputs, nil
}

// params merges object and output assumptions; output fields win.
func (ex *executor) params(object, alias string) functions.Params {
	n := ex.in.Context.Months
	p := make(functions.Params)
	add := func(fields map[string]assumptions.Field) {
		for name, f := range fields {
			if f.Descriptor.IsBoolean() {
				p[name] = series.Const(n, f.Scalar(0))
				continue
			}
			p[name] = series.Clone(f.Value)
		}
	}
	add(ex.in.Assumptions.ObjectFields(object))
	add(ex.in.Assumptions.OutputFields(object, alias))
	return p
}

// resolveChannels maps a function result onto declared channels. Keys
// naming declared channels win; otherwise a single-channel type accepts
// an alias-keyed or default-keyed series.
func resolveChannels(res functions.Result, td *schema.TypeDef, object, alias string) (map[string][]float64, error) {
	out := make(map[string][]float64)
	for k, s := range res {
		if _, ok := td.Channels[k]; ok {
			out[k] = s
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	if len(td.Channels) == 1 {
		only := td.ChannelNames()[0]
		if s, ok := res[alias]; ok {
			return map[string][]float64{only: s}, nil
		}
		if s, ok := res[functions.DefaultChannel]; ok {
			return map[string][]float64{only: s}, nil
		}
		return nil, &ChannelError{Object: object, Alias: alias, Type: td.Name,
			Msg: fmt.Sprintf("result has no %q or %q series", alias, functions.DefaultChannel)}
	}
	return nil, &ChannelError{Object: object, Alias: alias, Type: td.Name,
		Msg: fmt.Sprintf("result names none of the declared channels %v", td.ChannelNames())}
}

// rollUp sums each channel over an object's aliases into
// "objectName.channel". Objects whose name is one of their own aliases
// are skipped so keys stay unique.
func (ex *executor) rollUp() {
	for _, node := range ex.in.File.Objects {
		td, ok := ex.in.Schema.Type(node.FnName)
		if !ok {
			continue
		}
		outputs := ex.in.Index.Outputs(node.Name)
		if containsString(outputs, node.Name) {
			continue
		}
		for _, ch := range td.ChannelNames() {
			sum := make([]float64, ex.in.Context.Months)
			found := false
			for _, alias := range outputs {
				if s, ok := ex.store.Get(alias, ch); ok {
					series.AddInto(sum, s, 1)
					found = true
				}
			}
			if found {
				ex.store[Key(node.Name, ch)] = sum
			}
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
