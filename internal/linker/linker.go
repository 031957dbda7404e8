// Package linker resolves the symbolic arguments of a parsed FM model.
//
// Linking runs after the registry has indexed the whole file, so forward
// references resolve the same way backward ones do. Spread arguments are
// expanded into one reference per output of the spread object.
package linker

import (
	"fmt"

	"github.com/leapstack-labs/leapfm/internal/ast"
	"github.com/leapstack-labs/leapfm/internal/parser"
	"github.com/leapstack-labs/leapfm/internal/registry"
)

// LinkError reports an argument that cannot be resolved.
type LinkError struct {
	Object string
	Line   int
	Arg    string
	Msg    string
	Err    error
}

func (e *LinkError) Error() string {
	if e.Arg != "" {
		return fmt.Sprintf("line %d: object %q: %s: %q", e.Line, e.Object, e.Msg, e.Arg)
	}
	return fmt.Sprintf("line %d: object %q: %s", e.Line, e.Object, e.Msg)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// Result is a linked model together with its symbol index.
type Result struct {
	File  *ast.File
	Index *registry.Index
}

// ParseAndLink parses, indexes and links source in one call.
func ParseAndLink(source string) (*Result, error) {
	file, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	return IndexAndLink(file)
}

// IndexAndLink indexes and links an already parsed file.
func IndexAndLink(file *ast.File) (*Result, error) {
	idx, err := registry.Build(file)
	if err != nil {
		return nil, err
	}
	linked, err := Link(file, idx)
	if err != nil {
		return nil, err
	}
	// Index the linked copy so its entries point at linked nodes.
	linkedIdx, err := registry.Build(linked)
	if err != nil {
		return nil, err
	}
	return &Result{File: linked, Index: linkedIdx}, nil
}

// Link returns a copy of file where every argument is a resolved ref or a
// literal. The input file is left untouched.
func Link(file *ast.File, idx *registry.Index) (*ast.File, error) {
	out := file.Clone()

	for _, node := range out.Objects {
		args := make([]ast.Arg, 0, len(node.Args))
		for _, arg := range node.Args {
			switch arg.Kind {
			case ast.ArgSpread:
				expanded, err := expandSpread(node, arg, idx)
				if err != nil {
					return nil, err
				}
				args = append(args, expanded...)

			case ast.ArgRef:
				switch idx.Resolve(arg.Name) {
				case registry.SymbolAlias:
					arg.Target = ast.TargetAlias
				case registry.SymbolObject:
					arg.Target = ast.TargetObject
				default:
					return nil, &LinkError{Object: node.Name, Line: node.Line, Arg: arg.Raw, Msg: "unknown reference"}
				}
				args = append(args, arg)

			default:
				args = append(args, arg)
			}
		}
		node.Args = args

		if _, err := ast.RouteInputs(node); err != nil {
			return nil, &LinkError{Object: node.Name, Line: node.Line, Msg: "ambiguous fan-in", Err: err}
		}
	}

	return out, nil
}

func expandSpread(node *ast.ObjectNode, arg ast.Arg, idx *registry.Index) ([]ast.Arg, error) {
	src, ok := idx.Object(arg.Name)
	if !ok {
		return nil, &LinkError{Object: node.Name, Line: node.Line, Arg: arg.Raw, Msg: "spread of unknown object"}
	}
	if !src.DeclaredOutputs {
		return nil, &LinkError{Object: node.Name, Line: node.Line, Arg: arg.Raw, Msg: fmt.Sprintf("spread of object %q which declares no outputs", src.Name)}
	}

	outputs := idx.Outputs(src.Name)
	refs := make([]ast.Arg, 0, len(outputs))
	for i, alias := range outputs {
		refs = append(refs, ast.Arg{
			Kind:         ast.ArgRef,
			Raw:          alias + "." + arg.Field,
			Name:         alias,
			Field:        arg.Field,
			Target:       ast.TargetAlias,
			FromSpreadOf: src.Name,
			SpreadIndex:  i,
		})
	}
	return refs, nil
}
