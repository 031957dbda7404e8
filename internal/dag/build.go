package dag

import (
	"fmt"

	"github.com/leapstack-labs/leapfm/internal/ast"
	"github.com/leapstack-labs/leapfm/internal/registry"
)

// OutputNode is the payload of an output-graph node.
type OutputNode struct {
	Alias  string
	Object *ast.ObjectNode
	// Index is the alias position within the object's outputs.
	Index int
}

// OutputGraph is the dependency graph over output aliases.
type OutputGraph struct {
	// Nodes lists every alias in declaration order.
	Nodes []string
	// Order is a valid evaluation order.
	Order []string
	// Deps maps an alias to the aliases it reads.
	Deps map[string][]string
	// Dependents maps an alias to the aliases that read it.
	Dependents map[string][]string

	Graph *Graph
}

// BuildOutputGraph builds the alias dependency graph of a linked file.
// Edges follow ast.RouteInputs, so an input only feeds the outputs it is
// routed to. A reference to an object depends on every alias of that
// object.
func BuildOutputGraph(file *ast.File, idx *registry.Index) (*OutputGraph, error) {
	g := NewGraph()
	for _, node := range file.Objects {
		for i, alias := range node.Outputs {
			g.AddNode(alias, &OutputNode{Alias: alias, Object: node, Index: i})
		}
	}

	for _, node := range file.Objects {
		routes, err := ast.RouteInputs(node)
		if err != nil {
			return nil, err
		}
		for out, argIdx := range routes {
			consumer := node.Outputs[out]
			for _, i := range argIdx {
				arg := node.Args[i]
				if arg.Kind != ast.ArgRef {
					continue
				}
				sources, err := refSources(arg, idx)
				if err != nil {
					return nil, fmt.Errorf("line %d: object %q: %w", node.Line, node.Name, err)
				}
				for _, src := range sources {
					if err := g.AddEdge(src, consumer); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return newOutputGraph(g)
}

// newOutputGraph derives the evaluation order and neighbour maps of g.
func newOutputGraph(g *Graph) (*OutputGraph, error) {
	sorted, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	og := &OutputGraph{
		Nodes:      g.IDs(),
		Order:      make([]string, 0, len(sorted)),
		Deps:       make(map[string][]string, len(sorted)),
		Dependents: make(map[string][]string, len(sorted)),
		Graph:      g,
	}
	for _, n := range sorted {
		og.Order = append(og.Order, n.ID)
	}
	for _, id := range og.Nodes {
		og.Deps[id] = append([]string(nil), g.GetParents(id)...)
		og.Dependents[id] = append([]string(nil), g.GetChildren(id)...)
	}
	return og, nil
}

func refSources(arg ast.Arg, idx *registry.Index) ([]string, error) {
	switch arg.Target {
	case ast.TargetAlias:
		return []string{arg.Name}, nil
	case ast.TargetObject:
		return idx.Outputs(arg.Name), nil
	}
	switch idx.Resolve(arg.Name) {
	case registry.SymbolAlias:
		return []string{arg.Name}, nil
	case registry.SymbolObject:
		return idx.Outputs(arg.Name), nil
	}
	return nil, fmt.Errorf("unresolved reference %q", arg.Raw)
}

// Upstream returns alias and everything it depends on, in evaluation order.
func (og *OutputGraph) Upstream(alias string) []string {
	keep := map[string]bool{alias: true}
	for _, id := range og.Graph.GetUpstreamNodes(alias) {
		keep[id] = true
	}
	out := make([]string, 0, len(keep))
	for _, id := range og.Order {
		if keep[id] {
			out = append(out, id)
		}
	}
	return out
}

// Levels groups aliases by dependency depth.
func (og *OutputGraph) Levels() ([][]string, error) {
	return og.Graph.GetExecutionLevels()
}

// Downstream returns alias and everything that reads it, in evaluation
// order.
func (og *OutputGraph) Downstream(alias string) []string {
	keep := make(map[string]bool)
	for _, id := range og.Graph.GetAffectedNodes([]string{alias}) {
		keep[id] = true
	}
	out := make([]string, 0, len(keep))
	for _, id := range og.Order {
		if keep[id] {
			out = append(out, id)
		}
	}
	return out
}

// Focus returns the graph restricted to alias, its upstream and its
// downstream aliases.
func (og *OutputGraph) Focus(alias string) (*OutputGraph, error) {
	if _, ok := og.Graph.GetNode(alias); !ok {
		return nil, fmt.Errorf("unknown alias %q", alias)
	}
	ids := append(og.Upstream(alias), og.Graph.GetAffectedNodes([]string{alias})...)
	return newOutputGraph(og.Graph.Subgraph(ids))
}

// Sources returns the aliases that read no other alias.
func (og *OutputGraph) Sources() []string {
	return og.Graph.GetRoots()
}

// Sinks returns the aliases no other alias reads.
func (og *OutputGraph) Sinks() []string {
	return og.Graph.GetLeaves()
}
