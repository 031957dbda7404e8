// Package registry builds the symbol index for an FM model.
// It maps object names and output aliases to their defining nodes so the
// linker can resolve references, including forward references, after a
// single pass over the whole file.
package registry

import (
	"fmt"

	"github.com/leapstack-labs/leapfm/internal/ast"
)

// AliasEntry records which object owns an output alias.
type AliasEntry struct {
	ObjectName string
	Node       *ast.ObjectNode
	// Index is the alias position within the object's outputs.
	Index int
}

// SymbolKind tells what a name resolved to.
type SymbolKind int

const (
	SymbolNone SymbolKind = iota
	SymbolObject
	SymbolAlias
)

// IndexError reports a duplicate or conflicting symbol.
type IndexError struct {
	Name     string
	Line     int
	PrevLine int
	Msg      string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("line %d: %s %q (first defined at line %d)", e.Line, e.Msg, e.Name, e.PrevLine)
}

// Index holds the three lookup tables of a model. It is read-only once
// Build returns.
type Index struct {
	// objectsByName maps object names to nodes: "Customers" → *ObjectNode
	objectsByName map[string]*ast.ObjectNode

	// aliases maps every output alias to its owner: "active" → {Customers, ...}
	aliases map[string]AliasEntry

	// outputsByObject keeps declared output order: "Customers" → [active]
	outputsByObject map[string][]string

	objectOrder []string
	aliasOrder  []string
}

// Build indexes every object of file. Objects without declared outputs get
// a single synthetic output named after the object; Build writes it into
// the node so every later stage sees the same alias.
func Build(file *ast.File) (*Index, error) {
	idx := &Index{
		objectsByName:   make(map[string]*ast.ObjectNode, len(file.Objects)),
		aliases:         make(map[string]AliasEntry),
		outputsByObject: make(map[string][]string, len(file.Objects)),
	}

	for _, node := range file.Objects {
		if prev, ok := idx.objectsByName[node.Name]; ok {
			return nil, &IndexError{Name: node.Name, Line: node.Line, PrevLine: prev.Line, Msg: "duplicate object name"}
		}
		idx.objectsByName[node.Name] = node
		idx.objectOrder = append(idx.objectOrder, node.Name)

		if len(node.Outputs) == 0 {
			node.Outputs = []string{node.Name}
			node.DeclaredOutputs = false
		}
	}

	for _, node := range file.Objects {
		for i, alias := range node.Outputs {
			if owner, ok := idx.objectsByName[alias]; ok && owner.Name != node.Name {
				return nil, &IndexError{Name: alias, Line: node.Line, PrevLine: owner.Line, Msg: "output alias collides with object name"}
			}
			if prev, ok := idx.aliases[alias]; ok {
				msg := "duplicate output alias"
				if prev.ObjectName == node.Name {
					msg = "output alias declared twice"
				}
				return nil, &IndexError{Name: alias, Line: node.Line, PrevLine: prev.Node.Line, Msg: msg}
			}
			idx.aliases[alias] = AliasEntry{ObjectName: node.Name, Node: node, Index: i}
			idx.aliasOrder = append(idx.aliasOrder, alias)
		}
		idx.outputsByObject[node.Name] = append([]string(nil), node.Outputs...)
	}

	return idx, nil
}

// Object returns the node declared under name.
func (idx *Index) Object(name string) (*ast.ObjectNode, bool) {
	n, ok := idx.objectsByName[name]
	return n, ok
}

// Alias returns the owner of an output alias.
func (idx *Index) Alias(alias string) (AliasEntry, bool) {
	e, ok := idx.aliases[alias]
	return e, ok
}

// Outputs returns the ordered aliases of an object.
func (idx *Index) Outputs(object string) []string {
	return idx.outputsByObject[object]
}

// Resolve looks a reference name up. Aliases win over objects so that an
// unaliased object, whose only alias is its own name, resolves to the
// alias.
func (idx *Index) Resolve(name string) SymbolKind {
	if _, ok := idx.aliases[name]; ok {
		return SymbolAlias
	}
	if _, ok := idx.objectsByName[name]; ok {
		return SymbolObject
	}
	return SymbolNone
}

// Objects returns object names in declaration order.
func (idx *Index) Objects() []string {
	return idx.objectOrder
}

// Aliases returns every alias in declaration order.
func (idx *Index) Aliases() []string {
	return idx.aliasOrder
}

// ObjectCount returns the number of indexed objects.
func (idx *Index) ObjectCount() int {
	return len(idx.objectsByName)
}

// AliasCount returns the number of indexed aliases.
func (idx *Index) AliasCount() int {
	return len(idx.aliases)
}
