// Package ast defines the syntax tree shared by the FM parser, linker,
// dependency graph builder and execution engine.
//
// A File is produced by the parser with unresolved argument tokens. The
// linker returns a new File in which every argument is either a Ref or a
// Literal; spreads never survive linking.
package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgKind tags the variant held by an Arg.
type ArgKind int

const (
	// ArgRef is a dot reference Name.field (alias or object).
	ArgRef ArgKind = iota
	// ArgSpread is ...Object.field, expanded by the linker.
	ArgSpread
	// ArgLiteral is a number, quoted string or bare identifier.
	ArgLiteral
)

func (k ArgKind) String() string {
	switch k {
	case ArgRef:
		return "ref"
	case ArgSpread:
		return "spread"
	case ArgLiteral:
		return "literal"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// RefTarget says what a linked reference points at.
type RefTarget int

const (
	// TargetUnresolved is the state of a ref before linking.
	TargetUnresolved RefTarget = iota
	// TargetAlias is a reference to a single output alias.
	TargetAlias
	// TargetObject is a reference to every output of an object.
	TargetObject
)

// Arg is one argument of an object definition.
type Arg struct {
	Kind ArgKind
	// Raw is the argument text as written.
	Raw string

	// Name and Field are set for refs and spreads. For a spread, Name is
	// the spread object until linking replaces the arg with refs.
	Name  string
	Field string

	// Target is filled in by the linker for refs.
	Target RefTarget

	// FromSpreadOf is the object a ref was expanded from, empty otherwise.
	FromSpreadOf string
	// SpreadIndex is the position of this ref within its spread expansion.
	SpreadIndex int

	// Literal payload. IsNumber distinguishes numeric literals from
	// identifiers and strings, which are kept as Text.
	Number   float64
	IsNumber bool
	Text     string
}

// IsSpread reports whether the arg came from a spread expansion.
func (a Arg) IsSpread() bool {
	return a.FromSpreadOf != ""
}

func (a Arg) String() string {
	switch a.Kind {
	case ArgSpread:
		return "..." + a.Name + "." + a.Field
	case ArgRef:
		return a.Name + "." + a.Field
	default:
		if a.IsNumber {
			return strconv.FormatFloat(a.Number, 'g', -1, 64)
		}
		return a.Text
	}
}

// ObjectNode is one declared modeling primitive.
type ObjectNode struct {
	Name    string
	FnName  string
	Args    []Arg
	Outputs []string
	// DeclaredOutputs is false when Outputs was synthesized as [Name].
	DeclaredOutputs bool
	Section         string
	Comment         string
	Line            int
}

// HasSpread reports whether any argument was expanded from a spread.
func (n *ObjectNode) HasSpread() bool {
	for _, a := range n.Args {
		if a.Kind == ArgSpread || a.IsSpread() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the node.
func (n *ObjectNode) Clone() *ObjectNode {
	c := *n
	c.Args = append([]Arg(nil), n.Args...)
	c.Outputs = append([]string(nil), n.Outputs...)
	return &c
}

// Section groups objects under a header line such as "Revenue:".
type Section struct {
	Name    string
	Line    int
	Objects []string
}

// File is a parsed FM source.
type File struct {
	Sections []*Section
	Objects  []*ObjectNode
}

// Clone returns a deep copy of the file.
func (f *File) Clone() *File {
	c := &File{
		Sections: make([]*Section, 0, len(f.Sections)),
		Objects:  make([]*ObjectNode, 0, len(f.Objects)),
	}
	for _, s := range f.Sections {
		sc := *s
		sc.Objects = append([]string(nil), s.Objects...)
		c.Sections = append(c.Sections, &sc)
	}
	for _, o := range f.Objects {
		c.Objects = append(c.Objects, o.Clone())
	}
	return c
}

// Format renders a node back to FM syntax on a single line.
func (n *ObjectNode) Format() string {
	var b strings.Builder
	b.WriteString(n.Name)
	b.WriteString(" = ")
	b.WriteString(n.FnName)
	b.WriteByte('(')
	for i, a := range n.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	if n.DeclaredOutputs {
		b.WriteString(" => ")
		b.WriteString(strings.Join(n.Outputs, ", "))
	}
	if n.Comment != "" {
		b.WriteString(" // ")
		b.WriteString(n.Comment)
	}
	return b.String()
}
