package engine

import (
	"fmt"
	"strings"
)

// MissingSeriesError reports a reference to a series that has not been
// computed. Available lists every key in the store at that point.
type MissingSeriesError struct {
	Object    string
	Alias     string
	Key       string
	Available []string
}

func (e *MissingSeriesError) Error() string {
	return fmt.Sprintf("object %q (output %q): missing series %q; available: [%s]",
		e.Object, e.Alias, e.Key, strings.Join(e.Available, ", "))
}

// ChannelError reports a function result that cannot be mapped onto the
// channels its type declares.
type ChannelError struct {
	Object string
	Alias  string
	Type   string
	Msg    string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("object %q (output %q, type %q): %s", e.Object, e.Alias, e.Type, e.Msg)
}

// UnknownTypeError reports an object whose type is not in the schema.
type UnknownTypeError struct {
	Object string
	Line   int
	Type   string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("line %d: object %q: unknown type %q", e.Line, e.Object, e.Type)
}

// UnknownImplError reports a schema type whose implementation is not
// registered.
type UnknownImplError struct {
	Type string
	Impl string
}

func (e *UnknownImplError) Error() string {
	return fmt.Sprintf("type %q: unknown implementation %q", e.Type, e.Impl)
}

// LiteralError reports an identifier literal used where a series is
// needed.
type LiteralError struct {
	Object  string
	Literal string
}

func (e *LiteralError) Error() string {
	return fmt.Sprintf("object %q: identifier %q cannot be used as an input; use Name.field or a number", e.Object, e.Literal)
}
