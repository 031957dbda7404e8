package assumptions

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapfm/internal/registry"
	"github.com/leapstack-labs/leapfm/internal/schema"
	"github.com/leapstack-labs/leapfm/internal/series"
)

// Scope tells whether a field belongs to an object or to one of its outputs.
type Scope int

const (
	ScopeObject Scope = iota
	ScopeOutput
)

// Key identifies one field. Output is empty for object-scoped fields.
type Key struct {
	Object string
	Output string
	Field  string
}

// Scope returns the key's scope.
func (k Key) Scope() Scope {
	if k.Output == "" {
		return ScopeObject
	}
	return ScopeOutput
}

func (k Key) String() string {
	if k.Output == "" {
		return k.Object + "." + k.Field
	}
	return k.Object + "/" + k.Output + "." + k.Field
}

// Set is an immutable collection of materialized fields. Every change
// goes through Update, which returns a new Set and leaves the receiver
// untouched.
type Set struct {
	ctx    series.Context
	fields map[Key]Field
}

// NewSet returns an empty set for a timeline.
func NewSet(ctx series.Context) Set {
	return Set{ctx: ctx, fields: map[Key]Field{}}
}

// Context returns the timeline the set was materialized for.
func (s Set) Context() series.Context {
	return s.ctx
}

// Len returns the number of fields.
func (s Set) Len() int {
	return len(s.fields)
}

// Get returns one field.
func (s Set) Get(object, output, field string) (Field, bool) {
	f, ok := s.fields[Key{Object: object, Output: output, Field: field}]
	return f, ok
}

// Update re-derives the value of one field from raw and returns the new set.
func (s Set) Update(desc schema.FieldDescriptor, key Key, raw Raw) (Set, error) {
	f, err := Materialize(desc, raw, s.ctx)
	if err != nil {
		return Set{}, fmt.Errorf("%s: %w", key, err)
	}
	out := Set{ctx: s.ctx, fields: make(map[Key]Field, len(s.fields)+1)}
	for k, v := range s.fields {
		out.fields[k] = v
	}
	out.fields[key] = f
	return out, nil
}

// ObjectFields returns the object-scoped fields of object keyed by name.
func (s Set) ObjectFields(object string) map[string]Field {
	return s.collect(func(k Key) bool { return k.Object == object && k.Output == "" })
}

// OutputFields returns the fields of one output alias keyed by name.
func (s Set) OutputFields(object, output string) map[string]Field {
	return s.collect(func(k Key) bool { return k.Object == object && k.Output == output })
}

// Keys returns every key in a stable order.
func (s Set) Keys() []Key {
	keys := make([]Key, 0, len(s.fields))
	for k := range s.fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Object != b.Object {
			return a.Object < b.Object
		}
		if a.Output != b.Output {
			return a.Output < b.Output
		}
		return a.Field < b.Field
	})
	return keys
}

func (s Set) collect(match func(Key) bool) map[string]Field {
	out := make(map[string]Field)
	for k, f := range s.fields {
		if match(k) {
			out[k.Field] = f
		}
	}
	return out
}

// Defaults materializes every schema field of every object and output in
// idx from its descriptor default. Objects whose type is not in the schema
// get no fields; the engine reports them when it executes.
func Defaults(sch *schema.Schema, idx *registry.Index, ctx series.Context) (Set, error) {
	set := NewSet(ctx)
	for _, name := range idx.Objects() {
		node, _ := idx.Object(name)
		td, ok := sch.Type(node.FnName)
		if !ok {
			continue
		}
		for _, desc := range td.Assumptions.Object {
			f, err := Materialize(desc, Raw{}, ctx)
			if err != nil {
				return Set{}, fmt.Errorf("%s.%s: %w", name, desc.Name, err)
			}
			set.fields[Key{Object: name, Field: desc.Name}] = f
		}
		for _, alias := range idx.Outputs(name) {
			for _, desc := range td.Assumptions.Output {
				f, err := Materialize(desc, Raw{}, ctx)
				if err != nil {
					return Set{}, fmt.Errorf("%s/%s.%s: %w", name, alias, desc.Name, err)
				}
				set.fields[Key{Object: name, Output: alias, Field: desc.Name}] = f
			}
		}
	}
	return set, nil
}

// Entry is one user-supplied raw value.
type Entry struct {
	Key Key
	Raw Raw
}

// Apply layers entries over s, looking each field's descriptor up through
// sch and idx. Unknown objects, aliases or fields are errors.
func (s Set) Apply(sch *schema.Schema, idx *registry.Index, entries []Entry) (Set, error) {
	out := s
	for _, e := range entries {
		desc, err := lookupDescriptor(sch, idx, e.Key)
		if err != nil {
			return Set{}, err
		}
		out, err = out.Update(desc, e.Key, e.Raw)
		if err != nil {
			return Set{}, err
		}
	}
	return out, nil
}

func lookupDescriptor(sch *schema.Schema, idx *registry.Index, key Key) (schema.FieldDescriptor, error) {
	node, ok := idx.Object(key.Object)
	if !ok {
		return schema.FieldDescriptor{}, fmt.Errorf("assumption %s: unknown object %q", key, key.Object)
	}
	td, ok := sch.Type(node.FnName)
	if !ok {
		return schema.FieldDescriptor{}, fmt.Errorf("assumption %s: object type %q is not in the schema", key, node.FnName)
	}
	fields := td.Assumptions.Object
	if key.Output != "" {
		entry, ok := idx.Alias(key.Output)
		if !ok || entry.ObjectName != key.Object {
			return schema.FieldDescriptor{}, fmt.Errorf("assumption %s: %q is not an output of %q", key, key.Output, key.Object)
		}
		fields = td.Assumptions.Output
	}
	for _, d := range fields {
		if d.Name == key.Field {
			return d, nil
		}
	}
	return schema.FieldDescriptor{}, fmt.Errorf("assumption %s: type %q has no field %q", key, td.Name, key.Field)
}
