// Package schema describes FM object types: which implementation evaluates
// them, which channels they produce, where those channels land in the
// financial statements, and which assumption fields they accept.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultSchemaYAML []byte

// Capability names accepted in a field's supports list.
const (
	CapSingle    = "single"
	CapAnnual    = "annual"
	CapGrowth    = "growth"
	CapMonthly   = "monthly"
	CapSmoothing = "smoothing"
	CapDateRange = "dateRange"
	CapSeasonal  = "seasonal"
)

// Field value types.
const (
	FieldNumber   = "number"
	FieldPercent  = "percent"
	FieldCurrency = "currency"
	FieldBoolean  = "boolean"
)

// Capabilities is the set of raw forms a field accepts.
type Capabilities []string

// Has reports whether c includes capability name.
func (c Capabilities) Has(name string) bool {
	for _, s := range c {
		if s == name {
			return true
		}
	}
	return false
}

// FieldDescriptor declares one assumption field.
type FieldDescriptor struct {
	Name     string       `yaml:"name"`
	Label    string       `yaml:"label"`
	Type     string       `yaml:"type"`
	Default  any          `yaml:"default"`
	Supports Capabilities `yaml:"supports"`
}

// IsBoolean reports whether the field holds a flag rather than a series.
func (f FieldDescriptor) IsBoolean() bool {
	return f.Type == FieldBoolean
}

// DefaultNumber returns the numeric default, 0 when unset.
func (f FieldDescriptor) DefaultNumber() float64 {
	switch v := f.Default.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// DefaultBool returns the boolean default, false when unset.
func (f FieldDescriptor) DefaultBool() bool {
	b, _ := f.Default.(bool)
	return b
}

// Channel declares one named sub-series of an object type.
type Channel struct {
	Label        string   `yaml:"label"`
	Format       string   `yaml:"format"`
	Destinations []string `yaml:"destinations"`
}

// AssumptionSet groups fields applying to the whole object and to each
// output alias.
type AssumptionSet struct {
	Object []FieldDescriptor `yaml:"object"`
	Output []FieldDescriptor `yaml:"output"`
}

// TypeDef is the schema of one FM object type.
type TypeDef struct {
	Name        string             `yaml:"-"`
	Label       string             `yaml:"label"`
	Impl        string             `yaml:"impl"`
	Channels    map[string]Channel `yaml:"channels"`
	Assumptions AssumptionSet      `yaml:"assumptions"`
}

// HasChannel reports whether the type declares channel name.
func (t *TypeDef) HasChannel(name string) bool {
	_, ok := t.Channels[name]
	return ok
}

// ChannelNames returns the declared channel names sorted.
func (t *TypeDef) ChannelNames() []string {
	names := make([]string, 0, len(t.Channels))
	for name := range t.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LineItem is one row of a financial statement.
type LineItem struct {
	Code       string   `yaml:"code"`
	Label      string   `yaml:"label"`
	Level      int      `yaml:"level"`
	Sign       float64  `yaml:"sign"`
	Formula    string   `yaml:"formula"`
	Cumulative bool     `yaml:"cumulative"`
	Children   []string `yaml:"children"`
	Format     string   `yaml:"format"`
}

// Depth returns the number of path segments in the code.
func (l LineItem) Depth() int {
	return strings.Count(l.Code, ".") + 1
}

// Statement is an ordered list of line items such as a P&L.
type Statement struct {
	Name      string     `yaml:"name"`
	Label     string     `yaml:"label"`
	LineItems []LineItem `yaml:"lineItems"`
}

// Schema is the full type and statement catalogue of a model.
type Schema struct {
	Types      map[string]*TypeDef `yaml:"types"`
	Statements []Statement         `yaml:"statements"`
}

// Type returns the definition for an FM function name.
func (s *Schema) Type(fnName string) (*TypeDef, bool) {
	t, ok := s.Types[fnName]
	return t, ok
}

// TypeNames returns all declared type names sorted.
func (s *Schema) TypeNames() []string {
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the embedded schema shipped with leapfm.
func Default() (*Schema, error) {
	return Parse(defaultSchemaYAML)
}

// Load reads a schema YAML file. An empty path loads the embedded default.
func Load(path string) (*Schema, error) {
	if path == "" {
		return Default()
	}
	content, err := os.ReadFile(path) //nolint:gosec // G304: schema path comes from project config
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	s, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and normalizes schema YAML.
func Parse(content []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("invalid schema yaml: %w", err)
	}
	if err := s.normalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) normalize() error {
	if s.Types == nil {
		s.Types = make(map[string]*TypeDef)
	}
	for name, t := range s.Types {
		if t == nil {
			return fmt.Errorf("type %q has no definition", name)
		}
		t.Name = name
		if t.Impl == "" {
			t.Impl = name
		}
		for _, f := range append(append([]FieldDescriptor(nil), t.Assumptions.Object...), t.Assumptions.Output...) {
			if f.Name == "" {
				return fmt.Errorf("type %q declares an assumption without a name", name)
			}
		}
	}

	for si := range s.Statements {
		st := &s.Statements[si]
		seen := make(map[string]bool, len(st.LineItems))
		for i := range st.LineItems {
			li := &st.LineItems[i]
			if li.Code == "" {
				return fmt.Errorf("statement %q: line item %d has no code", st.Name, i)
			}
			if seen[li.Code] {
				return fmt.Errorf("statement %q: duplicate line item %q", st.Name, li.Code)
			}
			seen[li.Code] = true
			if li.Sign == 0 {
				li.Sign = 1
			}
			if li.Level == 0 {
				li.Level = li.Depth() - 1
			}
		}
	}
	return nil
}
