// Package scenario loads user assumptions and overrides from YAML.
//
// A scenario file looks like:
//
//	name: base
//	objects:
//	  Leads:
//	    amount: { annual: [100, 150, 200], smoothing: true }
//	    startMonth: 1
//	outputs:
//	  Sales:
//	    subs:
//	      factor: 49
//	overrides:
//	  - { alias: subs, channel: val, month: 3, value: 1000 }
//
// A bare number is shorthand for { single: n } and a bare boolean for
// { bool: b }.
package scenario

import (
	"fmt"
	"os"
	"reflect"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/leapstack-labs/leapfm/internal/assumptions"
	"github.com/leapstack-labs/leapfm/internal/series"
)

// DefaultChannel is used by overrides that omit the channel.
const DefaultChannel = "val"

// Override pins one month of one computed channel.
type Override struct {
	Alias   string  `koanf:"alias"`
	Channel string  `koanf:"channel"`
	Month   int     `koanf:"month"`
	Value   float64 `koanf:"value"`
}

// Scenario is a named set of assumption values and overrides.
type Scenario struct {
	Name string `koanf:"name"`
	// Objects holds object-scoped fields: object → field → raw.
	Objects map[string]map[string]assumptions.Raw `koanf:"objects"`
	// Outputs holds output-scoped fields: object → alias → field → raw.
	Outputs   map[string]map[string]map[string]assumptions.Raw `koanf:"outputs"`
	Overrides []Override                                      `koanf:"overrides"`
}

// Empty returns a scenario with no values.
func Empty() *Scenario {
	return &Scenario{Name: "default"}
}

// Load reads a scenario file. An empty path returns Empty.
func Load(path string) (*Scenario, error) {
	if path == "" {
		return Empty(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("scenario file: %w", err)
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading scenario file %s: %w", path, err)
	}
	s, err := decode(k)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes scenario YAML from memory.
func Parse(content []byte) (*Scenario, error) {
	m, err := yaml.Parser().Unmarshal(content)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario yaml: %w", err)
	}
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(m, ""), nil); err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	return decode(k)
}

func decode(k *koanf.Koanf) (*Scenario, error) {
	var s Scenario
	err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       scalarRawHook(),
			Result:           &s,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to decode scenario: %w", err)
	}
	if s.Name == "" {
		s.Name = "default"
	}
	for i := range s.Overrides {
		o := &s.Overrides[i]
		if o.Alias == "" {
			return nil, fmt.Errorf("override %d: alias is required", i)
		}
		if o.Channel == "" {
			o.Channel = DefaultChannel
		}
		if o.Month < 0 {
			return nil, fmt.Errorf("override %d: month must not be negative, got %d", i, o.Month)
		}
	}
	return &s, nil
}

var rawType = reflect.TypeOf(assumptions.Raw{})

// scalarRawHook expands the number and boolean shorthands into Raw.
func scalarRawHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != rawType {
			return data, nil
		}
		switch v := data.(type) {
		case bool:
			return assumptions.Raw{Bool: &v}, nil
		case int:
			f := float64(v)
			return assumptions.Raw{Single: &f}, nil
		case int64:
			f := float64(v)
			return assumptions.Raw{Single: &f}, nil
		case uint64:
			f := float64(v)
			return assumptions.Raw{Single: &f}, nil
		case float64:
			return assumptions.Raw{Single: &v}, nil
		}
		return data, nil
	}
}

// Entries flattens the scenario into assumption entries in a stable order.
func (s *Scenario) Entries() []assumptions.Entry {
	var out []assumptions.Entry
	for _, obj := range sortedKeys(s.Objects) {
		fields := s.Objects[obj]
		for _, f := range sortedKeys(fields) {
			out = append(out, assumptions.Entry{
				Key: assumptions.Key{Object: obj, Field: f},
				Raw: fields[f],
			})
		}
	}
	for _, obj := range sortedKeys(s.Outputs) {
		aliases := s.Outputs[obj]
		for _, alias := range sortedKeys(aliases) {
			fields := aliases[alias]
			for _, f := range sortedKeys(fields) {
				out = append(out, assumptions.Entry{
					Key: assumptions.Key{Object: obj, Output: alias, Field: f},
					Raw: fields[f],
				})
			}
		}
	}
	return out
}

// OverrideMap returns the overrides keyed for the engine.
func (s *Scenario) OverrideMap() series.Overrides {
	out := make(series.Overrides)
	for _, o := range s.Overrides {
		out.Add(o.Alias, o.Channel, o.Month, o.Value)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
