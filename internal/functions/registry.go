// Package functions holds the implementations FM object types evaluate
// with. Many schema types may share one implementation; the engine looks
// the implementation up by name once per output alias.
package functions

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapfm/internal/series"
)

// DefaultChannel is the key implementations use for a single anonymous
// result.
const DefaultChannel = "val"

// Params holds materialized assumption values by field name. Boolean
// fields appear as constant 0/1 series.
type Params map[string][]float64

// At returns field name at month m, or def when the field is absent.
func (p Params) At(name string, m int, def float64) float64 {
	s, ok := p[name]
	if !ok || len(s) == 0 {
		return def
	}
	return series.At(s, m)
}

// Int returns field name at month m rounded to the nearest integer.
func (p Params) Int(name string, m int, def int) int {
	return int(math.Round(p.At(name, m, float64(def))))
}

// Flag reports whether a boolean field is set in month 0.
func (p Params) Flag(name string) bool {
	return p.At(name, 0, 0) != 0
}

// Options describe the output an implementation is evaluating.
type Options struct {
	Object      string
	Output      string
	OutputIndex int
	OutputNames []string
	// Channels are the channel names the object's type declares.
	Channels []string
	Months   int
	Params   Params
}

// Result maps channel names, the output alias or DefaultChannel to series.
type Result map[string][]float64

// Func computes one output alias from its routed input series.
type Func func(ctx context.Context, inputs [][]float64, opts Options) (Result, error)

// Registry maps implementation names to functions. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds fn under name. Names are unique.
func (r *Registry) Register(name string, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("function %q is already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Get returns the function registered under name.
func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtins returns a registry with the built-in implementations.
func Builtins() *Registry {
	r := NewRegistry()
	for name, fn := range map[string]Func{
		"scale":      Scale,
		"start":      Start,
		"retention":  Retention,
		"delay":      Delay,
		"sum":        Sum,
		"headcount":  Headcount,
		"growth":     Growth,
		"cumulative": Cumulative,
		"difference": Difference,
		"ratio":      Ratio,
	} {
		_ = r.Register(name, fn)
	}
	return r
}
