// Package series holds the model timeline and small helpers over monthly
// numeric series shared by the materializer, the function registry, the
// execution engine and the aggregation engine.
package series

import (
	"fmt"
	"math"
)

// MonthsPerYear is the number of months in a model year.
const MonthsPerYear = 12

// Context is the timeline of a model run.
type Context struct {
	Months int `json:"months" koanf:"months"`
	Years  int `json:"years" koanf:"years"`
}

// NewContext returns a context covering the given number of years.
func NewContext(years int) Context {
	return Context{Months: years * MonthsPerYear, Years: years}
}

// Validate checks the timeline bounds.
func (c Context) Validate() error {
	if c.Months < 1 {
		return fmt.Errorf("months must be at least 1, got %d", c.Months)
	}
	if c.Years < 1 {
		return fmt.Errorf("years must be at least 1, got %d", c.Years)
	}
	return nil
}

// Zeros returns a zero series of n months.
func Zeros(n int) []float64 {
	return make([]float64, n)
}

// Const returns a series of n months all equal to v.
func Const(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Clone copies s.
func Clone(s []float64) []float64 {
	if s == nil {
		return nil
	}
	return append([]float64(nil), s...)
}

// Sum adds series elementwise into a new n-month series. Shorter inputs
// contribute zeros past their end.
func Sum(n int, in ...[]float64) []float64 {
	out := make([]float64, n)
	for _, s := range in {
		AddInto(out, s, 1)
	}
	return out
}

// AddInto adds sign*src into dst in place.
func AddInto(dst, src []float64, sign float64) {
	for i := range dst {
		if i < len(src) {
			dst[i] += sign * src[i]
		}
	}
}

// Cumsum returns the running total of s.
func Cumsum(s []float64) []float64 {
	out := make([]float64, len(s))
	total := 0.0
	for i, v := range s {
		total += v
		out[i] = total
	}
	return out
}

// At returns s[m], or 0 when m is out of range.
func At(s []float64, m int) float64 {
	if m < 0 || m >= len(s) {
		return 0
	}
	return s[m]
}

// Annual folds a monthly series into years. Flows are summed; stocks take
// the last month of each year.
func Annual(s []float64, years int, stock bool) []float64 {
	out := make([]float64, years)
	for y := 0; y < years; y++ {
		start := y * MonthsPerYear
		if start >= len(s) {
			break
		}
		end := int(math.Min(float64(start+MonthsPerYear), float64(len(s))))
		if stock {
			out[y] = s[end-1]
			continue
		}
		for m := start; m < end; m++ {
			out[y] += s[m]
		}
	}
	return out
}

// Overrides pins individual months of computed channels:
// alias → channel → month → value.
type Overrides map[string]map[string]map[int]float64

// Set returns a copy of o with one override added. Use Add to build a
// map in place.
func (o Overrides) Set(alias, channel string, month int, value float64) Overrides {
	out := o.Clone()
	out.Add(alias, channel, month, value)
	return out
}

// Clone returns a deep copy of o.
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	out.AddAll(o)
	return out
}

// Add pins one month in place. o must be non-nil.
func (o Overrides) Add(alias, channel string, month int, value float64) {
	chans := o[alias]
	if chans == nil {
		chans = make(map[string]map[int]float64)
		o[alias] = chans
	}
	months := chans[channel]
	if months == nil {
		months = make(map[int]float64)
		chans[channel] = months
	}
	months[month] = value
}

// AddAll layers every override of other over o in place.
func (o Overrides) AddAll(other Overrides) {
	for alias, chans := range other {
		for ch, months := range chans {
			for m, v := range months {
				o.Add(alias, ch, m, v)
			}
		}
	}
}

// Apply returns s with the overrides for alias/channel written over it.
// Months outside the series are ignored.
func (o Overrides) Apply(alias, channel string, s []float64) []float64 {
	months := o[alias][channel]
	if len(months) == 0 {
		return s
	}
	out := Clone(s)
	for m, v := range months {
		if m >= 0 && m < len(out) {
			out[m] = v
		}
	}
	return out
}
