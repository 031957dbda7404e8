// Package assumptions turns raw per-field assumption inputs into
// concrete monthly series and keeps them in an immutable Set.
package assumptions

import (
	"fmt"
	"math"

	"github.com/leapstack-labs/leapfm/internal/schema"
	"github.com/leapstack-labs/leapfm/internal/series"
)

// Raw is the user-facing input of one assumption field. Every
// member is optional; Materialize decides which ones apply.
type Raw struct {
	Single    *float64   `json:"single,omitempty" koanf:"single"`
	Bool      *bool      `json:"bool,omitempty" koanf:"bool"`
	Annual    []float64  `json:"annual,omitempty" koanf:"annual"`
	Growth    *float64   `json:"growth,omitempty" koanf:"growth"`
	Monthly   []*float64 `json:"monthly,omitempty" koanf:"monthly"`
	Smoothing bool       `json:"smoothing,omitempty" koanf:"smoothing"`
	Start     *int       `json:"start,omitempty" koanf:"start"`
	End       *int       `json:"end,omitempty" koanf:"end"`
	Seasonal  []float64  `json:"seasonal,omitempty" koanf:"seasonal"`
}

// Field is a materialized assumption: the descriptor, the raw input and
// the derived value. Value is nil for boolean fields, which use Flag.
type Field struct {
	Descriptor schema.FieldDescriptor
	Raw        Raw
	Value      []float64
	Flag       bool
}

// Scalar returns the value at month m, or the flag as 0/1 for booleans.
func (f Field) Scalar(m int) float64 {
	if f.Descriptor.IsBoolean() {
		if f.Flag {
			return 1
		}
		return 0
	}
	return series.At(f.Value, m)
}

// Materialize derives a field's value from its raw input. The
// result depends only on desc, raw and ctx.
//
// Precedence: boolean short-circuit, then growth, else annual (optionally
// smoothed), else single; seasonal multipliers scale that base; monthly
// overrides replace individual months; a date range masks everything
// outside [start, end] last.
func Materialize(desc schema.FieldDescriptor, raw Raw, ctx series.Context) (Field, error) {
	f := Field{Descriptor: desc, Raw: raw}
	if err := checkSupported(desc, raw); err != nil {
		return Field{}, err
	}

	if desc.IsBoolean() {
		f.Flag = desc.DefaultBool()
		if raw.Bool != nil {
			f.Flag = *raw.Bool
		} else if raw.Single != nil {
			f.Flag = *raw.Single != 0
		}
		return f, nil
	}

	n := ctx.Months
	base := desc.DefaultNumber()
	if raw.Single != nil {
		base = *raw.Single
	} else if len(raw.Annual) > 0 && raw.Growth != nil {
		base = raw.Annual[0]
	}

	var v []float64
	switch {
	case desc.Supports.Has(schema.CapGrowth) && raw.Growth != nil:
		if *raw.Growth <= -1 {
			return Field{}, fmt.Errorf("field %q: growth rate must be greater than -100%%, got %g", desc.Name, *raw.Growth)
		}
		monthly := math.Pow(1+*raw.Growth, 1.0/series.MonthsPerYear)
		v = make([]float64, n)
		for m := range v {
			if m == 0 {
				v[m] = base
				continue
			}
			v[m] = v[m-1] * monthly
		}

	case desc.Supports.Has(schema.CapAnnual) && len(raw.Annual) > 0:
		v = annualSeries(raw.Annual, n, raw.Smoothing && desc.Supports.Has(schema.CapSmoothing))

	default:
		v = series.Const(n, base)
	}

	if desc.Supports.Has(schema.CapSeasonal) && len(raw.Seasonal) > 0 {
		for m := range v {
			v[m] *= raw.Seasonal[m%series.MonthsPerYear]
		}
	}

	if desc.Supports.Has(schema.CapMonthly) {
		for m, p := range raw.Monthly {
			if m >= n {
				break
			}
			if p != nil {
				v[m] = *p
			}
		}
	}

	if desc.Supports.Has(schema.CapDateRange) && (raw.Start != nil || raw.End != nil) {
		start, end := 0, n-1
		if raw.Start != nil {
			start = *raw.Start
		}
		if raw.End != nil {
			end = *raw.End
		}
		for m := range v {
			if m < start || m > end {
				v[m] = 0
			}
		}
	}

	f.Value = v
	return f, nil
}

// annualSeries broadcasts yearly values over their months. Years past the
// end of annual repeat its last value. With smoothing, months of year y
// move linearly from annual[y] toward annual[y+1]; the final year of the
// array stays flat.
func annualSeries(annual []float64, n int, smooth bool) []float64 {
	v := make([]float64, n)
	last := len(annual) - 1
	for m := range v {
		y := m / series.MonthsPerYear
		if y > last {
			v[m] = annual[last]
			continue
		}
		v[m] = annual[y]
		if smooth && y < last {
			frac := float64(m%series.MonthsPerYear) / series.MonthsPerYear
			v[m] = annual[y] + (annual[y+1]-annual[y])*frac
		}
	}
	return v
}

func checkSupported(desc schema.FieldDescriptor, raw Raw) error {
	if desc.IsBoolean() {
		return nil
	}
	type use struct {
		used bool
		cap  string
	}
	uses := []use{
		{raw.Single != nil && !desc.Supports.Has(schema.CapGrowth), schema.CapSingle},
		{len(raw.Annual) > 0, schema.CapAnnual},
		{raw.Growth != nil, schema.CapGrowth},
		{len(raw.Monthly) > 0, schema.CapMonthly},
		{raw.Smoothing, schema.CapSmoothing},
		{raw.Start != nil || raw.End != nil, schema.CapDateRange},
		{len(raw.Seasonal) > 0, schema.CapSeasonal},
	}
	for _, u := range uses {
		if u.used && !desc.Supports.Has(u.cap) {
			return fmt.Errorf("field %q does not support %s values", desc.Name, u.cap)
		}
	}
	if len(raw.Seasonal) > 0 && len(raw.Seasonal) != series.MonthsPerYear {
		return fmt.Errorf("field %q: seasonal curve needs %d multipliers, got %d", desc.Name, series.MonthsPerYear, len(raw.Seasonal))
	}
	return nil
}
