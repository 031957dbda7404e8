package functions

import (
	"context"
	"fmt"
	"math"

	"github.com/leapstack-labs/leapfm/internal/series"
)

// Scale multiplies the summed input by factor from startMonth on.
func Scale(_ context.Context, inputs [][]float64, opts Options) (Result, error) {
	in := series.Sum(opts.Months, inputs...)
	start := opts.Params.Int("startMonth", 0, 0)
	out := make([]float64, opts.Months)
	for m := start; m < opts.Months; m++ {
		if m < 0 {
			continue
		}
		out[m] = in[m] * opts.Params.At("factor", m, 1)
	}
	return Result{DefaultChannel: out}, nil
}

// Start emits amount from startMonth on. It has no inputs.
func Start(_ context.Context, _ [][]float64, opts Options) (Result, error) {
	start := opts.Params.Int("startMonth", 0, 0)
	out := make([]float64, opts.Months)
	for m := range out {
		if m >= start {
			out[m] = opts.Params.At("amount", m, 0)
		}
	}
	return Result{DefaultChannel: out}, nil
}

// Retention tracks an active population fed by additions and reduced by a
// monthly churn rate. Everything is zero before startMonth.
func Retention(_ context.Context, inputs [][]float64, opts Options) (Result, error) {
	n := opts.Months
	in := series.Sum(n, inputs...)
	start := opts.Params.Int("startMonth", 0, 0)

	active := make([]float64, n)
	added := make([]float64, n)
	churned := make([]float64, n)
	prev := 0.0
	for m := 0; m < n; m++ {
		if m < start {
			prev = 0
			continue
		}
		churn := opts.Params.At("churn", m, 0)
		added[m] = in[m]
		churned[m] = prev * churn
		active[m] = math.Max(0, prev+added[m]-churned[m])
		prev = active[m]
	}
	return Result{"active": active, "added": added, "churned": churned}, nil
}

// Delay shifts each month's input forward by delayMonths, which may vary
// by source month. Shifts past the horizon are dropped; negative delays
// count as zero.
func Delay(_ context.Context, inputs [][]float64, opts Options) (Result, error) {
	n := opts.Months
	in := series.Sum(n, inputs...)
	out := make([]float64, n)
	for m, v := range in {
		d := opts.Params.Int("delayMonths", m, 0)
		if d < 0 {
			d = 0
		}
		if t := m + d; t < n {
			out[t] += v
		}
	}
	return Result{DefaultChannel: out}, nil
}

// Sum adds all inputs elementwise.
func Sum(_ context.Context, inputs [][]float64, opts Options) (Result, error) {
	return Result{DefaultChannel: series.Sum(opts.Months, inputs...)}, nil
}

// Headcount derives heads from activity and productivity, and their cost
// from salary.
func Headcount(_ context.Context, inputs [][]float64, opts Options) (Result, error) {
	n := opts.Months
	activity := series.Sum(n, inputs...)
	heads := make([]float64, n)
	cost := make([]float64, n)
	for m := range heads {
		if p := opts.Params.At("productivity", m, 1); p != 0 {
			heads[m] = activity[m] / p
		}
		cost[m] = heads[m] * opts.Params.At("salary", m, 0)
	}
	return Result{"heads": heads, "cost": cost}, nil
}

// Growth compounds a balance that starts at initial and receives the
// summed input each month. rate is annual.
func Growth(_ context.Context, inputs [][]float64, opts Options) (Result, error) {
	n := opts.Months
	in := series.Sum(n, inputs...)
	out := make([]float64, n)
	balance := opts.Params.At("initial", 0, 0)
	for m := range out {
		if m > 0 {
			rate := opts.Params.At("rate", m, 0)
			if rate <= -1 {
				return nil, fmt.Errorf("growth rate must be greater than -100%%, got %g in month %d", rate, m)
			}
			balance *= math.Pow(1+rate, 1.0/series.MonthsPerYear)
		}
		balance += in[m]
		out[m] = balance
	}
	return Result{DefaultChannel: out}, nil
}

// Cumulative returns the running total of the summed input.
func Cumulative(_ context.Context, inputs [][]float64, opts Options) (Result, error) {
	return Result{DefaultChannel: series.Cumsum(series.Sum(opts.Months, inputs...))}, nil
}

// Difference subtracts every other input from the first.
func Difference(_ context.Context, inputs [][]float64, opts Options) (Result, error) {
	out := make([]float64, opts.Months)
	for i, in := range inputs {
		sign := -1.0
		if i == 0 {
			sign = 1
		}
		series.AddInto(out, in, sign)
	}
	return Result{DefaultChannel: out}, nil
}

// Ratio divides the first input by the second, 0 where the second is 0.
func Ratio(_ context.Context, inputs [][]float64, opts Options) (Result, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("ratio needs exactly 2 inputs, got %d", len(inputs))
	}
	out := make([]float64, opts.Months)
	for m := range out {
		if d := series.At(inputs[1], m); d != 0 {
			out[m] = series.At(inputs[0], m) / d
		}
	}
	return Result{DefaultChannel: out}, nil
}
