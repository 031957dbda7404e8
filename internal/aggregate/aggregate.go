// Package aggregate rolls computed channel series up into financial
// statement line items.
//
// Channels are first accumulated into the line items their schema
// destinations name. Line items are then evaluated deepest code first so
// that children are final before the parents and formulas reading them.
package aggregate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapfm/internal/ast"
	"github.com/leapstack-labs/leapfm/internal/schema"
	"github.com/leapstack-labs/leapfm/internal/series"
)

// Contributor labels one channel feeding a line item.
type Contributor struct {
	ObjectType string `json:"objectType"`
	Alias      string `json:"alias"`
	Channel    string `json:"channel"`
}

// Result is the aggregated view of a run.
type Result struct {
	// LineItems maps line item code to its values, one per period.
	LineItems map[string][]float64 `json:"lineItems"`
	// Contributors maps line item code to the channels accumulated into it.
	Contributors map[string][]Contributor `json:"contributors"`
	Statements   []schema.Statement       `json:"-"`
	// Periods is the length of every series: months, or years once
	// annualized.
	Periods int  `json:"periods"`
	Annual  bool `json:"annual"`
}

// Value returns the series of a line item.
func (r *Result) Value(code string) ([]float64, bool) {
	v, ok := r.LineItems[code]
	return v, ok
}

// FormulaError reports a line item formula that cannot be evaluated.
type FormulaError struct {
	Code    string
	Formula string
	Msg     string
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("line item %q: formula %q: %s", e.Code, e.Formula, e.Msg)
}

// Aggregate accumulates store channels into statements. When statements is
// nil the schema's statements are used. Missing destinations are logged and
// skipped.
func Aggregate(store map[string][]float64, objects []*ast.ObjectNode, sch *schema.Schema, statements []schema.Statement, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if statements == nil && sch != nil {
		statements = sch.Statements
	}

	a := &aggregator{
		months:       storeMonths(store),
		items:        make(map[string]schema.LineItem),
		acc:          make(map[string][]float64),
		values:       make(map[string][]float64),
		visiting:     make(map[string]bool),
		contributors: make(map[string][]Contributor),
		logger:       logger,
	}
	for _, st := range statements {
		for _, li := range st.LineItems {
			if _, dup := a.items[li.Code]; dup {
				return nil, fmt.Errorf("line item %q is declared by more than one statement", li.Code)
			}
			a.items[li.Code] = li
			a.order = append(a.order, li.Code)
		}
	}

	a.accumulate(store, objects, sch)

	byDepth := append([]string(nil), a.order...)
	sort.SliceStable(byDepth, func(i, j int) bool {
		return a.items[byDepth[i]].Depth() > a.items[byDepth[j]].Depth()
	})
	for _, code := range byDepth {
		if _, err := a.eval(code); err != nil {
			return nil, err
		}
	}

	logger.Debug("aggregated statements", "statements", len(statements), "line_items", len(a.values), "months", a.months)
	return &Result{
		LineItems:    a.values,
		Contributors: a.contributors,
		Statements:   statements,
		Periods:      a.months,
	}, nil
}

type aggregator struct {
	months       int
	items        map[string]schema.LineItem
	order        []string
	acc          map[string][]float64
	values       map[string][]float64
	visiting     map[string]bool
	contributors map[string][]Contributor
	logger       *slog.Logger
}

func storeMonths(store map[string][]float64) int {
	n := 0
	for _, s := range store {
		if len(s) > n {
			n = len(s)
		}
	}
	return n
}

// accumulate adds every destination-bearing channel into its line items.
func (a *aggregator) accumulate(store map[string][]float64, objects []*ast.ObjectNode, sch *schema.Schema) {
	if sch == nil {
		return
	}
	for _, node := range objects {
		td, ok := sch.Type(node.FnName)
		if !ok {
			continue
		}
		for _, alias := range node.Outputs {
			for _, ch := range td.ChannelNames() {
				dests := td.Channels[ch].Destinations
				if len(dests) == 0 {
					continue
				}
				s, ok := store[alias+"."+ch]
				if !ok {
					continue
				}
				for _, dest := range dests {
					if _, ok := a.items[dest]; !ok {
						a.logger.Warn("destination line item not found", "alias", alias, "channel", ch, "destination", dest)
						continue
					}
					if a.acc[dest] == nil {
						a.acc[dest] = make([]float64, a.months)
					}
					series.AddInto(a.acc[dest], s, 1)
					a.contributors[dest] = append(a.contributors[dest], Contributor{ObjectType: td.Name, Alias: alias, Channel: ch})
				}
			}
		}
	}
}

// children returns the declared children of code, or the line items one
// path segment below it.
func (a *aggregator) children(code string) []string {
	if li := a.items[code]; len(li.Children) > 0 {
		return li.Children
	}
	return a.directChildren(code)
}

func (a *aggregator) directChildren(prefix string) []string {
	var out []string
	depth := strings.Count(prefix, ".") + 1
	for _, code := range a.order {
		if strings.HasPrefix(code, prefix+".") && strings.Count(code, ".") == depth {
			out = append(out, code)
		}
	}
	return out
}

// eval computes a line item, recursing into the items it reads.
func (a *aggregator) eval(code string) ([]float64, error) {
	if v, ok := a.values[code]; ok {
		return v, nil
	}
	li, ok := a.items[code]
	if !ok {
		a.logger.Warn("formula references unknown line item", "code", code)
		return make([]float64, a.months), nil
	}
	if a.visiting[code] {
		return nil, &FormulaError{Code: code, Formula: li.Formula, Msg: "circular line item reference"}
	}
	a.visiting[code] = true
	defer delete(a.visiting, code)

	v, err := a.base(li)
	if err != nil {
		return nil, err
	}
	if li.Cumulative && !isCumsum(li.Formula) {
		v = series.Cumsum(v)
	}
	a.values[code] = v
	return v, nil
}

func (a *aggregator) base(li schema.LineItem) ([]float64, error) {
	formula := strings.TrimSpace(li.Formula)
	if formula == "" {
		out := make([]float64, a.months)
		series.AddInto(out, a.acc[li.Code], 1)
		for _, child := range a.children(li.Code) {
			cv, err := a.eval(child)
			if err != nil {
				return nil, err
			}
			series.AddInto(out, cv, a.items[child].Sign)
		}
		return out, nil
	}

	f, err := parseFormula(formula)
	if err != nil {
		return nil, &FormulaError{Code: li.Code, Formula: li.Formula, Msg: err.Error()}
	}

	switch f.kind {
	case formulaSum:
		out := make([]float64, a.months)
		for _, child := range a.directChildren(f.target) {
			if !a.isLeaf(child) {
				continue
			}
			cv, err := a.eval(child)
			if err != nil {
				return nil, err
			}
			series.AddInto(out, cv, 1)
		}
		return out, nil

	case formulaCumsum:
		v, err := a.eval(f.target)
		if err != nil {
			return nil, err
		}
		return series.Cumsum(v), nil

	default:
		out := make([]float64, a.months)
		for _, t := range f.terms {
			if t.code == "" {
				series.AddInto(out, series.Const(a.months, t.number), t.sign)
				continue
			}
			v, err := a.eval(t.code)
			if err != nil {
				return nil, err
			}
			series.AddInto(out, v, t.sign)
		}
		return out, nil
	}
}

// isLeaf reports whether code has neither a formula nor children.
func (a *aggregator) isLeaf(code string) bool {
	li := a.items[code]
	return strings.TrimSpace(li.Formula) == "" && len(a.children(code)) == 0
}

// Annualize folds a monthly result into years. Running totals take the
// year-end value; everything else is summed.
func Annualize(r *Result, years int) *Result {
	stock := make(map[string]bool)
	for _, st := range r.Statements {
		for _, li := range st.LineItems {
			if li.Cumulative || isCumsum(li.Formula) {
				stock[li.Code] = true
			}
		}
	}

	out := &Result{
		LineItems:    make(map[string][]float64, len(r.LineItems)),
		Contributors: r.Contributors,
		Statements:   r.Statements,
		Periods:      years,
		Annual:       true,
	}
	for code, v := range r.LineItems {
		out.LineItems[code] = series.Annual(v, years, stock[code])
	}
	return out
}
