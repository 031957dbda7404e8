package ast

import "fmt"

// FanInError reports a multi-output object with more positional inputs
// than outputs, where it is ambiguous which output an input feeds.
type FanInError struct {
	Object  string
	Line    int
	Inputs  int
	Outputs int
}

func (e *FanInError) Error() string {
	return fmt.Sprintf("line %d: object %q declares %d inputs for %d outputs; multi-output objects without spreads need at most one input per output",
		e.Line, e.Object, e.Inputs, e.Outputs)
}

// RouteInputs returns, for every output of n (by index), the indices of the
// args feeding it. The graph builder and the execution engine both call this
// so they always agree on data flow.
//
//   - one output: every arg feeds it
//   - spreads present: a spread-expanded arg feeds the output at its
//     SpreadIndex, any other arg feeds the output at its arg position;
//     indices past the last output go to the last output
//   - no spreads: args are positional and len(args) must not exceed
//     len(outputs)
func RouteInputs(n *ObjectNode) ([][]int, error) {
	outs := len(n.Outputs)
	if outs == 0 {
		return nil, fmt.Errorf("line %d: object %q has no outputs", n.Line, n.Name)
	}
	routes := make([][]int, outs)

	if outs == 1 {
		for i := range n.Args {
			routes[0] = append(routes[0], i)
		}
		return routes, nil
	}

	spread := n.HasSpread()
	if !spread && len(n.Args) > outs {
		return nil, &FanInError{Object: n.Name, Line: n.Line, Inputs: len(n.Args), Outputs: outs}
	}

	for i, a := range n.Args {
		target := i
		if a.IsSpread() {
			target = a.SpreadIndex
		}
		if target >= outs {
			target = outs - 1
		}
		routes[target] = append(routes[target], i)
	}
	return routes, nil
}

// ArgsFor returns the args routed to the output at index out.
func ArgsFor(n *ObjectNode, out int) ([]Arg, error) {
	routes, err := RouteInputs(n)
	if err != nil {
		return nil, err
	}
	if out < 0 || out >= len(routes) {
		return nil, fmt.Errorf("object %q has no output at index %d", n.Name, out)
	}
	args := make([]Arg, 0, len(routes[out]))
	for _, i := range routes[out] {
		args = append(args, n.Args[i])
	}
	return args, nil
}
