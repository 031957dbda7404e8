package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfm/internal/linker"
)

func buildGraph(t *testing.T, src string) (*OutputGraph, error) {
	t.Helper()
	res, err := linker.ParseAndLink(src)
	require.NoError(t, err)
	return BuildOutputGraph(res.File, res.Index)
}

func assertTopological(t *testing.T, og *OutputGraph) {
	t.Helper()
	pos := make(map[string]int, len(og.Order))
	for i, id := range og.Order {
		pos[id] = i
	}
	require.Len(t, pos, len(og.Nodes), "order must contain every node once")
	for consumer, deps := range og.Deps {
		for _, dep := range deps {
			assert.Less(t, pos[dep], pos[consumer], "%s must run before %s", dep, consumer)
		}
	}
}

func TestBuildOutputGraph_ForwardReferences(t *testing.T) {
	og, err := buildGraph(t, `Main:
  Revenue = scale(Customers.active)
  Customers = retention(Leads.val) => active
  Leads = start(10)
`)
	require.NoError(t, err)

	assert.Equal(t, []string{"Revenue", "active", "Leads"}, og.Nodes)
	assert.Equal(t, []string{"Leads", "active", "Revenue"}, og.Order)
	assert.Equal(t, []string{"active"}, og.Deps["Revenue"])
	assert.Equal(t, []string{"active"}, og.Dependents["Leads"])
	assertTopological(t, og)
}

func TestBuildOutputGraph_ObjectReference(t *testing.T) {
	og, err := buildGraph(t, `Main:
  Split = start(1) => north, south
  Total = sum(Split.val)
`)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"north", "south"}, og.Deps["Total"])
	assertTopological(t, og)
}

func TestBuildOutputGraph_RoutedEdges(t *testing.T) {
	og, err := buildGraph(t, `Main:
  Regions = start(1) => north, south
  Price = start(2)
  Sales = scale(...Regions.val) => n_sales, s_sales
  Pair = scale(Price.val, Regions.val) => first, second
`)
	require.NoError(t, err)

	assert.Equal(t, []string{"north"}, og.Deps["n_sales"])
	assert.Equal(t, []string{"south"}, og.Deps["s_sales"])
	assert.Equal(t, []string{"Price"}, og.Deps["first"])
	assert.ElementsMatch(t, []string{"north", "south"}, og.Deps["second"])
	assertTopological(t, og)
}

func TestBuildOutputGraph_Cycle(t *testing.T) {
	_, err := buildGraph(t, `Main:
  A = scale(B.val)
  B = scale(A.val)
`)
	require.Error(t, err)

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, "circular dependency: A -> B -> A", err.Error())
}

func TestOutputGraph_UpstreamAndLevels(t *testing.T) {
	og, err := buildGraph(t, `Main:
  Leads = start(10)
  Other = start(3)
  Customers = retention(Leads.val) => active
  Revenue = scale(Customers.active)
`)
	require.NoError(t, err)

	assert.Equal(t, []string{"Leads", "active", "Revenue"}, og.Upstream("Revenue"))

	levels, err := og.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Leads", "Other"}, {"active"}, {"Revenue"}}, levels)
}

func TestOutputGraph_FocusAndEnds(t *testing.T) {
	og, err := buildGraph(t, `Main:
  Leads = start(10)
  Other = start(3)
  Customers = retention(Leads.val) => active
  Revenue = scale(Customers.active)
  Costs = scale(Other.val)
`)
	require.NoError(t, err)

	assert.Equal(t, []string{"active", "Revenue"}, og.Downstream("active"))
	assert.Equal(t, []string{"Leads", "Other"}, og.Sources())
	assert.Equal(t, []string{"Revenue", "Costs"}, og.Sinks())

	focused, err := og.Focus("active")
	require.NoError(t, err)
	assert.Equal(t, []string{"Leads", "active", "Revenue"}, focused.Order)
	assert.Equal(t, []string{"Leads"}, focused.Deps["active"])
	assert.Equal(t, 2, focused.Graph.EdgeCount())

	_, err = og.Focus("Nope")
	assert.Error(t, err)
}
