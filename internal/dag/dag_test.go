package dag

import (
	"errors"
	"reflect"
	"testing"
)

func chain(ids ...string) *Graph {
	g := NewGraph()
	for _, id := range ids {
		g.AddNode(id, nil)
	}
	for i := 1; i < len(ids); i++ {
		_ = g.AddEdge(ids[i-1], ids[i])
	}
	return g
}

func ids(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := chain("leads", "active", "revenue")

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}

	// duplicates are ignored
	_ = g.AddEdge("leads", "active")
	if g.EdgeCount() != 2 {
		t.Errorf("expected duplicate edge to be ignored, got %d edges", g.EdgeCount())
	}

	g.AddNode("leads", "payload")
	if n, _ := g.GetNode("leads"); n.Data != "payload" {
		t.Errorf("expected data to be replaced, got %v", n.Data)
	}
	if got := g.IDs(); !reflect.DeepEqual(got, []string{"leads", "active", "revenue"}) {
		t.Errorf("re-adding a node must keep its position, got %v", got)
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	if err := g.AddEdge("a", "nonexistent"); err == nil {
		t.Error("expected error for nonexistent child node")
	}
	if err := g.AddEdge("nonexistent", "a"); err == nil {
		t.Error("expected error for nonexistent parent node")
	}
}

func TestGraph_HasCycle(t *testing.T) {
	g := chain("a", "b", "c")
	if hasCycle, path := g.HasCycle(); hasCycle {
		t.Errorf("expected no cycle, but found: %v", path)
	}

	_ = g.AddEdge("c", "a")
	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected cycle to be detected")
	}
	if want := []string{"a", "b", "c", "a"}; !reflect.DeepEqual(path, want) {
		t.Errorf("expected path %v, got %v", want, path)
	}
}

func TestGraph_SelfLoopIsCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	if err := g.AddEdge("a", "a"); err != nil {
		t.Fatalf("self-loop should be accepted: %v", err)
	}

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %v", err)
	}
	if cycleErr.Error() != "circular dependency: a -> a" {
		t.Errorf("unexpected message %q", cycleErr.Error())
	}
}

func TestGraph_TopologicalSort_Diamond(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"d", "b", "c", "a"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "d")
	_ = g.AddEdge("c", "d")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}
	// b before c because b was added first
	if got := ids(sorted); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("unexpected order %v", got)
	}
}

func TestGraph_TopologicalSort_StableByInsertion(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"z", "y", "x", "w"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("w", "y")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}
	if got := ids(sorted); !reflect.DeepEqual(got, []string{"z", "x", "w", "y"}) {
		t.Errorf("unexpected order %v", got)
	}
}

func TestGraph_TopologicalSort_WithCycle(t *testing.T) {
	g := chain("a", "b")
	_ = g.AddEdge("b", "a")

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %v", err)
	}
	if len(cycleErr.Path) != 3 || cycleErr.Path[0] != cycleErr.Path[2] {
		t.Errorf("expected closed loop, got %v", cycleErr.Path)
	}
}

func TestGraph_GetExecutionLevels(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"leads", "price", "active", "churned", "revenue"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("leads", "active")
	_ = g.AddEdge("leads", "churned")
	_ = g.AddEdge("active", "revenue")
	_ = g.AddEdge("price", "revenue")

	levels, err := g.GetExecutionLevels()
	if err != nil {
		t.Fatalf("failed to get levels: %v", err)
	}
	want := [][]string{{"leads", "price"}, {"active", "churned"}, {"revenue"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("expected %v, got %v", want, levels)
	}

	empty, err := NewGraph().GetExecutionLevels()
	if err != nil || len(empty) != 0 {
		t.Errorf("expected no levels for empty graph, got %v, %v", empty, err)
	}
}

func TestGraph_AffectedAndUpstream(t *testing.T) {
	g := chain("a", "b", "c")
	g.AddNode("d", nil)

	if got := g.GetAffectedNodes([]string{"a"}); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("unexpected affected nodes %v", got)
	}
	if got := g.GetUpstreamNodes("c"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("unexpected upstream nodes %v", got)
	}
}

func TestGraph_RootsAndLeaves(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "c")

	if roots := g.GetRoots(); !reflect.DeepEqual(roots, []string{"a", "b"}) {
		t.Errorf("unexpected roots %v", roots)
	}
	if leaves := g.GetLeaves(); !reflect.DeepEqual(leaves, []string{"c"}) {
		t.Errorf("unexpected leaves %v", leaves)
	}
}

func TestGraph_Subgraph(t *testing.T) {
	g := chain("a", "b", "c", "d")

	sub := g.Subgraph([]string{"c", "b"})
	if sub.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", sub.NodeCount())
	}
	if sub.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", sub.EdgeCount())
	}
	if got := sub.IDs(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("subgraph should keep the parent's order, got %v", got)
	}
}
