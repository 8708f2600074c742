package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestGraph(nodes []string, edges [][2]string) *Graph {
	g := New()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
	return g
}

func TestSortHandlesCycles(t *testing.T) {
	g := newTestGraph(
		[]string{"a", "b", "c", "x", "y", "z"},
		[][2]string{
			{"a", "b"},
			{"b", "c"},
			{"y", "x"}, // cycle x <-> y
			{"x", "y"},
			{"y", "z"}, // depends on the cycle
		},
	)

	sorted := g.Sort()
	if len(sorted) != g.Len() {
		t.Fatalf("expected %d nodes, got %d", g.Len(), len(sorted))
	}

	order := make(map[string]int, len(sorted))
	for idx, key := range sorted {
		order[key] = idx
	}

	assertBefore := func(first, second string) {
		if order[first] >= order[second] {
			t.Fatalf("expected %s to appear before %s in %v", first, second, sorted)
		}
	}

	assertBefore("a", "b")
	assertBefore("b", "c")
	assertBefore("y", "z")

	// Cycle members are released in insertion order
	assertBefore("x", "y")
}

func TestSortKeepsInsertionOrderWithoutEdges(t *testing.T) {
	g := newTestGraph([]string{"z", "a", "m", "b"}, nil)

	if diff := cmp.Diff([]string{"z", "a", "m", "b"}, g.Sort()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSortMovesDependencyFirst(t *testing.T) {
	// trigger registered before the function it calls
	g := newTestGraph(
		[]string{"trigger", "table", "function"},
		[][2]string{{"function", "trigger"}, {"table", "trigger"}},
	)

	if diff := cmp.Diff([]string{"table", "function", "trigger"}, g.Sort()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestAddEdgeIgnoresUnknownAndDuplicateEdges(t *testing.T) {
	g := newTestGraph([]string{"a", "b"}, [][2]string{
		{"a", "b"},
		{"a", "b"},
		{"a", "a"},
		{"missing", "b"},
	})

	if diff := cmp.Diff([]string{"b"}, g.Dependents("a")); diff != "" {
		t.Errorf("dependents mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, g.Sort()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}
