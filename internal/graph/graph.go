// Package graph orders keyed nodes so that every node comes after the nodes it depends on.
package graph

import "sort"

// Graph is a directed dependency graph over string keys. Nodes keep their
// insertion order, which is used both for tie breaking and for cycle breaking.
type Graph struct {
	position map[string]int
	order    []string
	adjList  map[string][]string // dependency -> dependents
	inDegree map[string]int
	edges    map[[2]string]bool
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		position: make(map[string]int),
		adjList:  make(map[string][]string),
		inDegree: make(map[string]int),
		edges:    make(map[[2]string]bool),
	}
}

// AddNode adds key to the graph. Adding an existing key is a no-op.
func (g *Graph) AddNode(key string) {
	if _, exists := g.position[key]; exists {
		return
	}
	g.position[key] = len(g.order)
	g.order = append(g.order, key)
	g.inDegree[key] = 0
}

// Has reports whether key is a node of the graph
func (g *Graph) Has(key string) bool {
	_, ok := g.position[key]
	return ok
}

// AddEdge records that dependent must come after dependency. Both nodes must
// already exist; self edges and duplicates are ignored.
func (g *Graph) AddEdge(dependency, dependent string) {
	if dependency == dependent || !g.Has(dependency) || !g.Has(dependent) {
		return
	}
	edge := [2]string{dependency, dependent}
	if g.edges[edge] {
		return
	}
	g.edges[edge] = true
	g.adjList[dependency] = append(g.adjList[dependency], dependent)
	g.inDegree[dependent]++
}

// Dependents returns the direct dependents of key in insertion order
func (g *Graph) Dependents(key string) []string {
	deps := append([]string(nil), g.adjList[key]...)
	g.sortByPosition(deps)
	return deps
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.order)
}

// Sort returns the nodes in dependency order using Kahn's algorithm.
// Independent nodes keep their insertion order. When a cycle blocks progress
// the earliest unprocessed node is released, so the result always contains
// every node exactly once.
func (g *Graph) Sort() []string {
	if len(g.order) <= 1 {
		return append([]string(nil), g.order...)
	}

	inDegree := make(map[string]int, len(g.inDegree))
	for key, degree := range g.inDegree {
		inDegree[key] = degree
	}

	var queue []string
	result := make([]string, 0, len(g.order))
	processed := make(map[string]bool, len(g.order))

	// Seed queue with nodes that have no incoming edges
	for _, key := range g.order {
		if inDegree[key] == 0 {
			queue = append(queue, key)
		}
	}

	for len(result) < len(g.order) {
		if len(queue) == 0 {
			// Cycle detected: release the next unprocessed node in insertion order.
			// The processed map keeps it from being emitted twice once its
			// remaining dependencies are visited.
			next := g.nextInOrder(processed)
			if next == "" {
				break
			}
			queue = append(queue, next)
			inDegree[next] = 0
		}

		current := queue[0]
		queue = queue[1:]
		if processed[current] {
			continue
		}
		processed[current] = true
		result = append(result, current)

		for _, neighbor := range g.Dependents(current) {
			inDegree[neighbor]--
			if inDegree[neighbor] <= 0 && !processed[neighbor] {
				queue = append(queue, neighbor)
				g.sortByPosition(queue)
			}
		}
	}

	return result
}

func (g *Graph) nextInOrder(processed map[string]bool) string {
	for _, key := range g.order {
		if !processed[key] {
			return key
		}
	}
	return ""
}

func (g *Graph) sortByPosition(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		return g.position[keys[i]] < g.position[keys[j]]
	})
}
