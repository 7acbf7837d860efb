// Package graph provides the dependency graph used to check definitions
// for cycles and reachability.
package graph

import (
	"cmp"
	"slices"
)

// Graph is a directed graph with forward edges. Node keys are ordered so
// that traversal results are deterministic.
type Graph[K cmp.Ordered] struct {
	nodes map[K]struct{}
	edges map[K][]K
}

// New returns a graph with no nodes or edges.
func New[K cmp.Ordered]() *Graph[K] {
	return &Graph[K]{
		nodes: make(map[K]struct{}),
		edges: make(map[K][]K),
	}
}

// AddNode registers a node. Duplicate calls are no-ops.
func (g *Graph[K]) AddNode(n K) {
	g.nodes[n] = struct{}{}
}

// AddEdge records that "from" depends on "to". Missing nodes are created
// implicitly. Duplicate edges are ignored.
func (g *Graph[K]) AddEdge(from, to K) {
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}

	if slices.Contains(g.edges[from], to) {
		return
	}
	g.edges[from] = append(g.edges[from], to)
}

// Dependencies returns the nodes that n depends on (forward edges).
func (g *Graph[K]) Dependencies(n K) []K {
	return g.edges[n]
}

// HasNode reports whether the node exists in the graph.
func (g *Graph[K]) HasNode(n K) bool {
	_, ok := g.nodes[n]
	return ok
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int {
	return len(g.nodes)
}

// sorted returns all nodes in ascending order.
func (g *Graph[K]) sorted() []K {
	out := make([]K, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Reachable returns every node reachable from the roots, roots included.
// Roots that are not in the graph are still reported as reached.
func (g *Graph[K]) Reachable(roots ...K) map[K]bool {
	seen := make(map[K]bool, len(roots))
	queue := make([]K, 0, len(roots))
	for _, r := range roots {
		if !seen[r] {
			seen[r] = true
			queue = append(queue, r)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, dep := range g.edges[n] {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return seen
}
