package graph

import (
	"cmp"
	"slices"
)

// Cycles returns all strongly connected components with more than one
// node, plus single nodes with a self-loop, found via Tarjan's algorithm.
// Each cycle is sorted, and cycles are ordered by their smallest node.
func (g *Graph[K]) Cycles() [][]K {
	var (
		index    int
		stack    []K
		onStack  = make(map[K]bool)
		indices  = make(map[K]int)
		lowlinks = make(map[K]int)
		sccs     [][]K
	)

	var strongConnect func(n K)
	strongConnect = func(n K) {
		indices[n] = index
		lowlinks[n] = index
		index++
		stack = append(stack, n)
		onStack[n] = true

		for _, dep := range g.edges[n] {
			if _, visited := indices[dep]; !visited {
				strongConnect(dep)
				lowlinks[n] = min(lowlinks[n], lowlinks[dep])
			} else if onStack[dep] {
				lowlinks[n] = min(lowlinks[n], indices[dep])
			}
		}

		if lowlinks[n] == indices[n] {
			var scc []K
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == n {
					break
				}
			}
			if len(scc) > 1 || slices.Contains(g.edges[scc[0]], scc[0]) {
				slices.Sort(scc)
				sccs = append(sccs, scc)
			}
		}
	}

	for _, n := range g.sorted() {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}

	slices.SortFunc(sccs, func(a, b []K) int {
		return cmp.Compare(a[0], b[0])
	})
	return sccs
}

// HasCycles reports whether the graph contains any cycles.
func (g *Graph[K]) HasCycles() bool {
	return len(g.Cycles()) > 0
}
