// Package graph answers structural queries over the merged code graph:
// O(1) neighbor lookup, bounded-radius module neighborhoods, and
// bounded-radius symbol slices.
package graph

import (
	"sort"

	"archo/internal/facts"
)

// Adjacency is the bidirectional lookup structure built from a flat module
// edge list. Every module referenced by any edge is a key in both maps, even
// when its neighbor set is empty.
type Adjacency struct {
	Outgoing map[string]map[string]struct{}
	Incoming map[string]map[string]struct{}
	// Weights is keyed "from->to" with the aggregated edge weight.
	Weights map[string]int
}

// EdgeKey renders the weight-map key for a directed module edge.
func EdgeKey(from, to string) string {
	return from + "->" + to
}

// BuildAdjacency converts module edges into neighbor sets. Duplicate edges
// are aggregated into one weight entry.
func BuildAdjacency(edges []facts.ModuleEdge) *Adjacency {
	adj := &Adjacency{
		Outgoing: make(map[string]map[string]struct{}),
		Incoming: make(map[string]map[string]struct{}),
		Weights:  make(map[string]int),
	}

	ensure := func(module string) {
		if _, ok := adj.Outgoing[module]; !ok {
			adj.Outgoing[module] = make(map[string]struct{})
		}
		if _, ok := adj.Incoming[module]; !ok {
			adj.Incoming[module] = make(map[string]struct{})
		}
	}

	for _, e := range edges {
		ensure(e.FromModule)
		ensure(e.ToModule)
		adj.Outgoing[e.FromModule][e.ToModule] = struct{}{}
		adj.Incoming[e.ToModule][e.FromModule] = struct{}{}
		adj.Weights[EdgeKey(e.FromModule, e.ToModule)] += e.Weight
	}

	return adj
}

// Neighbors returns the undirected neighbor set of a module, sorted. Both
// callers and callees count: neighborhoods express structural proximity, not
// dependency direction.
func (a *Adjacency) Neighbors(module string) []string {
	seen := make(map[string]struct{})
	for n := range a.Outgoing[module] {
		seen[n] = struct{}{}
	}
	for n := range a.Incoming[module] {
		seen[n] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Modules returns every module the adjacency knows about, sorted.
func (a *Adjacency) Modules() []string {
	out := make([]string, 0, len(a.Outgoing))
	for m := range a.Outgoing {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
