package graph

import (
	"sort"

	"archo/internal/facts"
)

// SymbolSlice is the bounded-radius symbol subgraph around one symbol. Edges
// are included only when both endpoints made it into the slice.
type SymbolSlice struct {
	Root       string           `json:"root"`
	FoldRadius int              `json:"foldRadius"`
	Symbols    []SliceSymbol    `json:"symbols"`
	Calls      []facts.CallEdge `json:"calls"`
}

// SliceSymbol is a symbol in a slice with its BFS distance from the root.
// Symbols reachable through call edges but missing from the symbol table
// still appear, carrying only their id.
type SliceSymbol struct {
	ID       string       `json:"id"`
	Distance int          `json:"distance"`
	Symbol   facts.Symbol `json:"symbol,omitempty"`
	Known    bool         `json:"known"`
}

// SliceCallGraph extracts the symbols within radius hops of symbolID over the
// call graph, expanding undirected. Radius 0 returns exactly the root, even
// when the graph has never seen it.
func SliceCallGraph(symbolID string, g facts.CodeGraph, radius int) *SymbolSlice {
	outgoing := make(map[string][]string)
	incoming := make(map[string][]string)
	for _, c := range g.Calls {
		outgoing[c.FromSymbolID] = append(outgoing[c.FromSymbolID], c.ToSymbolID)
		incoming[c.ToSymbolID] = append(incoming[c.ToSymbolID], c.FromSymbolID)
	}

	distance := map[string]int{symbolID: 0}
	frontier := []string{symbolID}
	for depth := 1; depth <= radius && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, neighbor := range append(outgoing[id], incoming[id]...) {
				if _, seen := distance[neighbor]; seen {
					continue
				}
				distance[neighbor] = depth
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	byID := make(map[string]facts.Symbol, len(g.Symbols))
	for _, s := range g.Symbols {
		byID[s.ID] = s
	}

	ids := make([]string, 0, len(distance))
	for id := range distance {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	slice := &SymbolSlice{
		Root:       symbolID,
		FoldRadius: radius,
		Symbols:    make([]SliceSymbol, 0, len(ids)),
	}
	for _, id := range ids {
		entry := SliceSymbol{ID: id, Distance: distance[id]}
		if sym, ok := byID[id]; ok {
			entry.Symbol = sym
			entry.Known = true
		}
		slice.Symbols = append(slice.Symbols, entry)
	}

	for _, c := range g.Calls {
		_, fromIn := distance[c.FromSymbolID]
		_, toIn := distance[c.ToSymbolID]
		if fromIn && toIn {
			slice.Calls = append(slice.Calls, c)
		}
	}
	sort.Slice(slice.Calls, func(i, j int) bool {
		a, b := slice.Calls[i], slice.Calls[j]
		if a.FromSymbolID != b.FromSymbolID {
			return a.FromSymbolID < b.FromSymbolID
		}
		return a.ToSymbolID < b.ToSymbolID
	})

	return slice
}
