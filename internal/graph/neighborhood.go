package graph

import (
	"math"
	"sort"

	"archo/internal/policy"
)

// ModuleContext is one module in a neighborhood result, annotated with its
// BFS distance from the nearest seed and the policy lists that apply to it.
// Undeclared modules carry empty lists.
type ModuleContext struct {
	Module              string   `json:"module"`
	Distance            int      `json:"distance"`
	AllowedCallers      []string `json:"allowedCallers,omitempty"`
	ForbiddenCallers    []string `json:"forbiddenCallers,omitempty"`
	FeatureFlags        []string `json:"featureFlags,omitempty"`
	RequiresPermissions []string `json:"requiresPermissions,omitempty"`
	KillPatterns        []string `json:"killPatterns,omitempty"`
	X                   float64  `json:"x"`
	Y                   float64  `json:"y"`
}

// NeighborhoodEdge is a directed module edge inside the neighborhood.
type NeighborhoodEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}

// Neighborhood is the bounded-radius module subgraph around a seed set.
type Neighborhood struct {
	SeedModules []string           `json:"seedModules"`
	FoldRadius  int                `json:"foldRadius"`
	Modules     []ModuleContext    `json:"modules"`
	Edges       []NeighborhoodEdge `json:"edges"`
}

// ExtractNeighborhood runs a multi-source breadth-first expansion from the
// seeds, treating edges as undirected so that both callers and callees of a
// seed appear. Radius 0 returns exactly the seeds, including seeds absent
// from the graph (distance 0, no edges). Each module appears once with the
// distance of the nearest seed.
func ExtractNeighborhood(seeds []string, adj *Adjacency, pol *policy.Policy, radius int) *Neighborhood {
	if pol == nil {
		pol = policy.Default()
	}

	distance := make(map[string]int, len(seeds))
	frontier := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, seen := distance[s]; seen {
			continue
		}
		distance[s] = 0
		frontier = append(frontier, s)
	}

	for depth := 1; depth <= radius && len(frontier) > 0; depth++ {
		var next []string
		for _, module := range frontier {
			for _, neighbor := range adj.Neighbors(module) {
				if _, seen := distance[neighbor]; seen {
					continue
				}
				distance[neighbor] = depth
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	ids := make([]string, 0, len(distance))
	for id := range distance {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	n := &Neighborhood{
		SeedModules: sortedCopy(seeds),
		FoldRadius:  radius,
		Modules:     make([]ModuleContext, 0, len(ids)),
	}

	for rank, id := range ids {
		ctx := ModuleContext{Module: id, Distance: distance[id]}
		if mp, ok := pol.Module(id); ok {
			ctx.AllowedCallers = mp.AllowedCallers
			ctx.ForbiddenCallers = mp.ForbiddenCallers
			ctx.FeatureFlags = mp.FeatureFlags
			ctx.RequiresPermissions = mp.RequiresPermissions
			ctx.KillPatterns = mp.KillPatterns
		}
		// Layout is a unit circle ordered by sorted-id rank, so identical
		// inputs always render identically.
		angle := 2 * math.Pi * float64(rank) / float64(len(ids))
		ctx.X = math.Cos(angle)
		ctx.Y = math.Sin(angle)
		n.Modules = append(n.Modules, ctx)
	}

	for _, from := range ids {
		for to := range adj.Outgoing[from] {
			if _, in := distance[to]; !in {
				continue
			}
			n.Edges = append(n.Edges, NeighborhoodEdge{
				From:   from,
				To:     to,
				Weight: adj.Weights[EdgeKey(from, to)],
			})
		}
	}
	sort.Slice(n.Edges, func(i, j int) bool {
		if n.Edges[i].From != n.Edges[j].From {
			return n.Edges[i].From < n.Edges[j].From
		}
		return n.Edges[i].To < n.Edges[j].To
	})

	return n
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
