package policy

import (
	"reflect"
	"testing"

	"archo/internal/facts"
)

func moduleEdge(from, to string, weight int) facts.ModuleEdge {
	return facts.ModuleEdge{FromModule: from, ToModule: to, Weight: weight}
}

func TestCheck(t *testing.T) {
	t.Run("forbidden caller produces exactly one violation", func(t *testing.T) {
		p := Default()
		p.Modules["X"] = ModulePolicy{ForbiddenCallers: []string{"Y"}}

		g := facts.CodeGraph{Modules: []facts.ModuleEdge{moduleEdge("Y", "X", 4)}}
		got := Check(g, p)

		if len(got) != 1 {
			t.Fatalf("violations = %d, want 1", len(got))
		}
		v := got[0]
		if v.Kind != ForbiddenEdge || v.FromModule != "Y" || v.ToModule != "X" {
			t.Errorf("violation = %+v, want forbidden_edge (Y,X)", v)
		}
	})

	t.Run("unlisted caller of a module without allow-list is clean", func(t *testing.T) {
		p := Default()
		p.Modules["X"] = ModulePolicy{ForbiddenCallers: []string{"Y"}}

		g := facts.CodeGraph{Modules: []facts.ModuleEdge{moduleEdge("Z", "X", 1)}}
		if got := Check(g, p); len(got) != 0 {
			t.Errorf("violations = %v, want none for unlisted caller Z", got)
		}
	})

	t.Run("allow list asymmetry", func(t *testing.T) {
		p := Default()
		// Empty allow-list: no restriction.
		p.Modules["open"] = ModulePolicy{}
		// Non-empty allow-list: implicit forbid of everyone else.
		p.Modules["guarded"] = ModulePolicy{AllowedCallers: []string{"trusted"}}

		g := facts.CodeGraph{Modules: []facts.ModuleEdge{
			moduleEdge("anyone", "open", 1),
			moduleEdge("trusted", "guarded", 1),
			moduleEdge("stranger", "guarded", 1),
		}}
		got := Check(g, p)

		if len(got) != 1 {
			t.Fatalf("violations = %v, want exactly the stranger->guarded edge", got)
		}
		if got[0].Kind != DisallowedEdge || got[0].FromModule != "stranger" {
			t.Errorf("violation = %+v, want disallowed_edge from stranger", got[0])
		}
	})

	t.Run("edges into undeclared modules are unconstrained", func(t *testing.T) {
		g := facts.CodeGraph{Modules: []facts.ModuleEdge{moduleEdge("a", "undeclared", 9)}}
		if got := Check(g, Default()); len(got) != 0 {
			t.Errorf("violations = %v, want none for undeclared callee", got)
		}
	})

	t.Run("kill pattern hits need a matching declaration", func(t *testing.T) {
		p := Default()
		p.Modules["billing"] = ModulePolicy{KillPatterns: []string{"raw-sql"}}

		g := facts.CodeGraph{KillPatternHits: []facts.KillPatternHit{
			{Module: "billing", Pattern: "raw-sql", File: "billing/db.php", Line: 12},
			{Module: "billing", Pattern: "eval"}, // not declared
			{Module: "other", Pattern: "raw-sql"}, // module undeclared
		}}
		got := Check(g, p)

		if len(got) != 1 {
			t.Fatalf("violations = %v, want 1", got)
		}
		if got[0].Kind != KillPatternDetected || got[0].Pattern != "raw-sql" || got[0].Line != 12 {
			t.Errorf("violation = %+v", got[0])
		}
	})

	t.Run("self edges are checked like any other", func(t *testing.T) {
		p := Default()
		p.Modules["jobs"] = ModulePolicy{ForbiddenCallers: []string{"jobs"}}
		p.Modules["api"] = ModulePolicy{ForbiddenCallers: []string{"web"}}

		g := facts.CodeGraph{Modules: []facts.ModuleEdge{
			moduleEdge("jobs", "jobs", 2),
			moduleEdge("api", "api", 1), // api does not forbid itself
		}}
		got := Check(g, p)

		if len(got) != 1 {
			t.Fatalf("violations = %v, want exactly the jobs->jobs edge", got)
		}
		if got[0].Kind != ForbiddenEdge || got[0].FromModule != "jobs" || got[0].ToModule != "jobs" {
			t.Errorf("violation = %+v, want forbidden_edge (jobs,jobs)", got[0])
		}
	})

	t.Run("duplicate raw edges are checked once", func(t *testing.T) {
		p := Default()
		p.Modules["X"] = ModulePolicy{ForbiddenCallers: []string{"Y"}}

		// Overlapping extraction produced the same edge twice.
		g := facts.CodeGraph{Modules: []facts.ModuleEdge{
			moduleEdge("Y", "X", 1),
			moduleEdge("Y", "X", 3),
		}}
		got := Check(g, p)
		if len(got) != 1 {
			t.Errorf("violations = %d, want 1 (edges aggregate before checking)", len(got))
		}
	})

	t.Run("output ordering is stable", func(t *testing.T) {
		p := Default()
		p.Modules["X"] = ModulePolicy{ForbiddenCallers: []string{"B", "A"}}

		g := facts.CodeGraph{Modules: []facts.ModuleEdge{
			moduleEdge("B", "X", 1),
			moduleEdge("A", "X", 1),
		}}
		first := Check(g, p)
		second := Check(g, p)
		if !reflect.DeepEqual(first, second) {
			t.Error("violation lists differ between runs")
		}
		if first[0].FromModule != "A" || first[1].FromModule != "B" {
			t.Errorf("violations not sorted by module pair: %+v", first)
		}
	})
}
