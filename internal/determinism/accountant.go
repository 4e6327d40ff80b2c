// Package determinism merges per-extractor code graphs and accounts for how
// much of the merged graph is statically certain versus heuristically
// resolved. It implements the heuristics escalation ladder but never re-runs
// extraction itself; it only reports the ratio and the rung in effect.
package determinism

import (
	"archo/internal/facts"
)

// Rung is one step of the heuristics ladder.
type Rung string

const (
	// RungOff disables heuristic edges entirely and disables escalation
	RungOff Rung = "off"
	// RungStaticOnly admits only statically resolved edges
	RungStaticOnly Rung = "static-only"
	// RungHard admits heuristic edges with confidence >= 0.95
	RungHard Rung = "hard"
	// RungSoft admits heuristic edges with confidence >= 0.6
	RungSoft Rung = "soft"
)

const (
	hardThreshold = 0.95
	softThreshold = 0.6
)

// ParseRung validates a rung name. Empty means static-only, the ladder's
// first rung.
func ParseRung(s string) (Rung, bool) {
	switch Rung(s) {
	case "":
		return RungStaticOnly, true
	case RungOff, RungStaticOnly, RungHard, RungSoft:
		return Rung(s), true
	}
	return "", false
}

// Merge concatenates the symbols, calls, kill-pattern hits, and module edges
// of every input graph. No conflict resolution or identity merge happens
// here; downstream consumers tolerate duplicates from overlapping extraction.
// Module edges are the one exception: duplicate (from, to) rows are summed so
// they are never stored as duplicates.
func Merge(graphs ...facts.CodeGraph) facts.CodeGraph {
	var merged facts.CodeGraph
	for _, g := range graphs {
		merged.Symbols = append(merged.Symbols, g.Symbols...)
		merged.Calls = append(merged.Calls, g.Calls...)
		merged.Modules = append(merged.Modules, g.Modules...)
		merged.KillPatternHits = append(merged.KillPatternHits, g.KillPatternHits...)
	}
	merged.Modules = facts.AggregateModuleEdges(merged.Modules)
	return merged
}

// Ratio returns the fraction of call edges resolved statically. A graph with
// zero calls is vacuously deterministic: 1.0.
func Ratio(g facts.CodeGraph) float64 {
	if len(g.Calls) == 0 {
		return 1.0
	}
	static := 0
	for _, c := range g.Calls {
		if c.Resolution == facts.ResolutionStatic {
			static++
		}
	}
	return float64(static) / float64(len(g.Calls))
}

// Report is the accountant's answer to "how trustworthy is this graph, and
// what should the caller do about it".
type Report struct {
	Ratio       float64 `json:"ratio"`
	Target      float64 `json:"target"`
	Rung        Rung    `json:"rung"`
	MeetsTarget bool    `json:"meetsTarget"`
	// NextRung is the escalation suggestion: the next ladder rung to try
	// when the ratio is below target. Empty when no escalation applies.
	NextRung Rung `json:"nextRung,omitempty"`
}

// Evaluate computes the determinism ratio against the policy target. The
// target is an inclusive floor: a ratio exactly at the target is not a
// violation. Escalation is suggested only while below target, heuristics are
// not off, and a higher rung remains.
func Evaluate(g facts.CodeGraph, target float64, rung Rung) Report {
	r := Report{
		Ratio:  Ratio(g),
		Target: target,
		Rung:   rung,
	}
	r.MeetsTarget = r.Ratio >= target
	if !r.MeetsTarget && rung != RungOff {
		switch rung {
		case RungStaticOnly:
			r.NextRung = RungHard
		case RungHard:
			r.NextRung = RungSoft
		}
	}
	return r
}

// FilterByRung drops call edges the rung does not admit, so that callers
// acting on an escalation suggestion can widen (or narrow) the graph without
// touching the extractors. Static edges always survive; off and static-only
// drop every heuristic edge.
func FilterByRung(g facts.CodeGraph, rung Rung) facts.CodeGraph {
	out := g
	out.Calls = nil
	for _, c := range g.Calls {
		if c.Resolution == facts.ResolutionStatic {
			out.Calls = append(out.Calls, c)
			continue
		}
		switch rung {
		case RungHard:
			if c.EffectiveConfidence() >= hardThreshold {
				out.Calls = append(out.Calls, c)
			}
		case RungSoft:
			if c.EffectiveConfidence() >= softThreshold {
				out.Calls = append(out.Calls, c)
			}
		}
	}
	return out
}
