package main

import (
	"testing"

	"archo/internal/config"
	"archo/internal/determinism"
	"archo/internal/facts"
	"archo/internal/policy"
)

// threeQuartersGraph is 3 static calls and 1 heuristic call: ratio 0.75.
func threeQuartersGraph() facts.CodeGraph {
	return facts.CodeGraph{Calls: []facts.CallEdge{
		{FromSymbolID: "a", ToSymbolID: "b", Resolution: facts.ResolutionStatic, Confidence: 1.0},
		{FromSymbolID: "a", ToSymbolID: "c", Resolution: facts.ResolutionStatic, Confidence: 1.0},
		{FromSymbolID: "b", ToSymbolID: "c", Resolution: facts.ResolutionStatic, Confidence: 1.0},
		{FromSymbolID: "c", ToSymbolID: "d", Resolution: facts.ResolutionHeuristic, Confidence: 0.75},
	}}
}

func TestEvaluateLadder(t *testing.T) {
	t.Run("ratio is accounted over the full graph", func(t *testing.T) {
		admitted, report := evaluateLadder(threeQuartersGraph(), 0.95, determinism.RungStaticOnly)

		if report.Ratio != 0.75 {
			t.Errorf("ratio = %v, want 0.75 (rung filtering must not shrink the denominator)", report.Ratio)
		}
		if report.MeetsTarget {
			t.Error("0.75 against target 0.95 must not meet")
		}
		if report.Rung != determinism.RungSoft {
			t.Errorf("rung = %s, want soft after walking the whole ladder", report.Rung)
		}
		if len(admitted.Calls) != 4 {
			t.Errorf("admitted calls = %d, want 4 (soft admits the 0.75 edge)", len(admitted.Calls))
		}
	})

	t.Run("target met at the starting rung stays there", func(t *testing.T) {
		admitted, report := evaluateLadder(threeQuartersGraph(), 0.75, determinism.RungStaticOnly)

		if !report.MeetsTarget {
			t.Error("0.75 against target 0.75 meets: the floor is inclusive")
		}
		if report.Rung != determinism.RungStaticOnly || report.NextRung != "" {
			t.Errorf("report = %+v, want no escalation when the target is met", report)
		}
		if len(admitted.Calls) != 3 {
			t.Errorf("admitted calls = %d, want 3 (static-only keeps the heuristic edge out)", len(admitted.Calls))
		}
	})

	t.Run("off never escalates", func(t *testing.T) {
		admitted, report := evaluateLadder(threeQuartersGraph(), 0.95, determinism.RungOff)

		if report.Rung != determinism.RungOff || report.NextRung != "" {
			t.Errorf("report = %+v, want rung off with no escalation", report)
		}
		if len(admitted.Calls) != 3 {
			t.Errorf("admitted calls = %d, want 3 static", len(admitted.Calls))
		}
	})
}

func TestEffectiveRung(t *testing.T) {
	t.Run("policy heuristics off overrides the configured rung", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Heuristics.Rung = "soft"
		pol := policy.Default()
		pol.Heuristics = policy.HeuristicsOff

		rung, err := effectiveRung(cfg, pol)
		if err != nil {
			t.Fatalf("effectiveRung: %v", err)
		}
		if rung != determinism.RungOff {
			t.Errorf("rung = %s, want off when the policy disables heuristics", rung)
		}
	})

	t.Run("configured rung applies when the policy allows heuristics", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Heuristics.Rung = "hard"

		rung, err := effectiveRung(cfg, policy.Default())
		if err != nil {
			t.Fatalf("effectiveRung: %v", err)
		}
		if rung != determinism.RungHard {
			t.Errorf("rung = %s, want hard", rung)
		}
	})

	t.Run("unknown rung is rejected", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Heuristics.Rung = "extreme"

		if _, err := effectiveRung(cfg, policy.Default()); err == nil {
			t.Error("expected an error for an unknown rung")
		}
	})
}
