package policy

import (
	"fmt"
	"sort"

	"archo/internal/facts"
)

// ViolationKind classifies a policy violation.
type ViolationKind string

const (
	// ForbiddenEdge is a module edge whose callee explicitly forbids the caller
	ForbiddenEdge ViolationKind = "forbidden_edge"
	// DisallowedEdge is a module edge whose callee has a non-empty allow-list
	// that does not include the caller
	DisallowedEdge ViolationKind = "disallowed_edge"
	// KillPatternDetected is a deprecated-pattern label found in a module
	// whose policy declares that pattern
	KillPatternDetected ViolationKind = "kill_pattern_detected"
)

// Violation is data, not an error: checks return violations as a list and
// never abort on them.
type Violation struct {
	Kind       ViolationKind `json:"kind"`
	FromModule string        `json:"fromModule,omitempty"`
	ToModule   string        `json:"toModule"`
	Pattern    string        `json:"pattern,omitempty"`
	File       string        `json:"file,omitempty"`
	Line       int           `json:"line,omitempty"`
	Detail     string        `json:"detail"`
}

// Check evaluates the graph's module edges and kill-pattern hits against the
// policy. Undeclared modules are unconstrained: edges into them never
// violate. The caller-list asymmetry is intentional policy semantics: an
// empty allowedCallers list means "no allow-list", while a non-empty one
// forbids every caller not on it. Self-edges are evaluated like any other
// edge: a module can forbid or allow-list itself. Output ordering is stable
// (sorted by module pair, then kind) so repeated runs diff cleanly.
func Check(g facts.CodeGraph, p *Policy) []Violation {
	var out []Violation

	for _, edge := range facts.AggregateModuleEdges(g.Modules) {
		mp, declared := p.Module(edge.ToModule)
		if !declared {
			continue
		}

		if containsString(mp.ForbiddenCallers, edge.FromModule) {
			out = append(out, Violation{
				Kind:       ForbiddenEdge,
				FromModule: edge.FromModule,
				ToModule:   edge.ToModule,
				Detail:     fmt.Sprintf("module %s forbids calls from %s (%d call sites)", edge.ToModule, edge.FromModule, edge.Weight),
			})
			continue
		}

		if len(mp.AllowedCallers) > 0 && !containsString(mp.AllowedCallers, edge.FromModule) {
			out = append(out, Violation{
				Kind:       DisallowedEdge,
				FromModule: edge.FromModule,
				ToModule:   edge.ToModule,
				Detail:     fmt.Sprintf("module %s allows only %v as callers, got %s (%d call sites)", edge.ToModule, mp.AllowedCallers, edge.FromModule, edge.Weight),
			})
		}
	}

	for _, hit := range g.KillPatternHits {
		mp, declared := p.Module(hit.Module)
		if !declared || !containsString(mp.KillPatterns, hit.Pattern) {
			continue
		}
		out = append(out, Violation{
			Kind:     KillPatternDetected,
			ToModule: hit.Module,
			Pattern:  hit.Pattern,
			File:     hit.File,
			Line:     hit.Line,
			Detail:   fmt.Sprintf("deprecated pattern %q in module %s at %s:%d", hit.Pattern, hit.Module, hit.File, hit.Line),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FromModule != b.FromModule {
			return a.FromModule < b.FromModule
		}
		if a.ToModule != b.ToModule {
			return a.ToModule < b.ToModule
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Pattern != b.Pattern {
			return a.Pattern < b.Pattern
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
