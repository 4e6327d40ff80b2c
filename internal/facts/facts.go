// Package facts defines the shared fact schema that every extractor must
// produce: symbol declarations, call edges, and module-dependency edges.
// The rest of the engine depends only on these shapes.
package facts

import (
	"fmt"
	"sort"
)

// SymbolKind classifies a declared symbol.
type SymbolKind string

const (
	// KindClass is a class/struct/type declaration
	KindClass SymbolKind = "class"
	// KindMethod is a method attached to a class/type
	KindMethod SymbolKind = "method"
	// KindFunction is a free function
	KindFunction SymbolKind = "function"
	// KindVariable is a variable or constant declaration
	KindVariable SymbolKind = "variable"
)

// validSymbolKinds is the closed set accepted from extractors.
var validSymbolKinds = map[SymbolKind]bool{
	KindClass:    true,
	KindMethod:   true,
	KindFunction: true,
	KindVariable: true,
}

// ByteSpan is a half-open byte range [Start, End) within the origin file.
type ByteSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Symbol is a single declared symbol. Symbols are immutable: re-extraction
// supersedes them, it never updates them in place. Identity is the ID, which
// is stable across runs only if the producing extractor is deterministic.
type Symbol struct {
	ID                 string     `json:"id"`
	FullyQualifiedName string     `json:"fullyQualifiedName"`
	Kind               SymbolKind `json:"kind"`
	OriginFile         string     `json:"originFile"`
	Span               ByteSpan   `json:"span"`
	Visibility         string     `json:"visibility,omitempty"`
	Modifiers          []string   `json:"modifiers,omitempty"`
}

// ResolutionKind says how a call target was resolved.
type ResolutionKind string

const (
	// ResolutionStatic means the target was resolved with certainty
	ResolutionStatic ResolutionKind = "static"
	// ResolutionHeuristic means the target was resolved by pattern matching
	ResolutionHeuristic ResolutionKind = "heuristic"
)

// CallSite locates the call expression in source.
type CallSite struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// CallEdge is one observed call between two symbols. Static edges always have
// confidence 1.0; a zero confidence on a static edge is read as the implicit
// 1.0 rather than as "no confidence".
type CallEdge struct {
	FromSymbolID string         `json:"fromSymbolId"`
	ToSymbolID   string         `json:"toSymbolId"`
	Site         CallSite       `json:"site"`
	Resolution   ResolutionKind `json:"resolutionKind"`
	Confidence   float64        `json:"confidence,omitempty"`
}

// EffectiveConfidence returns the edge confidence, applying the implicit 1.0
// for static edges that omit the field.
func (e CallEdge) EffectiveConfidence() float64 {
	if e.Resolution == ResolutionStatic && e.Confidence == 0 {
		return 1.0
	}
	return e.Confidence
}

// ModuleEdge is an aggregated module-dependency edge. Weight is a relative
// call-count strength; duplicate (from, to) rows are summed, never stored.
type ModuleEdge struct {
	FromModule string `json:"fromModule"`
	ToModule   string `json:"toModule"`
	Weight     int    `json:"weight"`
}

// KillPatternHit is a deprecated-pattern label an extractor flagged in source.
// Enforcement is policy-driven: a hit only becomes a violation when the
// module's policy declares the same label.
type KillPatternHit struct {
	Module  string `json:"module"`
	Pattern string `json:"pattern"`
	File    string `json:"file"`
	Line    int    `json:"line"`
}

// CodeGraph is the owning aggregate for one indexing run. It is merged from N
// extractor outputs by concatenation; identity dedup is not performed at merge
// time, so consumers must tolerate duplicates from overlapping extraction.
type CodeGraph struct {
	Symbols         []Symbol         `json:"symbols"`
	Calls           []CallEdge       `json:"calls"`
	Modules         []ModuleEdge     `json:"modules"`
	KillPatternHits []KillPatternHit `json:"killPatternHits,omitempty"`
}

// ValidateGraph drops malformed entries per-entry and returns the cleaned
// graph plus one warning per dropped entry. A bad symbol never rejects the
// whole payload. Static calls with an absent confidence are normalized to 1.0.
func ValidateGraph(g CodeGraph) (CodeGraph, []string) {
	var warnings []string
	clean := CodeGraph{}

	for i, s := range g.Symbols {
		switch {
		case s.ID == "":
			warnings = append(warnings, fmt.Sprintf("symbol %d: missing id, dropped", i))
		case s.FullyQualifiedName == "":
			warnings = append(warnings, fmt.Sprintf("symbol %s: missing fullyQualifiedName, dropped", s.ID))
		case !validSymbolKinds[s.Kind]:
			warnings = append(warnings, fmt.Sprintf("symbol %s: unknown kind %q, dropped", s.ID, s.Kind))
		case s.Span.End < s.Span.Start:
			warnings = append(warnings, fmt.Sprintf("symbol %s: inverted byte span, dropped", s.ID))
		default:
			clean.Symbols = append(clean.Symbols, s)
		}
	}

	for i, c := range g.Calls {
		switch {
		case c.FromSymbolID == "" || c.ToSymbolID == "":
			warnings = append(warnings, fmt.Sprintf("call %d: missing endpoint, dropped", i))
		case c.Resolution != ResolutionStatic && c.Resolution != ResolutionHeuristic:
			warnings = append(warnings, fmt.Sprintf("call %d: unknown resolution kind %q, dropped", i, c.Resolution))
		case c.Confidence < 0 || c.Confidence > 1:
			warnings = append(warnings, fmt.Sprintf("call %d: confidence %v out of range, dropped", i, c.Confidence))
		case c.Resolution == ResolutionStatic && c.Confidence != 0 && c.Confidence != 1:
			warnings = append(warnings, fmt.Sprintf("call %d: static edge with confidence %v, dropped", i, c.Confidence))
		default:
			if c.Resolution == ResolutionStatic {
				c.Confidence = 1.0
			}
			clean.Calls = append(clean.Calls, c)
		}
	}

	for i, m := range g.Modules {
		switch {
		case m.FromModule == "" || m.ToModule == "":
			warnings = append(warnings, fmt.Sprintf("module edge %d: missing endpoint, dropped", i))
		case m.Weight < 0:
			warnings = append(warnings, fmt.Sprintf("module edge %d: negative weight %d, dropped", i, m.Weight))
		default:
			clean.Modules = append(clean.Modules, m)
		}
	}

	for i, h := range g.KillPatternHits {
		if h.Module == "" || h.Pattern == "" {
			warnings = append(warnings, fmt.Sprintf("kill pattern hit %d: missing module or pattern, dropped", i))
			continue
		}
		clean.KillPatternHits = append(clean.KillPatternHits, h)
	}

	return clean, warnings
}

// AggregateModuleEdges collapses duplicate (from, to) rows into one row with
// summed weight. Output is sorted by from, then to, so repeated runs over the
// same input produce identical slices.
func AggregateModuleEdges(edges []ModuleEdge) []ModuleEdge {
	if len(edges) == 0 {
		return nil
	}

	weights := make(map[[2]string]int)
	for _, e := range edges {
		weights[[2]string{e.FromModule, e.ToModule}] += e.Weight
	}

	out := make([]ModuleEdge, 0, len(weights))
	for key, w := range weights {
		out = append(out, ModuleEdge{FromModule: key[0], ToModule: key[1], Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromModule != out[j].FromModule {
			return out[i].FromModule < out[j].FromModule
		}
		return out[i].ToModule < out[j].ToModule
	})
	return out
}
