package extract

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"archo/internal/facts"
)

// SCIPExtractor reads a pre-built SCIP index. Index-backed facts are
// compiler-resolved, so every call edge it emits is static.
type SCIPExtractor struct {
	// IndexPath is the location of the protobuf index, typically
	// index.scip at the repository root.
	IndexPath string
}

// NewSCIPExtractor creates an index-backed extractor.
func NewSCIPExtractor(indexPath string) *SCIPExtractor {
	return &SCIPExtractor{IndexPath: indexPath}
}

// Language implements Extractor. The index is language-agnostic.
func (e *SCIPExtractor) Language() string { return "scip" }

// Extract implements Extractor. A missing or unparseable index is a hard
// error: the caller chose this fact source explicitly.
func (e *SCIPExtractor) Extract(ctx context.Context, req Request) (facts.CodeGraph, error) {
	var g facts.CodeGraph

	if err := ctx.Err(); err != nil {
		return g, err
	}

	data, err := os.ReadFile(e.IndexPath)
	if err != nil {
		return g, fmt.Errorf("read scip index %s: %w", e.IndexPath, err)
	}
	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return g, fmt.Errorf("parse scip index %s: %w", e.IndexPath, err)
	}

	// First pass: definitions. Records each symbol's id, home module, and
	// the line range of function bodies for the call pass.
	ids := make(map[string]string)                  // scip symbol -> stable id
	homes := make(map[string]string)                // scip symbol -> module
	ranges := make(map[string]map[string]lineRange) // doc path -> symbol -> body range

	for _, doc := range index.Documents {
		module := moduleOf(doc.RelativePath)
		var defs []defOccurrence

		for _, occ := range doc.Occurrences {
			if occ.SymbolRoles&int32(scippb.SymbolRole_Definition) == 0 {
				continue
			}
			if len(occ.Range) < 3 {
				continue
			}
			kind := kindFromSCIPSymbol(occ.Symbol)
			if kind == "" {
				continue
			}
			id := StableID(req.Repo, Fingerprint{
				Container: module,
				Name:      symbolDisplayName(occ.Symbol),
				Kind:      string(kind),
			})
			ids[occ.Symbol] = id
			homes[occ.Symbol] = module
			g.Symbols = append(g.Symbols, facts.Symbol{
				ID:                 id,
				FullyQualifiedName: qualify(module, symbolDisplayName(occ.Symbol)),
				Kind:               kind,
				OriginFile:         doc.RelativePath,
				Visibility:         "public",
			})
			if kind == facts.KindFunction || kind == facts.KindMethod {
				defs = append(defs, defOccurrence{symbol: occ.Symbol, line: int(occ.Range[0])})
			}
		}

		// A function body extends to the line before the next definition.
		sort.Slice(defs, func(i, j int) bool { return defs[i].line < defs[j].line })
		body := make(map[string]lineRange, len(defs))
		for i, d := range defs {
			end := int(^uint(0) >> 1)
			if i+1 < len(defs) {
				end = defs[i+1].line - 1
			}
			body[d.symbol] = lineRange{start: d.line, end: end}
		}
		ranges[doc.RelativePath] = body
	}

	// Second pass: references inside function bodies become call edges, and
	// cross-module references become module edges.
	for _, doc := range index.Documents {
		module := moduleOf(doc.RelativePath)
		body := ranges[doc.RelativePath]

		for _, occ := range doc.Occurrences {
			if occ.SymbolRoles&int32(scippb.SymbolRole_Definition) != 0 {
				continue
			}
			if len(occ.Range) < 3 {
				continue
			}
			calleeKind := kindFromSCIPSymbol(occ.Symbol)
			if calleeKind != facts.KindFunction && calleeKind != facts.KindMethod {
				continue
			}
			line := int(occ.Range[0])

			caller, ok := enclosingFunction(body, occ.Symbol, line)
			if !ok {
				continue
			}
			toID, known := ids[occ.Symbol]
			if !known {
				toID = StableID(req.Repo, Fingerprint{Name: symbolDisplayName(occ.Symbol), Kind: string(calleeKind)})
			}
			g.Calls = append(g.Calls, facts.CallEdge{
				FromSymbolID: ids[caller],
				ToSymbolID:   toID,
				Site: facts.CallSite{
					File: doc.RelativePath,
					Line: line + 1,
					Col:  int(occ.Range[1]) + 1,
				},
				Resolution: facts.ResolutionStatic,
				Confidence: 1.0,
			})
			if home, ok := homes[occ.Symbol]; ok && home != module {
				g.Modules = append(g.Modules, facts.ModuleEdge{FromModule: module, ToModule: home, Weight: 1})
			}
		}
	}

	return g, nil
}

type defOccurrence struct {
	symbol string
	line   int
}

type lineRange struct {
	start, end int
}

func enclosingFunction(body map[string]lineRange, callee string, line int) (string, bool) {
	bestSym := ""
	bestStart := -1
	for sym, r := range body {
		if sym == callee {
			continue
		}
		if line >= r.start && line <= r.end && r.start > bestStart {
			bestSym = sym
			bestStart = r.start
		}
	}
	return bestSym, bestSym != ""
}

// kindFromSCIPSymbol classifies by descriptor suffix: "()." is a method or
// function, "#" a type, a bare "." a term. Local and unparseable symbols
// yield no kind.
func kindFromSCIPSymbol(symbol string) facts.SymbolKind {
	if strings.HasPrefix(symbol, "local ") {
		return ""
	}
	switch {
	case strings.HasSuffix(symbol, ")."):
		if strings.Contains(symbol, "#") {
			return facts.KindMethod
		}
		return facts.KindFunction
	case strings.HasSuffix(symbol, "#"):
		return facts.KindClass
	case strings.HasSuffix(symbol, "."):
		return facts.KindVariable
	default:
		return ""
	}
}

// symbolDisplayName pulls the last descriptor name out of a SCIP symbol.
func symbolDisplayName(symbol string) string {
	s := strings.TrimSuffix(symbol, ".")
	s = strings.TrimSuffix(s, "()")
	s = strings.TrimSuffix(s, "#")
	for _, sep := range []string{"/", "#", "`", " "} {
		if i := strings.LastIndex(s, sep); i >= 0 {
			s = s[i+1:]
		}
	}
	return s
}
