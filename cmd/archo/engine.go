package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"archo/internal/config"
	"archo/internal/determinism"
	"archo/internal/extract"
	"archo/internal/facts"
	"archo/internal/frames"
	"archo/internal/logging"
	"archo/internal/policy"
)

// graphFrameKind is the frame kind under which merged code graphs persist.
const graphFrameKind = "code_graph"

// policyCache holds loaded policies keyed by content hash for the lifetime of
// the process.
var policyCache, _ = policy.NewCache(16)

func repoName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "unknown"
	}
	return filepath.Base(abs)
}

func repoScope() frames.Scope {
	return frames.Scope{Repo: repoName(repoFlag), Commit: gitHead(repoFlag)}
}

func frameBuilder(cfg *config.Config, logger *logging.Logger) (*frames.Builder, error) {
	codec, err := frames.CodecByName(cfg.Frames.Codec)
	if err != nil {
		return nil, err
	}
	return frames.NewBuilder(cfg.Frames.MaxBytes, codec, logger), nil
}

// loadPolicy loads the configured policy file, serving repeated loads of
// identical content from the process cache.
func loadPolicy(cfg *config.Config, logger *logging.Logger) (*policy.Policy, error) {
	pol, warnings, err := policy.Load(resolvePath(cfg.PolicyPath))
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn("skipped malformed policy entry", map[string]interface{}{
			"reason": w,
		})
	}

	hash := pol.ContentHash()
	if cached, ok := policyCache.Get(hash); ok {
		return cached, nil
	}
	policyCache.Put(hash, pol)
	return pol, nil
}

// policyKillPatterns collects every declared kill pattern so extractors can
// scan for all of them in one pass.
func policyKillPatterns(pol *policy.Policy) []string {
	seen := make(map[string]struct{})
	for _, name := range pol.ModuleNames() {
		mp, _ := pol.Module(name)
		for _, p := range mp.KillPatterns {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func buildExtractors(cfg *config.Config) []extract.Extractor {
	var out []extract.Extractor
	if extract.Available() {
		for _, lang := range []extract.Language{extract.LangGo, extract.LangPython, extract.LangTypeScript} {
			out = append(out, extract.NewTreeSitterExtractor(lang))
		}
	}
	if path := resolvePath(cfg.Extract.SCIPIndexPath); fileExists(path) {
		out = append(out, extract.NewSCIPExtractor(path))
	}
	return out
}

// extractGraph runs every configured extractor, merges their output, and
// validates the result. Malformed facts are dropped with warnings, never
// fatal.
func extractGraph(ctx context.Context, cfg *config.Config, pol *policy.Policy, logger *logging.Logger) (facts.CodeGraph, []string, error) {
	extractors := buildExtractors(cfg)
	if len(extractors) == 0 {
		return facts.CodeGraph{}, nil, fmt.Errorf("no extractors available: build with cgo or provide a SCIP index at %s", cfg.Extract.SCIPIndexPath)
	}

	req := extract.Request{
		Repo:         repoName(repoFlag),
		Root:         repoFlag,
		KillPatterns: policyKillPatterns(pol),
	}
	graphs, err := extract.RunAll(ctx, req, extractors...)
	if err != nil {
		return facts.CodeGraph{}, nil, err
	}

	merged := determinism.Merge(graphs...)
	valid, warnings := facts.ValidateGraph(merged)
	for _, w := range warnings {
		logger.Warn("dropped malformed fact", map[string]interface{}{
			"reason": w,
		})
	}
	return valid, warnings, nil
}

// determinismTarget resolves the effective target: config override first,
// then the policy's.
func determinismTarget(cfg *config.Config, pol *policy.Policy) float64 {
	if cfg.Heuristics.Target >= 0 {
		return cfg.Heuristics.Target
	}
	return pol.DeterminismTarget
}

// effectiveRung resolves the ladder rung for a run. The policy's heuristics
// switch is authoritative: config cannot admit heuristic edges a policy
// turned off.
func effectiveRung(cfg *config.Config, pol *policy.Policy) (determinism.Rung, error) {
	rung, ok := determinism.ParseRung(cfg.Heuristics.Rung)
	if !ok {
		return "", &invalidRungError{value: cfg.Heuristics.Rung}
	}
	if pol.Heuristics == policy.HeuristicsOff {
		return determinism.RungOff, nil
	}
	return rung, nil
}

// evaluateLadder accounts for the merged graph and walks the escalation
// ladder while the ratio is below target. The ratio is always computed over
// the full graph; the rung only controls which heuristic edges are admitted
// downstream, never the accounting denominator. The returned graph is the
// one admitted by the final rung.
func evaluateLadder(g facts.CodeGraph, target float64, rung determinism.Rung) (facts.CodeGraph, determinism.Report) {
	report := determinism.Evaluate(g, target, rung)
	for !report.MeetsTarget && report.NextRung != "" {
		report = determinism.Evaluate(g, target, report.NextRung)
	}
	return determinism.FilterByRung(g, report.Rung), report
}

// loadStoredGraph reads the newest stored code graph for the current scope.
// found is false when the store has no complete frame set for it.
func loadStoredGraph(ctx context.Context, store frames.Store, builder *frames.Builder) (facts.CodeGraph, bool, error) {
	var g facts.CodeGraph

	stored, err := store.Get(ctx, graphFrameKind, repoScope(), 0)
	if err != nil {
		return g, false, err
	}
	if len(stored) == 0 {
		return g, false, nil
	}

	sets := make(map[string][]frames.Frame)
	for _, f := range stored {
		sets[f.InputsHash] = append(sets[f.InputsHash], f)
	}

	var newest []frames.Frame
	for _, set := range sets {
		if len(set) != set[0].TotalParts {
			continue
		}
		if newest == nil || set[0].Timestamp.After(newest[0].Timestamp) {
			newest = set
		}
	}
	if newest == nil {
		return g, false, nil
	}

	raw, err := builder.DecodePayload(newest)
	if err != nil {
		return g, false, err
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return g, false, fmt.Errorf("decode stored code graph: %w", err)
	}
	return g, true, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
