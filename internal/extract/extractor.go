// Package extract turns source trees and pre-built indexes into code graph
// facts. Extractors run independently and their outputs are merged downstream,
// so overlap between them is expected and harmless.
package extract

import (
	"context"

	"golang.org/x/sync/errgroup"

	"archo/internal/facts"
)

// Request describes one extraction run over a repository snapshot.
type Request struct {
	// Repo is the logical repository name used in stable symbol ids.
	Repo string

	// Root is the filesystem root of the checkout.
	Root string

	// Files restricts extraction to these paths relative to Root. Empty
	// means walk the whole tree.
	Files []string

	// KillPatterns are the deprecated-pattern labels to scan for.
	KillPatterns []string
}

// Extractor produces a partial code graph from one fact source. One
// implementation exists per supported language, plus the index-backed one.
type Extractor interface {
	// Language identifies the fact source in logs and provenance fields.
	Language() string

	// Extract returns the facts this source can see. A source that cannot
	// resolve an edge statically reports it as heuristic with a confidence
	// below 1.0 rather than guessing.
	Extract(ctx context.Context, req Request) (facts.CodeGraph, error)
}

// RunAll dispatches every extractor in parallel and collects their graphs in
// input order. The first failure cancels the derived context so remaining
// extractors return early. Collected graphs are returned regardless, so
// callers can inspect partial output alongside the error.
func RunAll(ctx context.Context, req Request, extractors ...Extractor) ([]facts.CodeGraph, error) {
	graphs := make([]facts.CodeGraph, len(extractors))
	g, gctx := errgroup.WithContext(ctx)

	for i, ex := range extractors {
		i, ex := i, ex
		g.Go(func() error {
			graph, err := ex.Extract(gctx, req)
			if err != nil {
				return err
			}
			graphs[i] = graph
			return nil
		})
	}

	err := g.Wait()
	return graphs, err
}
