//go:build !cgo

package extract

import (
	"context"

	"archo/internal/facts"
)

// TreeSitterExtractor is a stub when CGO is not available. Extraction then
// relies on pre-built indexes alone.
type TreeSitterExtractor struct {
	lang Language
}

// NewTreeSitterExtractor returns the stub extractor.
func NewTreeSitterExtractor(lang Language) *TreeSitterExtractor {
	return &TreeSitterExtractor{lang: lang}
}

// Language implements Extractor.
func (e *TreeSitterExtractor) Language() string { return string(e.lang) }

// Available reports whether syntactic extraction is compiled in.
func Available() bool { return false }

// Extract implements Extractor. It yields no facts without CGO.
func (e *TreeSitterExtractor) Extract(ctx context.Context, req Request) (facts.CodeGraph, error) {
	return facts.CodeGraph{}, nil
}
