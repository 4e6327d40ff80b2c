package extract

import (
	"path/filepath"
	"strings"

	"archo/internal/facts"
)

// Language identifies a tree-sitter grammar.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
)

// LanguageFromExtension maps a file extension to a supported language.
func LanguageFromExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case ".go":
		return LangGo, true
	case ".py":
		return LangPython, true
	case ".ts":
		return LangTypeScript, true
	default:
		return "", false
	}
}

// moduleOf maps a repository-relative path to its module: the first path
// segment, or "root" for top-level files.
func moduleOf(rel string) string {
	rel = filepath.ToSlash(rel)
	if i := strings.Index(rel, "/"); i > 0 {
		return rel[:i]
	}
	return "root"
}

func moduleFromImport(target string) string {
	target = filepath.ToSlash(target)
	if i := strings.Index(target, "/"); i > 0 {
		return target[:i]
	}
	return target
}

func qualify(container, name string) string {
	if container == "" {
		return name
	}
	if name == "" {
		return container
	}
	return container + "." + name
}

// scanKillPatterns is a line-level substring scan. Patterns are literal
// labels from the policy, not regexes.
func scanKillPatterns(source []byte, rel, module string, patterns []string) []facts.KillPatternHit {
	if len(patterns) == 0 {
		return nil
	}
	var hits []facts.KillPatternHit
	for lineNo, line := range strings.Split(string(source), "\n") {
		for _, p := range patterns {
			if p != "" && strings.Contains(line, p) {
				hits = append(hits, facts.KillPatternHit{
					Module:  module,
					Pattern: p,
					File:    rel,
					Line:    lineNo + 1,
				})
			}
		}
	}
	return hits
}
