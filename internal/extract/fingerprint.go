package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint carries the components that identify a symbol independently of
// its position in the file. IDs built from it survive moves and reformatting.
type Fingerprint struct {
	Container string
	Name      string
	Kind      string
	Arity     int
}

// StableID derives the canonical symbol id for a repository.
// Format: archo:<repo>:sym:<fingerprint-hash>
func StableID(repo string, fp Fingerprint) string {
	return fmt.Sprintf("archo:%s:sym:%s", sanitizeRepoName(repo), fp.hash())
}

func (fp Fingerprint) hash() string {
	parts := []string{
		"container:" + fp.Container,
		"name:" + fp.Name,
		"kind:" + fp.Kind,
	}
	if fp.Arity > 0 {
		parts = append(parts, fmt.Sprintf("arity:%d", fp.Arity))
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func sanitizeRepoName(repo string) string {
	s := strings.ReplaceAll(repo, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.ToLower(strings.Trim(s, "-"))
	if s == "" {
		return "unknown"
	}
	return s
}

// ExtractArity counts the parameters in a signature's parameter list. This is
// a text-level estimate; extractors with real ASTs pass the exact count.
func ExtractArity(signature string) int {
	start := strings.Index(signature, "(")
	end := strings.LastIndex(signature, ")")
	if start == -1 || end == -1 || start >= end {
		return 0
	}
	params := strings.TrimSpace(signature[start+1 : end])
	if params == "" {
		return 0
	}
	return strings.Count(params, ",") + 1
}
