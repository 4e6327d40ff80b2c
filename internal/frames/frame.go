// Package frames turns JSON-serializable payloads into deduplicated,
// size-bounded, content-addressed records and persists them idempotently.
// Two runs over identical inputs produce byte-identical frames, and the
// second write of any frame is a no-op.
package frames

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Scope pins a frame to the inputs it was derived from.
type Scope struct {
	Repo   string            `json:"repo"`
	Commit string            `json:"commit"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// canonical renders the scope as a deterministic string for hashing.
// Extra keys are sorted so map iteration order never leaks into frame ids.
func (s Scope) canonical() string {
	parts := []string{"repo=" + s.Repo, "commit=" + s.Commit}
	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+s.Extra[k])
	}
	return strings.Join(parts, ";")
}

// FrameStats records size accounting for one frame.
type FrameStats struct {
	PayloadBytes int `json:"payloadBytes"`
	EncodedBytes int `json:"encodedBytes"`
	Items        int `json:"items"`
}

// Frame is one immutable, content-addressed persisted unit. Payload holds the
// codec-encoded chunk bytes; a logical payload that exceeds the size bound
// spans several frames via Part/TotalParts.
type Frame struct {
	FrameID    string     `json:"frameId"`
	Kind       string     `json:"kind"`
	Scope      Scope      `json:"scope"`
	InputsHash string     `json:"inputsHash"`
	Payload    []byte     `json:"payload"`
	Part       int        `json:"part"`
	TotalParts int        `json:"totalParts"`
	Timestamp  time.Time  `json:"timestamp"`
	Stats      FrameStats `json:"stats"`
}

// ComputeFrameID derives the content address for one frame part. The hash
// covers kind, scope, inputs hash, the encoded payload hash, and the part
// index; it never covers the timestamp, so identical inputs always reproduce
// the identical id.
func ComputeFrameID(kind string, scope Scope, inputsHash string, encodedPayload []byte, part int) string {
	payloadHash := sha256.Sum256(encodedPayload)
	canonical := strings.Join([]string{
		"kind:" + kind,
		"scope:" + scope.canonical(),
		"inputs:" + inputsHash,
		"payload:" + hex.EncodeToString(payloadHash[:]),
		fmt.Sprintf("part:%d", part),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// HashInputs produces an inputs hash from an arbitrary set of input
// identifiers (file paths, commit ids, extractor names). Order-insensitive.
func HashInputs(inputs ...string) string {
	sorted := append([]string(nil), inputs...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the frame id from the frame's own fields and reports
// whether the stored id matches. A mismatch means the payload was corrupted
// or re-encoded with a different codec.
func (f Frame) Verify() error {
	want := ComputeFrameID(f.Kind, f.Scope, f.InputsHash, f.Payload, f.Part)
	if want != f.FrameID {
		return fmt.Errorf("frame %s: content hash mismatch (recomputed %s)", f.FrameID, want)
	}
	return nil
}
