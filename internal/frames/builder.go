package frames

import (
	"encoding/json"
	"fmt"
	"time"

	"archo/internal/logging"
)

// Builder turns payloads into frames with a fixed codec and size bound.
type Builder struct {
	maxBytes int
	codec    Codec
	logger   *logging.Logger
	// now is swappable for tests; frame ids never depend on it.
	now func() time.Time
}

// NewBuilder creates a frame builder. maxBytes bounds the encoded size of
// each frame payload.
func NewBuilder(maxBytes int, codec Codec, logger *logging.Logger) *Builder {
	return &Builder{
		maxBytes: maxBytes,
		codec:    codec,
		logger:   logger,
		now:      time.Now,
	}
}

// BuildFrames marshals payload, splits it into size-bounded chunks, and wraps
// each chunk in a content-addressed frame. Frame ids are a pure function of
// (kind, scope, inputsHash, payload, maxBytes, codec): the wall clock only
// feeds the informational timestamp.
func (b *Builder) BuildFrames(kind string, scope Scope, inputsHash string, payload any) ([]Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for kind %q: %w", kind, err)
	}

	chunks, err := splitPayload(raw, b.maxBytes, b.codec)
	if err != nil {
		return nil, fmt.Errorf("split payload for kind %q: %w", kind, err)
	}

	stamp := b.now().UTC()
	out := make([]Frame, 0, len(chunks))
	for i, c := range chunks {
		if c.oversized && b.logger != nil {
			b.logger.Warn("frame chunk exceeds size bound, emitting oversized", map[string]interface{}{
				"kind":         kind,
				"part":         i + 1,
				"encodedBytes": len(c.encoded),
				"maxBytes":     b.maxBytes,
			})
		}
		part := i + 1
		out = append(out, Frame{
			FrameID:    ComputeFrameID(kind, scope, inputsHash, c.encoded, part),
			Kind:       kind,
			Scope:      scope,
			InputsHash: inputsHash,
			Payload:    c.encoded,
			Part:       part,
			TotalParts: len(chunks),
			Timestamp:  stamp,
			Stats: FrameStats{
				PayloadBytes: len(c.raw),
				EncodedBytes: len(c.encoded),
				Items:        c.items,
			},
		})
	}
	return out, nil
}

// DecodePayload verifies and decodes a set of frames belonging to one logical
// payload and reassembles the original JSON document. Frames must be a
// complete part set of a single (kind, inputsHash). Content addressing makes
// decoding verifiable: each decoded chunk is re-encoded and re-hashed against
// the frame id before use.
func (b *Builder) DecodePayload(set []Frame) ([]byte, error) {
	if len(set) == 0 {
		return nil, fmt.Errorf("empty frame set")
	}

	ordered := make([]Frame, len(set))
	for _, f := range set {
		if f.Part < 1 || f.Part > len(set) || f.TotalParts != len(set) {
			return nil, fmt.Errorf("frame %s: inconsistent part %d/%d in set of %d", f.FrameID, f.Part, f.TotalParts, len(set))
		}
		ordered[f.Part-1] = f
	}

	decoded := make([][]byte, len(ordered))
	for i, f := range ordered {
		raw, err := b.codec.Decode(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("frame %s: %w", f.FrameID, err)
		}
		reEncoded, err := b.codec.Encode(raw)
		if err != nil {
			return nil, fmt.Errorf("frame %s: re-encode: %w", f.FrameID, err)
		}
		verify := Frame{FrameID: f.FrameID, Kind: f.Kind, Scope: f.Scope, InputsHash: f.InputsHash, Payload: reEncoded, Part: f.Part}
		if err := verify.Verify(); err != nil {
			return nil, err
		}
		decoded[i] = raw
	}

	if len(decoded) == 1 {
		return decoded[0], nil
	}
	return mergeChunks(decoded)
}

// mergeChunks reassembles split chunks: arrays by element concatenation,
// objects by key union.
func mergeChunks(chunks [][]byte) ([]byte, error) {
	switch firstToken(chunks[0]) {
	case '[':
		var all []json.RawMessage
		for i, c := range chunks {
			var elems []json.RawMessage
			if err := json.Unmarshal(c, &elems); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", i+1, err)
			}
			all = append(all, elems...)
		}
		return json.Marshal(all)
	case '{':
		merged := make(map[string]json.RawMessage)
		for i, c := range chunks {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(c, &obj); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", i+1, err)
			}
			for k, v := range obj {
				merged[k] = v
			}
		}
		return json.Marshal(merged)
	}
	return nil, fmt.Errorf("multi-part scalar payload cannot be reassembled")
}
