package frames

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// chunk is one contiguous slice of the pre-encoded payload plus its encoded
// rendering and item count.
type chunk struct {
	raw     []byte
	encoded []byte
	items   int
	// oversized marks a single element/key that alone exceeds the bound.
	// It is emitted rather than dropped or truncated.
	oversized bool
}

// splitPayload splits a raw JSON payload into the smallest number of
// contiguous chunks whose encoded size fits maxBytes. Arrays split
// element-wise in input order; objects split key-wise in sorted key order;
// scalars never split. Packing is greedy left-to-right, so chunk boundaries
// are a pure function of (payload, maxBytes, codec).
func splitPayload(payload []byte, maxBytes int, codec Codec) ([]chunk, error) {
	encoded, err := codec.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if len(encoded) <= maxBytes {
		return []chunk{{raw: payload, encoded: encoded, items: countItems(payload)}}, nil
	}

	switch firstToken(payload) {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(payload, &elems); err != nil {
			return nil, fmt.Errorf("split array payload: %w", err)
		}
		return packChunks(len(elems), maxBytes, codec,
			func(i, j int) ([]byte, error) { return marshalArraySlice(elems[i:j]) })
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(payload, &obj); err != nil {
			return nil, fmt.Errorf("split object payload: %w", err)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return packChunks(len(keys), maxBytes, codec,
			func(i, j int) ([]byte, error) { return marshalObjectSlice(keys[i:j], obj) })
	default:
		// Scalar payloads cannot be split; emit one oversized chunk.
		return []chunk{{raw: payload, encoded: encoded, items: 1, oversized: true}}, nil
	}
}

// packChunks greedily grows a window [start, end) of items, finalizing the
// chunk just before the encoded size would exceed maxBytes. render must
// produce the JSON for the half-open item range.
func packChunks(total, maxBytes int, codec Codec, render func(i, j int) ([]byte, error)) ([]chunk, error) {
	var chunks []chunk
	start := 0
	for start < total {
		end := start + 1
		raw, err := render(start, end)
		if err != nil {
			return nil, err
		}
		encoded, err := codec.Encode(raw)
		if err != nil {
			return nil, err
		}

		if len(encoded) > maxBytes {
			// A single item exceeds the bound on its own: emit it
			// oversized rather than dropping or truncating it.
			chunks = append(chunks, chunk{raw: raw, encoded: encoded, items: 1, oversized: true})
			start = end
			continue
		}

		lastRaw, lastEncoded := raw, encoded
		for end < total {
			candidate, err := render(start, end+1)
			if err != nil {
				return nil, err
			}
			candidateEncoded, err := codec.Encode(candidate)
			if err != nil {
				return nil, err
			}
			if len(candidateEncoded) > maxBytes {
				break
			}
			end++
			lastRaw, lastEncoded = candidate, candidateEncoded
		}

		chunks = append(chunks, chunk{raw: lastRaw, encoded: lastEncoded, items: end - start})
		start = end
	}
	return chunks, nil
}

func marshalArraySlice(elems []json.RawMessage) ([]byte, error) {
	return json.Marshal(elems)
}

func marshalObjectSlice(keys []string, obj map[string]json.RawMessage) ([]byte, error) {
	sub := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		sub[k] = obj[k]
	}
	// json.Marshal writes map keys in sorted order, keeping chunks canonical.
	return json.Marshal(sub)
}

// firstToken returns the first non-whitespace byte of a JSON document.
func firstToken(data []byte) byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// countItems reports the element/key count of a JSON document, 1 for scalars.
func countItems(payload []byte) int {
	switch firstToken(payload) {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(payload, &elems); err == nil {
			return len(elems)
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(payload, &obj); err == nil {
			return len(obj)
		}
	}
	return 1
}
