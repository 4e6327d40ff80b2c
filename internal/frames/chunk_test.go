package frames

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestSplitPayload(t *testing.T) {
	codec := IdentityCodec{}

	t.Run("payload under bound is one chunk", func(t *testing.T) {
		payload := []byte(`[1,2,3]`)
		chunks, err := splitPayload(payload, 1024, codec)
		if err != nil {
			t.Fatalf("splitPayload: %v", err)
		}
		if len(chunks) != 1 {
			t.Fatalf("chunks = %d, want 1", len(chunks))
		}
		if chunks[0].items != 3 {
			t.Errorf("items = %d, want 3", chunks[0].items)
		}
	})

	t.Run("array splits element-wise in order", func(t *testing.T) {
		items := make([]string, 40)
		for i := range items {
			items[i] = fmt.Sprintf("item-%03d", i)
		}
		payload, _ := json.Marshal(items)

		chunks, err := splitPayload(payload, 64, codec)
		if err != nil {
			t.Fatalf("splitPayload: %v", err)
		}
		if len(chunks) < 2 {
			t.Fatalf("chunks = %d, want several", len(chunks))
		}

		var got []string
		for _, c := range chunks {
			if len(c.encoded) > 64 {
				t.Errorf("chunk encoded size %d exceeds bound 64", len(c.encoded))
			}
			var part []string
			if err := json.Unmarshal(c.raw, &part); err != nil {
				t.Fatalf("chunk is not a JSON array: %v", err)
			}
			got = append(got, part...)
		}
		if len(got) != len(items) {
			t.Fatalf("reassembled %d items, want %d", len(got), len(items))
		}
		for i := range items {
			if got[i] != items[i] {
				t.Fatalf("item %d = %q, want %q (order not preserved)", i, got[i], items[i])
			}
		}
	})

	t.Run("object splits key-wise", func(t *testing.T) {
		obj := map[string]int{}
		for i := 0; i < 30; i++ {
			obj[fmt.Sprintf("key-%02d", i)] = i
		}
		payload, _ := json.Marshal(obj)

		chunks, err := splitPayload(payload, 64, codec)
		if err != nil {
			t.Fatalf("splitPayload: %v", err)
		}

		merged := map[string]int{}
		for _, c := range chunks {
			var part map[string]int
			if err := json.Unmarshal(c.raw, &part); err != nil {
				t.Fatalf("chunk is not a JSON object: %v", err)
			}
			for k, v := range part {
				merged[k] = v
			}
		}
		if len(merged) != len(obj) {
			t.Errorf("merged %d keys, want %d", len(merged), len(obj))
		}
	})

	t.Run("oversized single element is emitted, not dropped", func(t *testing.T) {
		payload := []byte(`["short", "` + string(make([]byte, 0)) + `this element is far longer than the sixteen byte bound in use here"]`)
		chunks, err := splitPayload(payload, 16, codec)
		if err != nil {
			t.Fatalf("splitPayload: %v", err)
		}
		total := 0
		sawOversized := false
		for _, c := range chunks {
			total += c.items
			if c.oversized {
				sawOversized = true
			}
		}
		if total != 2 {
			t.Errorf("total items = %d, want 2 (nothing dropped)", total)
		}
		if !sawOversized {
			t.Error("expected an oversized chunk for the long element")
		}
	})

	t.Run("scalar over bound becomes one oversized chunk", func(t *testing.T) {
		payload := []byte(`"a scalar string payload that cannot be split element-wise"`)
		chunks, err := splitPayload(payload, 8, codec)
		if err != nil {
			t.Fatalf("splitPayload: %v", err)
		}
		if len(chunks) != 1 || !chunks[0].oversized {
			t.Errorf("chunks = %+v, want one oversized chunk", chunks)
		}
	})

	t.Run("chunking is deterministic", func(t *testing.T) {
		items := make([]int, 200)
		for i := range items {
			items[i] = i * 7
		}
		payload, _ := json.Marshal(items)

		a, err := splitPayload(payload, 50, codec)
		if err != nil {
			t.Fatalf("splitPayload: %v", err)
		}
		b, err := splitPayload(payload, 50, codec)
		if err != nil {
			t.Fatalf("splitPayload: %v", err)
		}
		if len(a) != len(b) {
			t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
		}
		for i := range a {
			if string(a[i].raw) != string(b[i].raw) {
				t.Fatalf("chunk %d differs between runs", i)
			}
		}
	})
}
