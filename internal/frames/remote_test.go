package frames

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"archo/internal/logging"
)

func TestRemoteStorePut(t *testing.T) {
	seen := map[string]bool{}
	var attempts int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.Method != http.MethodPut || r.URL.Path != "/frames" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var f Frame
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		inserted := !seen[f.FrameID]
		seen[f.FrameID] = true
		_ = json.NewEncoder(w).Encode(PutResult{FrameID: f.FrameID, Inserted: inserted})
	}))
	defer srv.Close()

	store := NewRemoteStore(&RemoteConfig{URL: srv.URL, Token: "secret"}, logging.NewLogger(logging.Config{Level: logging.ErrorLevel}))
	f := testFrame("symbols", []byte(`["sym:a"]`), 1, 1)
	ctx := context.Background()

	first, err := store.Put(ctx, f)
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if !first.Inserted {
		t.Error("first Put should insert")
	}

	second, err := store.Put(ctx, f)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if second.Inserted {
		t.Error("second Put should be a no-op")
	}
}

func TestRemoteStoreErrors(t *testing.T) {
	t.Run("4xx is a hard error without retry", func(t *testing.T) {
		var hits int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			http.Error(w, `{"error":"bad frame"}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		store := NewRemoteStore(&RemoteConfig{URL: srv.URL}, logging.NewLogger(logging.Config{Level: logging.ErrorLevel}))
		_, err := store.Put(context.Background(), testFrame("symbols", []byte(`[]`), 1, 1))
		if err == nil {
			t.Fatal("expected error on 400")
		}
		if hits != 1 {
			t.Errorf("server hit %d times, want 1 (no retry on 4xx)", hits)
		}
	})

	t.Run("5xx retries then succeeds", func(t *testing.T) {
		var hits int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			if hits < 3 {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(struct {
				Frames []Frame `json:"frames"`
			}{})
		}))
		defer srv.Close()

		store := NewRemoteStore(&RemoteConfig{URL: srv.URL}, logging.NewLogger(logging.Config{Level: logging.ErrorLevel}))
		got, err := store.Get(context.Background(), "symbols", Scope{Repo: "r", Commit: "c"}, 10)
		if err != nil {
			t.Fatalf("Get after retries: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("frames = %d, want 0", len(got))
		}
		if hits != 3 {
			t.Errorf("server hit %d times, want 3", hits)
		}
	})
}

func TestLoadRemoteConfig(t *testing.T) {
	t.Run("parses remotes.toml", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "remotes.toml")
		content := "[remote]\nurl = \"https://facts.internal.example\"\ntoken = \"tok\"\ntimeout_ms = 1500\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadRemoteConfig(path)
		if err != nil {
			t.Fatalf("LoadRemoteConfig: %v", err)
		}
		if cfg.URL != "https://facts.internal.example" || cfg.Token != "tok" || cfg.TimeoutMs != 1500 {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("missing url is an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "remotes.toml")
		if err := os.WriteFile(path, []byte("[remote]\ntoken = \"x\"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadRemoteConfig(path); err == nil {
			t.Error("expected error for missing url")
		}
	})
}
