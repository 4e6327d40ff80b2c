package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("absent file yields defaults", func(t *testing.T) {
		p, warnings, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(warnings) != 0 {
			t.Errorf("warnings = %v, want none", warnings)
		}
		if p.DeterminismTarget != 0.95 {
			t.Errorf("DeterminismTarget = %v, want 0.95", p.DeterminismTarget)
		}
		if p.Heuristics != HeuristicsEnabled {
			t.Errorf("Heuristics = %v, want enabled", p.Heuristics)
		}
		if len(p.Modules) != 0 {
			t.Errorf("Modules = %v, want empty", p.Modules)
		}
	})

	t.Run("caller-lists shape from json", func(t *testing.T) {
		path := writeTemp(t, "policy.json", `{
			"version": 2,
			"determinismTarget": 0.8,
			"modules": {
				"payments": {
					"allowedCallers": ["checkout"],
					"forbiddenCallers": ["ui"],
					"featureFlags": ["new-payments"],
					"requiresPermissions": ["pci"],
					"killPatterns": ["raw-sql"]
				}
			}
		}`)
		p, warnings, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(warnings) != 0 {
			t.Errorf("warnings = %v", warnings)
		}
		mp, ok := p.Module("payments")
		if !ok {
			t.Fatal("payments module not loaded")
		}
		if len(mp.AllowedCallers) != 1 || mp.AllowedCallers[0] != "checkout" {
			t.Errorf("AllowedCallers = %v", mp.AllowedCallers)
		}
		if p.DeterminismTarget != 0.8 {
			t.Errorf("DeterminismTarget = %v, want 0.8", p.DeterminismTarget)
		}
	})

	t.Run("caller-lists shape from yaml", func(t *testing.T) {
		path := writeTemp(t, "policy.yaml", `
determinismTarget: 0.9
modules:
  core:
    forbiddenCallers:
      - experimental
`)
		p, _, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		mp, ok := p.Module("core")
		if !ok || len(mp.ForbiddenCallers) != 1 {
			t.Errorf("core = %+v, ok=%v", mp, ok)
		}
	})

	t.Run("declaration shape from toml converts allowed deps to forbidden callers", func(t *testing.T) {
		path := writeTemp(t, "MODULES.toml", `
determinism_target = 0.85

[[module]]
name = "core"
allowed_dependencies = []

[[module]]
name = "billing"
allowed_dependencies = ["core"]
kill_patterns = ["legacy-orm"]

[[module]]
name = "ui"
allowed_dependencies = ["core", "billing"]
`)
		p, warnings, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(warnings) != 0 {
			t.Errorf("warnings = %v", warnings)
		}
		if p.DeterminismTarget != 0.85 {
			t.Errorf("DeterminismTarget = %v, want 0.85", p.DeterminismTarget)
		}

		// billing may call only core, so ui must list billing as forbidden.
		ui, _ := p.Module("ui")
		if !containsString(ui.ForbiddenCallers, "billing") {
			t.Errorf("ui.ForbiddenCallers = %v, want to contain billing", ui.ForbiddenCallers)
		}
		// core declared an empty list: it may call nothing, so billing
		// forbids core as a caller.
		billing, _ := p.Module("billing")
		if !containsString(billing.ForbiddenCallers, "core") {
			t.Errorf("billing.ForbiddenCallers = %v, want to contain core", billing.ForbiddenCallers)
		}
		if !containsString(billing.KillPatterns, "legacy-orm") {
			t.Errorf("billing.KillPatterns = %v", billing.KillPatterns)
		}
		// ui's own dependencies are unrestricted toward core and billing.
		core, _ := p.Module("core")
		if containsString(core.ForbiddenCallers, "ui") {
			t.Errorf("core.ForbiddenCallers = %v, ui is allowed", core.ForbiddenCallers)
		}
	})

	t.Run("malformed fields are skipped with warnings", func(t *testing.T) {
		path := writeTemp(t, "policy.json", `{
			"determinismTarget": 3.5,
			"modules": {
				"good": {"forbiddenCallers": ["x"]},
				"bad": "not-an-object",
				"mixed": {"allowedCallers": ["ok", 42]}
			}
		}`)
		p, warnings, err := Load(path)
		if err != nil {
			t.Fatalf("Load should not hard-fail on field errors: %v", err)
		}
		if p.DeterminismTarget != 0.95 {
			t.Errorf("out-of-range target should fall back to default, got %v", p.DeterminismTarget)
		}
		if _, ok := p.Module("good"); !ok {
			t.Error("well-formed module dropped")
		}
		if _, ok := p.Module("bad"); ok {
			t.Error("malformed module should be skipped")
		}
		mixed, _ := p.Module("mixed")
		if len(mixed.AllowedCallers) != 1 || mixed.AllowedCallers[0] != "ok" {
			t.Errorf("mixed.AllowedCallers = %v, want [ok]", mixed.AllowedCallers)
		}
		if len(warnings) != 3 {
			t.Errorf("warnings = %d (%v), want 3", len(warnings), warnings)
		}
	})

	t.Run("unparseable document is a hard error", func(t *testing.T) {
		path := writeTemp(t, "policy.json", `{not json`)
		if _, _, err := Load(path); err == nil {
			t.Error("expected hard error for unparseable policy")
		}
	})
}

func TestContentHash(t *testing.T) {
	a := Default()
	a.Modules["m"] = ModulePolicy{ForbiddenCallers: []string{"x"}}
	b := Default()
	b.Modules["m"] = ModulePolicy{ForbiddenCallers: []string{"x"}}

	if a.ContentHash() != b.ContentHash() {
		t.Error("identical policies must share a content hash")
	}

	b.Modules["m"] = ModulePolicy{ForbiddenCallers: []string{"y"}}
	if a.ContentHash() == b.ContentHash() {
		t.Error("different policies must not collide")
	}
}

func TestCache(t *testing.T) {
	cache, err := NewCache(8)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	p := Default()
	hash := p.ContentHash()

	if _, ok := cache.Get(hash); ok {
		t.Error("empty cache should miss")
	}
	cache.Put(hash, p)
	got, ok := cache.Get(hash)
	if !ok || got != p {
		t.Error("cache should return the stored policy")
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", cache.Len())
	}
}
