package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// shape discriminates the two historical policy file layouts. It is decided
// exactly once at load time; nothing downstream sniffs document structure.
type shape int

const (
	// shapeCallers is the per-module caller-lists layout (canonical).
	shapeCallers shape = iota
	// shapeDeclarations is the module-declaration layout: each module lists
	// its allowed outgoing dependencies instead of its allowed callers.
	shapeDeclarations
)

// declarationsFile is the declaration layout, typically MODULES.toml.
type declarationsFile struct {
	DeterminismTarget *float64            `json:"determinism_target" yaml:"determinism_target" toml:"determinism_target"`
	Heuristics        string              `json:"heuristics" yaml:"heuristics" toml:"heuristics"`
	Module            []moduleDeclaration `json:"module" yaml:"module" toml:"module"`
}

type moduleDeclaration struct {
	Name                string   `json:"name" yaml:"name" toml:"name"`
	AllowedDependencies []string `json:"allowed_dependencies" yaml:"allowed_dependencies" toml:"allowed_dependencies"`
	FeatureFlags        []string `json:"feature_flags" yaml:"feature_flags" toml:"feature_flags"`
	RequiresPermissions []string `json:"requires_permissions" yaml:"requires_permissions" toml:"requires_permissions"`
	KillPatterns        []string `json:"kill_patterns" yaml:"kill_patterns" toml:"kill_patterns"`
}

// Load reads a policy file in either historical shape, in JSON, YAML, or TOML.
// An absent file yields the defaults. Malformed fields are skipped per-field
// with a warning; only an unreadable or unparseable document is a hard error.
func Load(path string) (*Policy, []string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	switch detectShape(doc) {
	case shapeDeclarations:
		return loadDeclarations(doc)
	default:
		return loadCallers(doc)
	}
}

// detectShape picks the layout from explicit top-level markers: a "module"
// array means the declaration layout, everything else is the caller-lists
// layout.
func detectShape(doc map[string]any) shape {
	if _, ok := doc["module"].([]any); ok {
		return shapeDeclarations
	}
	return shapeCallers
}

// loadCallers decodes the canonical caller-lists layout.
func loadCallers(doc map[string]any) (*Policy, []string, error) {
	p := Default()
	var warnings []string

	if v, ok := doc["version"]; ok {
		if f, ok := toFloat(v); ok {
			p.Version = int(f)
		} else {
			warnings = append(warnings, fmt.Sprintf("policy: version %v is not a number, ignored", v))
		}
	}

	if v, ok := doc["determinismTarget"]; ok {
		if target, ok := toFloat(v); ok && target >= 0 && target <= 1 {
			p.DeterminismTarget = target
		} else {
			warnings = append(warnings, fmt.Sprintf("policy: determinismTarget %v out of [0,1], using default %v", v, DefaultDeterminismTarget))
		}
	}

	if v, ok := doc["heuristics"]; ok {
		if s, ok := v.(string); ok && (HeuristicsSetting(s) == HeuristicsEnabled || HeuristicsSetting(s) == HeuristicsOff) {
			p.Heuristics = HeuristicsSetting(s)
		} else {
			warnings = append(warnings, fmt.Sprintf("policy: heuristics %v is not enabled|off, using enabled", v))
		}
	}

	mods, ok := doc["modules"].(map[string]any)
	if !ok {
		if _, present := doc["modules"]; present {
			warnings = append(warnings, "policy: modules is not an object, ignored")
		}
		return p, warnings, nil
	}

	for name, raw := range mods {
		entry, ok := raw.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("policy: module %q is not an object, skipped", name))
			continue
		}
		mp := ModulePolicy{}
		mp.AllowedCallers = stringList(entry, "allowedCallers", name, &warnings)
		mp.ForbiddenCallers = stringList(entry, "forbiddenCallers", name, &warnings)
		mp.FeatureFlags = stringList(entry, "featureFlags", name, &warnings)
		mp.RequiresPermissions = stringList(entry, "requiresPermissions", name, &warnings)
		mp.KillPatterns = stringList(entry, "killPatterns", name, &warnings)
		p.Modules[name] = mp
	}

	return p, warnings, nil
}

// loadDeclarations decodes the declaration layout and converts it to caller
// semantics: module A declaring allowed_dependencies D may call only D, so
// every declared module M outside D gains A in its forbiddenCallers.
func loadDeclarations(doc map[string]any) (*Policy, []string, error) {
	// Round-trip through JSON to reuse one strict decode for all three
	// source formats.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to normalize policy document: %w", err)
	}
	var df declarationsFile
	if err := json.Unmarshal(raw, &df); err != nil {
		return nil, nil, fmt.Errorf("failed to decode module declarations: %w", err)
	}

	p := Default()
	var warnings []string

	if df.DeterminismTarget != nil {
		if *df.DeterminismTarget >= 0 && *df.DeterminismTarget <= 1 {
			p.DeterminismTarget = *df.DeterminismTarget
		} else {
			warnings = append(warnings, fmt.Sprintf("policy: determinism_target %v out of [0,1], using default", *df.DeterminismTarget))
		}
	}
	if df.Heuristics == string(HeuristicsOff) {
		p.Heuristics = HeuristicsOff
	}

	declared := make(map[string]bool, len(df.Module))
	allowedDeps := make(map[string][]string, len(df.Module))
	for _, m := range df.Module {
		if m.Name == "" {
			warnings = append(warnings, "policy: module declaration without a name, skipped")
			continue
		}
		declared[m.Name] = true
		allowedDeps[m.Name] = m.AllowedDependencies
		p.Modules[m.Name] = ModulePolicy{
			FeatureFlags:        m.FeatureFlags,
			RequiresPermissions: m.RequiresPermissions,
			KillPatterns:        m.KillPatterns,
		}
	}

	for caller, deps := range allowedDeps {
		if deps == nil {
			// No dependency list declared: caller is unconstrained.
			continue
		}
		allowed := make(map[string]bool, len(deps))
		for _, d := range deps {
			allowed[d] = true
		}
		for callee := range declared {
			if callee == caller || allowed[callee] {
				continue
			}
			mp := p.Modules[callee]
			mp.ForbiddenCallers = append(mp.ForbiddenCallers, caller)
			p.Modules[callee] = mp
		}
	}

	// Deterministic forbidden-caller ordering regardless of map iteration.
	for name, mp := range p.Modules {
		sort.Strings(mp.ForbiddenCallers)
		p.Modules[name] = mp
	}

	return p, warnings, nil
}

// stringList extracts a []string field, warning on and skipping non-string
// elements rather than rejecting the module.
func stringList(entry map[string]any, key, module string, warnings *[]string) []string {
	raw, ok := entry[key]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		*warnings = append(*warnings, fmt.Sprintf("policy: module %q field %s is not a list, ignored", module, key))
		return nil
	}
	var out []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			*warnings = append(*warnings, fmt.Sprintf("policy: module %q field %s contains non-string %v, skipped", module, key, item))
			continue
		}
		out = append(out, s)
	}
	return out
}

// toFloat widens the numeric types the three decoders produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
