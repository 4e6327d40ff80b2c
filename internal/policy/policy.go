// Package policy holds the declarative architectural policy: per-module
// caller constraints, gating flags, deprecated-pattern labels, and the global
// determinism target. Policy is the single source of truth for module
// identity; a module absent from policy is unconstrained but unverifiable.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// DefaultDeterminismTarget applies when no policy file is present.
const DefaultDeterminismTarget = 0.95

// HeuristicsSetting is the policy-level switch for heuristic call resolution.
type HeuristicsSetting string

const (
	// HeuristicsEnabled allows the ladder to escalate through heuristic rungs
	HeuristicsEnabled HeuristicsSetting = "enabled"
	// HeuristicsOff restricts the graph to statically resolved edges
	HeuristicsOff HeuristicsSetting = "off"
)

// ModulePolicy constrains one declared module. Caller-list semantics are
// deliberately asymmetric: forbiddenCallers is an explicit deny-list, while a
// NON-EMPTY allowedCallers implicitly forbids every caller not listed. An
// empty or absent allowedCallers list constrains nothing.
type ModulePolicy struct {
	AllowedCallers      []string `json:"allowedCallers,omitempty" yaml:"allowedCallers,omitempty"`
	ForbiddenCallers    []string `json:"forbiddenCallers,omitempty" yaml:"forbiddenCallers,omitempty"`
	FeatureFlags        []string `json:"featureFlags,omitempty" yaml:"featureFlags,omitempty"`
	RequiresPermissions []string `json:"requiresPermissions,omitempty" yaml:"requiresPermissions,omitempty"`
	KillPatterns        []string `json:"killPatterns,omitempty" yaml:"killPatterns,omitempty"`
}

// Policy is the canonical in-memory policy, whichever file shape it was
// loaded from.
type Policy struct {
	Version           int                     `json:"version,omitempty" yaml:"version,omitempty"`
	DeterminismTarget float64                 `json:"determinismTarget" yaml:"determinismTarget"`
	Heuristics        HeuristicsSetting       `json:"heuristics,omitempty" yaml:"heuristics,omitempty"`
	Modules           map[string]ModulePolicy `json:"modules" yaml:"modules"`
}

// Default returns the policy used when no file exists: target 0.95, no
// declared modules, heuristics enabled.
func Default() *Policy {
	return &Policy{
		DeterminismTarget: DefaultDeterminismTarget,
		Heuristics:        HeuristicsEnabled,
		Modules:           map[string]ModulePolicy{},
	}
}

// Module returns the declared policy for a module name. The second return is
// false for undeclared modules, which are unconstrained, never violations.
func (p *Policy) Module(name string) (ModulePolicy, bool) {
	mp, ok := p.Modules[name]
	return mp, ok
}

// ModuleNames returns the declared module names, sorted.
func (p *Policy) ModuleNames() []string {
	names := make([]string, 0, len(p.Modules))
	for name := range p.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContentHash is the cache key for this policy: a sha256 over the canonical
// JSON rendering. Identical content always hashes identically, so cache
// invalidation reduces to key presence.
func (p *Policy) ContentHash() string {
	// json.Marshal sorts map keys, making the rendering canonical.
	data, err := json.Marshal(p)
	if err != nil {
		// Policy contains only marshalable types; this is unreachable in
		// practice but must not panic a run.
		data = []byte(err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
