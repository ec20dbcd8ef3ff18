package cache

import (
	"github.com/standardbeagle/lcid/internal/config"
	"github.com/standardbeagle/lcid/internal/lsp"
)

// PolicyRegistry holds the immutable, process-global per-method caching
// policy table. It is built once at daemon startup from config.Config and
// never mutated afterward, the one exception spec.md allows to "no
// process-global mutable state."
type PolicyRegistry struct {
	policies map[lsp.Method]config.MethodPolicy
}

// NewPolicyRegistry builds a PolicyRegistry from a config's policy table,
// falling back to config.DefaultPolicies for any method missing from it.
func NewPolicyRegistry(policies map[string]config.MethodPolicy) *PolicyRegistry {
	defaults := config.DefaultPolicies()
	merged := make(map[lsp.Method]config.MethodPolicy, len(defaults))
	for name, p := range defaults {
		merged[lsp.Method(name)] = p
	}
	for name, p := range policies {
		merged[lsp.Method(name)] = p
	}
	return &PolicyRegistry{policies: merged}
}

// Lookup returns the policy for method, and whether the method is known
// at all. An unknown method is always treated as policy-disabled by
// CacheMiddleware.
func (r *PolicyRegistry) Lookup(method lsp.Method) (config.MethodPolicy, bool) {
	p, ok := r.policies[method]
	return p, ok
}

// Enabled reports whether caching is turned on for method, treating an
// unknown method as disabled.
func (r *PolicyRegistry) Enabled(method lsp.Method) bool {
	p, ok := r.policies[method]
	return ok && p.Enabled
}
