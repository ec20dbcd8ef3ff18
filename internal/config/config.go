// Package config loads daemon settings from a `.lcid.kdl` file, layered
// over compiled-in defaults, the same layering the teacher applies for
// its own `.lci.kdl`.
package config

import (
	"os"
	"path/filepath"
	"time"

	lcerrors "github.com/standardbeagle/lcid/internal/errors"
)

// InvalidationScope names how broadly a cache invalidation for a method
// propagates: to one file, to a whole workspace, or process-wide.
type InvalidationScope string

const (
	ScopeFile      InvalidationScope = "file"
	ScopeWorkspace InvalidationScope = "workspace"
	ScopeGlobal    InvalidationScope = "global"
)

// MethodPolicy is the per-LSP-method caching policy, one row of the
// PolicyRegistry's compiled-in table, overridable from `.lcid.kdl`.
type MethodPolicy struct {
	Enabled           bool
	TTL               time.Duration
	Scope             InvalidationScope
	CacheEmptyResults bool
}

// Config holds every daemon-level setting: where cache data and logs
// live, the workspace discovery rules, router sizing, and the per-method
// policy table.
type Config struct {
	// CacheRoot is where per-workspace disk cache directories and
	// symbol-graph databases live. Default ~/.cache/lcid.
	CacheRoot string

	// SocketDir is where per-workspace control-surface Unix sockets are
	// created. Default os.TempDir().
	SocketDir string

	// LogLevel is the zerolog level name ("debug", "info", "warn", "error").
	LogLevel string

	// LogFile, if set, additionally writes daemon logs to this path.
	LogFile string

	// WorkspaceMarkers is the ordered set of file/directory names that
	// identify a project root when walking up from a file.
	WorkspaceMarkers []string

	// MaxMarkerWalkDepth bounds how many parent directories the router
	// will climb looking for a marker before giving up.
	MaxMarkerWalkDepth int

	// MaxOpenWorkspaces bounds how many per-workspace caches the router
	// keeps open simultaneously (LRU eviction beyond this).
	MaxOpenWorkspaces int

	// MemoryShardCount is the number of LRU shards the memory cache layer
	// splits entries across.
	MemoryShardCount int

	// MemoryMaxEntriesPerShard bounds each shard's LRU size.
	MemoryMaxEntriesPerShard int

	// DiskNoSync relaxes bbolt's per-transaction fsync for throughput,
	// trading durability for write latency; a background goroutine still
	// syncs periodically at DiskSyncInterval.
	DiskNoSync     bool
	DiskSyncInterval time.Duration

	// SingleflightTimeout bounds how long each caller waits on the shared
	// in-flight call before giving up; it never cancels the call itself.
	SingleflightTimeout time.Duration

	// WorkspaceRevisionTTL is a workspace-revision lifetime setting. No
	// component reads it: a cache's workspace revision changes only through
	// UniversalCache.SetRevision.
	WorkspaceRevisionTTL time.Duration

	// DetailedMetrics enables per-request structured log lines in
	// addition to the aggregate counters always kept.
	DetailedMetrics bool

	// CacheWarmingEnabled toggles UniversalCache.WarmFiles support.
	CacheWarmingEnabled     bool
	CacheWarmingConcurrency int

	// Policies is the per-method caching policy table, seeded from
	// DefaultPolicies and overridable per method from `.lcid.kdl`.
	Policies map[string]MethodPolicy
}

// DefaultWorkspaceMarkers lists the project-root indicators lcid
// recognizes out of the box; embedding deployments can extend or replace
// this list via `.lcid.kdl`.
func DefaultWorkspaceMarkers() []string {
	return []string{
		".git",
		"go.mod",
		"Cargo.toml",
		"package.json",
		"pyproject.toml",
		".lcid.kdl",
	}
}

// DefaultPolicies returns the compiled-in PolicyRegistry table.
func DefaultPolicies() map[string]MethodPolicy {
	return map[string]MethodPolicy{
		"hover":            {Enabled: true, TTL: 30 * time.Minute, Scope: ScopeFile, CacheEmptyResults: false},
		"definition":       {Enabled: true, TTL: 30 * time.Minute, Scope: ScopeFile, CacheEmptyResults: false},
		"references":       {Enabled: true, TTL: 5 * time.Minute, Scope: ScopeWorkspace, CacheEmptyResults: true},
		"implementations":  {Enabled: true, TTL: 5 * time.Minute, Scope: ScopeWorkspace, CacheEmptyResults: true},
		"typeDefinition":   {Enabled: true, TTL: 30 * time.Minute, Scope: ScopeFile, CacheEmptyResults: false},
		"documentSymbols":  {Enabled: true, TTL: 30 * time.Minute, Scope: ScopeFile, CacheEmptyResults: false},
		"workspaceSymbols": {Enabled: true, TTL: 1 * time.Minute, Scope: ScopeWorkspace, CacheEmptyResults: false},
		"callHierarchy":    {Enabled: true, TTL: 5 * time.Minute, Scope: ScopeWorkspace, CacheEmptyResults: true},
		"completion":       {Enabled: false, TTL: 10 * time.Second, Scope: ScopeFile, CacheEmptyResults: false},
	}
}

// Default returns the compiled-in configuration used when no `.lcid.kdl`
// file is found.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		CacheRoot:                filepath.Join(home, ".cache", "lcid"),
		SocketDir:                os.TempDir(),
		LogLevel:                 "info",
		WorkspaceMarkers:         DefaultWorkspaceMarkers(),
		MaxMarkerWalkDepth:       64,
		MaxOpenWorkspaces:        16,
		MemoryShardCount:         8,
		MemoryMaxEntriesPerShard: 4096,
		DiskNoSync:               false,
		DiskSyncInterval:         5 * time.Second,
		SingleflightTimeout:      30 * time.Second,
		WorkspaceRevisionTTL:     60 * time.Second,
		DetailedMetrics:          false,
		CacheWarmingEnabled:      true,
		CacheWarmingConcurrency:  4,
		Policies:                DefaultPolicies(),
	}
}

// Load reads `.lcid.kdl` from projectRoot, if present, layering its
// settings over Default(). A missing file is not an error.
func Load(projectRoot string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(projectRoot, ".lcid.kdl")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, lcerrors.NewConfigError("path", path, err)
	}

	if err := applyKDL(cfg, data); err != nil {
		return nil, lcerrors.NewConfigError("kdl", path, err)
	}
	return cfg, nil
}
