// Package router resolves a file to its workspace and routes cache
// operations to that workspace's UniversalCache, bounding how many
// per-workspace caches stay open at once.
package router

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/standardbeagle/lcid/internal/cache"
	"github.com/standardbeagle/lcid/internal/config"
	lcerrors "github.com/standardbeagle/lcid/internal/errors"
)

// state names where a workspace sits in the Absent -> Opening -> Open ->
// Closing -> Absent lifecycle.
type state int

const (
	stateAbsent state = iota
	stateOpening
	stateOpen
	stateClosing
)

// handle bundles everything the router keeps open per workspace: its
// cache, its own singleflight group (so unrelated workspaces never
// coalesce into the same in-flight call), and bookkeeping for the
// control surface's workspace listing.
type handle struct {
	cache        *cache.UniversalCache
	singleflight *cache.SingleflightGroup
	root         string
	cachePath    string
	createdAt    time.Time
	lastAccessed time.Time
}

// WorkspaceInfo is one row of ListWorkspaces's output.
type WorkspaceInfo struct {
	WorkspaceID  string
	Root         string
	CachePath    string
	Entries      int
	LastAccessed time.Time
	CreatedAt    time.Time
}

// ClearResult reports what Clear did across one or more workspaces.
type ClearResult struct {
	ClearedWorkspaces []string
	TotalEntries      int
}

// WorkspaceCacheRouter discovers the workspace owning a file (walking up
// to the nearest project marker) and hands back that workspace's
// UniversalCache, opening one on first use and enforcing a bound on how
// many stay open via LRU eviction.
type WorkspaceCacheRouter struct {
	cfg      *config.Config
	policies *cache.PolicyRegistry

	mu       sync.Mutex
	handles  *lru.Cache[string, *handle]
	opening  map[string]chan struct{}
	states   map[string]state
}

// NewWorkspaceCacheRouter builds a router bounded to cfg.MaxOpenWorkspaces
// simultaneously open per-workspace caches.
func NewWorkspaceCacheRouter(cfg *config.Config, policies *cache.PolicyRegistry) (*WorkspaceCacheRouter, error) {
	r := &WorkspaceCacheRouter{
		cfg:      cfg,
		policies: policies,
		opening:  make(map[string]chan struct{}),
		states:   make(map[string]state),
	}

	bound := cfg.MaxOpenWorkspaces
	if bound <= 0 {
		bound = 16
	}

	handles, err := lru.NewWithEvict[string, *handle](bound, func(root string, h *handle) {
		r.closeHandle(root, h)
	})
	if err != nil {
		return nil, err
	}
	r.handles = handles
	return r, nil
}

// DiscoverWorkspace walks up from filePath looking for the nearest
// directory containing one of cfg.WorkspaceMarkers, bounded to
// cfg.MaxMarkerWalkDepth parent directories. Nested workspaces are
// distinct; the innermost match wins.
func (r *WorkspaceCacheRouter) DiscoverWorkspace(filePath string) (string, error) {
	dir := filePath
	if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
		dir = filepath.Dir(filePath)
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", lcerrors.NewWorkspaceError("discover", filePath, err)
	}

	maxDepth := r.cfg.MaxMarkerWalkDepth
	if maxDepth <= 0 {
		maxDepth = 64
	}

	for depth := 0; depth < maxDepth; depth++ {
		if hasMarker(dir, r.cfg.WorkspaceMarkers) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", lcerrors.NewWorkspaceError("discover", filePath, fmt.Errorf("no workspace marker found within %d levels", maxDepth))
}

func hasMarker(dir string, markers []string) bool {
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// ResolveCache implements cache.WorkspaceResolver: it discovers filePath's
// workspace and returns its (possibly newly opened) UniversalCache and
// singleflight group.
func (r *WorkspaceCacheRouter) ResolveCache(ctx context.Context, filePath string) (*cache.UniversalCache, *cache.SingleflightGroup, string, error) {
	root, err := r.DiscoverWorkspace(filePath)
	if err != nil {
		return nil, nil, "", err
	}
	h, err := r.open(root)
	if err != nil {
		return nil, nil, "", err
	}
	return h.cache, h.singleflight, root, nil
}

// open returns the already-open handle for root, or opens a fresh one,
// serializing concurrent first-openers of the same workspace so only one
// actually constructs the UniversalCache.
func (r *WorkspaceCacheRouter) open(root string) (*handle, error) {
	for {
		r.mu.Lock()
		if h, ok := r.handles.Get(root); ok {
			h.lastAccessed = time.Now()
			r.mu.Unlock()
			return h, nil
		}

		if ch, opening := r.opening[root]; opening {
			r.mu.Unlock()
			<-ch
			continue
		}

		ch := make(chan struct{})
		r.opening[root] = ch
		r.states[root] = stateOpening
		r.mu.Unlock()

		h, err := r.buildHandle(root)

		r.mu.Lock()
		delete(r.opening, root)
		close(ch)
		if err != nil {
			r.states[root] = stateAbsent
			r.mu.Unlock()
			return nil, err
		}
		r.states[root] = stateOpen
		r.handles.Add(root, h)
		r.mu.Unlock()

		return h, nil
	}
}

func (r *WorkspaceCacheRouter) buildHandle(root string) (*handle, error) {
	cachePath := filepath.Join(r.cfg.CacheRoot, workspaceDirName(root), "workspace.bolt")

	uc, err := cache.NewUniversalCache(root, cachePath, r.policies, r.cfg)
	if err != nil {
		return nil, lcerrors.NewWorkspaceError("open", root, err)
	}

	return &handle{
		cache:        uc,
		singleflight: cache.NewSingleflightGroup(),
		root:         root,
		cachePath:    cachePath,
		createdAt:    time.Now(),
		lastAccessed: time.Now(),
	}, nil
}

// closeHandle flushes a workspace's cache before its handle is dropped,
// via LRU eviction or Close, per spec.md §4.8: "closing a
// cache means flushing and dropping the handle, not deleting data."
// It runs as the handle LRU's evict callback, which fires only inside
// handles.Add (from open) and handles.Purge (from Close); both callers
// already hold r.mu, so closeHandle does not lock it again.
func (r *WorkspaceCacheRouter) closeHandle(root string, h *handle) {
	r.states[root] = stateClosing
	h.cache.Close()
	r.states[root] = stateAbsent
}

// ListWorkspaces returns a snapshot of every currently open workspace.
func (r *WorkspaceCacheRouter) ListWorkspaces() []WorkspaceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []WorkspaceInfo
	for _, root := range r.handles.Keys() {
		h, ok := r.handles.Peek(root)
		if !ok {
			continue
		}
		stats := h.cache.Stats()
		out = append(out, WorkspaceInfo{
			WorkspaceID:  workspaceDirName(root),
			Root:         root,
			CachePath:    h.cachePath,
			Entries:      stats.DiskEntries,
			LastAccessed: h.lastAccessed,
			CreatedAt:    h.createdAt,
		})
	}
	return out
}

// Clear removes the cache contents of the named workspace (or of every
// open workspace, if root is empty). The workspace handles stay open.
func (r *WorkspaceCacheRouter) Clear(ctx context.Context, root string) (ClearResult, error) {
	result := ClearResult{}

	if root != "" {
		r.mu.Lock()
		h, ok := r.handles.Get(root)
		r.mu.Unlock()
		if !ok {
			return result, lcerrors.NewWorkspaceError("clear", root, fmt.Errorf("workspace not open"))
		}
		stats := h.cache.Stats()
		if err := h.cache.InvalidateWorkspace(); err != nil {
			return result, err
		}
		result.ClearedWorkspaces = []string{root}
		result.TotalEntries = stats.DiskEntries
		return result, nil
	}

	for _, info := range r.ListWorkspaces() {
		r.mu.Lock()
		h, ok := r.handles.Get(info.Root)
		r.mu.Unlock()
		if !ok {
			continue
		}
		if err := h.cache.InvalidateWorkspace(); err != nil {
			return result, err
		}
		result.ClearedWorkspaces = append(result.ClearedWorkspaces, info.Root)
		result.TotalEntries += info.Entries
	}
	return result, nil
}

// Close flushes and drops every open workspace handle.
func (r *WorkspaceCacheRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles.Purge()
}

func workspaceDirName(root string) string {
	h := fnv32a(root)
	return fmt.Sprintf("%08x", h)
}

func fnv32a(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	hash := uint32(offset32)
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= prime32
	}
	return hash
}
