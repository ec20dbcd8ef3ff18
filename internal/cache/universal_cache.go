package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/standardbeagle/lcid/internal/config"
	"github.com/standardbeagle/lcid/internal/lsp"
	"github.com/standardbeagle/lcid/internal/pathutil"
)

// Stats mirrors the original's CacheLayerStats: the memory/disk counters
// plus two cross-cutting gauge fields (open workspaces, singleflight
// activity). UniversalCache.Stats does not fill ActiveWorkspaces or
// SingleflightActive, and no other component sets them, so both read 0.
type Stats struct {
	Memory              MemoryStats
	DiskEntries         int
	ActiveWorkspaces    int
	SingleflightActive  int
	CacheWarmingEnabled bool
}

// ClearSymbolResult reports what UniversalCache.ClearSymbol removed.
type ClearSymbolResult struct {
	Count     int
	Positions [][2]int // (line, column) pairs that were matched
	Methods   []string
	Bytes     int
}

// KeyInfo is one row of UniversalCache.ListKeys's paged output.
type KeyInfo struct {
	Key          string
	Method       string
	FilePath     string
	SizeBytes    int
	CreatedAt    time.Time
	LastAccessed time.Time
}

// UniversalCache composes FingerprintBuilder, SingleflightGroup,
// MemoryLayer, DiskLayer, and PolicyRegistry behind spec.md §4.6's public
// operation set, scoped to a single workspace.
type UniversalCache struct {
	WorkspaceRoot string

	fingerprints *FingerprintBuilder
	singleflight *SingleflightGroup
	memory       *MemoryLayer
	disk         *DiskLayer
	policies     *PolicyRegistry

	mu               sync.Mutex
	revision         string
	warmingEnabled   bool
	warmConcurrency  int
}

// NewUniversalCache builds a per-workspace UniversalCache, opening its
// DiskLayer at diskPath.
func NewUniversalCache(workspaceRoot, diskPath string, policies *PolicyRegistry, cfg *config.Config) (*UniversalCache, error) {
	memory, err := NewMemoryLayer(cfg.MemoryShardCount, cfg.MemoryMaxEntriesPerShard)
	if err != nil {
		return nil, err
	}

	disk, err := OpenDiskLayer(diskPath, DiskLayerConfig{
		NoSync:       cfg.DiskNoSync,
		SyncInterval: cfg.DiskSyncInterval,
	})
	if err != nil {
		return nil, err
	}

	return &UniversalCache{
		WorkspaceRoot:   workspaceRoot,
		fingerprints:    NewFingerprintBuilder(),
		singleflight:    NewSingleflightGroup(),
		memory:          memory,
		disk:            disk,
		policies:        policies,
		warmingEnabled:  cfg.CacheWarmingEnabled,
		warmConcurrency: cfg.CacheWarmingConcurrency,
	}, nil
}

// SetRevision updates the workspace revision tag entries are stamped
// with, and against which visibility is checked on Get.
func (c *UniversalCache) SetRevision(rev string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revision = rev
}

func (c *UniversalCache) currentRevision() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}

// Get returns a memory hit, promoting a disk hit to memory on the way
// out, or (nil, false, nil) on a clean miss. An entry whose stored
// workspace_revision differs from the current one is treated as a miss.
func (c *UniversalCache) Get(ctx context.Context, method lsp.Method, filePath, params string) ([]byte, bool, error) {
	policy, ok := c.policies.Lookup(method)
	if !ok || !policy.Enabled {
		return nil, false, nil
	}

	fp, err := c.fingerprints.BuildStorageKey(method, c.WorkspaceRoot, filePath, params, c.currentRevision(), FingerprintOptions{})
	if err != nil {
		return nil, false, err
	}
	key := fp.StorageKey()

	if v, ok := c.memory.Get(key); ok {
		return v, true, nil
	}

	entry, ok, err := c.disk.Get(key)
	if err != nil {
		return nil, false, fmt.Errorf("disk get: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	if entry.WorkspaceRevision != "" && entry.WorkspaceRevision != c.currentRevision() {
		return nil, false, nil
	}

	c.memory.Put(key, entry.Value, policy.TTL)
	return entry.Value, true, nil
}

// Set writes value for (method, filePath, params) into both memory and
// disk. Nothing is stored when the method's policy is missing or
// disabled, and an empty response is stored only if the policy opts into
// caching empty results (policy.CacheEmptyResults).
func (c *UniversalCache) Set(ctx context.Context, method lsp.Method, filePath, params string, value []byte, isEmpty bool) error {
	policy, ok := c.policies.Lookup(method)
	if !ok || !policy.Enabled {
		return nil
	}
	if isEmpty && !policy.CacheEmptyResults {
		return nil
	}

	fp, err := c.fingerprints.BuildStorageKey(method, c.WorkspaceRoot, filePath, params, c.currentRevision(), FingerprintOptions{})
	if err != nil {
		return err
	}
	key := fp.StorageKey()
	relFile := relativeFilePath(c.WorkspaceRoot, filePath)

	c.memory.Put(key, value, policy.TTL)

	line, column := extractPosition(params)
	entry := DiskEntry{
		Value:             value,
		Method:            string(method),
		FilePath:          relFile,
		CreatedAt:         time.Now(),
		LastAccessed:      time.Now(),
		SizeBytes:         len(value),
		TTL:               policy.TTL,
		WorkspaceRevision: c.currentRevision(),
		Line:              line,
		Column:            column,
	}
	return c.disk.Put(key, entry)
}

// InvalidateFile removes every cache entry keyed against filePath, in
// both memory and disk.
func (c *UniversalCache) InvalidateFile(filePath string) (int, error) {
	relFile := relativeFilePath(c.WorkspaceRoot, filePath)
	removedMem := c.memory.InvalidateByPredicate(func(key string) bool {
		return containsFilePath(key, relFile)
	})
	removedDisk, err := c.disk.InvalidateFile(relFile)
	if err != nil {
		return removedMem, err
	}
	return removedMem + removedDisk, nil
}

// InvalidateWorkspace clears the entire workspace: its disk tier plus
// every memory entry belonging to it. Since a UniversalCache instance is
// already scoped to one workspace, that is everything it holds.
func (c *UniversalCache) InvalidateWorkspace() error {
	c.memory.InvalidateByPredicate(func(string) bool { return true })
	return c.disk.ClearWorkspace()
}

// ClearSymbol removes cache entries for filePath whose recorded position
// matches line/column (when given) and whose method is in methods (when
// given), or every cached method/position for filePath when both are
// nil. allPositions, when true, ignores line/column even if given.
func (c *UniversalCache) ClearSymbol(filePath string, line, column *int, methods []string, allPositions bool) (ClearSymbolResult, error) {
	relFile := relativeFilePath(c.WorkspaceRoot, filePath)
	methodSet := map[string]bool{}
	for _, m := range methods {
		methodSet[m] = true
	}

	result := ClearSymbolResult{}
	methodsSeen := map[string]bool{}

	var toRemove []string
	err := c.disk.IterForStats(func(key string, entry DiskEntry) bool {
		if entry.FilePath != relFile {
			return true
		}
		if len(methodSet) > 0 && !methodSet[entry.Method] {
			return true
		}
		if !allPositions && (line != nil || column != nil) {
			if line != nil && entry.Line != *line {
				return true
			}
			if column != nil && entry.Column != *column {
				return true
			}
			result.Positions = append(result.Positions, [2]int{entry.Line, entry.Column})
		}
		toRemove = append(toRemove, key)
		methodsSeen[entry.Method] = true
		result.Bytes += entry.SizeBytes
		return true
	})
	if err != nil {
		return result, err
	}

	for _, key := range toRemove {
		c.memory.InvalidateByPredicate(func(k string) bool { return k == key })
	}

	if err := c.disk.removeKeys(toRemove); err != nil {
		return result, err
	}

	result.Count = len(toRemove)
	for m := range methodsSeen {
		result.Methods = append(result.Methods, m)
	}
	return result, nil
}

// ListKeys returns up to limit KeyInfo rows starting at offset, for the
// control surface's `cache list` diagnostic command.
func (c *UniversalCache) ListKeys(limit, offset int) ([]KeyInfo, error) {
	var all []KeyInfo
	err := c.disk.IterForStats(func(key string, entry DiskEntry) bool {
		all = append(all, KeyInfo{
			Key:          key,
			Method:       entry.Method,
			FilePath:     entry.FilePath,
			SizeBytes:    entry.SizeBytes,
			CreatedAt:    entry.CreatedAt,
			LastAccessed: entry.LastAccessed,
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// WarmFiles pre-populates the cache for a set of files across the given
// methods by invoking upstream for any (file, method) pair not already
// cached, bounded by the configured warming concurrency. Supplements
// spec.md with the original's `warm_cache` feature, dropped from the
// distilled spec.
func (c *UniversalCache) WarmFiles(ctx context.Context, files []string, methods []lsp.Method, upstream func(context.Context, lsp.Method, string) ([]byte, bool, error)) (int, error) {
	if !c.warmingEnabled {
		return 0, nil
	}

	sem := make(chan struct{}, max(1, c.warmConcurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex
	warmed := 0
	var firstErr error

	for _, file := range files {
		for _, method := range methods {
			file, method := file, method
			if _, hit, _ := c.Get(ctx, method, file, "{}"); hit {
				continue
			}
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				value, ok, err := upstream(ctx, method, file)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				if ok {
					if setErr := c.Set(ctx, method, file, "{}", value, false); setErr == nil {
						warmed++
					}
				}
			}()
		}
	}
	wg.Wait()
	return warmed, firstErr
}

// Stats reports the cache's aggregate counters.
func (c *UniversalCache) Stats() Stats {
	diskCount := 0
	c.disk.IterForStats(func(string, DiskEntry) bool {
		diskCount++
		return true
	})
	return Stats{
		Memory:              c.memory.Stats(),
		DiskEntries:         diskCount,
		CacheWarmingEnabled: c.warmingEnabled,
	}
}

// Close flushes and releases the underlying disk layer.
func (c *UniversalCache) Close() error {
	return c.disk.Close()
}

func relativeFilePath(workspaceRoot, filePath string) string {
	return pathutil.ToRelative(filePath, workspaceRoot)
}

// containsFilePath reports whether key — a Fingerprint's "method:relFile:
// contentHash:params:revision" storage key — was built against relFile.
func containsFilePath(key, relFile string) bool {
	want := ":" + relFile + ":"
	if len(key) >= len(relFile) && key[:len(relFile)] == relFile {
		return true
	}
	for i := 0; i+len(want) <= len(key); i++ {
		if key[i:i+len(want)] == want {
			return true
		}
	}
	return false
}

// extractPosition best-effort parses a {"position":{"line":.,"character":.}}
// shaped params string, returning (-1, -1) if absent or malformed.
func extractPosition(params string) (line, column int) {
	line, column = -1, -1
	if params == "" {
		return
	}
	var parsed struct {
		Position *struct {
			Line      int `json:"line"`
			Character int `json:"character"`
		} `json:"position"`
	}
	if err := json.Unmarshal([]byte(params), &parsed); err != nil || parsed.Position == nil {
		return
	}
	return parsed.Position.Line, parsed.Position.Character
}
