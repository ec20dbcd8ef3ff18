package router

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/lcid/internal/cache"
	"github.com/standardbeagle/lcid/internal/config"
)

func newTestRouter(t *testing.T, maxOpen int) *WorkspaceCacheRouter {
	t.Helper()
	cfg := config.Default()
	cfg.CacheRoot = t.TempDir()
	cfg.MemoryShardCount = 2
	cfg.MemoryMaxEntriesPerShard = 64
	if maxOpen > 0 {
		cfg.MaxOpenWorkspaces = maxOpen
	}

	r, err := NewWorkspaceCacheRouter(cfg, cache.NewPolicyRegistry(nil))
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func makeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example\n"), 0644))
	return root
}

func TestDiscoverWorkspaceFindsMarker(t *testing.T) {
	r := newTestRouter(t, 0)
	root := makeWorkspace(t)

	sub := filepath.Join(root, "pkg", "inner")
	require.NoError(t, os.MkdirAll(sub, 0755))
	file := filepath.Join(sub, "file.go")
	require.NoError(t, os.WriteFile(file, []byte("package inner\n"), 0644))

	found, err := r.DiscoverWorkspace(file)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestDiscoverWorkspaceNestedInnermostWins(t *testing.T) {
	r := newTestRouter(t, 0)
	outer := makeWorkspace(t)

	inner := filepath.Join(outer, "vendor", "nested")
	require.NoError(t, os.MkdirAll(inner, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(inner, "go.mod"), []byte("module nested\n"), 0644))

	file := filepath.Join(inner, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0644))

	found, err := r.DiscoverWorkspace(file)
	require.NoError(t, err)
	assert.Equal(t, inner, found, "the nearest marker wins over an outer workspace")
}

func TestDiscoverWorkspaceNoMarkerFails(t *testing.T) {
	r := newTestRouter(t, 0)
	root := t.TempDir()
	file := filepath.Join(root, "orphan.go")
	require.NoError(t, os.WriteFile(file, []byte("package orphan\n"), 0644))

	_, err := r.DiscoverWorkspace(file)
	assert.Error(t, err)
}

func TestResolveCacheOpensWorkspaceOnce(t *testing.T) {
	r := newTestRouter(t, 0)
	root := makeWorkspace(t)
	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0644))

	uc1, sg1, resolvedRoot, err := r.ResolveCache(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, root, resolvedRoot)

	uc2, sg2, _, err := r.ResolveCache(context.Background(), file)
	require.NoError(t, err)
	assert.Same(t, uc1, uc2, "the same workspace must reuse its open cache handle")
	assert.Same(t, sg1, sg2)
}

func TestResolveCacheConcurrentFirstOpenSerializes(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRouter(t, 0)
	root := makeWorkspace(t)
	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0644))

	const n = 8
	results := make([]*cache.UniversalCache, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			uc, _, _, err := r.ResolveCache(context.Background(), file)
			assert.NoError(t, err)
			results[idx] = uc
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i], "concurrent first-openers of the same workspace must converge on one handle")
	}
}

func TestListWorkspacesReflectsOpenHandles(t *testing.T) {
	r := newTestRouter(t, 0)
	root := makeWorkspace(t)
	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0644))

	_, _, _, err := r.ResolveCache(context.Background(), file)
	require.NoError(t, err)

	workspaces := r.ListWorkspaces()
	require.Len(t, workspaces, 1)
	assert.Equal(t, root, workspaces[0].Root)
}

func TestLRUEvictionClosesVictimHandle(t *testing.T) {
	r := newTestRouter(t, 1)

	rootA := makeWorkspace(t)
	fileA := filepath.Join(rootA, "a.go")
	require.NoError(t, os.WriteFile(fileA, []byte("package a\n"), 0644))

	rootB := makeWorkspace(t)
	fileB := filepath.Join(rootB, "b.go")
	require.NoError(t, os.WriteFile(fileB, []byte("package b\n"), 0644))

	_, _, _, err := r.ResolveCache(context.Background(), fileA)
	require.NoError(t, err)

	_, _, _, err = r.ResolveCache(context.Background(), fileB)
	require.NoError(t, err)

	workspaces := r.ListWorkspaces()
	require.Len(t, workspaces, 1, "bound of 1 open workspace must evict the older one")
	assert.Equal(t, rootB, workspaces[0].Root)

	// Reopening the evicted workspace must succeed (it was flushed, not destroyed).
	_, _, _, err = r.ResolveCache(context.Background(), fileA)
	require.NoError(t, err)
}

func TestClearNamedWorkspace(t *testing.T) {
	r := newTestRouter(t, 0)
	root := makeWorkspace(t)
	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0644))

	uc, _, _, err := r.ResolveCache(context.Background(), file)
	require.NoError(t, err)
	require.NoError(t, uc.Set(context.Background(), "hover", file, "{}", []byte("v"), false))

	result, err := r.Clear(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{root}, result.ClearedWorkspaces)

	_, hit, _ := uc.Get(context.Background(), "hover", file, "{}")
	assert.False(t, hit)
}

func TestClearAllWorkspaces(t *testing.T) {
	r := newTestRouter(t, 0)
	root := makeWorkspace(t)
	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0644))

	_, _, _, err := r.ResolveCache(context.Background(), file)
	require.NoError(t, err)

	result, err := r.Clear(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, result.ClearedWorkspaces, root)
}

func TestClearUnopenedWorkspaceErrors(t *testing.T) {
	r := newTestRouter(t, 0)
	_, err := r.Clear(context.Background(), "/nonexistent/workspace")
	assert.Error(t, err)
}
