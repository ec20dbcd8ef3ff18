package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/standardbeagle/lcid/internal/config"
	"github.com/standardbeagle/lcid/internal/logging"
	"github.com/standardbeagle/lcid/internal/lsp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	cache *UniversalCache
	sg    *SingleflightGroup
	root  string
}

func (f *fakeResolver) ResolveCache(context.Context, string) (*UniversalCache, *SingleflightGroup, string, error) {
	return f.cache, f.sg, f.root, nil
}

func newTestMiddleware(t *testing.T) (*CacheMiddleware, string) {
	t.Helper()
	uc, root := newTestUniversalCache(t)
	resolver := &fakeResolver{cache: uc, sg: NewSingleflightGroup(), root: root}

	logger, err := logging.New(logging.Options{Level: logging.InfoLevel})
	require.NoError(t, err)

	mw := NewCacheMiddleware(resolver, lsp.FileSystemDocumentProvider{}, MiddlewareConfig{}, logger)
	return mw, root
}

func TestMiddlewareCachesUpstreamMiss(t *testing.T) {
	mw, root := newTestMiddleware(t)
	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0644))

	calls := 0
	upstream := func(_ context.Context, req lsp.Request) (lsp.Response, error) {
		calls++
		content := "docs"
		return lsp.HoverResponse{Content: &content}.WithRequestID(req.RequestID()), nil
	}

	req1 := lsp.NewHoverRequest(file, 1, 2)
	resp1, err := mw.Handle(context.Background(), req1, upstream)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, req1.RequestID(), resp1.RequestID())

	req2 := lsp.NewHoverRequest(file, 1, 2)
	resp2, err := mw.Handle(context.Background(), req2, upstream)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second identical request must be served from cache")
	assert.Equal(t, req2.RequestID(), resp2.RequestID(), "correlation id rewritten to the new caller")
}

func TestMiddlewareBypassesUnsavedFiles(t *testing.T) {
	uc, root := newTestUniversalCache(t)
	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0644))

	resolver := &fakeResolver{cache: uc, sg: NewSingleflightGroup(), root: root}
	logger, err := logging.New(logging.Options{Level: logging.InfoLevel})
	require.NoError(t, err)

	mw := NewCacheMiddleware(resolver, alwaysUnsavedProvider{}, MiddlewareConfig{}, logger)

	calls := 0
	upstream := func(_ context.Context, req lsp.Request) (lsp.Response, error) {
		calls++
		content := "live"
		return lsp.HoverResponse{Content: &content}.WithRequestID(req.RequestID()), nil
	}

	for i := 0; i < 3; i++ {
		_, err := mw.Handle(context.Background(), lsp.NewHoverRequest(file, 1, 2), upstream)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls, "unsaved file bypasses the cache every time")
}

type alwaysUnsavedProvider struct {
	lsp.FileSystemDocumentProvider
}

func (alwaysUnsavedProvider) HasUnsavedChanges(context.Context, string) (bool, error) {
	return true, nil
}

func TestMiddlewareUpstreamErrorNeverCached(t *testing.T) {
	mw, root := newTestMiddleware(t)
	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0644))

	calls := 0
	failing := func(_ context.Context, req lsp.Request) (lsp.Response, error) {
		calls++
		return nil, assert.AnError
	}

	_, err := mw.Handle(context.Background(), lsp.NewHoverRequest(file, 1, 2), failing)
	assert.Error(t, err)

	_, err = mw.Handle(context.Background(), lsp.NewHoverRequest(file, 1, 2), failing)
	assert.Error(t, err)
	assert.Equal(t, 2, calls, "a failed upstream call is never cached, so it retries every time")
}

func TestMiddlewareConfig(t *testing.T) {
	cfg := config.Default()
	mw := MiddlewareConfig{
		SingleflightTimeout:  cfg.SingleflightTimeout,
		DetailedMetrics:      cfg.DetailedMetrics,
		WorkspaceRevisionTTL: cfg.WorkspaceRevisionTTL,
	}
	assert.Equal(t, cfg.SingleflightTimeout, mw.SingleflightTimeout)
}
