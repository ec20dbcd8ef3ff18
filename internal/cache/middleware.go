package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/standardbeagle/lcid/internal/logging"
	"github.com/standardbeagle/lcid/internal/lsp"
)

// UpstreamHandler is the injected upstream LSP call CacheMiddleware falls
// through to on a cache miss, bypass, or unsupported request.
type UpstreamHandler func(context.Context, lsp.Request) (lsp.Response, error)

// MiddlewareConfig mirrors the original's CacheLayerConfig: the handful
// of knobs spec.md §4.7 alludes to ("a timeout on the per-caller await")
// without naming a concrete config surface for them.
type MiddlewareConfig struct {
	SingleflightTimeout  time.Duration
	DetailedMetrics      bool
	WorkspaceRevisionTTL time.Duration
}

// CacheMiddleware wraps an UpstreamHandler with the cache-then-upstream
// algorithm from spec.md §4.7: classify, extract, bypass unsaved files,
// coalesce under singleflight, serve from cache or upstream, and rewrite
// the shared response's correlation id back to the current caller's.
type CacheMiddleware struct {
	cache            WorkspaceResolver
	fingerprints     *FingerprintBuilder
	documentProvider lsp.DocumentProvider
	config           MiddlewareConfig
	logger           *logging.Daemon
}

// WorkspaceResolver is the subset of WorkspaceCacheRouter CacheMiddleware
// depends on: resolving a file to its workspace's UniversalCache and
// singleflight group. Defined here, rather than importing internal/router
// directly, to keep internal/cache free of a dependency on internal/router
// (router depends on cache, not the reverse).
type WorkspaceResolver interface {
	ResolveCache(ctx context.Context, filePath string) (*UniversalCache, *SingleflightGroup, string, error)
}

// NewCacheMiddleware builds a CacheMiddleware.
func NewCacheMiddleware(resolver WorkspaceResolver, documentProvider lsp.DocumentProvider, cfg MiddlewareConfig, logger *logging.Daemon) *CacheMiddleware {
	if documentProvider == nil {
		documentProvider = lsp.FileSystemDocumentProvider{}
	}
	return &CacheMiddleware{
		cache:            resolver,
		fingerprints:     NewFingerprintBuilder(),
		documentProvider: documentProvider,
		config:           cfg,
		logger:           logger,
	}
}

// Metrics is what Handle emits per request, matching spec.md §4.7 step 6.
type Metrics struct {
	Method            lsp.Method
	CacheStatus       string // "hit", "miss", "bypass"
	WallTime          time.Duration
	SingleflightWait  time.Duration
	ResponseEmpty     bool
}

// Handle runs the full CacheMiddleware algorithm for one request against
// upstream.
func (m *CacheMiddleware) Handle(ctx context.Context, req lsp.Request, upstream UpstreamHandler) (lsp.Response, error) {
	start := time.Now()
	method := req.Method()

	uc, sg, workspaceRoot, err := m.cache.ResolveCache(ctx, requestFilePath(req, ""))
	if err != nil {
		// Step 1/2 equivalent: can't classify a workspace for this
		// request, forward directly without caching.
		m.emit(Metrics{Method: method, CacheStatus: "bypass", WallTime: time.Since(start)})
		return upstream(ctx, req)
	}

	filePath, params, err := lsp.ExtractFileAndParams(req, workspaceRoot)
	if err != nil {
		// Unsupported request shape: forward directly.
		m.emit(Metrics{Method: method, CacheStatus: "bypass", WallTime: time.Since(start)})
		return upstream(ctx, req)
	}

	unsaved, err := m.documentProvider.HasUnsavedChanges(ctx, "file://"+filePath)
	if err == nil && unsaved {
		m.emit(Metrics{Method: method, CacheStatus: "bypass", WallTime: time.Since(start)})
		resp, err := upstream(ctx, req)
		return resp, err
	}

	sfStart := time.Now()
	sfKey := m.fingerprints.BuildSingleflightKey(method, workspaceRoot, filePath, params, "")

	// SingleflightTimeout bounds only this caller's wait; fn runs under ctx,
	// so a caller that times out never cancels the shared call.
	callCtx := ctx
	if m.config.SingleflightTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.config.SingleflightTimeout)
		defer cancel()
	}

	result, err := sg.Call(callCtx, sfKey, func() (interface{}, error) {
		return m.resolveAndCache(ctx, uc, req, method, filePath, params, upstream)
	})
	sfWait := time.Since(sfStart)

	if err != nil {
		m.emit(Metrics{Method: method, CacheStatus: "bypass", WallTime: time.Since(start), SingleflightWait: sfWait})
		return nil, err
	}

	leaderResult := result.Value.(singleflightPayload)

	// Step 5: rewrite the shared response's correlation id to this
	// caller's id before returning, regardless of whether this caller was
	// the leader or a follower.
	resp := leaderResult.response.WithRequestID(req.RequestID())

	status := "miss"
	if leaderResult.fromCache {
		status = "hit"
	}
	m.emit(Metrics{
		Method:           method,
		CacheStatus:      status,
		WallTime:         time.Since(start),
		SingleflightWait: sfWait,
		ResponseEmpty:    leaderResult.empty,
	})

	return resp, nil
}

type singleflightPayload struct {
	response  lsp.Response
	fromCache bool
	empty     bool
}

// resolveAndCache is the work executed under singleflight: build the full
// fingerprint, try the cache, and on miss call upstream and populate the
// cache for the next caller.
func (m *CacheMiddleware) resolveAndCache(ctx context.Context, uc *UniversalCache, req lsp.Request, method lsp.Method, filePath, params string, upstream UpstreamHandler) (interface{}, error) {
	cached, hit, err := uc.Get(ctx, method, filePath, params)
	if err != nil {
		m.warnf(err, method, "cache read failed, treating as miss")
		hit = false
	}
	if hit {
		resp, err := deserializeResponse(method, cached)
		if err == nil {
			return singleflightPayload{response: resp, fromCache: true, empty: isResponseEmpty(resp)}, nil
		}
		m.warnf(err, method, "failed to deserialize cached response")
	}

	resp, err := upstream(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, isErr := resp.(lsp.ErrorResponse); isErr {
		return singleflightPayload{response: resp}, nil
	}

	empty := isResponseEmpty(resp)
	data, serErr := json.Marshal(resp)
	if serErr != nil {
		m.warnf(serErr, method, "failed to serialize response, not caching")
	} else if setErr := uc.Set(ctx, method, filePath, params, data, empty); setErr != nil {
		m.warnf(setErr, method, "cache write failed")
	}

	return singleflightPayload{response: resp, fromCache: false, empty: empty}, nil
}

// warnf logs a warning, a no-op when the middleware was built without a
// logger.
func (m *CacheMiddleware) warnf(err error, method lsp.Method, msg string) {
	if m.logger == nil {
		return
	}
	m.logger.Logger.Warn().Err(err).Str("method", string(method)).Msg(msg)
}

func (m *CacheMiddleware) emit(metrics Metrics) {
	if m.logger == nil {
		return
	}
	event := m.logger.Logger.Info()
	if !m.config.DetailedMetrics {
		event = m.logger.Logger.Debug()
	}
	event.
		Str("method", string(metrics.Method)).
		Str("cache_status", metrics.CacheStatus).
		Dur("wall_time", metrics.WallTime).
		Dur("singleflight_wait", metrics.SingleflightWait).
		Bool("response_empty", metrics.ResponseEmpty).
		Msg("cache request")
}

// requestFilePath gives ResolveCache a best-effort file hint for
// workspace discovery, without requiring the full params extraction
// ExtractFileAndParams performs once a workspace root is already known.
func requestFilePath(req lsp.Request, fallback string) string {
	switch r := req.(type) {
	case lsp.HoverRequest:
		return r.FilePath
	case lsp.DefinitionRequest:
		return r.FilePath
	case lsp.ReferencesRequest:
		return r.FilePath
	case lsp.ImplementationsRequest:
		return r.FilePath
	case lsp.TypeDefinitionRequest:
		return r.FilePath
	case lsp.DocumentSymbolsRequest:
		return r.FilePath
	case lsp.CallHierarchyRequest:
		return r.FilePath
	case lsp.CompletionRequest:
		return r.FilePath
	default:
		return fallback
	}
}

func deserializeResponse(method lsp.Method, data []byte) (lsp.Response, error) {
	switch method {
	case lsp.MethodHover:
		var r lsp.HoverResponse
		err := json.Unmarshal(data, &r)
		return r, err
	case lsp.MethodDefinition:
		var r lsp.DefinitionResponse
		err := json.Unmarshal(data, &r)
		return r, err
	case lsp.MethodReferences:
		var r lsp.ReferencesResponse
		err := json.Unmarshal(data, &r)
		return r, err
	case lsp.MethodImplementations:
		var r lsp.ImplementationsResponse
		err := json.Unmarshal(data, &r)
		return r, err
	case lsp.MethodTypeDefinition:
		var r lsp.TypeDefinitionResponse
		err := json.Unmarshal(data, &r)
		return r, err
	case lsp.MethodDocumentSymbols:
		var r lsp.DocumentSymbolsResponse
		err := json.Unmarshal(data, &r)
		return r, err
	case lsp.MethodWorkspaceSymbols:
		var r lsp.WorkspaceSymbolsResponse
		err := json.Unmarshal(data, &r)
		return r, err
	case lsp.MethodCallHierarchy:
		var r lsp.CallHierarchyResponse
		err := json.Unmarshal(data, &r)
		return r, err
	case lsp.MethodCompletion:
		var r lsp.CompletionResponse
		err := json.Unmarshal(data, &r)
		return r, err
	default:
		return nil, ErrMalformedParams
	}
}

func isResponseEmpty(resp lsp.Response) bool {
	switch r := resp.(type) {
	case lsp.HoverResponse:
		return r.Content == nil
	case lsp.DefinitionResponse:
		return len(r.Locations) == 0
	case lsp.ReferencesResponse:
		return len(r.Locations) == 0
	case lsp.ImplementationsResponse:
		return len(r.Locations) == 0
	case lsp.TypeDefinitionResponse:
		return len(r.Locations) == 0
	case lsp.DocumentSymbolsResponse:
		return len(r.Symbols) == 0
	case lsp.WorkspaceSymbolsResponse:
		return len(r.Symbols) == 0
	case lsp.CallHierarchyResponse:
		return len(r.Incoming) == 0 && len(r.Outgoing) == 0
	case lsp.CompletionResponse:
		return len(r.Items) == 0
	default:
		return false
	}
}
