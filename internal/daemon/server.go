package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/standardbeagle/lcid/internal/config"
	"github.com/standardbeagle/lcid/internal/graphdb"
	"github.com/standardbeagle/lcid/internal/logging"
	"github.com/standardbeagle/lcid/internal/router"
	"github.com/standardbeagle/lcid/internal/version"
)

// Server is the long-lived cache daemon's control surface: a per-workspace
// Unix domain socket exposing status, cache administration, and log
// streaming over net/http.
type Server struct {
	router    *router.WorkspaceCacheRouter
	graphdb   graphdb.Backend
	logger    *logging.Daemon
	cfg       *config.Config
	startTime time.Time

	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup

	mu         sync.Mutex
	running    bool
	socketPath string
}

// NewServer builds a Server over an already-constructed router and
// optional symbol database (nil disables the symbol-graph endpoints).
func NewServer(cfg *config.Config, router *router.WorkspaceCacheRouter, db graphdb.Backend, logger *logging.Daemon) *Server {
	return &Server{
		router:    router,
		graphdb:   db,
		logger:    logger,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// SocketPathForRoot derives the control-surface socket path for a
// workspace root, hashing the root so concurrent workspaces don't
// collide (mirrors router.workspaceDirName's hashing idiom).
func SocketPathForRoot(cfg *config.Config, root string) string {
	return fmt.Sprintf("%s/lcid-%08x.sock", cfg.SocketDir, hashRoot(root))
}

func hashRoot(root string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(root); i++ {
		h ^= uint32(root[i])
		h *= 16777619
	}
	return h
}

// SetSocketPath overrides the socket path (used by tests).
func (s *Server) SetSocketPath(path string) {
	s.socketPath = path
}

// Start opens the Unix socket listener and begins serving in the
// background. It returns once the listener is bound.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("daemon: server already running")
	}
	s.running = true
	socketPath := s.socketPath
	s.mu.Unlock()

	if socketPath == "" {
		return fmt.Errorf("daemon: no socket path configured")
	}

	os.Remove(socketPath)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("daemon: create socket: %w", err)
	}
	os.Chmod(socketPath, 0600)
	s.listener = listener

	mux := http.NewServeMux()
	s.registerHandlers(mux)
	s.server = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Logger.Error().Err(err).Msg("control surface server stopped")
		}
	}()

	s.logger.Logger.Info().Str("socket", socketPath).Msg("control surface listening")
	return nil
}

// Shutdown stops serving and closes the listener, waiting for in-flight
// requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()
	if !running || s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/cache/clear", s.handleCacheClear)
	mux.HandleFunc("/cache/clear-symbol", s.handleCacheClearSymbol)
	mux.HandleFunc("/cache/list", s.handleCacheList)
	mux.HandleFunc("/cache/info", s.handleCacheInfo)
	mux.HandleFunc("/logs", s.handleLogs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	workspaces := s.router.ListWorkspaces()
	writeJSON(w, StatusResponse{
		Uptime:         time.Since(s.startTime).Seconds(),
		Version:        version.String(),
		OpenWorkspaces: len(workspaces),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uc, _, _, err := s.router.ResolveCache(ctx, resolveHint(r.URL.Query().Get("file"), r))
	if err != nil {
		writeJSON(w, CacheStatsResponse{Error: err.Error()})
		return
	}

	stats := uc.Stats()
	writeJSON(w, CacheStatsResponse{
		MemoryEntries:       stats.Memory.Entries,
		MemoryHits:          stats.Memory.Hits,
		MemoryMisses:        stats.Memory.Misses,
		DiskEntries:         stats.DiskEntries,
		ActiveWorkspaces:    stats.ActiveWorkspaces,
		SingleflightActive:  stats.SingleflightActive,
		CacheWarmingEnabled: stats.CacheWarmingEnabled,
	})
}

// resolveHint picks a file path usable by WorkspaceCacheRouter.ResolveCache
// from the request's query parameters, falling back to "." (the daemon's
// working directory, which goes through the same workspace marker
// walk-up as any other path).
func resolveHint(file string, r *http.Request) string {
	if file != "" {
		return file
	}
	if ws := r.URL.Query().Get("workspace"); ws != "" {
		return ws
	}
	return "."
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	var req CacheClearRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	started := time.Now()
	workspace := req.Workspace
	if workspace == "" && req.File != "" {
		_, _, root, err := s.router.ResolveCache(r.Context(), req.File)
		if err != nil {
			writeJSON(w, CacheClearResponse{Error: err.Error()})
			return
		}
		workspace = root
	}
	result, err := s.router.Clear(r.Context(), workspace)
	if err != nil {
		writeJSON(w, CacheClearResponse{Error: err.Error()})
		return
	}

	writeJSON(w, CacheClearResponse{
		ClearedWorkspaces: result.ClearedWorkspaces,
		TotalEntries:      result.TotalEntries,
		ElapsedMs:         time.Since(started).Milliseconds(),
	})
}

func (s *Server) handleCacheClearSymbol(w http.ResponseWriter, r *http.Request) {
	var req CacheClearSymbolRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Workspace == "" || req.File == "" || req.Name == "" {
		http.Error(w, "workspace, file and name are required", http.StatusBadRequest)
		return
	}

	uc, _, _, err := s.router.ResolveCache(r.Context(), req.Workspace)
	if err != nil {
		writeJSON(w, CacheClearSymbolResponse{Error: err.Error()})
		return
	}

	result, err := uc.ClearSymbol(req.File, req.Line, req.Column, req.Methods, req.AllPositions)
	if err != nil {
		writeJSON(w, CacheClearSymbolResponse{Error: err.Error()})
		return
	}

	resp := CacheClearSymbolResponse{
		Count:     result.Count,
		Positions: result.Positions,
		Methods:   result.Methods,
		Bytes:     result.Bytes,
	}

	if s.graphdb != nil {
		dbResult, err := s.graphdb.ClearSymbol(r.Context(), req.File, req.Name, req.Line, req.Column, req.Methods, req.AllPositions)
		if err != nil {
			s.logger.Logger.Warn().Err(err).Str("file", req.File).Str("name", req.Name).Msg("symbol graph clear failed")
		} else {
			resp.Count += dbResult.Count
			resp.Bytes += int(dbResult.Bytes)
		}
	}

	writeJSON(w, resp)
}

func (s *Server) handleCacheList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, CacheListResponse{Workspaces: toListEntries(s.router.ListWorkspaces())})
}

func (s *Server) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	var req CacheInfoRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	all := s.router.ListWorkspaces()
	if req.Workspace == "" {
		writeJSON(w, CacheInfoResponse{Workspaces: toListEntries(all)})
		return
	}

	for _, info := range all {
		if info.Root == req.Workspace || info.WorkspaceID == req.Workspace {
			writeJSON(w, CacheInfoResponse{Workspaces: toListEntries([]router.WorkspaceInfo{info})})
			return
		}
	}
	writeJSON(w, CacheInfoResponse{})
}

func toListEntries(infos []router.WorkspaceInfo) []CacheListEntry {
	out := make([]CacheListEntry, 0, len(infos))
	for _, info := range infos {
		out = append(out, CacheListEntry{
			WorkspaceID:  info.WorkspaceID,
			Root:         info.Root,
			CachePath:    info.CachePath,
			Entries:      info.Entries,
			LastAccessed: info.LastAccessed,
			CreatedAt:    info.CreatedAt,
		})
	}
	return out
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var req LogsRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	lines, nextSeq := s.logger.Since(req.AfterSeq, req.Limit)
	out := make([]LogLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, LogLine{Seq: l.Seq, Text: l.Text})
	}

	writeJSON(w, LogsResponse{Lines: out, NextSeq: nextSeq})
}
