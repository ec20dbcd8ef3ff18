// Package daemon exposes the running cache daemon's control surface: a
// per-workspace Unix domain socket carrying JSON request/response bodies
// over net/http, mirroring the teacher's internal/server shape.
package daemon

import "time"

// StatusResponse answers `lcid status`.
type StatusResponse struct {
	Uptime         float64 `json:"uptime_seconds"`
	Version        string  `json:"version"`
	OpenWorkspaces int     `json:"open_workspaces"`
	Error          string  `json:"error,omitempty"`
}

// CacheStatsResponse answers `lcid cache stats`.
type CacheStatsResponse struct {
	MemoryEntries       int     `json:"memory_entries"`
	MemoryHits          int64   `json:"memory_hits"`
	MemoryMisses        int64   `json:"memory_misses"`
	DiskEntries         int     `json:"disk_entries"`
	ActiveWorkspaces    int     `json:"active_workspaces"`
	SingleflightActive  int     `json:"singleflight_active"`
	CacheWarmingEnabled bool    `json:"cache_warming_enabled"`
	Error               string  `json:"error,omitempty"`
}

// CacheClearRequest selects what `lcid cache clear` removes. Workspace
// names a workspace root; when it is empty, File selects the workspace
// containing that file. Both empty clears every open workspace.
type CacheClearRequest struct {
	Workspace string `json:"workspace,omitempty"`
	File      string `json:"file,omitempty"`
}

// CacheClearResponse reports the result of a clear operation.
type CacheClearResponse struct {
	ClearedWorkspaces []string `json:"cleared_workspaces"`
	TotalEntries      int      `json:"total_entries"`
	ElapsedMs         int64    `json:"elapsed_ms"`
	Error             string   `json:"error,omitempty"`
}

// CacheClearSymbolRequest mirrors spec.md's
// `clear_symbol(file, name, line?, col?, methods?, all_positions?)`.
type CacheClearSymbolRequest struct {
	Workspace    string   `json:"workspace"`
	File         string   `json:"file"`
	Name         string   `json:"name"`
	Line         *int     `json:"line,omitempty"`
	Column       *int     `json:"col,omitempty"`
	Methods      []string `json:"methods,omitempty"`
	AllPositions bool     `json:"all_positions,omitempty"`
}

// CacheClearSymbolResponse reports what was removed.
type CacheClearSymbolResponse struct {
	Count     int      `json:"count"`
	Positions [][2]int `json:"positions,omitempty"`
	Methods   []string `json:"methods,omitempty"`
	Bytes     int      `json:"bytes"`
	Error     string   `json:"error,omitempty"`
}

// CacheListEntry is one row of `lcid cache list`.
type CacheListEntry struct {
	WorkspaceID  string    `json:"workspace_id"`
	Root         string    `json:"root"`
	CachePath    string    `json:"cache_path"`
	Entries      int       `json:"entries"`
	LastAccessed time.Time `json:"last_accessed"`
	CreatedAt    time.Time `json:"created_at"`
}

// CacheListResponse answers `lcid cache list`.
type CacheListResponse struct {
	Workspaces []CacheListEntry `json:"workspaces"`
	Error      string           `json:"error,omitempty"`
}

// CacheInfoRequest optionally scopes `lcid cache info` to one workspace
// root; empty means "all open workspaces".
type CacheInfoRequest struct {
	Workspace string `json:"workspace,omitempty"`
}

// CacheInfoResponse answers `lcid cache info [workspace]`.
type CacheInfoResponse struct {
	Workspaces []CacheListEntry `json:"workspaces"`
	Error      string           `json:"error,omitempty"`
}

// LogsRequest answers `lcid logs [follow] [lines]`. AfterSeq is 0 on the
// first call; a follower passes back the NextSeq from the previous
// response on each subsequent poll.
type LogsRequest struct {
	AfterSeq int64 `json:"after_seq,omitempty"`
	Limit    int   `json:"limit,omitempty"`
}

// LogLine is one retained log line with its monotonic sequence number.
type LogLine struct {
	Seq  int64  `json:"seq"`
	Text string `json:"text"`
}

// LogsResponse answers a single `lcid logs` poll.
type LogsResponse struct {
	Lines   []LogLine `json:"lines"`
	NextSeq int64     `json:"next_seq"`
	Error   string    `json:"error,omitempty"`
}
