// Package lspbridge exposes a read-only subset of the daemon's control
// surface (status, cache stats, cache list/info) as MCP tools, for agent
// clients that prefer MCP over raw HTTP against the Unix socket.
package lspbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/lcid/internal/router"
	"github.com/standardbeagle/lcid/internal/version"
)

// Server wraps an MCP server exposing the daemon's read-only operations.
// It talks directly to the in-process WorkspaceCacheRouter rather than
// round-tripping through the Unix socket, since it runs inside the same
// daemon process.
type Server struct {
	router *router.WorkspaceCacheRouter
	server *mcp.Server
	start  func() float64
}

// NewServer builds the MCP server and registers its tools. uptime reports
// the daemon's elapsed wall time in seconds at call time.
func NewServer(r *router.WorkspaceCacheRouter, uptime func() float64) *Server {
	s := &Server{
		router: r,
		start:  uptime,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "lcid",
			Version: version.String(),
		}, nil),
	}
	s.registerTools()
	return s
}

// Underlying returns the wrapped *mcp.Server for transport binding
// (stdio, SSE, ...) by the caller.
func (s *Server) Underlying() *mcp.Server {
	return s.server
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "status",
		Description: "Report daemon uptime, version, and the number of open workspace caches.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleStatus)

	s.server.AddTool(&mcp.Tool{
		Name:        "cache_stats",
		Description: "Report cache layer statistics (memory hits/misses, disk entry count) for a workspace.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Description: "A file path inside the workspace to report stats for; any file under the workspace root works.",
				},
			},
			Required: []string{"file"},
		},
	}, s.handleCacheStats)

	s.server.AddTool(&mcp.Tool{
		Name:        "cache_list",
		Description: "Enumerate every workspace with an open cache handle.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleCacheList)

	s.server.AddTool(&mcp.Tool{
		Name:        "cache_info",
		Description: "Report size, entry count, and access times for one workspace, or all open workspaces if none is named.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"workspace": {
					Type:        "string",
					Description: "Workspace root to scope the report to. Omit for all open workspaces.",
				},
			},
		},
	}, s.handleCacheInfo)
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("lspbridge: marshal result: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(body)}}}, nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"error": err.Error()})
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaces := s.router.ListWorkspaces()
	return jsonResult(map[string]any{
		"uptime_seconds":  s.start(),
		"version":         version.String(),
		"open_workspaces": len(workspaces),
	})
}

type cacheStatsParams struct {
	File string `json:"file"`
}

func (s *Server) handleCacheStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params cacheStatsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResult(fmt.Errorf("invalid parameters: %w", err))
	}

	uc, _, _, err := s.router.ResolveCache(ctx, params.File)
	if err != nil {
		return errorResult(err)
	}

	stats := uc.Stats()
	return jsonResult(map[string]any{
		"memory_entries":        stats.Memory.Entries,
		"memory_hits":           stats.Memory.Hits,
		"memory_misses":         stats.Memory.Misses,
		"disk_entries":          stats.DiskEntries,
		"active_workspaces":     stats.ActiveWorkspaces,
		"singleflight_active":   stats.SingleflightActive,
		"cache_warming_enabled": stats.CacheWarmingEnabled,
	})
}

func (s *Server) handleCacheList(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"workspaces": s.router.ListWorkspaces()})
}

type cacheInfoParams struct {
	Workspace string `json:"workspace,omitempty"`
}

func (s *Server) handleCacheInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params cacheInfoParams
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return errorResult(fmt.Errorf("invalid parameters: %w", err))
		}
	}

	all := s.router.ListWorkspaces()
	if params.Workspace == "" {
		return jsonResult(map[string]any{"workspaces": all})
	}
	for _, info := range all {
		if info.Root == params.Workspace || info.WorkspaceID == params.Workspace {
			return jsonResult(map[string]any{"workspaces": []router.WorkspaceInfo{info}})
		}
	}
	return jsonResult(map[string]any{"workspaces": []router.WorkspaceInfo{}})
}
