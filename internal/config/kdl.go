package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// applyKDL parses a `.lcid.kdl` document and overlays its top-level nodes
// onto cfg. Unknown nodes are ignored so forward-compatible config files
// don't break older daemon builds, matching the teacher's own permissive
// `kdl_config.go` parser.
func applyKDL(cfg *Config, data []byte) error {
	doc, err := kdl.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse kdl: %w", err)
	}

	for _, node := range doc.Nodes {
		switch nodeName(node) {
		case "cache-root":
			assignSimpleString(node, func(s string) { cfg.CacheRoot = s })
		case "socket-dir":
			assignSimpleString(node, func(s string) { cfg.SocketDir = s })
		case "log-level":
			assignSimpleString(node, func(s string) { cfg.LogLevel = s })
		case "log-file":
			assignSimpleString(node, func(s string) { cfg.LogFile = s })
		case "max-open-workspaces":
			if v, ok := firstIntArg(node); ok {
				cfg.MaxOpenWorkspaces = v
			}
		case "max-marker-walk-depth":
			if v, ok := firstIntArg(node); ok {
				cfg.MaxMarkerWalkDepth = v
			}
		case "memory-shard-count":
			if v, ok := firstIntArg(node); ok {
				cfg.MemoryShardCount = v
			}
		case "memory-max-entries-per-shard":
			if v, ok := firstIntArg(node); ok {
				cfg.MemoryMaxEntriesPerShard = v
			}
		case "disk-no-sync":
			if v, ok := firstBoolArg(node); ok {
				cfg.DiskNoSync = v
			}
		case "disk-sync-interval-seconds":
			if v, ok := firstIntArg(node); ok {
				cfg.DiskSyncInterval = time.Duration(v) * time.Second
			}
		case "singleflight-timeout-seconds":
			if v, ok := firstIntArg(node); ok {
				cfg.SingleflightTimeout = time.Duration(v) * time.Second
			}
		case "workspace-revision-ttl-seconds":
			if v, ok := firstIntArg(node); ok {
				cfg.WorkspaceRevisionTTL = time.Duration(v) * time.Second
			}
		case "detailed-metrics":
			if v, ok := firstBoolArg(node); ok {
				cfg.DetailedMetrics = v
			}
		case "cache-warming-enabled":
			if v, ok := firstBoolArg(node); ok {
				cfg.CacheWarmingEnabled = v
			}
		case "cache-warming-concurrency":
			if v, ok := firstIntArg(node); ok {
				cfg.CacheWarmingConcurrency = v
			}
		case "workspace-markers":
			if markers := collectStringArgs(node); len(markers) > 0 {
				cfg.WorkspaceMarkers = markers
			}
		case "policy":
			applyPolicyNode(cfg, node)
		}
	}

	return nil
}

// applyPolicyNode overrides one method's policy row, e.g.:
//
//	policy "references" {
//	    enabled true
//	    ttl-seconds 300
//	    scope "workspace"
//	    cache-empty-results true
//	}
func applyPolicyNode(cfg *Config, node *document.Node) {
	method, ok := firstStringArg(node)
	if !ok || method == "" {
		return
	}

	policy, exists := cfg.Policies[method]
	if !exists {
		policy = MethodPolicy{Scope: ScopeFile}
	}

	for _, child := range node.Children {
		switch nodeName(child) {
		case "enabled":
			if v, ok := firstBoolArg(child); ok {
				policy.Enabled = v
			}
		case "ttl-seconds":
			if v, ok := firstIntArg(child); ok {
				policy.TTL = time.Duration(v) * time.Second
			}
		case "scope":
			if v, ok := firstStringArg(child); ok {
				policy.Scope = InvalidationScope(v)
			}
		case "cache-empty-results":
			if v, ok := firstBoolArg(child); ok {
				policy.CacheEmptyResults = v
			}
		}
	}

	cfg.Policies[method] = policy
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstArg(n *document.Node) (interface{}, bool) {
	if n == nil || len(n.Arguments) == 0 {
		return nil, false
	}
	return n.Arguments[0].Value, true
}

func firstIntArg(n *document.Node) (int, bool) {
	v, ok := firstArg(n)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	v, ok := firstArg(n)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func firstStringArg(n *document.Node) (string, bool) {
	v, ok := firstArg(n)
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	v, ok := firstArg(n)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		return parseBool(t), true
	}
	return false, false
}

// collectStringArgs gathers string values from a node, supporting both
// `workspace-markers ".git" "go.mod"` (inline arguments) and a
// child-node-per-entry block form:
//
//	workspace-markers {
//	    marker ".git"
//	    marker "go.mod"
//	}
func collectStringArgs(n *document.Node) []string {
	var out []string
	for _, arg := range n.Arguments {
		if s, ok := arg.Value.(string); ok {
			out = append(out, s)
		}
	}
	for _, child := range n.Children {
		if s, ok := firstStringArg(child); ok {
			out = append(out, s)
		}
	}
	return out
}

func assignSimpleString(n *document.Node, set func(string)) {
	if s, ok := firstStringArg(n); ok {
		set(s)
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "on":
		return true
	default:
		return false
	}
}
