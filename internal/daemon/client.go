package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client is a thin HTTP client over a daemon's control-surface Unix
// socket, mirroring the teacher's server/client.go shape.
type Client struct {
	httpClient *http.Client
	socketPath string
}

// NewClient builds a Client against the control surface listening on
// socketPath.
func NewClient(socketPath string) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: 30 * time.Second,
		},
		socketPath: socketPath,
	}
}

// IsRunning reports whether the daemon is reachable.
func (c *Client) IsRunning() bool {
	_, err := c.Status(context.Background())
	return err == nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix"+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://unix"+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon: server error: %s", string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("daemon: decode response: %w", err)
	}
	return nil
}

// Status fetches the daemon's /status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(ctx, "/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheStats fetches /cache/stats, optionally scoped to a file's
// workspace.
func (c *Client) CacheStats(ctx context.Context, file string) (*CacheStatsResponse, error) {
	path := "/cache/stats"
	if file != "" {
		path += "?file=" + file
	}
	var resp CacheStatsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheClear invalidates one workspace (or all open workspaces when both
// req.Workspace and req.File are empty).
func (c *Client) CacheClear(ctx context.Context, req CacheClearRequest) (*CacheClearResponse, error) {
	var resp CacheClearResponse
	if err := c.post(ctx, "/cache/clear", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheClearSymbol performs a targeted clear of one symbol's cache
// entries (and symbol-graph rows, if a database is configured).
func (c *Client) CacheClearSymbol(ctx context.Context, req CacheClearSymbolRequest) (*CacheClearSymbolResponse, error) {
	var resp CacheClearSymbolResponse
	if err := c.post(ctx, "/cache/clear-symbol", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheList enumerates every open workspace.
func (c *Client) CacheList(ctx context.Context) (*CacheListResponse, error) {
	var resp CacheListResponse
	if err := c.get(ctx, "/cache/list", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheInfo fetches detail for one workspace, or all of them when
// workspace is empty.
func (c *Client) CacheInfo(ctx context.Context, workspace string) (*CacheInfoResponse, error) {
	var resp CacheInfoResponse
	if err := c.post(ctx, "/cache/info", CacheInfoRequest{Workspace: workspace}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logs polls for log lines after afterSeq, capped at limit (0 = no cap).
func (c *Client) Logs(ctx context.Context, afterSeq int64, limit int) (*LogsResponse, error) {
	var resp LogsResponse
	if err := c.post(ctx, "/logs", LogsRequest{AfterSeq: afterSeq, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Follow polls Logs every interval, invoking onLines with each new batch,
// until ctx is cancelled. This backs `lcid logs --follow`.
func (c *Client) Follow(ctx context.Context, interval time.Duration, onLines func([]LogLine)) error {
	var afterSeq int64
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		resp, err := c.Logs(ctx, afterSeq, 0)
		if err != nil {
			return err
		}
		if len(resp.Lines) > 0 {
			onLines(resp.Lines)
			afterSeq = resp.NextSeq
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
