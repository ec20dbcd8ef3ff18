package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lcid/internal/cache"
	"github.com/standardbeagle/lcid/internal/config"
	"github.com/standardbeagle/lcid/internal/daemon"
	"github.com/standardbeagle/lcid/internal/graphdb"
	"github.com/standardbeagle/lcid/internal/logging"
	"github.com/standardbeagle/lcid/internal/router"
	"github.com/standardbeagle/lcid/internal/version"
)

var Version = version.Version

// loadConfigWithOverrides loads `.lcid.kdl` from the resolved project root
// and layers the --socket-dir/--cache-root/--log-level CLI flags over it.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, string, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, "", fmt.Errorf("resolve root %q: %w", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}

	if v := c.String("cache-root"); v != "" {
		cfg.CacheRoot = v
	}
	if v := c.String("socket-dir"); v != "" {
		cfg.SocketDir = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, absRoot, nil
}

func socketPathFor(cfg *config.Config, root string) string {
	return daemon.SocketPathForRoot(cfg, root)
}

func main() {
	app := &cli.App{
		Name:                   "lcid",
		Usage:                  "persistent cache daemon for LSP response data",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "workspace root the daemon should scope this command to",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "cache-root",
				Usage: "override the on-disk cache root (default ~/.cache/lcid)",
			},
			&cli.StringFlag{
				Name:  "socket-dir",
				Usage: "override the control-surface socket directory",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "zerolog level: debug, info, warn, error",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			statusCommand(),
			shutdownCommand(),
			{
				Name:  "cache",
				Usage: "inspect or invalidate the running daemon's cache",
				Subcommands: []*cli.Command{
					cacheStatsCommand(),
					cacheClearCommand(),
					cacheClearSymbolCommand(),
					cacheListCommand(),
					cacheInfoCommand(),
				},
			},
			logsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lcid:", err)
		os.Exit(1)
	}
}

// serveCommand starts the daemon in the foreground, listening on the
// per-workspace control-surface socket until signaled to stop.
func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the cache daemon in the foreground",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "symbol-db",
				Usage: "path to the symbol graph database (disables graph-aware clear-symbol if empty)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, root, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:    logging.ParseLevel(cfg.LogLevel),
				FilePath: cfg.LogFile,
				Console:  os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Close()

			r, err := router.NewWorkspaceCacheRouter(cfg, cache.NewPolicyRegistry(cfg.Policies))
			if err != nil {
				return fmt.Errorf("init router: %w", err)
			}
			defer r.Close()

			var db graphdb.Backend
			if path := c.String("symbol-db"); path != "" {
				backend, err := graphdb.Open(path)
				if err != nil {
					return fmt.Errorf("open symbol database: %w", err)
				}
				defer backend.Close()
				db = backend
			}

			srv := daemon.NewServer(cfg, r, db, logger)
			srv.SetSocketPath(socketPathFor(cfg, root))
			if err := srv.Start(); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}

			fmt.Printf("lcid daemon listening, root=%s socket=%s\n", root, socketPathFor(cfg, root))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "report the running daemon's uptime, version, and open workspace count",
		Action: func(c *cli.Context) error {
			cfg, root, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			client := daemon.NewClient(socketPathFor(cfg, root))
			resp, err := client.Status(c.Context)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func shutdownCommand() *cli.Command {
	return &cli.Command{
		Name:  "shutdown",
		Usage: "check for a running daemon and report how to stop it (send SIGTERM to `lcid serve`)",
		Action: func(c *cli.Context) error {
			cfg, root, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			client := daemon.NewClient(socketPathFor(cfg, root))
			if !client.IsRunning() {
				return fmt.Errorf("no daemon running for root %s", root)
			}
			// The control surface has no dedicated shutdown route; operators
			// signal the foreground process directly (see `lcid serve`).
			return fmt.Errorf("send SIGTERM to the `lcid serve` process for root %s instead", root)
		},
	}
}

func cacheStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "report cache layer statistics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "scope the report to the workspace containing this file"},
		},
		Action: func(c *cli.Context) error {
			cfg, root, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			client := daemon.NewClient(socketPathFor(cfg, root))
			file := c.String("file")
			if file == "" {
				file = root
			}
			resp, err := client.CacheStats(c.Context, file)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func cacheClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "invalidate one workspace's cache, or every open workspace if neither flag is set",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Usage: "workspace root to clear"},
			&cli.StringFlag{Name: "file", Usage: "clear only the workspace containing this file"},
		},
		Action: func(c *cli.Context) error {
			cfg, root, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			client := daemon.NewClient(socketPathFor(cfg, root))
			req := daemon.CacheClearRequest{Workspace: c.String("workspace"), File: c.String("file")}
			resp, err := client.CacheClear(c.Context, req)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func cacheClearSymbolCommand() *cli.Command {
	return &cli.Command{
		Name:      "clear-symbol",
		Usage:     "invalidate cache entries for one symbol",
		ArgsUsage: "<file> <name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Usage: "workspace root (default: the root containing <file>)"},
			&cli.IntFlag{Name: "line", Usage: "0-based line the symbol is defined at, as LSP reports it"},
			&cli.IntFlag{Name: "col", Usage: "0-based column the symbol is defined at, as LSP reports it"},
			&cli.StringSliceFlag{Name: "methods", Usage: "restrict invalidation to these LSP methods"},
			&cli.BoolFlag{Name: "all-positions", Usage: "clear every position matching this name, not just one"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return fmt.Errorf("usage: lcid cache clear-symbol [flags] <file> <name>")
			}
			file := c.Args().Get(0)
			name := c.Args().Get(1)

			cfg, root, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			workspace := c.String("workspace")
			if workspace == "" {
				workspace = root
			}

			req := daemon.CacheClearSymbolRequest{
				Workspace:    workspace,
				File:         file,
				Name:         name,
				Methods:      c.StringSlice("methods"),
				AllPositions: c.Bool("all-positions"),
			}
			if c.IsSet("line") {
				line := c.Int("line")
				req.Line = &line
			}
			if c.IsSet("col") {
				col := c.Int("col")
				req.Column = &col
			}

			client := daemon.NewClient(socketPathFor(cfg, root))
			resp, err := client.CacheClearSymbol(c.Context, req)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func cacheListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "enumerate every workspace with an open cache handle",
		Action: func(c *cli.Context) error {
			cfg, root, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			client := daemon.NewClient(socketPathFor(cfg, root))
			resp, err := client.CacheList(c.Context)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func cacheInfoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "report size, entry count, and access times for one workspace",
		ArgsUsage: "[workspace]",
		Action: func(c *cli.Context) error {
			cfg, root, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			client := daemon.NewClient(socketPathFor(cfg, root))
			resp, err := client.CacheInfo(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func logsCommand() *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "read or follow the daemon's in-memory log ring buffer",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "poll for new lines instead of exiting after the first batch"},
			&cli.IntFlag{Name: "lines", Usage: "max lines to fetch, starting from the oldest retained line (0 = no cap); ignored with --follow"},
		},
		Action: func(c *cli.Context) error {
			cfg, root, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			client := daemon.NewClient(socketPathFor(cfg, root))

			if !c.Bool("follow") {
				resp, err := client.Logs(c.Context, 0, c.Int("lines"))
				if err != nil {
					return err
				}
				for _, l := range resp.Lines {
					fmt.Println(l.Text)
				}
				return nil
			}

			return client.Follow(c.Context, time.Second, func(lines []daemon.LogLine) {
				for _, l := range lines {
					fmt.Println(l.Text)
				}
			})
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
