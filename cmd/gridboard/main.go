// Command gridboard serves the dashboard sync API and runs the terminal
// dashboard client against it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"gridboard/internal/blob"
	"gridboard/internal/client"
	"gridboard/internal/config"
	"gridboard/internal/controller"
	"gridboard/internal/infra/persistence"
	"gridboard/internal/observability"
	"gridboard/internal/seed"
	"gridboard/internal/server"
	"gridboard/internal/tui"
)

var (
	version  = "dev"
	exitFunc = os.Exit
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.LookupEnv).ExecuteContext(ctx)
	stop()
	if err != nil {
		exitFunc(1)
	}
}

// flagOverrides holds command-line values that win over the environment when
// the flag was set explicitly.
type flagOverrides struct {
	addr      string
	apiURL    string
	storage   string
	sqlite    string
	seedPath  string
	watchSeed bool
	logLevel  string
	logJSON   bool
	logFile   string
	refresh   time.Duration
}

func newRootCmd(lookup func(string) (string, bool)) *cobra.Command {
	var f flagOverrides
	root := &cobra.Command{
		Use:          "gridboard",
		Short:        "Grid dashboard server and terminal client",
		SilenceUsage: true,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the layout sync API, chart pages and exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, lookup, f)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, f.logJSON)
			return runServe(cmd.Context(), cfg, logger)
		},
	}
	serve.Flags().StringVar(&f.addr, "addr", "", "listen address (overrides GRIDBOARD_ADDR)")
	serve.Flags().StringVar(&f.storage, "storage", "", "storage driver: memory, sqlite or postgres")
	serve.Flags().StringVar(&f.sqlite, "sqlite-path", "", "sqlite database file")
	serve.Flags().StringVar(&f.seedPath, "seed", "", "JSON snapshot applied at startup")
	serve.Flags().BoolVar(&f.watchSeed, "watch-seed", false, "re-apply the seed file when it changes")
	serve.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	serve.Flags().BoolVar(&f.logJSON, "log-json", true, "emit JSON logs")

	term := &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal dashboard against a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, lookup, f)
			if err != nil {
				return err
			}
			out := io.Discard
			if f.logFile != "" {
				file, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer file.Close()
				out = file
			}
			logger := observability.NewLogger(out, cfg.LogLevel, false)
			return runTUI(cmd.Context(), cfg, logger)
		},
	}
	term.Flags().StringVar(&f.apiURL, "api", "", "server base URL (overrides GRIDBOARD_API_URL)")
	term.Flags().DurationVar(&f.refresh, "refresh", 0, "polling interval for server changes")
	term.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	term.Flags().StringVar(&f.logFile, "log-file", "", "append client logs to this file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gridboard %s\n", version)
		},
	}

	root.AddCommand(serve, term, versionCmd)
	return root
}

// resolveConfig loads the environment and applies the flags the user set.
func resolveConfig(cmd *cobra.Command, lookup func(string) (string, bool), f flagOverrides) (config.Config, error) {
	cfg, err := config.Load(lookup)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = f.addr
	}
	if flags.Changed("api") {
		cfg.APIURL = f.apiURL
	}
	if flags.Changed("storage") {
		cfg.StorageDriver = f.storage
	}
	if flags.Changed("sqlite-path") {
		cfg.SQLitePath = f.sqlite
	}
	if flags.Changed("seed") {
		cfg.SeedPath = f.seedPath
	}
	if flags.Changed("watch-seed") {
		cfg.WatchSeed = f.watchSeed
	}
	if flags.Changed("refresh") {
		cfg.Refresh = f.refresh
	}
	if flags.Changed("log-level") {
		lvl, err := config.ParseLevel(f.logLevel)
		if err != nil {
			return config.Config{}, err
		}
		cfg.LogLevel = lvl
	}
	return cfg, cfg.Validate()
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := persistence.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := persistence.Close(store); err != nil {
			logger.Warn("close storage", slog.Any("error", err))
		}
	}()
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	srv := server.New(store, blobs, logger)
	if cfg.SeedPath != "" {
		state, err := seed.Apply(ctx, srv.Store(), cfg.SeedPath)
		if err != nil {
			return err
		}
		logger.Info("seed applied", slog.String("path", cfg.SeedPath),
			slog.Int("items", len(state.Layout)), slog.Int("widgets", len(state.Widgets)))
		if cfg.WatchSeed {
			go func() {
				if err := seed.Follow(ctx, srv.Store(), cfg.SeedPath, logger); err != nil {
					logger.Error("seed watcher stopped", slog.Any("error", err))
				}
			}()
		}
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	logger.Info("starting gridboard", slog.String("version", version),
		slog.String("storage", cfg.StorageDriver), slog.String("blob", cfg.Blob.Driver))
	return srv.Serve(ctx, ln, shutdownTimeout)
}

func runTUI(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ctrl := controller.New(client.New(cfg.APIURL, nil), controller.WithLogger(logger))
	program := tea.NewProgram(tui.New(ctx, ctrl, cfg.Refresh), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
