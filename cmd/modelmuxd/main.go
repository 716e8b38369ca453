// modelmuxd is the generation daemon: it exposes the provider manager over
// an HTTP API (and optionally MCP on stdio), serves project previews and
// runs the background maintenance jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/modelmux/modelmux/config"
	"github.com/modelmux/modelmux/events"
	"github.com/modelmux/modelmux/llm"
	mmlogger "github.com/modelmux/modelmux/logger"
	"github.com/modelmux/modelmux/mcp"
	"github.com/modelmux/modelmux/memory"
	"github.com/modelmux/modelmux/preview"
	"github.com/modelmux/modelmux/runtime"
	"github.com/modelmux/modelmux/server"
	"github.com/modelmux/modelmux/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Path to config file (default: $MODELMUX_CONFIG or ~/.modelmux/config.yaml)")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout/stderr")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		mcpMode    = flag.Bool("mcp", false, "Serve MCP over stdio instead of the HTTP API")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	// Provider keys commonly live in a local .env during development.
	godotenv.Load() //nolint:errcheck

	path := *configPath
	if path == "" {
		path = config.GetServerConfigPath()
	}
	cfg, err := config.LoadServerConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Flags override the logging section; LOG_LEVEL already overrides the
	// configured level during config load.
	logOpts := mmlogger.Options{Level: cfg.Logging.Level, File: cfg.Logging.File, Pretty: cfg.Logging.Pretty}
	if *logFile != "" {
		logOpts.File = *logFile
	}
	if *pretty {
		logOpts.File, logOpts.Pretty = "", true
	}
	logger, err := mmlogger.InitFrom(logOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info().Str("config", path).Msg("Loaded configuration")

	manager := llm.NewManager(logger)
	keyrings, err := config.RegisterProviders(manager, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to register providers: %w", err)
	}
	if !manager.HasAvailableProvider() {
		logger.Warn().Msg("No providers are available; set API keys or start ollama")
	} else {
		logger.Info().
			Strs("providers", manager.AvailableProviders()).
			Str("default", manager.Default()).
			Msg("Providers registered")
	}

	if *mcpMode {
		// MCP mode is a plain stdio loop; the HTTP surfaces stay down.
		return mcp.NewServer(manager, server.Version, logger).ServeStdio()
	}

	ws := workspace.NewManager(cfg.Workspace.Path, logger)
	if err := ws.Init(); err != nil {
		return fmt.Errorf("failed to initialize workspace: %w", err)
	}
	if err := ws.LoadExisting(); err != nil {
		return fmt.Errorf("failed to load existing projects: %w", err)
	}

	store, err := memory.Open(cfg.Memory.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	pv := preview.NewServer(ws.Root(), cfg.Preview.Port, logger)
	hub := events.NewHub(logger)

	sched := runtime.NewScheduler(ws, keyrings, logger)
	if err := sched.Start(runtime.Options{
		CleanupCron:   cfg.Workspace.CleanupCron,
		CleanupOld:    cfg.Workspace.CleanupOld,
		MaxAge:        time.Duration(cfg.Workspace.MaxAgeDays) * 24 * time.Hour,
		KeyReportCron: cfg.Workspace.KeyReportCron,
	}); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	api := server.New(addr, manager, ws, store, pv, hub, keyrings, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down")
		sched.Stop()
		pv.Stop() //nolint:errcheck
		hub.Close()
		return nil
	})

	return g.Wait()
}
