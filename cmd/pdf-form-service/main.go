package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/pdf-form-service/internal/api"
	"github.com/a3tai/pdf-form-service/internal/cleanup"
	"github.com/a3tai/pdf-form-service/internal/config"
	"github.com/a3tai/pdf-form-service/internal/mcp"
	"github.com/a3tai/pdf-form-service/internal/pdf"
	"github.com/a3tai/pdf-form-service/internal/pdf/stamp"
	"github.com/a3tai/pdf-form-service/internal/store"
)

// shutdownTimeout bounds how long in-flight requests may take after a signal
const shutdownTimeout = 10 * time.Second

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the run mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	if cfg.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
}

// newLogger builds the structured logger of the service components.
// stdout carries the MCP protocol in stdio mode, so that mode only logs
// (to stderr) when debugging.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	switch {
	case cfg.IsDebug():
		return zap.NewDevelopment()
	case cfg.IsStdioMode():
		return zap.NewNop(), nil
	default:
		return zap.NewProduction()
	}
}

// newService wires the template store, cleanup scheduler and PDF service
func newService(cfg *config.Config, logger *zap.Logger) (*pdf.Service, *cleanup.Scheduler, error) {
	templates, err := store.NewFileStore(cfg.StorageDirectory)
	if err != nil {
		return nil, nil, err
	}
	if err := templates.EnsureDir(); err != nil {
		return nil, nil, err
	}

	var layout stamp.Layout
	if cfg.StampLayout != "" {
		layout, err = stamp.LoadLayout(cfg.StampLayout)
		if err != nil {
			return nil, nil, err
		}
	}

	scheduler := cleanup.NewScheduler(cfg.StorageDirectory, cfg.OutputTTL, logger.Named("cleanup"))

	strategy, err := pdf.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, nil, err
	}

	service, err := pdf.NewService(templates, scheduler, pdf.Options{
		MaxFileSize:     cfg.MaxFileSize,
		Strategy:        strategy,
		Layout:          layout,
		SourceDirectory: cfg.SourceDirectory,
		OutputDirectory: cfg.StorageDirectory,
		OutputTTL:       cfg.OutputTTL,
		Debug:           cfg.IsDebug(),
	})
	if err != nil {
		scheduler.Close()
		return nil, nil, err
	}

	return service, scheduler, nil
}

// runServerMode serves the HTTP API until ctx is canceled, then drains
// in-flight requests
func runServerMode(ctx context.Context, cfg *config.Config, service *pdf.Service, logger *zap.Logger) error {
	handler := api.NewHandler(service, logger.Named("api"))
	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.NewRouter(handler, cfg.IsDebug()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("PDF form service listening",
			zap.String("addr", srv.Addr),
			zap.String("strategy", string(service.DefaultStrategy())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Info("Server exiting")
		return nil
	})

	return g.Wait()
}

// runStdioMode serves the MCP tools over stdio
func runStdioMode(ctx context.Context, cfg *config.Config, service *pdf.Service) error {
	server, err := mcp.NewServer(cfg, service)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	service, scheduler, err := newService(cfg, logger)
	if err != nil {
		return err
	}
	defer scheduler.Close()

	if err := scheduler.Start(cfg.SweepInterval); err != nil {
		return err
	}

	if cfg.IsServerMode() {
		return runServerMode(ctx, cfg, service, logger)
	}
	return runStdioMode(ctx, cfg, service)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() && cfg.IsServerMode() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Printf("Server error: %v", err)
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
	_ = logger.Sync()

	log.Println("Server stopped successfully")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("PDF Form Service\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
