package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rwadesk/chainlistener/api"
	"github.com/rwadesk/chainlistener/cursor"
	"github.com/rwadesk/chainlistener/events"
	"github.com/rwadesk/chainlistener/internal/config"
	"github.com/rwadesk/chainlistener/internal/logger"
	"github.com/rwadesk/chainlistener/listener"
	"github.com/rwadesk/chainlistener/offchain"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion = flag.Bool("version", false, "Show version information and exit")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat   = flag.String("log-format", "", "Log format (json, console)")
		cursorPath  = flag.String("cursor-db", "", "Cursor database path (pebble backend)")
		eventsPath  = flag.String("events-db", "", "Offchain event database path")

		enableAPI = flag.Bool("api", false, "Enable HTTP API server")
		apiHost   = flag.String("api-host", "", "HTTP API server host")
		apiPort   = flag.Int("api-port", 0, "HTTP API server port")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("chainlistener version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	applyFlags(cfg, *logLevel, *logFormat, *cursorPath, *eventsPath)
	applyAPIFlags(cfg, *enableAPI, *apiHost, *apiPort)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := initLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting chainlistener",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_time", buildTime),
		zap.Int("networks", len(cfg.EnabledNetworks())),
		zap.String("cursor_backend", cfg.Cursor.Backend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cursors, err := openCursorStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open cursor store", zap.Error(err))
	}
	defer func() {
		if err := cursors.Close(); err != nil {
			log.Error("Failed to close cursor store", zap.Error(err))
		}
	}()

	eventStore, err := offchain.NewPebbleStore(&offchain.PebbleConfig{
		Path:   cfg.Offchain.Path,
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to open offchain event store", zap.Error(err))
	}
	defer func() {
		if err := eventStore.Close(); err != nil {
			log.Error("Failed to close offchain event store", zap.Error(err))
		}
	}()

	log.Info("Stores initialized",
		zap.String("offchain_path", cfg.Offchain.Path),
	)

	metrics := listener.NewMetrics(prometheus.DefaultRegisterer)

	handlers := map[string]events.HandlerFn{
		"PostProof": events.PersistHandler,
	}

	supervisor, err := listener.NewSupervisor(cfg, cursors, eventStore, handlers, metrics, log)
	if err != nil {
		log.Fatal("Failed to create supervisor", zap.Error(err))
	}

	if err := supervisor.Start(ctx); err != nil {
		log.Fatal("Failed to start listener loops", zap.Error(err))
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiConfig := api.DefaultConfig()
		apiConfig.Host = cfg.API.Host
		apiConfig.Port = cfg.API.Port
		apiConfig.EnableRateLimit = cfg.API.EnableRateLimit
		if cfg.API.RateLimitPerSecond > 0 {
			apiConfig.RateLimitPerSecond = cfg.API.RateLimitPerSecond
		}
		if cfg.API.RateLimitBurst > 0 {
			apiConfig.RateLimitBurst = cfg.API.RateLimitBurst
		}

		apiServer, err = api.NewServer(apiConfig, log, supervisor)
		if err != nil {
			log.Fatal("Failed to create API server", zap.Error(err))
		}

		go func() {
			if err := apiServer.Start(); err != nil {
				log.Error("API server failed", zap.Error(err))
			}
		}()

		log.Info("API server started",
			zap.String("address", apiConfig.Address()),
		)
	}

	sig := <-sigChan
	log.Info("Received shutdown signal",
		zap.String("signal", sig.String()),
	)
	cancel()

	log.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop API server gracefully", zap.Error(err))
		}
	}

	if err := supervisor.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop listener loops gracefully", zap.Error(err))
	}

	log.Info("chainlistener stopped")
}

// loadConfig loads configuration from file and environment variables
func loadConfig(configFile string) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyFlags applies command-line flags to configuration
func applyFlags(cfg *config.Config, logLevel, logFormat, cursorPath, eventsPath string) {
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if cursorPath != "" {
		cfg.Cursor.Path = cursorPath
	}
	if eventsPath != "" {
		cfg.Offchain.Path = eventsPath
	}
}

// applyAPIFlags applies API-related command-line flags to configuration
func applyAPIFlags(cfg *config.Config, enableAPI bool, apiHost string, apiPort int) {
	if enableAPI {
		cfg.API.Enabled = true
	}
	if apiHost != "" {
		cfg.API.Host = apiHost
	}
	if apiPort > 0 {
		cfg.API.Port = apiPort
	}
}

// initLogger builds the process logger from the configured level and format
func initLogger(level, format string) (*zap.Logger, error) {
	if format == "console" {
		return logger.NewDevelopment()
	}

	return logger.NewWithConfig(&logger.Config{
		Level:    level,
		Encoding: format,
	})
}

// openCursorStore opens the configured cursor backend
func openCursorStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (cursor.Store, error) {
	switch cfg.Cursor.Backend {
	case "", "pebble":
		return cursor.NewPebbleStore(&cursor.PebbleConfig{
			Path:   cfg.Cursor.Path,
			Logger: log,
		})
	case "redis":
		return cursor.NewRedisStore(ctx, &cursor.RedisConfig{
			Addr:     cfg.Cursor.Redis.Addr,
			Password: cfg.Cursor.Redis.Password,
			DB:       cfg.Cursor.Redis.DB,
			Logger:   log,
		})
	default:
		return nil, fmt.Errorf("unknown cursor backend %q", cfg.Cursor.Backend)
	}
}
