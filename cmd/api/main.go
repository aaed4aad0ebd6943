package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docutag/linkaudit"
	"github.com/docutag/linkaudit/api"
	"github.com/docutag/linkaudit/browser"
	"github.com/docutag/linkaudit/config"
	"github.com/docutag/linkaudit/llm"
	"github.com/docutag/linkaudit/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("linkaudit service initializing", "version", "1.0.0")

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	// Initialize tracing
	if tracing.Enabled() {
		tp, err := tracing.InitTracer("linkaudit-api")
		if err != nil {
			logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Error("error shutting down tracer", "error", err)
				}
			}()
			logger.Info("tracing initialized successfully")
		}
	}

	// Default values
	defaultPort := getEnv("PORT", "8080")
	defaultConfigPath := getEnv("LINKAUDIT_CONFIG", "")
	defaultRequestTimeout := getEnv("REQUEST_TIMEOUT", "10m")
	defaultAnalysis := getEnv("ENABLE_ANALYSIS", "false")

	requestTimeout, err := time.ParseDuration(defaultRequestTimeout)
	if err != nil {
		logger.Warn("invalid REQUEST_TIMEOUT value, using default",
			"provided", defaultRequestTimeout,
			"default", "10m",
			"error", err,
		)
		requestTimeout = 10 * time.Minute
	}

	enableAnalysis, err := strconv.ParseBool(defaultAnalysis)
	if err != nil {
		logger.Warn("invalid ENABLE_ANALYSIS value, using default", "provided", defaultAnalysis, "default", false, "error", err)
		enableAnalysis = false
	}

	// Command-line flags (override environment variables)
	port := flag.String("port", defaultPort, "Server port")
	configPath := flag.String("config", defaultConfigPath, "Config file (.toml, .yaml or .yml)")
	analysis := flag.Bool("enable-analysis", enableAnalysis, "Enable LLM content analysis on /api/analyze")
	useBrowser := flag.Bool("browser", false, "Validate and fetch through headless Chrome first")
	disableCORS := flag.Bool("disable-cors", false, "Disable CORS")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(); err != nil {
		logger.Error("invalid environment configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	opts := []linkaudit.Option{linkaudit.WithLogger(logger)}

	if *useBrowser || cfg.Browser.Enabled {
		b, err := browser.New(cfg.BrowserSettings())
		if err != nil {
			logger.Warn("headless browser unavailable, continuing with plain HTTP", "error", err)
		} else {
			defer b.Close()
			opts = append(opts, linkaudit.WithBrowser(b, b))
			logger.Info("headless browser started")
		}
	}

	if *analysis {
		client, err := llm.NewClient(ctx, cfg.LLM)
		if err != nil {
			logger.Error("failed to create llm client", "provider", cfg.LLM.Provider, "error", err)
			os.Exit(1)
		}
		if ollama, ok := client.(*llm.OllamaClient); ok {
			if err := ollama.Available(ctx); err != nil {
				logger.Warn("ollama not ready, analysis requests will come back Unclear", "error", err)
			}
		}
		opts = append(opts, linkaudit.WithCompleter(client))
		logger.Info("content analysis enabled", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	sink, err := cfg.Sink(ctx)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server, err := api.NewServer(api.Config{
		Addr:           ":" + *port,
		CORSEnabled:    !*disableCORS,
		RequestTimeout: requestTimeout,
	}, api.Deps{
		Auditor:  linkaudit.New(cfg.Auditor(), opts...),
		Sink:     sink,
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Start server in a goroutine
	go func() {
		logger.Info("linkaudit service starting",
			"port", *port,
			"storage", sink.GetFullPath(""),
			"request_timeout", requestTimeout,
			"analysis_enabled", *analysis,
		)

		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
