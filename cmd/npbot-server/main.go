// Package main provides the npbot server: the HTTP query front end and the
// MCP surface over one shared pipeline.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/npbot/npbot/internal/answer"
	"github.com/npbot/npbot/internal/config"
	"github.com/npbot/npbot/internal/embedding"
	"github.com/npbot/npbot/internal/llm"
	mcpserver "github.com/npbot/npbot/internal/mcp"
	"github.com/npbot/npbot/internal/refresh"
	"github.com/npbot/npbot/internal/scrape"
	"github.com/npbot/npbot/internal/search"
	"github.com/npbot/npbot/internal/server"
	"github.com/npbot/npbot/internal/store"
	"github.com/npbot/npbot/internal/validate"
)

func main() {
	// Load .env if present for local development, ignore if missing.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		cfg.Qdrant.Host = host
	}
	if port := getEnvInt("QDRANT_PORT", 0); port != 0 {
		cfg.Qdrant.Port = port
	}
	if port := getEnvInt("PORT", 0); port != 0 {
		cfg.Server.Port = port
	}

	logger := slog.Default()

	st, err := store.New(cfg.Store.DataDir, logger)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	idx, err := search.NewIndex(cfg.Qdrant.Host, cfg.Qdrant.Port)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer idx.Close()
	if err := idx.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, cfg.Model.BatchSize)
	retriever := search.NewRetriever(embedder, idx, logger)

	answerer := answer.New(answer.Config{
		Retriever: retriever,
		Records:   st,
		Model:     llm.NewOpenAIClient(embeddingClient.Client(), cfg.Model.ChatModel, cfg.ModelTimeout()),
		Logger:    logger,
	})

	limiter := rate.NewLimiter(rate.Every(cfg.RequestSpacing()), 1)
	fetcher := scrape.NewSiteFetcher(scrape.NewClient(cfg.ScrapeTimeout(), limiter), "")
	sched := refresh.New(refresh.Config{
		Store:     st,
		Fetcher:   fetcher,
		Validator: validate.New(fetcher.Client(), logger),
		Indexer:   retriever,
		Policy: refresh.RetryPolicy{
			MaxAttempts: uint64(cfg.Refresh.MaxAttempts),
			BaseDelay:   time.Duration(cfg.Refresh.BaseDelaySecs) * time.Second,
			MaxDelay:    time.Duration(cfg.Refresh.MaxDelaySecs) * time.Second,
		},
		Concurrency: cfg.Refresh.Concurrency,
		Logger:      logger,
	})

	// The in-process refresh daemon is opt-in; deployments that refresh via
	// the CLI or cron leave it off.
	if getEnv("REFRESH_DAEMON", "false") == "true" {
		go func() {
			if err := sched.Start(ctx, cfg.FastEvery(), cfg.FullEvery()); err != nil && ctx.Err() == nil {
				logger.Error("refresh daemon stopped", "error", err)
			}
		}()
	}

	mcpSrv := mcpserver.NewServer(&mcpserver.Config{
		Store:     st,
		Answerer:  answerer,
		Scheduler: sched,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", server.NewLandingHandler())
	mux.HandleFunc("/query", server.NewQueryHandler(answerer, logger))
	mux.HandleFunc("/health", server.NewHealthHandler(idx))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(mcpSrv, nil))

	if getEnv("MCP_STDIO", "false") == "true" {
		// Stdio mode for local MCP clients; HTTP stays up for health checks.
		go serveHTTP(ctx, cfg.Server.Port, mux, logger)
		log.Println("Starting npbot MCP server (stdio mode)...")
		if err := mcpSrv.Run(ctx); err != nil {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
		return
	}

	serveHTTP(ctx, cfg.Server.Port, mux, logger)
}

func serveHTTP(ctx context.Context, port int, mux *http.ServeMux, logger *slog.Logger) {
	srv := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("http server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
