// Package main provides the npbot CLI for managing the fund data corpus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/npbot/npbot/internal/answer"
	"github.com/npbot/npbot/internal/config"
	"github.com/npbot/npbot/internal/embedding"
	"github.com/npbot/npbot/internal/llm"
	"github.com/npbot/npbot/internal/refresh"
	"github.com/npbot/npbot/internal/scrape"
	"github.com/npbot/npbot/internal/search"
	"github.com/npbot/npbot/internal/store"
	"github.com/npbot/npbot/internal/validate"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "npbot",
	Short: "Nippon India Mutual Fund data pipeline",
	Long:  "CLI for scraping, validating, indexing, and querying Nippon India Mutual Fund scheme data",
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a full refresh: re-scrape all schemes, validate, re-chunk, re-index",
	Long: `Runs one full refresh cycle.

This command:
1. Lists all scheme pages on the official site
2. Scrapes every field of every scheme with source attribution
3. Validates each record against its live page
4. Stores records, factsheets, and derived chunks
5. Embeds and indexes chunks in Qdrant

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required for indexing)`,
	RunE: runSync,
}

var navCmd = &cobra.Command{
	Use:   "nav",
	Short: "Run a fast refresh: update NAV and NAV date of every stored scheme",
	RunE:  runNAV,
}

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question against the indexed corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the refresh daemon with the configured cadences",
	RunE:  runSchedule,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector index from stored chunks",
	Long: `Drops the Qdrant collection and re-embeds every stored chunk.

Use this after an interrupted sync, an embedding model change, or any time
the index may have drifted from the chunk store.`,
	RunE: runReindex,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print corpus counts, validation totals, and refresh recency",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.AddCommand(syncCmd, navCmd, queryCmd, scheduleCmd, reindexCmd, statusCmd)
}

func main() {
	// Load .env if present for local development, ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		cfg.Qdrant.Host = host
	}
	if port := getEnvInt("QDRANT_PORT", 0); port != 0 {
		cfg.Qdrant.Port = port
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.ChunkedStore, error) {
	return store.New(cfg.Store.DataDir, slog.Default())
}

func openFetcher(cfg *config.Config) *scrape.SiteFetcher {
	limiter := rate.NewLimiter(rate.Every(cfg.RequestSpacing()), 1)
	return scrape.NewSiteFetcher(scrape.NewClient(cfg.ScrapeTimeout(), limiter), "")
}

// openRetriever connects Qdrant and the embedding client. Both are required
// for indexing and querying, not for storage-only operations.
func openRetriever(ctx context.Context, cfg *config.Config) (*search.Retriever, *search.Index, *embedding.Client, error) {
	idx, err := search.NewIndex(cfg.Qdrant.Host, cfg.Qdrant.Port)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to Qdrant: %w", err)
	}
	if err := idx.EnsureCollection(ctx); err != nil {
		idx.Close()
		return nil, nil, nil, fmt.Errorf("ensure collection: %w", err)
	}

	client, err := embedding.NewClient()
	if err != nil {
		idx.Close()
		return nil, nil, nil, fmt.Errorf("create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(client, cfg.Model.BatchSize)

	return search.NewRetriever(embedder, idx, slog.Default()), idx, client, nil
}

func buildScheduler(cfg *config.Config, st *store.ChunkedStore, fetcher *scrape.SiteFetcher, indexer refresh.ChunkIndexer) *refresh.Scheduler {
	return refresh.New(refresh.Config{
		Store:     st,
		Fetcher:   fetcher,
		Validator: validate.New(fetcher.Client(), slog.Default()),
		Indexer:   indexer,
		Policy: refresh.RetryPolicy{
			MaxAttempts: uint64(cfg.Refresh.MaxAttempts),
			BaseDelay:   time.Duration(cfg.Refresh.BaseDelaySecs) * time.Second,
			MaxDelay:    time.Duration(cfg.Refresh.MaxDelaySecs) * time.Second,
		},
		Concurrency: cfg.Refresh.Concurrency,
		Logger:      slog.Default(),
	})
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	retriever, idx, _, err := openRetriever(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	fmt.Println("Starting full refresh...")
	sched := buildScheduler(cfg, st, openFetcher(cfg), retriever)
	report, err := sched.RunFullRefresh(ctx)
	if err != nil {
		return fmt.Errorf("full refresh: %w", err)
	}

	printReport(report)
	fmt.Printf("\nTotal time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runNAV(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	fmt.Println("Starting fast refresh...")
	sched := buildScheduler(cfg, st, openFetcher(cfg), nil)
	report, err := sched.RunFastRefresh(ctx)
	if err != nil {
		return fmt.Errorf("fast refresh: %w", err)
	}

	printReport(report)
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	retriever, idx, _, err := openRetriever(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	chunks, err := st.GetAllChunks()
	if err != nil {
		return fmt.Errorf("read stored chunks: %w", err)
	}
	if len(chunks) == 0 {
		fmt.Println("No stored chunks; run a sync first.")
		return nil
	}

	fmt.Println("Clearing existing collection...")
	if err := idx.ClearCollection(ctx); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}

	fmt.Printf("Re-indexing %d chunks...\n", len(chunks))
	if err := retriever.IndexChunks(ctx, chunks); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}

	fmt.Printf("Done in %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	retriever, idx, client, err := openRetriever(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	answerer := answer.New(answer.Config{
		Retriever: retriever,
		Records:   st,
		Model:     llm.NewOpenAIClient(client.Client(), cfg.Model.ChatModel, cfg.ModelTimeout()),
		Logger:    slog.Default(),
	})

	ans, err := answerer.AnswerQuery(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(ans.Text)
	fmt.Printf("\nSource:     %s\n", ans.SourceURL)
	if ans.SchemeCode != "" {
		fmt.Printf("Scheme:     %s\n", ans.SchemeCode)
	}
	fmt.Printf("Confidence: %s\n", ans.Confidence)
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	retriever, idx, _, err := openRetriever(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	sched := buildScheduler(cfg, st, openFetcher(cfg), retriever)
	fmt.Printf("Refresh daemon running (fast every %s, full every %s). Ctrl-C to stop.\n",
		cfg.FastEvery(), cfg.FullEvery())

	if err := sched.Start(ctx, cfg.FastEvery(), cfg.FullEvery()); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	md, err := st.Metadata()
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	fmt.Printf("Schemes:     %d\n", md.TotalSchemes)
	fmt.Printf("Factsheets:  %d\n", md.TotalFactsheets)
	fmt.Printf("Chunks:      %d\n", md.TotalChunks)
	if len(md.ValidationCounts) > 0 {
		fmt.Println("Validation:")
		for status, n := range md.ValidationCounts {
			fmt.Printf("  %-8s %d\n", status, n)
		}
	}
	if md.LastFastRefresh != nil {
		fmt.Printf("Last fast refresh: %s\n", md.LastFastRefresh.Format(time.RFC3339))
	}
	if md.LastFullRefresh != nil {
		fmt.Printf("Last full refresh: %s\n", md.LastFullRefresh.Format(time.RFC3339))
	}

	// Index counts are best effort; the store is still useful without Qdrant.
	if idx, err := search.NewIndex(cfg.Qdrant.Host, cfg.Qdrant.Port); err == nil {
		defer idx.Close()
		if points, err := idx.PointsCount(context.Background()); err == nil {
			fmt.Printf("Indexed points: %d\n", points)
		}
	}

	return nil
}

func printReport(report *refresh.Report) {
	fmt.Println()
	fmt.Printf("Run finished: %s\n", report.Status)
	fmt.Printf("  Attempted: %d\n", report.Attempted)
	fmt.Printf("  Succeeded: %d\n", report.Succeeded)
	fmt.Printf("  Duration:  %s\n", report.Duration.Round(time.Second))

	if len(report.Failures) > 0 {
		fmt.Println("Failures:")
		for _, f := range report.Failures {
			if f.SchemeCode != "" {
				fmt.Printf("  - %s (%s): %s\n", f.SchemeCode, f.URL, f.Reason)
			} else {
				fmt.Printf("  - %s: %s\n", f.URL, f.Reason)
			}
		}
	}
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
