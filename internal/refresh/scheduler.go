// Package refresh drives the periodic re-scrape cycles that keep the stored
// corpus fresh: a fast NAV-only refresh on a short cadence and a full
// re-scrape on a long one, with per-scheme retry and failure isolation.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/npbot/npbot/internal/fund"
	"github.com/npbot/npbot/internal/scrape"
	"github.com/npbot/npbot/internal/store"
	"github.com/npbot/npbot/internal/validate"
)

// ErrRunInProgress is returned when a refresh of the same kind is already
// running. Concurrent runs of one kind are disallowed.
var ErrRunInProgress = errors.New("refresh run already in progress")

// ChunkIndexer pushes derived chunks into the retrieval index and evicts
// superseded ones. The search layer implements this; a nil indexer runs
// storage-only.
type ChunkIndexer interface {
	IndexChunks(ctx context.Context, chunks []fund.TextChunk) error
	RemoveChunks(ctx context.Context, chunkIDs []string) error
}

// Config carries the scheduler's collaborators and tuning.
type Config struct {
	Store       *store.ChunkedStore
	Fetcher     scrape.Fetcher
	Validator   *validate.Validator
	Indexer     ChunkIndexer // optional
	Policy      RetryPolicy
	Concurrency int // concurrent scheme fetches per run, default 1
	Logger      *slog.Logger
}

// Scheduler executes fast and full refresh runs. All refresh activity is
// serialized through one gate per scheduler, which is the simple and
// sufficient policy for keeping fast and full runs off the same scheme.
type Scheduler struct {
	store       *store.ChunkedStore
	fetcher     scrape.Fetcher
	validator   *validate.Validator
	indexer     ChunkIndexer
	policy      RetryPolicy
	concurrency int
	logger      *slog.Logger

	gate sync.Mutex // serializes all refresh activity

	mu      sync.Mutex
	running map[RunKind]bool
	last    map[RunKind]*Report
}

// New creates a scheduler from cfg.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}
	return &Scheduler{
		store:       cfg.Store,
		fetcher:     cfg.Fetcher,
		validator:   cfg.Validator,
		indexer:     cfg.Indexer,
		policy:      policy,
		concurrency: concurrency,
		logger:      logger,
		running:     make(map[RunKind]bool),
		last:        make(map[RunKind]*Report),
	}
}

// LastReport returns the report of the most recent completed run of kind, or
// nil if none has completed yet. The second result reports whether a run of
// that kind is currently executing.
func (s *Scheduler) LastReport(kind RunKind) (*Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[kind], s.running[kind]
}

func (s *Scheduler) begin(kind RunKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[kind] {
		return fmt.Errorf("%w: %s", ErrRunInProgress, kind)
	}
	s.running[kind] = true
	return nil
}

func (s *Scheduler) finish(kind RunKind, report *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[kind] = false
	s.last[kind] = report
}

// RunFullRefresh re-scrapes every known scheme: all fields, validation,
// factsheet, re-chunk, re-index. Per-scheme failures are retried under the
// policy and then recorded; they never abort the batch.
func (s *Scheduler) RunFullRefresh(ctx context.Context) (*Report, error) {
	if err := s.begin(RunFull); err != nil {
		return nil, err
	}
	s.gate.Lock()
	defer s.gate.Unlock()

	started := time.Now()
	report := &Report{Kind: RunFull, StartedAt: started.UTC()}
	defer s.finish(RunFull, report)

	var urls []string
	err := s.policy.Attempt(ctx, func() error {
		var err error
		urls, err = s.fetcher.ListSchemeURLs(ctx)
		return err
	})
	if err != nil {
		report.finalize(started)
		report.Status = StatusFailed
		return report, fmt.Errorf("list scheme urls: %w", err)
	}
	s.logger.Info("full refresh started", "schemes", len(urls))

	var (
		reportMu sync.Mutex
		stopped  bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, url := range urls {
		if ctx.Err() != nil {
			// Cooperative cancellation: schemes already dispatched finish
			// their attempt, no new ones start.
			stopped = true
			break
		}
		// Counted at dispatch so a cancelled run reports only the schemes
		// it actually reached.
		report.Attempted++
		g.Go(func() error {
			code, err := s.refreshFull(gctx, url)
			reportMu.Lock()
			defer reportMu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, SchemeFailure{
					SchemeCode: code, URL: url, Reason: err.Error(),
				})
				s.logger.Warn("scheme refresh failed", "url", url, "error", err)
				return nil
			}
			report.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	report.finalize(started)
	if report.Succeeded > 0 {
		if err := s.store.MarkRefreshed(true, time.Now()); err != nil {
			s.logger.Warn("could not record refresh timestamp", "error", err)
		}
	}
	s.logger.Info("full refresh finished",
		"status", report.Status,
		"succeeded", report.Succeeded,
		"failed", len(report.Failures),
		"duration", report.Duration,
	)
	if stopped {
		return report, ctx.Err()
	}
	return report, nil
}

// refreshFull handles one scheme end to end. Returns the scheme code when it
// is known, for failure attribution.
func (s *Scheduler) refreshFull(ctx context.Context, url string) (string, error) {
	var rec *fund.SchemeRecord
	err := s.policy.Attempt(ctx, func() error {
		var err error
		rec, err = s.fetcher.FetchScheme(ctx, url)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}

	if s.validator != nil {
		rec.ValidationStatus = s.validator.ValidateScheme(ctx, rec)
	}

	if err := s.store.PutScheme(rec); err != nil {
		return rec.SchemeCode, fmt.Errorf("store: %w", err)
	}

	chunks, err := s.store.ChunkAndStore(fund.RenderSchemeText(rec), rec.SchemeWebpageURL, fund.ChunkScheme, rec.SchemeCode)
	if err != nil {
		return rec.SchemeCode, fmt.Errorf("chunk: %w", err)
	}
	stale, err := s.store.PruneChunks(rec.SchemeCode, fund.ChunkScheme, chunks)
	if err != nil {
		return rec.SchemeCode, fmt.Errorf("prune: %w", err)
	}

	if rec.FactsheetURL != "" {
		factsheet, err := s.refreshFactsheet(ctx, rec)
		if err != nil {
			// A missing factsheet degrades the record, it does not fail it.
			// Its previous chunks stay until a factsheet fetch succeeds.
			s.logger.Warn("factsheet refresh failed", "scheme", rec.SchemeCode, "error", err)
		} else {
			chunks = append(chunks, factsheet...)
			staleFS, err := s.store.PruneChunks(rec.SchemeCode, fund.ChunkFactsheet, factsheet)
			if err != nil {
				return rec.SchemeCode, fmt.Errorf("prune: %w", err)
			}
			stale = append(stale, staleFS...)
		}
	}

	if s.indexer != nil {
		// Upsert before delete so the scheme is never unindexed mid-refresh.
		if err := s.indexer.IndexChunks(ctx, chunks); err != nil {
			return rec.SchemeCode, fmt.Errorf("index: %w", err)
		}
		if err := s.indexer.RemoveChunks(ctx, stale); err != nil {
			return rec.SchemeCode, fmt.Errorf("evict stale points: %w", err)
		}
	}
	return rec.SchemeCode, nil
}

func (s *Scheduler) refreshFactsheet(ctx context.Context, rec *fund.SchemeRecord) ([]fund.TextChunk, error) {
	var factsheet *fund.FactsheetRecord
	err := s.policy.Attempt(ctx, func() error {
		var err error
		factsheet, err = s.fetcher.FetchFactsheet(ctx, rec.FactsheetURL, rec.SchemeCode, rec.SchemeName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if err := s.store.PutFactsheet(factsheet); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return s.store.ChunkAndStore(fund.RenderFactsheetText(factsheet), factsheet.SourceURL, fund.ChunkFactsheet, rec.SchemeCode)
}

// RunFastRefresh re-observes only the NAV fields of every stored scheme.
// Records whose fetch fails keep their previous values.
func (s *Scheduler) RunFastRefresh(ctx context.Context) (*Report, error) {
	if err := s.begin(RunFast); err != nil {
		return nil, err
	}
	s.gate.Lock()
	defer s.gate.Unlock()

	started := time.Now()
	report := &Report{Kind: RunFast, StartedAt: started.UTC()}
	defer s.finish(RunFast, report)

	schemes, err := s.store.GetAllSchemes()
	if err != nil {
		report.finalize(started)
		report.Status = StatusFailed
		return report, fmt.Errorf("list stored schemes: %w", err)
	}
	s.logger.Info("fast refresh started", "schemes", len(schemes))

	var (
		reportMu sync.Mutex
		stopped  bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, rec := range schemes {
		if ctx.Err() != nil {
			stopped = true
			break
		}
		report.Attempted++
		g.Go(func() error {
			err := s.refreshNAV(gctx, rec)
			reportMu.Lock()
			defer reportMu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, SchemeFailure{
					SchemeCode: rec.SchemeCode, URL: rec.SchemeWebpageURL, Reason: err.Error(),
				})
				s.logger.Warn("nav refresh failed", "scheme", rec.SchemeCode, "error", err)
				return nil
			}
			report.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	report.finalize(started)
	if report.Succeeded > 0 {
		if err := s.store.MarkRefreshed(false, time.Now()); err != nil {
			s.logger.Warn("could not record refresh timestamp", "error", err)
		}
	}
	s.logger.Info("fast refresh finished",
		"status", report.Status,
		"succeeded", report.Succeeded,
		"failed", len(report.Failures),
		"duration", report.Duration,
	)
	if stopped {
		return report, ctx.Err()
	}
	return report, nil
}

// refreshNAV merges freshly observed NAV fields into the stored record.
func (s *Scheduler) refreshNAV(ctx context.Context, rec *fund.SchemeRecord) error {
	var fresh *fund.SchemeRecord
	err := s.policy.Attempt(ctx, func() error {
		var err error
		fresh, err = s.fetcher.FetchScheme(ctx, rec.SchemeWebpageURL)
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if fresh.NAV == 0 {
		return fmt.Errorf("no NAV observed on %s", rec.SchemeWebpageURL)
	}

	rec.NAV = fresh.NAV
	rec.NAVDate = fresh.NAVDate
	if rec.FieldSources == nil {
		rec.FieldSources = make(map[string]string)
	}
	rec.FieldSources["nav"] = fresh.FieldSources["nav"]
	if fresh.NAVDate != "" {
		rec.FieldSources["nav_date"] = fresh.FieldSources["nav_date"]
	}
	rec.LastUpdated = time.Now().UTC()

	if err := s.store.PutScheme(rec); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// Start runs the refresh daemon until ctx is cancelled: fast refresh every
// fastEvery, full refresh every fullEvery. Cadences fire independently but
// runs are serialized through the scheduler's gate.
func (s *Scheduler) Start(ctx context.Context, fastEvery, fullEvery time.Duration) error {
	fastTicker := time.NewTicker(fastEvery)
	fullTicker := time.NewTicker(fullEvery)
	defer fastTicker.Stop()
	defer fullTicker.Stop()

	s.logger.Info("refresh scheduler started", "fast_every", fastEvery, "full_every", fullEvery)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler stopped")
			return ctx.Err()
		case <-fastTicker.C:
			if _, err := s.RunFastRefresh(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				s.logger.Error("fast refresh run failed", "error", err)
			}
		case <-fullTicker.C:
			if _, err := s.RunFullRefresh(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				s.logger.Error("full refresh run failed", "error", err)
			}
		}
	}
}
