// Package batch orchestrates the per-URL pipeline over an input list: it
// truncates oversized batches, runs pipelines on a bounded worker pool,
// reports progress, and returns results in input order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boopin/seo-url-analyzer/internal/analyzer"
	"github.com/boopin/seo-url-analyzer/internal/config"
	"github.com/boopin/seo-url-analyzer/internal/fetcher"
	"github.com/boopin/seo-url-analyzer/internal/pipeline"
	"github.com/boopin/seo-url-analyzer/internal/probe"
	"github.com/boopin/seo-url-analyzer/internal/storage"
	"github.com/boopin/seo-url-analyzer/pkg/types"
)

// ProgressFunc is called after each URL finishes with the number of
// completed URLs and the batch total. Calls are monotonically increasing.
type ProgressFunc func(completed, total int)

// Report is the outcome of one batch run.
type Report struct {
	RunID     string                 `json:"run_id"`
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration"`
	Requested int                    `json:"requested"`
	Truncated int                    `json:"truncated"`
	Results   []types.AnalysisResult `json:"results"`
}

// Engine wires the analysis collaborators from configuration and runs
// batches over them.
type Engine struct {
	cfg      config.Config
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	progress ProgressFunc

	closers   []func() error
	closeOnce sync.Once
}

// Option adjusts engine construction.
type Option func(*engineOptions)

type engineOptions struct {
	logger    *slog.Logger
	progress  ProgressFunc
	transport http.RoundTripper
}

// WithLogger overrides the logger built from configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *engineOptions) { o.progress = fn }
}

// WithTransport overrides the HTTP transport. Intended for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *engineOptions) { o.transport = rt }
}

// NewEngine builds an engine from configuration.
func NewEngine(cfg config.Config, opts ...Option) (*Engine, error) {
	var options engineOptions
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.logger
	if logger == nil {
		built, err := BuildLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
		logger = built
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Headers:      cfg.Fetch.Headers,
		Timeout:      cfg.Fetch.Timeout.Duration,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Transport:    options.transport,
	})
	if err != nil {
		return nil, fmt.Errorf("http fetcher: %w", err)
	}

	var tlsChecker pipeline.TLSChecker
	if cfg.TLS.Enabled {
		tlsChecker = fetcher.NewTLSChecker(cfg.TLS.Timeout.Duration)
	}

	textAnalyzer := analyzer.New(analyzer.Options{
		TopKeywords:    cfg.Analyze.TopKeywords,
		ExtraStopWords: cfg.Analyze.ExtraStopWords,
		DetectLanguage: cfg.Analyze.DetectLanguage,
	})

	var prober pipeline.LinkProber
	if cfg.Probe.Enabled {
		var gate *probe.RobotsGate
		if cfg.Probe.RespectRobots {
			gate = probe.NewRobotsGate(httpFetcher.Client(), cfg.Fetch.UserAgent, cfg.Probe.RobotsCacheTTL.Duration)
		}
		var perHost probe.RateSettings
		if cfg.Probe.RatePerHost.Enabled() {
			perHost = probe.RateSettings{
				Requests: cfg.Probe.RatePerHost.Requests,
				Window:   cfg.Probe.RatePerHost.Window.Duration,
			}
		}
		prober = probe.New(probe.Options{
			UserAgent:   cfg.Fetch.UserAgent,
			Concurrency: cfg.Probe.Concurrency,
			Timeout:     cfg.Probe.Timeout.Duration,
			MaxLinks:    cfg.Probe.MaxLinksPerPage,
			RatePerHost: perHost,
			Robots:      gate,
			Logger:      logger,
			Transport:   options.transport,
		})
	}

	var relational storage.RelationalStore
	var closers []func() error
	if cfg.Storage.Enabled {
		sqlWriter, err := storage.NewSQLWriter(cfg.Storage)
		if err != nil {
			return nil, err
		}
		relational = sqlWriter
		closers = append(closers, sqlWriter.Close)
	}
	var snapshots storage.Snapshotter
	if cfg.Snapshot.Enabled {
		writer, err := storage.NewSnapshotWriter(cfg.Snapshot.Directory)
		if err != nil {
			return nil, err
		}
		snapshots = writer
	}
	var sink pipeline.Sink
	if store := storage.NewPipeline(relational, snapshots); store != nil {
		sink = store
	}

	return &Engine{
		cfg:      cfg,
		pipeline: pipeline.New(httpFetcher, tlsChecker, textAnalyzer, prober, sink, logger),
		logger:   logger,
		progress: options.progress,
		closers:  closers,
	}, nil
}

// Run analyzes the given URLs and returns one result per URL, in input
// order. Inputs beyond the configured maximum are dropped with a warning.
// Cancellation keeps finished results and fills unstarted slots with error
// records, so the report always carries min(len(urls), max) entries.
func (e *Engine) Run(ctx context.Context, urls []string) (*Report, error) {
	requested := len(urls)
	truncated := 0

	maxURLs := e.cfg.Batch.MaxURLs
	if maxURLs <= 0 {
		maxURLs = 10
	}
	if len(urls) > maxURLs {
		truncated = len(urls) - maxURLs
		urls = urls[:maxURLs]
		e.logger.Warn("input truncated", "max_urls", maxURLs, "dropped", truncated)
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	logger := e.logger.With("run_id", runID)
	logger.Info("batch started", "urls", len(urls))

	total := len(urls)
	results := make([]*types.AnalysisResult, total)

	// The counter increment and the callback run under one lock so
	// observers see completions strictly in order.
	var progressMu sync.Mutex
	completed := 0

	jobs := make(chan int, total)
	workers := e.cfg.Batch.Concurrency
	if workers <= 0 {
		workers = 4
	}
	if workers > total {
		workers = total
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = e.analyzeOne(ctx, logger, runID, urls[idx])
				progressMu.Lock()
				completed++
				if e.progress != nil {
					e.progress(completed, total)
				}
				progressMu.Unlock()
			}
		}()
	}

	for idx := range urls {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	// Workers bail out early on cancellation; those slots still owe the
	// caller one record each.
	for idx, result := range results {
		if result == nil {
			results[idx] = types.EmptyResult(urls[idx], "batch cancelled before analysis")
		}
	}

	report := &Report{
		RunID:     runID,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Requested: requested,
		Truncated: truncated,
		Results:   make([]types.AnalysisResult, total),
	}
	for idx, result := range results {
		report.Results[idx] = *result
	}

	logger.Info("batch finished", "duration", report.Duration, "results", total, "truncated", truncated)
	return report, nil
}

func (e *Engine) analyzeOne(ctx context.Context, logger *slog.Logger, runID, raw string) *types.AnalysisResult {
	if ctx.Err() != nil {
		return nil
	}

	req, err := types.NewAnalysisRequest(raw)
	if err != nil {
		logger.Warn("invalid url", "url", raw, "error", err)
		return types.EmptyResult(raw, err.Error())
	}

	result, perr := e.pipeline.Run(ctx, runID, req)
	if perr != nil {
		logger.Warn("url failed", "url", raw, "kind", perr.Kind.String())
	}
	return result
}

// Close releases resources owned by the engine.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		for _, closer := range e.closers {
			if cerr := closer(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
	})
	return err
}

// BuildLogger constructs the process logger from configuration.
func BuildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
