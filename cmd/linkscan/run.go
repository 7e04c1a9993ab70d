package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/linkscan/internal/config"
	"github.com/jonathan/linkscan/internal/db"
	"github.com/jonathan/linkscan/internal/fetch"
	"github.com/jonathan/linkscan/internal/ingestion"
	"github.com/jonathan/linkscan/internal/links"
	"github.com/jonathan/linkscan/internal/logger"
	"github.com/jonathan/linkscan/internal/observability"
	"github.com/jonathan/linkscan/internal/pipeline"
	"github.com/jonathan/linkscan/internal/sink"
)

type runFlags struct {
	configPath   string
	input        string
	output       string
	concurrency  int
	timeout      string
	userAgent    string
	headers      map[string]string
	extractor    string
	strictStatus bool
	browser      bool
	databaseURL  string
	logLevel     string
	verbose      bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	// Config file flag (processed first)
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	cmd.Flags().StringVarP(&f.input, "input", "i", config.DefaultInput, "File with one URL per line")
	cmd.Flags().StringVarP(&f.output, "output", "o", config.DefaultOutput, "TSV file to write link pairs to")
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "c", 0, "Maximum pages fetched at once (0 = no limit)")
	cmd.Flags().StringVar(&f.timeout, "timeout", config.DefaultTimeout, "Per-request timeout")
	cmd.Flags().StringVar(&f.userAgent, "user-agent", "", "User-Agent header sent with every request")
	cmd.Flags().StringToStringVar(&f.headers, "header", nil, "Extra request headers as key=value pairs")
	cmd.Flags().StringVar(&f.extractor, "extractor", config.DefaultExtractor, "Link extractor: pattern or markup")
	cmd.Flags().BoolVar(&f.strictStatus, "strict-status", false, "Treat non-2xx responses as failures")
	cmd.Flags().BoolVar(&f.browser, "browser", false, "Render pages in headless Chrome before extracting links")
	cmd.Flags().StringVar(&f.databaseURL, "database-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print a run summary and failure table")
}

// resolveConfig merges flags, the optional config file, the environment and
// built-in defaults, in that order of precedence.
func resolveConfig(cmd *cobra.Command, f *runFlags) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	// Only override if the flag was explicitly set
	changed := cmd.Flags().Changed
	if changed("input") {
		cfg.Input = f.input
	}
	if changed("output") {
		cfg.Output = f.output
	}
	if changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if changed("user-agent") {
		cfg.UserAgent = f.userAgent
	}
	if changed("header") {
		cfg.Headers = f.headers
	}
	if changed("extractor") {
		cfg.Extractor = f.extractor
	}
	if changed("strict-status") {
		cfg.StrictStatus = f.strictStatus
	}
	if changed("browser") {
		cfg.Browser = f.browser
	}
	if changed("database-url") {
		cfg.DatabaseURL = f.databaseURL
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}

	cfg = cfg.MergeWithDefaults(config.FromEnv())
	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// runScan executes one run. Per-URL failures are reported, not returned;
// only setup failures and interruption produce an error.
func runScan(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	start := time.Now()

	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	urls, err := ingestion.LoadURLFile(cfg.Input)
	if err != nil {
		return err
	}

	extractor, err := links.ByName(cfg.Extractor)
	if err != nil {
		return err
	}

	fetcher, closeFetcher, err := newFetcher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	var store *db.DB
	var runs runCreator
	if cfg.DatabaseURL != "" {
		store, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		runs = store
	}

	out, runID, err := openOutput(ctx, cfg.Output, runs, len(urls))
	if err != nil {
		return err
	}
	log = log.With(logger.String("run_id", runID.String()))

	var target sink.Sink = out
	if store != nil {
		target = sink.Multi(out, store.Sink(runID))
	}

	log.Info("run started",
		logger.String("input", cfg.Input),
		logger.String("output", cfg.Output),
		logger.Int("urls", len(urls)),
		logger.Int("concurrency", cfg.Concurrency),
		logger.String("extractor", cfg.Extractor),
		logger.Bool("browser", cfg.Browser),
	)

	processor := pipeline.NewProcessor(fetcher, extractor, target, log)
	done := 0
	coordinator := pipeline.NewCoordinator(processor, pipeline.Options{
		Policy: policyFor(cfg.Concurrency),
		Log:    log,
		OnOutcome: func(o pipeline.Outcome) {
			done++
			log.Debug("url done",
				logger.String("url", o.URL),
				logger.String("status", string(o.Status)),
				logger.Int("links", o.Links),
				logger.Int("done", done),
				logger.Int("total", len(urls)),
			)
		},
	})

	summary, runErr := coordinator.Run(ctx, urls)

	// The output must be durable before the run is reported.
	if err := target.Close(); err != nil {
		return fmt.Errorf("failed to finalize output: %w", err)
	}

	if store != nil {
		recordRun(context.WithoutCancel(ctx), store, runID, summary, runErr, log)
	}

	_, _ = fmt.Fprintf(stdout, "Completed in %.2f seconds\n", time.Since(start).Seconds())
	if cfg.Verbose {
		observability.NewPrinter(stdout).PrintSummary(summary)
	}

	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	return nil
}

// runCreator registers a run in the link store.
type runCreator interface {
	CreateRun(ctx context.Context, inputCount int) (uuid.UUID, error)
}

// openOutput creates the TSV sink and then, if runs is set, the run record.
// A run row is only created once the output is known to be writable.
func openOutput(ctx context.Context, path string, runs runCreator, inputCount int) (*sink.WriterSink, uuid.UUID, error) {
	out, err := sink.Create(path)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if runs == nil {
		return out, uuid.New(), nil
	}
	runID, err := runs.CreateRun(ctx, inputCount)
	if err != nil {
		_ = out.Close()
		return nil, uuid.Nil, err
	}
	return out, runID, nil
}

func policyFor(concurrency int) pipeline.Policy {
	if concurrency <= 0 {
		return pipeline.Unbounded()
	}
	return pipeline.Bounded(concurrency)
}

// newFetcher returns the HTTP client, or a headless browser when requested.
// The returned func releases it.
func newFetcher(ctx context.Context, cfg config.Config) (pipeline.Fetcher, func(), error) {
	opts := fetch.DefaultOptions()
	opts.Timeout = cfg.TimeoutDuration()
	opts.Headers = cfg.Headers
	opts.StrictStatus = cfg.StrictStatus
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}

	if !cfg.Browser {
		return fetch.New(opts), func() {}, nil
	}
	bf, err := fetch.NewBrowserFetcher(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return bf, bf.Close, nil
}

// recordRun stores failures and final tallies. Storage errors are logged;
// the TSV output is already complete at this point.
func recordRun(ctx context.Context, store *db.DB, runID uuid.UUID, summary *pipeline.Summary, runErr error, log logger.Logger) {
	for _, f := range summary.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		if err := store.RecordFailedFetch(ctx, runID, f.URL, string(f.Kind), msg); err != nil {
			log.Warn("failed to record failed fetch", logger.String("url", f.URL), logger.Error(err))
		}
	}

	status := db.RunStatusCompleted
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		status = db.RunStatusCanceled
	}
	counts := db.RunCounts{
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		NoLinks:   summary.NoLinks,
		Links:     summary.Links,
	}
	if err := store.CompleteRun(ctx, runID, status, counts); err != nil {
		log.Warn("failed to complete run", logger.Error(err))
	}
}
