package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pevans/newscorpus/config"
	"github.com/pevans/newscorpus/corpus"
	"github.com/pevans/newscorpus/discovery"
	"github.com/pevans/newscorpus/ledger"
	"github.com/pevans/newscorpus/metrics"
	"github.com/pevans/newscorpus/pipeline"
	"github.com/pevans/newscorpus/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// crawl runs the pipeline for the config at configPath and prints the
// discovered URLs and a summary to out.
func (a *app) crawl(ctx context.Context, configPath string, out io.Writer) error {
	raw, err := config.ReadRaw(configPath)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	profile := scraper.Kommersant()
	fetcher := scraper.NewFetcher(a.settings.FetchTimeout, a.settings.UserAgent, m)
	collector := discovery.NewCollector(fetcher, profile, a.logger.Named("collector"), m)
	extractor := discovery.NewExtractor(fetcher, profile.ArticleConfig, a.logger.Named("extractor"))
	store := corpus.New(a.settings.AssetsPath)

	p := pipeline.New(collector, extractor, store, a.logger.Named("pipeline"), m, pipeline.Options{
		Concurrency: a.settings.Concurrency,
		FailFast:    a.settings.FailFast,
	})

	startedAt := time.Now()
	result, runErr := p.Run(ctx, raw)
	if result == nil {
		// Nothing ran: the config was rejected or the corpus could not be
		// prepared
		return runErr
	}

	fmt.Fprintln(out, "Discovered URLs:")
	for _, url := range result.URLs {
		fmt.Fprintf(out, "  %s\n", url)
	}

	a.recordRun(result, startedAt, runErr)
	a.writeMetrics(registry)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Crawl completed:")
	fmt.Fprintf(out, "  Articles found: %d\n", len(result.URLs))
	fmt.Fprintf(out, "  Articles saved: %d\n", len(result.Saved))
	fmt.Fprintf(out, "  Articles failed: %d\n", len(result.Failures))
	fmt.Fprintf(out, "  Corpus: %s\n", store.Dir())

	if len(result.Failures) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failures:")
		for _, f := range result.Failures {
			kind, _ := classify(f.Err)
			fmt.Fprintf(out, "  - #%d %s [%s]: %v\n", f.ID, f.URL, kind, f.Err)
		}
	}

	if runErr != nil {
		return runErr
	}
	return result.Err()
}

// recordRun stores the run in the ledger. Ledger problems are logged and do
// not fail the crawl.
func (a *app) recordRun(result *pipeline.Result, startedAt time.Time, runErr error) {
	if a.settings.LedgerDSN == "" {
		return
	}

	store, err := ledger.NewStore(a.settings.LedgerDSN)
	if err != nil {
		a.logger.Warn("failed to open run ledger", zap.Error(err))
		return
	}
	defer store.Close()

	run, outcomes := ledgerEntry(result, startedAt, time.Now(), runErr)
	if err := store.RecordRun(run, outcomes); err != nil {
		a.logger.Warn("failed to record run", zap.Error(err))
		return
	}
	a.logger.Info("recorded run", zap.String("run_id", run.RunID.String()))
}

// ledgerEntry converts a pipeline result into ledger rows.
func ledgerEntry(result *pipeline.Result, startedAt, finishedAt time.Time, runErr error) (*ledger.Run, []ledger.Outcome) {
	run := ledger.NewRun(result.Config.SeedURLs, result.Config.MaxArticles, startedAt)
	run.FinishedAt = finishedAt
	run.URLsFound = len(result.URLs)
	run.Saved = len(result.Saved)
	run.Failed = len(result.Failures)
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}

	outcomes := make([]ledger.Outcome, 0, len(result.Saved)+len(result.Failures))
	for _, record := range result.Saved {
		outcomes = append(outcomes, ledger.Outcome{
			RunID:     run.RunID,
			ArticleID: record.ID,
			URL:       record.SourceURL,
			Status:    ledger.StatusSaved,
		})
	}
	for _, f := range result.Failures {
		kind, _ := classify(f.Err)
		msg := f.Err.Error()
		outcomes = append(outcomes, ledger.Outcome{
			RunID:     run.RunID,
			ArticleID: f.ID,
			URL:       f.URL,
			Status:    ledger.StatusFailed,
			ErrorKind: kind,
			Error:     &msg,
		})
	}

	return run, outcomes
}

func (a *app) writeMetrics(registry *prometheus.Registry) {
	if a.settings.MetricsFile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(a.settings.MetricsFile, registry); err != nil {
		a.logger.Warn("failed to write metrics", zap.String("path", a.settings.MetricsFile), zap.Error(err))
	}
}
