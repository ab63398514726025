// Package pipeline runs a complete crawl: validate the config, prepare the
// corpus, collect article links, then extract and save every article.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/pevans/newscorpus/article"
	"github.com/pevans/newscorpus/config"
	"github.com/pevans/newscorpus/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LinkCollector finds the article URLs to crawl.
type LinkCollector interface {
	Collect(ctx context.Context, cfg config.CrawlConfig) ([]string, error)
}

// ArticleExtractor builds one article record from its URL.
type ArticleExtractor interface {
	Extract(ctx context.Context, url string, id int) (article.Record, error)
}

// ArticleStore persists article records. The storage root is bound when the
// store is created.
type ArticleStore interface {
	PrepareEnvironment() error
	Save(record article.Record) error
}

// Options tune how articles are processed.
type Options struct {
	// Concurrency is the number of articles extracted at once. Values below
	// 1 mean 1.
	Concurrency int
	// FailFast stops the run at the first failed article. Articles already
	// saved stay saved.
	FailFast bool
}

// Failure is an article that could not be extracted or saved.
type Failure struct {
	ID  int
	URL string
	Err error
}

// Result is the outcome of a run. Saved and Failures are ordered by id.
type Result struct {
	Config   config.CrawlConfig
	URLs     []string
	Saved    []article.Record
	Failures []Failure
}

// Err returns the error of the lowest-id failure, or nil if every article
// was saved.
func (r *Result) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	f := r.Failures[0]
	return fmt.Errorf("%d of %d articles failed, first: %w", len(r.Failures), len(r.URLs), f.Err)
}

// Pipeline wires a collector, an extractor and a store together.
type Pipeline struct {
	collector LinkCollector
	extractor ArticleExtractor
	store     ArticleStore
	logger    *zap.Logger
	metrics   *metrics.Metrics
	options   Options
}

// New creates a pipeline. m may be nil.
func New(
	collector LinkCollector,
	extractor ArticleExtractor,
	store ArticleStore,
	logger *zap.Logger,
	m *metrics.Metrics,
	options Options,
) *Pipeline {
	if options.Concurrency < 1 {
		options.Concurrency = 1
	}
	return &Pipeline{
		collector: collector,
		extractor: extractor,
		store:     store,
		logger:    logger,
		metrics:   m,
		options:   options,
	}
}

type outcome struct {
	record  article.Record
	err     error
	skipped bool
}

// Run executes the whole crawl for raw. Configuration errors are returned
// before the corpus or the network is touched. Per-article failures are
// collected in the result; the returned error is non-nil only when the run
// could not complete (bad config, storage or collection failure, FailFast,
// or a cancelled context).
func (p *Pipeline) Run(ctx context.Context, raw config.RawConfig) (*Result, error) {
	cfg, err := config.Validate(raw)
	if err != nil {
		return nil, err
	}

	if err := p.store.PrepareEnvironment(); err != nil {
		return nil, err
	}

	urls, err := p.collector.Collect(ctx, cfg)
	if err != nil {
		return &Result{Config: cfg, URLs: urls}, fmt.Errorf("failed to collect article links: %w", err)
	}
	p.logger.Info("collected article links", zap.Int("count", len(urls)), zap.Int("max", cfg.MaxArticles))

	// Ids follow discovery order and are fixed before any work starts, so
	// they do not depend on which worker finishes first
	outcomes := make([]outcome, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.options.Concurrency)
	for i, url := range urls {
		id := i + 1
		g.Go(func() error {
			if gctx.Err() != nil {
				outcomes[i] = outcome{skipped: true}
				return nil
			}

			record, err := p.process(gctx, url, id)
			if interrupted(gctx, err) {
				outcomes[i] = outcome{skipped: true}
				return nil
			}
			outcomes[i] = outcome{record: record, err: err}
			if err != nil && p.options.FailFast {
				return err
			}
			return nil
		})
	}
	runErr := g.Wait()

	result := &Result{Config: cfg, URLs: urls}
	for i, o := range outcomes {
		switch {
		case o.skipped:
			continue
		case o.err != nil:
			result.Failures = append(result.Failures, Failure{ID: i + 1, URL: urls[i], Err: o.err})
		default:
			result.Saved = append(result.Saved, o.record)
		}
	}

	p.logger.Info("crawl finished",
		zap.Int("saved", len(result.Saved)),
		zap.Int("failed", len(result.Failures)))

	if runErr != nil {
		return result, runErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// process extracts and saves one article. Nothing is saved unless
// extraction succeeded.
func (p *Pipeline) process(ctx context.Context, url string, id int) (article.Record, error) {
	record, err := p.extractor.Extract(ctx, url, id)
	if interrupted(ctx, err) {
		return article.Record{}, err
	}
	if err != nil {
		p.metrics.ArticleFailed()
		p.logger.Warn("article extraction failed", zap.Int("id", id), zap.String("url", url), zap.Error(err))
		return article.Record{}, err
	}

	if err := p.store.Save(record); err != nil {
		p.metrics.ArticleFailed()
		p.logger.Warn("article save failed", zap.Int("id", id), zap.String("url", url), zap.Error(err))
		return article.Record{}, fmt.Errorf("article %d: %w", id, err)
	}

	p.metrics.ArticleSaved()
	p.logger.Info("saved article", zap.Int("id", id), zap.String("title", record.Title))
	return record, nil
}

// interrupted reports whether err only reflects ctx being cancelled, as when
// a sibling article fails under FailFast. Such articles are skipped, not
// failed.
func interrupted(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled)
}
