package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pevans/newscorpus/article"
	"github.com/pevans/newscorpus/config"
	"github.com/pevans/newscorpus/discovery"
	"github.com/pevans/newscorpus/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const seed = "https://www.kommersant.ru/search"

func validRaw(count int) config.RawConfig {
	return config.RawConfig{SeedURLs: []any{seed}, TotalArticles: count}
}

type fakeCollector struct {
	urls   []string
	err    error
	called bool
}

func (f *fakeCollector) Collect(_ context.Context, cfg config.CrawlConfig) ([]string, error) {
	f.called = true
	if len(f.urls) > cfg.MaxArticles {
		return f.urls[:cfg.MaxArticles], f.err
	}
	return f.urls, f.err
}

type fakeExtractor struct {
	failures map[string]error
	delay    time.Duration
	// blocking holds urls whose extraction waits until ctx is done
	blocking map[string]bool
}

func (f *fakeExtractor) Extract(ctx context.Context, url string, id int) (article.Record, error) {
	if f.blocking[url] {
		<-ctx.Done()
		return article.Record{}, fmt.Errorf("failed to fetch %s: %w", url, ctx.Err())
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := f.failures[url]; err != nil {
		return article.Record{}, err
	}
	return article.Record{
		ID:        id,
		SourceURL: url,
		Text:      "text of " + url,
		Title:     "title of " + url,
		Date:      time.Date(2022, 3, 15, 18, 45, 0, 0, time.UTC),
		Author:    article.AuthorNotFound,
	}, nil
}

type fakeStore struct {
	mu         sync.Mutex
	prepared   bool
	saved      map[int]article.Record
	prepareErr error
	saveErr    map[int]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: map[int]article.Record{}}
}

func (f *fakeStore) PrepareEnvironment() error {
	f.prepared = true
	return f.prepareErr
}

func (f *fakeStore) Save(record article.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.saveErr[record.ID]; err != nil {
		return err
	}
	f.saved[record.ID] = record
	return nil
}

func articleURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://www.kommersant.ru/doc/%d", 100+i)
	}
	return urls
}

// TestRun_Success verifies ids are sequential in discovery order
func TestRun_Success(t *testing.T) {
	collector := &fakeCollector{urls: articleURLs(5)}
	store := newFakeStore()
	p := New(collector, &fakeExtractor{}, store, zap.NewNop(), nil, Options{})

	result, err := p.Run(context.Background(), validRaw(5))
	require.NoError(t, err)
	require.NoError(t, result.Err())

	assert.True(t, store.prepared)
	require.Len(t, result.Saved, 5)
	for i, record := range result.Saved {
		assert.Equal(t, i+1, record.ID)
		assert.Equal(t, collector.urls[i], record.SourceURL)
		assert.Equal(t, record, store.saved[i+1])
	}
	assert.Empty(t, result.Failures)
}

// TestRun_ConcurrentIDs verifies concurrency does not change id assignment
func TestRun_ConcurrentIDs(t *testing.T) {
	collector := &fakeCollector{urls: articleURLs(20)}
	store := newFakeStore()
	p := New(collector, &fakeExtractor{delay: time.Millisecond}, store, zap.NewNop(), nil, Options{Concurrency: 4})

	result, err := p.Run(context.Background(), validRaw(20))
	require.NoError(t, err)

	require.Len(t, result.Saved, 20)
	for i, record := range result.Saved {
		assert.Equal(t, i+1, record.ID, "ids have no gaps and start at 1")
		assert.Equal(t, collector.urls[i], record.SourceURL)
	}
}

// TestRun_InvalidConfig verifies config errors happen before any side
// effect
func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		raw  config.RawConfig
		want error
	}{
		{"bad count", config.RawConfig{SeedURLs: []any{seed}, TotalArticles: 0}, config.ErrInvalidArticleCount},
		{"bad seed", config.RawConfig{SeedURLs: []any{"https://example.com"}, TotalArticles: 3}, config.ErrInvalidSeedURL},
		{"over ceiling", config.RawConfig{SeedURLs: []any{seed}, TotalArticles: 150}, config.ErrArticleCountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := &fakeCollector{urls: articleURLs(3)}
			store := newFakeStore()
			p := New(collector, &fakeExtractor{}, store, zap.NewNop(), nil, Options{})

			result, err := p.Run(context.Background(), tt.raw)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, result)
			assert.False(t, store.prepared, "storage must not be touched")
			assert.False(t, collector.called, "network must not be touched")
		})
	}
}

// TestRun_PrepareFailure verifies a storage failure stops the run
func TestRun_PrepareFailure(t *testing.T) {
	collector := &fakeCollector{urls: articleURLs(2)}
	store := newFakeStore()
	store.prepareErr = errors.New("read-only filesystem")
	p := New(collector, &fakeExtractor{}, store, zap.NewNop(), nil, Options{})

	_, err := p.Run(context.Background(), validRaw(2))
	assert.ErrorContains(t, err, "read-only filesystem")
	assert.False(t, collector.called)
}

// TestRun_CollectFailure verifies a collection failure is returned
func TestRun_CollectFailure(t *testing.T) {
	collector := &fakeCollector{err: errors.New("seed down")}
	p := New(collector, &fakeExtractor{}, newFakeStore(), zap.NewNop(), nil, Options{})

	result, err := p.Run(context.Background(), validRaw(2))
	assert.ErrorContains(t, err, "seed down")
	require.NotNil(t, result)
	assert.Empty(t, result.Saved)
}

// TestRun_CollectsFailures verifies failed articles are reported while the
// others are saved
func TestRun_CollectsFailures(t *testing.T) {
	urls := articleURLs(4)
	collector := &fakeCollector{urls: urls}
	extractor := &fakeExtractor{failures: map[string]error{
		urls[1]: discovery.ErrMissingRequiredField,
		urls[3]: discovery.ErrDateParse,
	}}
	store := newFakeStore()
	m := metrics.New(prometheus.NewRegistry())
	p := New(collector, extractor, store, zap.NewNop(), m, Options{Concurrency: 2})

	result, err := p.Run(context.Background(), validRaw(4))
	require.NoError(t, err, "failures are collected, not returned")

	require.Len(t, result.Saved, 2)
	assert.Equal(t, 1, result.Saved[0].ID)
	assert.Equal(t, 3, result.Saved[1].ID)

	require.Len(t, result.Failures, 2)
	assert.Equal(t, 2, result.Failures[0].ID)
	assert.Equal(t, urls[1], result.Failures[0].URL)
	assert.ErrorIs(t, result.Failures[0].Err, discovery.ErrMissingRequiredField)
	assert.Equal(t, 4, result.Failures[1].ID)
	assert.ErrorIs(t, result.Failures[1].Err, discovery.ErrDateParse)

	assert.ErrorIs(t, result.Err(), discovery.ErrMissingRequiredField, "lowest id failure is reported")
	assert.Len(t, store.saved, 2, "failed articles are never saved")
	assert.NotContains(t, store.saved, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ArticlesTotal.WithLabelValues("saved")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ArticlesTotal.WithLabelValues("failed")))
}

// TestRun_SaveFailure verifies a record that cannot be saved is a failure
func TestRun_SaveFailure(t *testing.T) {
	collector := &fakeCollector{urls: articleURLs(2)}
	store := newFakeStore()
	store.saveErr = map[int]error{2: errors.New("disk full")}
	p := New(collector, &fakeExtractor{}, store, zap.NewNop(), nil, Options{})

	result, err := p.Run(context.Background(), validRaw(2))
	require.NoError(t, err)

	require.Len(t, result.Saved, 1)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].ID)
	assert.ErrorContains(t, result.Failures[0].Err, "disk full")
}

// TestRun_FailFast verifies the run stops at the first failure
func TestRun_FailFast(t *testing.T) {
	urls := articleURLs(5)
	collector := &fakeCollector{urls: urls}
	extractor := &fakeExtractor{failures: map[string]error{
		urls[1]: discovery.ErrNoBodyFound,
	}}
	store := newFakeStore()
	p := New(collector, extractor, store, zap.NewNop(), nil, Options{FailFast: true})

	result, err := p.Run(context.Background(), validRaw(5))
	assert.ErrorIs(t, err, discovery.ErrNoBodyFound)
	require.NotNil(t, result)

	require.Len(t, result.Saved, 1, "only the article before the failure is saved")
	assert.Equal(t, 1, result.Saved[0].ID)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].ID)
}

// TestRun_FailFastConcurrent verifies an article interrupted by a sibling's
// failure is skipped rather than reported as a failure of its own
func TestRun_FailFastConcurrent(t *testing.T) {
	urls := articleURLs(2)
	collector := &fakeCollector{urls: urls}
	extractor := &fakeExtractor{
		blocking: map[string]bool{urls[0]: true},
		failures: map[string]error{urls[1]: discovery.ErrNoBodyFound},
	}
	store := newFakeStore()
	p := New(collector, extractor, store, zap.NewNop(), nil, Options{Concurrency: 2, FailFast: true})

	result, err := p.Run(context.Background(), validRaw(2))
	assert.ErrorIs(t, err, discovery.ErrNoBodyFound)
	require.NotNil(t, result)

	assert.Empty(t, result.Saved)
	require.Len(t, result.Failures, 1, "the interrupted article is not a failure")
	assert.Equal(t, 2, result.Failures[0].ID)
	assert.ErrorIs(t, result.Err(), discovery.ErrNoBodyFound)
}

// TestResultErr verifies an empty failure list means success
func TestResultErr(t *testing.T) {
	var nilResult *Result
	assert.NoError(t, nilResult.Err())
	assert.NoError(t, (&Result{URLs: []string{"a"}}).Err())
}
