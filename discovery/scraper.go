package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newscorpus/article"
	"github.com/pevans/newscorpus/metrics"
	"github.com/pevans/newscorpus/scraper"
	"go.uber.org/zap"
)

// Article extraction errors.
var (
	ErrMissingRequiredField = errors.New("required field not found")
	ErrDateParse            = errors.New("publish date does not match expected format")
	ErrNoBodyFound          = errors.New("article body not found")
)

// PageFetcher retrieves a page. *scraper.Fetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, url, kind string) (*scraper.Page, error)
}

// Extractor builds article records from article pages.
type Extractor struct {
	fetcher PageFetcher
	config  scraper.ArticleConfig
	logger  *zap.Logger
}

// NewExtractor creates an extractor using the selectors in config.
func NewExtractor(fetcher PageFetcher, config scraper.ArticleConfig, logger *zap.Logger) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// Extract fetches url and builds the record with the given id. A fetch
// failure or a missing required field returns no record.
func (e *Extractor) Extract(ctx context.Context, url string, id int) (article.Record, error) {
	page, err := e.fetcher.Fetch(ctx, url, metrics.KindArticle)
	if err != nil {
		return article.Record{}, fmt.Errorf("article %d: %w", id, err)
	}

	doc, err := page.Document()
	if err != nil {
		return article.Record{}, fmt.Errorf("article %d: %w", id, err)
	}

	record, err := ExtractDocument(doc, e.config, url, id)
	if err != nil {
		return article.Record{}, err
	}

	e.logger.Debug("extracted article",
		zap.Int("id", id),
		zap.String("url", url),
		zap.String("title", record.Title),
		zap.Bool("has_author", record.HasAuthor()))
	return record, nil
}

// ExtractDocument builds a record from an already parsed article page. It
// depends on nothing but the document, so the same page always yields the
// same record.
func ExtractDocument(doc *goquery.Document, config scraper.ArticleConfig, url string, id int) (article.Record, error) {
	record := article.Record{
		ID:        id,
		SourceURL: url,
	}

	// Body: selectors are tried in order
	bodyStrategies := make([]Strategy, 0, len(config.ContentSelectors))
	for _, selector := range config.ContentSelectors {
		bodyStrategies = append(bodyStrategies, SelectParagraphs(selector, config.AuthorSelector))
	}
	body := FirstMatch(doc, bodyStrategies...)
	if !body.Found {
		return article.Record{}, fmt.Errorf("article %d (%s): %w", id, url, ErrNoBodyFound)
	}
	record.Text = body.Value

	// Title (required, no fallback)
	title := SelectText(config.TitleSelector)(doc)
	if !title.Found {
		return article.Record{}, fmt.Errorf("article %d (%s): %w: title (%s)", id, url, ErrMissingRequiredField, config.TitleSelector)
	}
	record.Title = title.Value

	// Published date (required)
	dateText := SelectText(config.DateSelector)(doc)
	if !dateText.Found {
		return article.Record{}, fmt.Errorf("article %d (%s): %w: date (%s)", id, url, ErrMissingRequiredField, config.DateSelector)
	}
	date, err := parseDate(dateText.Value, config)
	if err != nil {
		return article.Record{}, fmt.Errorf("article %d (%s): %w: %q", id, url, ErrDateParse, dateText.Value)
	}
	record.Date = date

	// Author (optional)
	author := SelectText(config.AuthorSelector)(doc)
	if author.Found {
		record.Author = author.Value
	} else {
		record.Author = article.AuthorNotFound
	}

	return record, nil
}

func parseDate(text string, config scraper.ArticleConfig) (time.Time, error) {
	loc := config.DateLocation
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(config.DateFormat, text, loc)
}
