// Package discovery finds article links on seed pages and extracts article
// records from article pages.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/pevans/newscorpus/config"
	"github.com/pevans/newscorpus/metrics"
	"github.com/pevans/newscorpus/scraper"
	"go.uber.org/zap"
)

// Collector gathers article links from the seed pages of a crawl config.
type Collector struct {
	fetcher PageFetcher
	profile scraper.SiteProfile
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCollector creates a collector for the given site. m may be nil.
func NewCollector(fetcher PageFetcher, profile scraper.SiteProfile, logger *zap.Logger, m *metrics.Metrics) *Collector {
	return &Collector{
		fetcher: fetcher,
		profile: profile,
		logger:  logger,
		metrics: m,
	}
}

// admits reports whether a collection holding n links may take another one.
// The bound is strict: a full collection never grows past limit.
func admits(n, limit int) bool {
	return n < limit
}

// Collect visits each seed URL once, in order, and returns at most
// cfg.MaxArticles distinct article URLs in discovery order. Seeds after the
// bound is reached are not fetched. A failed seed fetch aborts collection.
func (c *Collector) Collect(ctx context.Context, cfg config.CrawlConfig) ([]string, error) {
	urls := make([]string, 0, cfg.MaxArticles)
	seen := make(map[string]struct{}, cfg.MaxArticles)

	for _, seed := range cfg.SeedURLs {
		if !admits(len(urls), cfg.MaxArticles) {
			break
		}
		if err := ctx.Err(); err != nil {
			return urls, err
		}

		page, err := c.fetcher.Fetch(ctx, seed, metrics.KindSeed)
		if err != nil {
			return urls, fmt.Errorf("seed %s: %w", seed, err)
		}

		candidates, err := c.candidates(page)
		if err != nil {
			return urls, fmt.Errorf("seed %s: %w", seed, err)
		}

		admitted := 0
		for _, candidate := range candidates {
			if !admits(len(urls), cfg.MaxArticles) {
				break
			}
			if _, dup := seen[candidate]; dup {
				continue
			}
			seen[candidate] = struct{}{}
			urls = append(urls, candidate)
			c.metrics.LinkAdmitted()
			admitted++
		}

		c.logger.Info("collected links from seed",
			zap.String("seed", seed),
			zap.Int("candidates", len(candidates)),
			zap.Int("admitted", admitted),
			zap.Int("total", len(urls)))
	}

	return urls, nil
}

// candidates returns the article links found on a seed page. RSS and Atom
// bodies are read as feeds; anything else as HTML.
func (c *Collector) candidates(page *scraper.Page) ([]string, error) {
	if gofeed.DetectFeedType(bytes.NewReader(page.Body)) != gofeed.FeedTypeUnknown {
		return FeedLinks(page.Body, c.profile.Origin)
	}

	doc, err := page.Document()
	if err != nil {
		return nil, err
	}
	return ExtractLinks(doc, c.profile.ListConfig.ArticleSelector, c.profile.Origin), nil
}

// ExtractLinks returns the absolute href of every element matching selector,
// resolving relative links against origin. Links to any other scheme or
// host are dropped.
func ExtractLinks(doc *goquery.Document, selector, origin string) []string {
	var links []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if link, ok := resolve(origin, href); ok {
			links = append(links, link)
		}
	})
	return links
}

// FeedLinks returns the item links of an RSS or Atom document that point at
// origin.
func FeedLinks(body []byte, origin string) ([]string, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	links := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if link, ok := resolve(origin, item.Link); ok {
			links = append(links, link)
		}
	}
	return links, nil
}

// resolve makes href absolute against origin and reports false unless the
// result stays on origin's scheme and host.
func resolve(origin, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	base, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	link := base.ResolveReference(ref)
	if link.Scheme != base.Scheme || !strings.EqualFold(link.Host, base.Host) {
		return "", false
	}
	return link.String(), true
}
