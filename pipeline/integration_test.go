package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pevans/newscorpus/article"
	"github.com/pevans/newscorpus/config"
	"github.com/pevans/newscorpus/corpus"
	"github.com/pevans/newscorpus/discovery"
	"github.com/pevans/newscorpus/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// rewriteTransport sends every request to target, keeping the path, so that
// site URLs can be served by a local test server.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

func fakeSite(t *testing.T, pages map[string]string) *http.Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	require.NoError(t, err)
	return &http.Client{Transport: rewriteTransport{target: target}, Timeout: 5 * time.Second}
}

func listing(paths ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paths {
		fmt.Fprintf(&b, `<a class="uho__link uho__link--overlay" href="%s"></a>`, p)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func page(title, date, author, body string) string {
	authorBlock := ""
	if author != "" {
		authorBlock = fmt.Sprintf(`<p class="doc__text document_authors">%s</p>`, author)
	}
	return fmt.Sprintf(`<html><body>
		<h1 class="doc_header__name js-search-mark">%s</h1>
		<div class="doc_header__publish_time">%s</div>
		<p class="doc__text">%s</p>%s
	</body></html>`, title, date, body, authorBlock)
}

// TestRun_EndToEnd verifies a crawl against a local copy of the site writes
// one raw text and one metadata document per article
func TestRun_EndToEnd(t *testing.T) {
	client := fakeSite(t, map[string]string{
		"/search": listing("/doc/11", "/doc/12", "/doc/13", "/doc/14"),
		"/doc/11": page("First", "01.03.2022, 10:00", "Anna Ivanova", "Alpha text"),
		"/doc/12": page("Second", "02.03.2022, 11:30", "", "Beta text"),
		"/doc/13": page("Third", "not a date", "", "Gamma text"),
		"/doc/14": page("Fourth", "04.03.2022, 12:00", "", "Delta text"),
	})

	profile := scraper.Kommersant()
	fetcher := scraper.NewFetcherWithClient(client, "newscorpus-test", nil)
	collector := discovery.NewCollector(fetcher, profile, zap.NewNop(), nil)
	extractor := discovery.NewExtractor(fetcher, profile.ArticleConfig, zap.NewNop())
	store := corpus.New(filepath.Join(t.TempDir(), "articles"))

	p := New(collector, extractor, store, zap.NewNop(), nil, Options{Concurrency: 2})

	result, err := p.Run(context.Background(), config.RawConfig{
		SeedURLs:      []any{"https://www.kommersant.ru/search"},
		TotalArticles: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.kommersant.ru/doc/11",
		"https://www.kommersant.ru/doc/12",
		"https://www.kommersant.ru/doc/13",
	}, result.URLs, "collection stops at the requested count")

	require.Len(t, result.Saved, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 3, result.Failures[0].ID)
	assert.ErrorIs(t, result.Failures[0].Err, discovery.ErrDateParse)

	raw, err := os.ReadFile(store.RawTextPath(1))
	require.NoError(t, err)
	assert.Equal(t, "Alpha text", string(raw))

	meta, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "First", meta.Title)
	assert.Equal(t, "Anna Ivanova", meta.Author)
	assert.Equal(t, "2022-03-01 10:00:00", meta.Date)

	meta, err = store.Get(2)
	require.NoError(t, err)
	assert.Equal(t, article.AuthorNotFound, meta.Author)

	_, err = os.Stat(store.MetaPath(3))
	assert.True(t, os.IsNotExist(err), "a failed article leaves nothing behind")
}
