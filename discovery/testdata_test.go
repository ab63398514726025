package discovery

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pevans/newscorpus/scraper"
)

// articlePage renders an article page the way the site lays it out.
func articlePage(title, date, author string, paragraphs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><article>")
	fmt.Fprintf(&b, `<h1 class="doc_header__name js-search-mark">%s</h1>`, title)
	fmt.Fprintf(&b, `<time class="doc_header__publish_time">%s</time>`, date)
	for _, p := range paragraphs {
		fmt.Fprintf(&b, `<p class="doc__text">%s</p>`, p)
	}
	if author != "" {
		fmt.Fprintf(&b, `<p class="doc__text document_authors">%s</p>`, author)
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

// searchPage renders a listing page linking to the given paths.
func searchPage(paths ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paths {
		fmt.Fprintf(&b, `<div class="uho"><a class="uho__link uho__link--overlay" href="%s"></a></div>`, p)
		// Plain links must be ignored
		fmt.Fprintf(&b, `<a class="uho__tag" href="%s?tag"></a>`, p)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// newSite serves pages keyed by path; unknown paths answer 404.
func newSite(t *testing.T, pages map[string]string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasPrefix(body, "<?xml") {
			w.Header().Set("Content-Type", "application/rss+xml")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

// testProfile points the site profile at a test server.
func testProfile(origin string) scraper.SiteProfile {
	profile := scraper.Kommersant()
	profile.Origin = origin
	return profile
}
