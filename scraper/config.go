// Package scraper describes where content lives on the target site and
// fetches its pages.
package scraper

import "time"

// SiteProfile defines how to discover and extract articles on one website.
type SiteProfile struct {
	// Origin is prefixed to relative article links.
	Origin        string
	ListConfig    ListConfig
	ArticleConfig ArticleConfig
}

// ListConfig defines how to discover articles from listing/search pages.
type ListConfig struct {
	ArticleSelector string
}

// ArticleConfig defines how to extract text and metadata from individual
// article pages.
type ArticleConfig struct {
	// ContentSelectors are tried in order; the first non-empty match wins.
	ContentSelectors []string
	TitleSelector    string
	DateSelector     string
	DateFormat       string // Go time format string
	DateLocation     *time.Location
	AuthorSelector   string
}

// moscow is the site's publication time zone. Russia has not observed DST
// since 2014.
var moscow = time.FixedZone("MSK", 3*60*60)

// Kommersant returns the profile for https://www.kommersant.ru.
func Kommersant() SiteProfile {
	return SiteProfile{
		Origin: "https://www.kommersant.ru",
		ListConfig: ListConfig{
			ArticleSelector: "a.uho__link.uho__link--overlay",
		},
		ArticleConfig: ArticleConfig{
			ContentSelectors: []string{
				".doc__text",
				".b-article__text.air__text",
			},
			TitleSelector:  ".doc_header__name.js-search-mark",
			DateSelector:   ".doc_header__publish_time",
			DateFormat:     "2.1.2006, 15:04",
			DateLocation:   moscow,
			AuthorSelector: ".doc__text.document_authors",
		},
	}
}
