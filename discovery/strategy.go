package discovery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Match is the tagged outcome of an extraction strategy: either a value was
// found, or nothing matched. An empty Value with Found set never occurs.
type Match struct {
	Value string
	Found bool
}

// Strategy looks for a single value in a parsed page.
type Strategy func(doc *goquery.Document) Match

// FirstMatch runs strategies in order and returns the first one that finds
// something. If none do, the zero Match is returned.
func FirstMatch(doc *goquery.Document, strategies ...Strategy) Match {
	for _, strategy := range strategies {
		if m := strategy(doc); m.Found {
			return m
		}
	}
	return Match{}
}

// SelectText matches the whitespace-normalized text of the first element
// selected by selector.
func SelectText(selector string) Strategy {
	return func(doc *goquery.Document) Match {
		text := normalizeSpace(doc.Find(selector).First().Text())
		if text == "" {
			return Match{}
		}
		return Match{Value: text, Found: true}
	}
}

// SelectParagraphs matches the text of every element selected by selector,
// except those also matching exclude, one paragraph per line.
func SelectParagraphs(selector, exclude string) Strategy {
	return func(doc *goquery.Document) Match {
		selection := doc.Find(selector)
		if exclude != "" {
			selection = selection.Not(exclude)
		}

		var paragraphs []string
		selection.Each(func(_ int, s *goquery.Selection) {
			if text := normalizeSpace(s.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) == 0 {
			return Match{}
		}
		return Match{Value: strings.Join(paragraphs, "\n"), Found: true}
	}
}

// normalizeSpace replaces runs of spaces and newlines with a single space.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
