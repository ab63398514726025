package article

import "time"

// AuthorNotFound is stored in Record.Author when the page names no author.
const AuthorNotFound = "NOT FOUND"

// Record is a single crawled article as extracted from its page, before it
// is persisted to the corpus.
type Record struct {
	ID        int       `json:"id"`
	SourceURL string    `json:"url"`
	Text      string    `json:"-"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	Author    string    `json:"author"`
}

// HasAuthor reports whether an author was found on the page.
func (r Record) HasAuthor() bool {
	return r.Author != AuthorNotFound
}
