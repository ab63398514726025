package main

import (
	"errors"

	"github.com/pevans/newscorpus/config"
	"github.com/pevans/newscorpus/discovery"
	"github.com/pevans/newscorpus/posfreq"
	"github.com/pevans/newscorpus/scraper"
)

// Exit codes, one per error kind.
const (
	exitOK                   = 0
	exitOther                = 1
	exitInvalidArticleCount  = 2
	exitInvalidSeedURL       = 3
	exitArticleCountRange    = 4
	exitFetchFailure         = 5
	exitMissingRequiredField = 6
	exitDateParseFailure     = 7
	exitNoBodyFound          = 8
	exitEmptyFile            = 9
)

var errorKinds = []struct {
	err  error
	kind string
	code int
}{
	{config.ErrInvalidArticleCount, "invalid_article_count", exitInvalidArticleCount},
	{config.ErrInvalidSeedURL, "invalid_seed_url", exitInvalidSeedURL},
	{config.ErrArticleCountOutOfRange, "article_count_out_of_range", exitArticleCountRange},
	{scraper.ErrFetchFailure, "fetch_failure", exitFetchFailure},
	{discovery.ErrMissingRequiredField, "missing_required_field", exitMissingRequiredField},
	{discovery.ErrDateParse, "date_parse_failure", exitDateParseFailure},
	{discovery.ErrNoBodyFound, "no_body_found", exitNoBodyFound},
	{posfreq.ErrEmptyFile, "empty_file", exitEmptyFile},
}

// classify names the kind of err and picks the process exit code for it.
func classify(err error) (string, int) {
	if err == nil {
		return "", exitOK
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind, k.code
		}
	}
	return "error", exitOther
}
