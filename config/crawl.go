// Package config loads and validates crawl configuration and the runtime
// settings of the newscorpus tools.
package config

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SitePrefix is the URL prefix every seed URL must start with.
const SitePrefix = "https://www.kommersant.ru"

// MaxArticlesCeiling is the largest number of articles a single run may
// request.
const MaxArticlesCeiling = 100

// Crawl configuration validation errors.
var (
	ErrInvalidArticleCount    = errors.New("total_articles_to_find_and_parse must be a positive integer")
	ErrInvalidSeedURL         = errors.New("seed_urls must be a non-empty list of site URLs")
	ErrArticleCountOutOfRange = errors.New("total_articles_to_find_and_parse is out of range")
)

// RawConfig is the crawl configuration document as decoded, before any type
// checks. Fields are left untyped so that a string or fractional count can be
// told apart from a missing one.
type RawConfig struct {
	SeedURLs      any `yaml:"seed_urls" json:"seed_urls"`
	TotalArticles any `yaml:"total_articles_to_find_and_parse" json:"total_articles_to_find_and_parse"`
}

// integerText matches a scalar written as a whole number.
var integerText = regexp.MustCompile(`^[-+]?[0-9]+$`)

// UnmarshalYAML keeps a whole-number count that does not fit in 64 bits as
// an integer. yaml.v3 would otherwise resolve it to a float.
func (r *RawConfig) UnmarshalYAML(node *yaml.Node) error {
	var doc struct {
		SeedURLs      any       `yaml:"seed_urls"`
		TotalArticles yaml.Node `yaml:"total_articles_to_find_and_parse"`
	}
	if err := node.Decode(&doc); err != nil {
		return err
	}

	r.SeedURLs = doc.SeedURLs
	r.TotalArticles = nil

	count := &doc.TotalArticles
	if count.Kind == 0 {
		return nil
	}
	if count.Kind == yaml.ScalarNode && count.ShortTag() == "!!float" && integerText.MatchString(count.Value) {
		n, ok := new(big.Int).SetString(count.Value, 10)
		if ok {
			r.TotalArticles = n
			return nil
		}
	}
	return count.Decode(&r.TotalArticles)
}

// CrawlConfig is a validated crawl configuration. The only way to obtain one
// is through Validate or Load.
type CrawlConfig struct {
	SeedURLs    []string
	MaxArticles int
}

// Load reads the crawl configuration at path and validates it. The document
// may be JSON or YAML.
func Load(path string) (CrawlConfig, error) {
	raw, err := ReadRaw(path)
	if err != nil {
		return CrawlConfig{}, err
	}
	return Validate(raw)
}

// ReadRaw reads and decodes the crawl configuration at path without
// validating it.
func ReadRaw(path string) (RawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RawConfig{}, fmt.Errorf("failed to read crawl config: %w", err)
	}

	// JSON is a subset of YAML, so one decoder covers both formats
	var raw RawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return RawConfig{}, fmt.Errorf("failed to parse crawl config: %w", err)
	}

	return raw, nil
}

// Validate checks raw and returns the typed configuration. Checks run in a
// fixed order and the first violation is returned: article count type and
// sign, then the seed list shape, then each seed's prefix, then the count
// ceiling.
func Validate(raw RawConfig) (CrawlConfig, error) {
	count, ok := asInt(raw.TotalArticles)
	if !ok || count <= 0 {
		return CrawlConfig{}, fmt.Errorf("%w: got %v", ErrInvalidArticleCount, raw.TotalArticles)
	}

	seeds, ok := asStrings(raw.SeedURLs)
	if !ok || len(seeds) == 0 {
		return CrawlConfig{}, fmt.Errorf("%w: got %v", ErrInvalidSeedURL, raw.SeedURLs)
	}
	for _, seed := range seeds {
		if !strings.HasPrefix(seed, SitePrefix) {
			return CrawlConfig{}, fmt.Errorf("%w: %q does not start with %s", ErrInvalidSeedURL, seed, SitePrefix)
		}
	}

	if count > MaxArticlesCeiling {
		return CrawlConfig{}, fmt.Errorf("%w: %d exceeds %d", ErrArticleCountOutOfRange, count, MaxArticlesCeiling)
	}

	return CrawlConfig{SeedURLs: seeds, MaxArticles: count}, nil
}

// asInt accepts only integer kinds. Booleans and floats are rejected even
// when they hold a whole number. Values too large for an int32 are clamped
// so they still fail the ceiling check rather than the type check.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return math.MaxInt32, true
		}
		return int(n), true
	case *big.Int:
		switch {
		case n.IsInt64() && n.Int64() >= math.MinInt32 && n.Int64() <= math.MaxInt32:
			return int(n.Int64()), true
		case n.Sign() > 0:
			return math.MaxInt32, true
		default:
			return math.MinInt32, true
		}
	default:
		return 0, false
	}
}

func asStrings(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), true
	case []any:
		seeds := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			seeds = append(seeds, s)
		}
		return seeds, true
	default:
		return nil, false
	}
}
