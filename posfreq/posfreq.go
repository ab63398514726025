// Package posfreq counts part-of-speech tags in the tagged text of each
// corpus article, stores the counts in the article metadata and draws them
// as a bar chart.
package posfreq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/pevans/newscorpus/corpus"
	"github.com/pevans/newscorpus/metrics"
	"go.uber.org/zap"
)

// MetaKey is the metadata key holding the tag counts.
const MetaKey = "pos_frequencies"

// ErrEmptyFile is returned when an article's tagged text is empty.
var ErrEmptyFile = errors.New("tagged text file is empty")

// tagPattern matches the opening of a tag such as <S,nom,sg> and captures
// its upper-case part of speech.
var tagPattern = regexp.MustCompile(`<([A-Z]+)`)

// Count returns how often each part-of-speech tag occurs in text.
func Count(text string) map[string]int {
	counts := make(map[string]int)
	for _, match := range tagPattern.FindAllStringSubmatch(text, -1) {
		counts[match[1]]++
	}
	return counts
}

// Frequency is the count of one tag.
type Frequency struct {
	Tag   string
	Count int
}

// Sorted returns counts ordered by tag.
func Sorted(counts map[string]int) []Frequency {
	freqs := make([]Frequency, 0, len(counts))
	for tag, n := range counts {
		freqs = append(freqs, Frequency{Tag: tag, Count: n})
	}
	sort.Slice(freqs, func(i, j int) bool {
		return freqs[i].Tag < freqs[j].Tag
	})
	return freqs
}

// Pipeline runs the frequency step over a whole corpus.
type Pipeline struct {
	store   *corpus.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a pipeline over store. m may be nil.
func New(store *corpus.Store, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Run validates the corpus, then for every article counts the tags in its
// tagged text, merges the counts into its metadata and renders its chart.
// The first failing article stops the run.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.store.ValidateDataset(); err != nil {
		return err
	}

	result, err := p.store.List()
	if err != nil {
		return err
	}
	for _, readErr := range result.Errors {
		p.logger.Warn("skipping unreadable metadata", zap.String("file", readErr.Filename), zap.Error(readErr.Err))
	}

	for _, meta := range result.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processArticle(meta.ID); err != nil {
			return err
		}
	}

	p.logger.Info("pos frequencies done", zap.Int("articles", len(result.Items)))
	return nil
}

func (p *Pipeline) processArticle(id int) error {
	data, err := os.ReadFile(p.store.TaggedTextPath(id))
	if err != nil {
		return fmt.Errorf("article %d: failed to read tagged text: %w", id, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("article %d: %w", id, ErrEmptyFile)
	}

	counts := Count(string(data))
	total := 0
	for _, n := range counts {
		total += n
	}
	p.metrics.TagsCounted(total)

	if err := p.store.MergeMeta(id, MetaKey, counts); err != nil {
		return err
	}

	if len(counts) == 0 {
		p.logger.Warn("no tags found, skipping chart", zap.Int("id", id))
		return nil
	}

	if err := RenderChart(p.store.ImagePath(id), fmt.Sprintf("Article %d", id), counts); err != nil {
		return fmt.Errorf("article %d: %w", id, err)
	}

	p.logger.Debug("counted tags", zap.Int("id", id), zap.Int("tags", total), zap.Int("distinct", len(counts)))
	return nil
}
