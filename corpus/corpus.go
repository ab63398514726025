// Package corpus stores crawled articles on disk: one raw text file and one
// metadata document per article, keyed by article id.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pevans/newscorpus/article"
)

// DateLayout is the layout of the date field in metadata documents.
const DateLayout = "2006-01-02 15:04:05"

// File name suffixes of the per-article artifacts.
const (
	rawSuffix    = "_raw.txt"
	metaSuffix   = "_meta.json"
	taggedSuffix = "_single_tagged.txt"
	imageSuffix  = "_image.png"
)

// Dataset validation errors.
var (
	ErrDatasetMissing      = errors.New("corpus directory does not exist")
	ErrDatasetEmpty        = errors.New("corpus directory holds no articles")
	ErrDatasetInconsistent = errors.New("corpus article ids are not consecutive from 1")
)

// Store is a corpus kept in a single directory.
type Store struct {
	dir string
}

// Meta is the metadata document persisted next to each raw text.
type Meta struct {
	ID             int            `json:"id"`
	URL            string         `json:"url"`
	Title          string         `json:"title"`
	Date           string         `json:"date"`
	Author         string         `json:"author"`
	POSFrequencies map[string]int `json:"pos_frequencies,omitempty"`
}

// ReadError describes a failure to read a single metadata file.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// ListResult contains the results of listing the corpus, including any
// per-file errors that occurred during the operation.
type ListResult struct {
	Items  []Meta
	Errors []ReadError
}

// New returns a store rooted at dir. Nothing is created until
// PrepareEnvironment or Save is called.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the corpus directory.
func (s *Store) Dir() string {
	return s.dir
}

// PrepareEnvironment removes the corpus directory with everything in it and
// creates it again empty.
func (s *Store) PrepareEnvironment() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to clear corpus directory: %w", err)
	}
	// 0700: owner-only access
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create corpus directory: %w", err)
	}
	return nil
}

// Save writes the record's raw text and metadata document.
func (s *Store) Save(record article.Record) error {
	if record.ID < 1 {
		return fmt.Errorf("invalid article id %d", record.ID)
	}

	meta := Meta{
		ID:     record.ID,
		URL:    record.SourceURL,
		Title:  record.Title,
		Date:   record.Date.Format(DateLayout),
		Author: record.Author,
	}
	data, err := marshalMeta(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal article %d metadata: %w", record.ID, err)
	}

	// Write to files (0600: owner-only read/write)
	if err := os.WriteFile(s.RawTextPath(record.ID), []byte(record.Text), 0o600); err != nil {
		return fmt.Errorf("failed to write article %d text: %w", record.ID, err)
	}
	if err := os.WriteFile(s.MetaPath(record.ID), data, 0o600); err != nil {
		// Never leave a raw text without its metadata
		os.Remove(s.RawTextPath(record.ID))
		return fmt.Errorf("failed to write article %d metadata: %w", record.ID, err)
	}

	return nil
}

// RawTextPath returns the path of the article's raw text.
func (s *Store) RawTextPath(id int) string {
	return s.path(id, rawSuffix)
}

// MetaPath returns the path of the article's metadata document.
func (s *Store) MetaPath(id int) string {
	return s.path(id, metaSuffix)
}

// TaggedTextPath returns the path of the article's POS-tagged text, which is
// produced outside this module.
func (s *Store) TaggedTextPath(id int) string {
	return s.path(id, taggedSuffix)
}

// ImagePath returns the path of the article's frequency chart.
func (s *Store) ImagePath(id int) string {
	return s.path(id, imageSuffix)
}

func (s *Store) path(id int, suffix string) string {
	return filepath.Join(s.dir, strconv.Itoa(id)+suffix)
}

// Get reads the metadata document of one article.
func (s *Store) Get(id int) (*Meta, error) {
	data, err := os.ReadFile(s.MetaPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read article %d metadata: %w", id, err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article %d metadata: %w", id, err)
	}
	return &meta, nil
}

// List returns the metadata of every article, ordered by id. Corrupted or
// invalid files are collected in the result's Errors slice rather than
// causing the entire operation to fail. A non-nil error return indicates a
// total failure (e.g., the corpus directory is unreadable).
func (s *Store) List() (*ListResult, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	result := &ListResult{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			result.Errors = append(result.Errors, ReadError{Filename: entry.Name(), Err: err})
			continue
		}

		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			result.Errors = append(result.Errors, ReadError{Filename: entry.Name(), Err: err})
			continue
		}

		result.Items = append(result.Items, meta)
	}

	sort.Slice(result.Items, func(i, j int) bool {
		return result.Items[i].ID < result.Items[j].ID
	})
	return result, nil
}

// MergeMeta sets key to value in the article's metadata document, keeping
// every other key as it is.
func (s *Store) MergeMeta(id int, key string, value any) error {
	path := s.MetaPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read article %d metadata: %w", id, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal article %d metadata: %w", id, err)
	}
	doc[key] = value

	data, err = marshalMeta(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal article %d metadata: %w", id, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write article %d metadata: %w", id, err)
	}
	return nil
}

// ValidateDataset checks that the corpus directory exists and holds articles
// 1..N, each with both its raw text and its metadata.
func (s *Store) ValidateDataset() error {
	info, err := os.Stat(s.dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrDatasetMissing, s.dir)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read corpus directory: %w", err)
	}

	ids := make(map[int]struct{})
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, metaSuffix))
		if err != nil || id < 1 {
			return fmt.Errorf("%w: unexpected file %s", ErrDatasetInconsistent, name)
		}
		ids[id] = struct{}{}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: %s", ErrDatasetEmpty, s.dir)
	}

	for id := 1; id <= len(ids); id++ {
		if _, ok := ids[id]; !ok {
			return fmt.Errorf("%w: article %d is missing", ErrDatasetInconsistent, id)
		}
		if _, err := os.Stat(s.RawTextPath(id)); err != nil {
			return fmt.Errorf("%w: article %d has no raw text", ErrDatasetInconsistent, id)
		}
	}
	return nil
}

// marshalMeta renders a metadata document indented, with HTML characters
// left unescaped.
func marshalMeta(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
