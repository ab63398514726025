// Package ledger keeps a history of crawl runs and the outcome of every
// article in them, using SQLite.
package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Article outcome statuses.
const (
	StatusSaved  = "saved"
	StatusFailed = "failed"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Store manages the run ledger.
type Store struct {
	db *sql.DB
}

// Run summarizes one crawl.
type Run struct {
	RunID       uuid.UUID `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	SeedURLs    []string  `json:"seed_urls"`
	MaxArticles int       `json:"max_articles"`
	URLsFound   int       `json:"urls_found"`
	Saved       int       `json:"saved"`
	Failed      int       `json:"failed"`
	Error       *string   `json:"error,omitempty"`
}

// Outcome is what happened to one article in a run.
type Outcome struct {
	RunID     uuid.UUID `json:"run_id"`
	ArticleID int       `json:"article_id"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     *string   `json:"error,omitempty"`
}

// NewRun starts a run record with a fresh id.
func NewRun(seedURLs []string, maxArticles int, startedAt time.Time) *Run {
	return &Run{
		RunID:       uuid.New(),
		StartedAt:   startedAt,
		SeedURLs:    seedURLs,
		MaxArticles: maxArticles,
	}
}

// NewStore opens (creating if needed) the ledger database at dsn.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the ledger tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		seed_urls TEXT NOT NULL,
		max_articles INTEGER NOT NULL,
		urls_found INTEGER NOT NULL DEFAULT 0,
		saved INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS article_outcomes (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		article_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		PRIMARY KEY (run_id, article_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun stores a finished run and its article outcomes atomically.
func (s *Store) RecordRun(run *Run, outcomes []Outcome) error {
	seeds, err := json.Marshal(run.SeedURLs)
	if err != nil {
		return fmt.Errorf("failed to marshal seed_urls: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			run_id, started_at, finished_at, seed_urls, max_articles,
			urls_found, saved, failed, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID.String(),
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		string(seeds),
		run.MaxArticles,
		run.URLsFound,
		run.Saved,
		run.Failed,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, o := range outcomes {
		var kind *string
		if o.ErrorKind != "" {
			kind = &o.ErrorKind
		}
		_, err := tx.Exec(`
			INSERT INTO article_outcomes (run_id, article_id, url, status, error_kind, error)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.RunID.String(), o.ArticleID, o.URL, o.Status, kind, o.Error)
		if err != nil {
			return fmt.Errorf("failed to insert outcome for article %d: %w", o.ArticleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `
	run_id, started_at, finished_at, seed_urls, max_articles,
	urls_found, saved, failed, error
`

// GetRun retrieves a run by id.
func (s *Store) GetRun(runID uuid.UUID) (*Run, error) {
	row := s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID.String())

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of 0 or less returns
// every run.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// Outcomes returns the article outcomes of a run ordered by article id.
func (s *Store) Outcomes(runID uuid.UUID) ([]Outcome, error) {
	rows, err := s.db.Query(`
		SELECT article_id, url, status, error_kind, error
		FROM article_outcomes
		WHERE run_id = ?
		ORDER BY article_id
	`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		o := Outcome{RunID: runID}
		var kind, errMsg sql.NullString
		if err := rows.Scan(&o.ArticleID, &o.URL, &o.Status, &kind, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.ErrorKind = kind.String
		if errMsg.Valid {
			o.Error = &errMsg.String
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}

	return outcomes, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var runIDStr, startedAtStr, finishedAtStr, seedsJSON string
	var errMsg sql.NullString
	run := &Run{}

	err := row.Scan(
		&runIDStr, &startedAtStr, &finishedAtStr, &seedsJSON, &run.MaxArticles,
		&run.URLsFound, &run.Saved, &run.Failed, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid run_id: %w", err)
	}
	run.RunID = runID
	if run.StartedAt, err = parseTime(startedAtStr); err != nil {
		return nil, fmt.Errorf("invalid started_at: %w", err)
	}
	if run.FinishedAt, err = parseTime(finishedAtStr); err != nil {
		return nil, fmt.Errorf("invalid finished_at: %w", err)
	}

	if err := json.Unmarshal([]byte(seedsJSON), &run.SeedURLs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seed_urls: %w", err)
	}
	if errMsg.Valid {
		run.Error = &errMsg.String
	}

	return run, nil
}

// timeLayout has fixed-width fractional seconds so that stored times sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
