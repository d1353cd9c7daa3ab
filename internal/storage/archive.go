package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("brief not found")

// Brief is an archived record of a completed job.
type Brief struct {
	JobID      string    `json:"jobId"`
	SourceURL  string    `json:"sourceUrl"`
	Transcript string    `json:"transcript"`
	Summary    string    `json:"summary"`
	WordCount  int       `json:"wordCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Archive keeps completed briefs in SQLite. It is write-behind storage for
// finished work only; live jobs exist solely in the registry.
type Archive struct {
	db *sql.DB
}

func NewArchive(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS briefs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		source_url TEXT NOT NULL,
		transcript TEXT NOT NULL,
		summary TEXT NOT NULL,
		word_count INTEGER,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_briefs_created_at ON briefs(created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &Archive{db: db}, nil
}

// SaveBrief stores the outcome of a completed job.
func (a *Archive) SaveBrief(jobID, sourceURL, transcript, summary string, createdAt time.Time) error {
	query := `
	INSERT INTO briefs (job_id, source_url, transcript, summary, word_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	wordCount := len(strings.Fields(transcript))
	_, err := a.db.Exec(query, jobID, sourceURL, transcript, summary, wordCount, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save brief: %v", err)
	}
	return nil
}

// GetBrief retrieves one archived brief by job id.
func (a *Archive) GetBrief(jobID string) (*Brief, error) {
	query := `
	SELECT job_id, source_url, transcript, summary, word_count, created_at
	FROM briefs WHERE job_id = ?
	`

	var b Brief
	err := a.db.QueryRow(query, jobID).Scan(
		&b.JobID, &b.SourceURL, &b.Transcript, &b.Summary, &b.WordCount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get brief: %v", err)
	}
	return &b, nil
}

// ListBriefs returns the most recent briefs, newest first.
func (a *Archive) ListBriefs(limit int) ([]Brief, error) {
	query := `
	SELECT job_id, source_url, transcript, summary, word_count, created_at
	FROM briefs ORDER BY created_at DESC LIMIT ?
	`

	rows, err := a.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list briefs: %v", err)
	}
	defer rows.Close()

	var briefs []Brief
	for rows.Next() {
		var b Brief
		if err := rows.Scan(&b.JobID, &b.SourceURL, &b.Transcript, &b.Summary, &b.WordCount, &b.CreatedAt); err != nil {
			continue
		}
		briefs = append(briefs, b)
	}
	return briefs, rows.Err()
}

func (a *Archive) Close() error {
	return a.db.Close()
}
