package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/models"
)

// SQLiteStore keeps lightweight local traces of scrape jobs so operators
// can inspect recent runs without touching Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_jobs (
		id INTEGER PRIMARY KEY,
		url TEXT NOT NULL,
		line_user_id TEXT,
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_scrape_jobs_started ON scrape_jobs (started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// StartJob records a new running job and returns its id.
func (s *SQLiteStore) StartJob(url, lineUserID string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO scrape_jobs (url, line_user_id, status, started_at) VALUES (?, ?, ?, ?)`,
		url, lineUserID, models.JobStatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) CompleteJob(id int64) error {
	_, err := s.db.Exec(
		`UPDATE scrape_jobs SET status = ?, finished_at = ? WHERE id = ?`,
		models.JobStatusCompleted, time.Now().UTC(), id,
	)
	return err
}

func (s *SQLiteStore) FailJob(id int64, message string) error {
	_, err := s.db.Exec(
		`UPDATE scrape_jobs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		models.JobStatusFailed, message, time.Now().UTC(), id,
	)
	return err
}

// RecentJobs returns the latest jobs, newest first.
func (s *SQLiteStore) RecentJobs(limit int) ([]models.ScrapeJob, error) {
	rows, err := s.db.Query(
		`SELECT id, url, line_user_id, status, error_message, started_at, finished_at
		FROM scrape_jobs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.ScrapeJob
	for rows.Next() {
		var j models.ScrapeJob
		if err := rows.Scan(&j.ID, &j.URL, &j.LineUserID, &j.Status, &j.ErrorMessage, &j.StartedAt, &j.FinishedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
