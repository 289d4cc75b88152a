package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/amazonking-dev/avature-ats-scraper/internal/dedup"
	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
)

//go:embed schema.sql
var schema string

const upsertJob = `
INSERT INTO jobs (
    fingerprint, source_site, job_id, title, location, apply_url,
    description_html, description_text, date_posted, scraped_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (fingerprint) DO UPDATE SET
    job_id = excluded.job_id,
    apply_url = excluded.apply_url,
    description_html = excluded.description_html,
    description_text = excluded.description_text,
    date_posted = excluded.date_posted,
    scraped_at = excluded.scraped_at`

// SQLiteSink upserts jobs into a SQLite table keyed by fingerprint
type SQLiteSink struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

var _ JobSink = (*SQLiteSink)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteSink{db: db, logger: logger, now: time.Now}, nil
}

func (s *SQLiteSink) Save(ctx context.Context, jobs []models.NormalizedJob) error {
	if len(jobs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertJob)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	scrapedAt := s.now().UTC().Format(time.RFC3339)
	for _, job := range jobs {
		_, err := stmt.ExecContext(ctx,
			dedup.JobFingerprint(job),
			job.SourceSite,
			nullString(job.JobID),
			nullString(job.Title),
			nullString(job.Location),
			nullString(job.ApplyURL),
			nullString(job.DescriptionHTML),
			job.DescriptionText,
			nullString(job.DatePosted),
			scrapedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("saved jobs to sqlite", zap.Int("jobs", len(jobs)))
	return nil
}

// Jobs returns every stored job ordered by source site then title
func (s *SQLiteSink) Jobs(ctx context.Context) ([]models.NormalizedJob, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT source_site, job_id, title, location, apply_url,
       description_html, description_text, date_posted
FROM jobs ORDER BY source_site, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NormalizedJob
	for rows.Next() {
		var job models.NormalizedJob
		var jobID, title, location, applyURL, html, date sql.NullString
		if err := rows.Scan(&job.SourceSite, &jobID, &title, &location, &applyURL, &html, &job.DescriptionText, &date); err != nil {
			return nil, err
		}
		job.JobID = nullable(jobID)
		job.Title = nullable(title)
		job.Location = nullable(location)
		job.ApplyURL = nullable(applyURL)
		job.DescriptionHTML = nullable(html)
		job.DatePosted = nullable(date)
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
