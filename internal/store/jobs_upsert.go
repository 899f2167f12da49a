package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jobcollect-engine/internal/domain"
)

// SQLiteSink writes records into the jobs table. A record whose identity already
// exists (from an earlier run) is refreshed in place.
type SQLiteSink struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

func NewSink(db *sql.DB, runID string) *SQLiteSink {
	return &SQLiteSink{db: db, runID: runID, now: time.Now}
}

func (s *SQLiteSink) Save(ctx context.Context, rec domain.JobRecord) error {
	keys := rec.IdentityKeys()
	if len(keys) == 0 {
		return errors.New("record has no identity")
	}
	ts := s.now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (identity, job_id, url, title, company, location, clearance_level, salary,
                  employment_type, date_posted, description_html, description_text,
                  source_strategy, run_id, collected_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(identity) DO UPDATE SET
  job_id = excluded.job_id,
  url = excluded.url,
  title = excluded.title,
  company = excluded.company,
  location = excluded.location,
  clearance_level = excluded.clearance_level,
  salary = excluded.salary,
  employment_type = excluded.employment_type,
  date_posted = excluded.date_posted,
  description_html = excluded.description_html,
  description_text = excluded.description_text,
  source_strategy = excluded.source_strategy,
  run_id = excluded.run_id,
  collected_at = excluded.collected_at;`,
		keys[0],
		rec.ID,
		rec.URL,
		rec.Title,
		rec.Company,
		rec.Location,
		rec.ClearanceLevel,
		rec.Salary,
		rec.EmploymentType,
		rec.DatePosted,
		rec.DescriptionHTML,
		rec.DescriptionText,
		string(rec.SourceStrategy),
		s.runID,
		ts,
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// CountRun returns how many rows the given run wrote.
func CountRun(ctx context.Context, db *sql.DB, runID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE run_id = ?;`, runID).Scan(&n)
	return n, err
}
