package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jobcollect-engine/internal/domain"
)

// StoredJob is a persisted record plus the run bookkeeping.
type StoredJob struct {
	domain.JobRecord
	RunID       string `json:"run_id"`
	CollectedAt string `json:"collected_at"`
}

type ListJobsOpts struct {
	Sort     string // collected | posted | company | title
	Window   string // 24h | 7d | all
	RunID    string
	Strategy string
	Limit    int
}

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS jobs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  identity TEXT NOT NULL,
  job_id TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  clearance_level TEXT NOT NULL DEFAULT '',
  salary TEXT NOT NULL DEFAULT '',
  employment_type TEXT NOT NULL DEFAULT '',
  date_posted TEXT NOT NULL DEFAULT '',
  description_html TEXT NOT NULL DEFAULT '',
  description_text TEXT NOT NULL DEFAULT '',
  source_strategy TEXT NOT NULL,
  run_id TEXT NOT NULL,
  collected_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	if _, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_identity
ON jobs(identity);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_jobs_collected_at
ON jobs(collected_at);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_jobs_run_id
ON jobs(run_id);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

func ListJobs(ctx context.Context, db *sql.DB, opts ListJobsOpts) ([]StoredJob, error) {
	if opts.Window == "" {
		opts.Window = "7d"
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	// whitelist sort columns (prevents SQL injection)
	order := map[string]string{
		"collected": "collected_at DESC",
		"posted":    "date_posted DESC",
		"company":   "company ASC",
		"title":     "title ASC",
	}[opts.Sort]
	if order == "" {
		order = "collected_at DESC"
	}

	var where []string
	var args []any
	switch opts.Window {
	case "24h":
		where = append(where, "collected_at >= ?")
		args = append(args, time.Now().UTC().Add(-24*time.Hour).Format(time.RFC3339))
	case "all":
		// no filter
	default:
		where = append(where, "collected_at >= ?")
		args = append(args, time.Now().UTC().Add(-7*24*time.Hour).Format(time.RFC3339))
	}
	if opts.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, opts.RunID)
	}
	if opts.Strategy != "" {
		where = append(where, "source_strategy = ?")
		args = append(args, opts.Strategy)
	}

	cond := ""
	for i, w := range where {
		if i == 0 {
			cond = "WHERE " + w
		} else {
			cond += " AND " + w
		}
	}

	query := fmt.Sprintf(`
SELECT job_id, url, title, company, location, clearance_level, salary, employment_type,
       date_posted, description_html, description_text, source_strategy, run_id, collected_at
FROM jobs
%s
ORDER BY %s, id ASC
LIMIT ?;
`, cond, order)
	args = append(args, opts.Limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredJob
	for rows.Next() {
		var j StoredJob
		var strategy string
		if err := rows.Scan(
			&j.ID,
			&j.URL,
			&j.Title,
			&j.Company,
			&j.Location,
			&j.ClearanceLevel,
			&j.Salary,
			&j.EmploymentType,
			&j.DatePosted,
			&j.DescriptionHTML,
			&j.DescriptionText,
			&strategy,
			&j.RunID,
			&j.CollectedAt,
		); err != nil {
			return nil, err
		}
		j.SourceStrategy = domain.SourceStrategy(strategy)
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CleanupOldJobs deletes records collected before now-age.
func CleanupOldJobs(ctx context.Context, db *sql.DB, age time.Duration) (deleted int64, err error) {
	cutoff := time.Now().UTC().Add(-age).Format(time.RFC3339)
	res, err := db.ExecContext(ctx, `DELETE FROM jobs WHERE collected_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
