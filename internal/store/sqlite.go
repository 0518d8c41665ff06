package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"stackscout/internal/model"
)

// sqliteTimeLayout is sqlite's CURRENT_TIMESTAMP text form. All timestamps
// are written and compared in this layout, in UTC.
const sqliteTimeLayout = "2006-01-02 15:04:05"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	title           TEXT,
	company         TEXT,
	url             TEXT UNIQUE,
	raw_skills_data TEXT,
	category        TEXT,
	created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS skills (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT,
	category TEXT,
	UNIQUE (name, category)
);
CREATE TABLE IF NOT EXISTS job_skills (
	job_id   INTEGER REFERENCES jobs(id) ON DELETE CASCADE,
	skill_id INTEGER REFERENCES skills(id) ON DELETE CASCADE,
	PRIMARY KEY (job_id, skill_id)
);
CREATE TABLE IF NOT EXISTS failed_urls (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	url          TEXT UNIQUE,
	error        TEXT,
	attempts     INTEGER DEFAULT 1,
	created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_attempt DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore persists jobs and skills in a local SQLite database. It backs
// local runs and tests; production deployments use PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

var _ model.Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and ensures the schema
// exists. The connection is capped at one writer, sqlite's comfort zone.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveJob upserts one posting with its skills. Non-tech titles are skipped
// without error.
func (s *SQLiteStore) SaveJob(ctx context.Context, p model.Posting, skills model.SkillSet, raw []byte) (int64, bool, error) {
	if !IsTechTitle(p.Title) {
		return 0, false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("beginning save for %s: %w", p.URL, err)
	}
	defer tx.Rollback()

	var rawArg any
	if len(raw) > 0 {
		rawArg = string(raw)
	}

	var jobID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO jobs (title, company, url, raw_skills_data, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			raw_skills_data = excluded.raw_skills_data,
			category = excluded.category
		RETURNING id`,
		p.Title, p.Company, p.URL, rawArg, CategorizeTitle(p.Title),
		time.Now().UTC().Format(sqliteTimeLayout),
	).Scan(&jobID)
	if err != nil {
		return 0, false, fmt.Errorf("upserting job %s: %w", p.URL, err)
	}

	for _, sk := range flattenSkills(skills) {
		var skillID int64
		err := tx.QueryRowContext(ctx,
			"INSERT INTO skills (name, category) VALUES (?, ?) ON CONFLICT (name, category) DO NOTHING RETURNING id",
			sk.Name, sk.Category,
		).Scan(&skillID)
		if err == sql.ErrNoRows {
			err = tx.QueryRowContext(ctx,
				"SELECT id FROM skills WHERE name = ? AND category = ?",
				sk.Name, sk.Category,
			).Scan(&skillID)
		}
		if err != nil {
			return 0, false, fmt.Errorf("upserting skill %s/%s: %w", sk.Category, sk.Name, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO job_skills (job_id, skill_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
			jobID, skillID,
		); err != nil {
			return 0, false, fmt.Errorf("linking skill %s to job %d: %w", sk.Name, jobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("committing job %s: %w", p.URL, err)
	}
	return jobID, true, nil
}

// URLSeen reports whether a job with the given URL is already stored.
func (s *SQLiteStore) URLSeen(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM jobs WHERE url = ?", url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking url %s: %w", url, err)
	}
	return true, nil
}

// SeenURLs returns the set of stored job URLs.
func (s *SQLiteStore) SeenURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT url FROM jobs WHERE url IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("listing stored urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning url: %w", err)
		}
		urls[u] = struct{}{}
	}
	return urls, rows.Err()
}

// RecordFailure upserts a failed URL, bumping its attempt counter.
func (s *SQLiteStore) RecordFailure(ctx context.Context, url, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failed_urls (url, error, last_attempt)
		VALUES (?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			attempts = attempts + 1,
			error = excluded.error,
			last_attempt = excluded.last_attempt`,
		url, reason, time.Now().UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording failure for %s: %w", url, err)
	}
	return nil
}

// ClearFailure removes url from the failure list, if present.
func (s *SQLiteStore) ClearFailure(ctx context.Context, url string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM failed_urls WHERE url = ?", url); err != nil {
		return fmt.Errorf("clearing failure for %s: %w", url, err)
	}
	return nil
}

// FailedURLs lists recorded failures, most recent first. limit <= 0 returns
// all of them.
func (s *SQLiteStore) FailedURLs(ctx context.Context, limit int) ([]model.FailedURL, error) {
	q := "SELECT url, error, attempts, last_attempt FROM failed_urls ORDER BY last_attempt DESC, id DESC"
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, q+" LIMIT ?", limit)
	} else {
		rows, err = s.db.QueryContext(ctx, q)
	}
	if err != nil {
		return nil, fmt.Errorf("listing failed urls: %w", err)
	}
	defer rows.Close()

	var out []model.FailedURL
	for rows.Next() {
		var (
			f    model.FailedURL
			last string
		)
		if err := rows.Scan(&f.URL, &f.Reason, &f.Attempts, &last); err != nil {
			return nil, fmt.Errorf("scanning failed url: %w", err)
		}
		if t, err := time.Parse(sqliteTimeLayout, last); err == nil {
			f.LastAttempt = t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FailedURLSet returns the failed URLs as a set for skip-list filtering.
func (s *SQLiteStore) FailedURLSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT url FROM failed_urls")
	if err != nil {
		return nil, fmt.Errorf("listing failed urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning failed url: %w", err)
		}
		urls[u] = struct{}{}
	}
	return urls, rows.Err()
}

// ClearAllFailures empties the failure list and reports how many rows went.
func (s *SQLiteStore) ClearAllFailures(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM failed_urls")
	if err != nil {
		return 0, fmt.Errorf("clearing failed urls: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleared urls: %w", err)
	}
	return n, nil
}

// Stats computes the aggregate view. topN <= 0 defaults to 15, window <= 0
// to 24h.
func (s *SQLiteStore) Stats(ctx context.Context, topN int, window time.Duration) (*model.RunStats, error) {
	if topN <= 0 {
		topN = 15
	}
	if window <= 0 {
		window = 24 * time.Hour
	}

	st := &model.RunStats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&st.TotalJobs); err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}
	cutoff := time.Now().Add(-window).UTC().Format(sqliteTimeLayout)
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM jobs WHERE created_at >= ?", cutoff,
	).Scan(&st.WindowJobs); err != nil {
		return nil, fmt.Errorf("counting window jobs: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM skills").Scan(&st.UniqueSkills); err != nil {
		return nil, fmt.Errorf("counting skills: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_skills").Scan(&st.SkillLinks); err != nil {
		return nil, fmt.Errorf("counting skill links: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT company) FROM jobs WHERE company <> ''",
	).Scan(&st.Companies); err != nil {
		return nil, fmt.Errorf("counting companies: %w", err)
	}

	var err error
	if st.TopSkills, err = s.topSkills(ctx, topN); err != nil {
		return nil, err
	}
	if st.TopCompanies, err = s.topCompanies(ctx, topN); err != nil {
		return nil, err
	}
	if st.Categories, err = s.categoryCounts(ctx); err != nil {
		return nil, err
	}
	if st.Recent, err = s.recentJobs(ctx, 10); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) topSkills(ctx context.Context, limit int) ([]model.SkillCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, s.category, COUNT(js.job_id) AS cnt
		FROM skills s
		JOIN job_skills js ON s.id = js.skill_id
		GROUP BY s.id, s.name, s.category
		ORDER BY cnt DESC, s.name ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking skills: %w", err)
	}
	defer rows.Close()

	var out []model.SkillCount
	for rows.Next() {
		var sc model.SkillCount
		if err := rows.Scan(&sc.Name, &sc.Category, &sc.Jobs); err != nil {
			return nil, fmt.Errorf("scanning skill rank: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) topCompanies(ctx context.Context, limit int) ([]model.CompanyCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT company, COUNT(*) AS cnt
		FROM jobs
		WHERE company <> ''
		GROUP BY company
		ORDER BY cnt DESC, company ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking companies: %w", err)
	}
	defer rows.Close()

	var out []model.CompanyCount
	for rows.Next() {
		var cc model.CompanyCount
		if err := rows.Scan(&cc.Company, &cc.Jobs); err != nil {
			return nil, fmt.Errorf("scanning company rank: %w", err)
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) categoryCounts(ctx context.Context) ([]model.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS cnt
		FROM jobs
		WHERE category IS NOT NULL
		GROUP BY category
		ORDER BY cnt DESC, category ASC`)
	if err != nil {
		return nil, fmt.Errorf("counting categories: %w", err)
	}
	defer rows.Close()

	var out []model.CategoryCount
	for rows.Next() {
		var cc model.CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Jobs); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) recentJobs(ctx context.Context, limit int) ([]model.RecentJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, company, url, created_at
		FROM jobs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent jobs: %w", err)
	}
	defer rows.Close()

	type row struct {
		id  int64
		job model.RecentJob
	}
	var recent []row
	for rows.Next() {
		var (
			r       row
			created string
		)
		if err := rows.Scan(&r.id, &r.job.Title, &r.job.Company, &r.job.URL, &created); err != nil {
			return nil, fmt.Errorf("scanning recent job: %w", err)
		}
		if t, err := time.Parse(sqliteTimeLayout, created); err == nil {
			r.job.CreatedAt = t
		}
		recent = append(recent, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.RecentJob, 0, len(recent))
	for _, r := range recent {
		skills, err := s.jobSkillNames(ctx, r.id)
		if err != nil {
			return nil, err
		}
		r.job.Skills = skills
		out = append(out, r.job)
	}
	return out, nil
}

func (s *SQLiteStore) jobSkillNames(ctx context.Context, jobID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name
		FROM skills s
		JOIN job_skills js ON s.id = js.skill_id
		WHERE js.job_id = ?
		ORDER BY s.name
		LIMIT 10`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing skills for job %d: %w", jobID, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning skill name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
