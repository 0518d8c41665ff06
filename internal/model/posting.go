package model

import (
	"context"
	"time"
)

// Posting is one job ad referenced from the index README.
type Posting struct {
	Title   string // role cell, emoji stripped
	Company string // resolved through continuation rows
	URL     string // apply link, the dedup identity key
}

// SkillSet is the extractor's category buckets as they appear on the wire.
type SkillSet struct {
	Languages  []string `json:"languages"`
	Frameworks []string `json:"frameworks"`
	Databases  []string `json:"databases"`
	Tools      []string `json:"tools"`
	Concepts   []string `json:"concepts"`
}

// Count returns the number of skill strings across all categories.
func (s SkillSet) Count() int {
	return len(s.Languages) + len(s.Frameworks) + len(s.Databases) + len(s.Tools) + len(s.Concepts)
}

// Empty reports whether no category holds any skill.
func (s SkillSet) Empty() bool {
	return s.Count() == 0
}

// Skill is one normalized (name, category) pair.
type Skill struct {
	ID       int64
	Name     string
	Category string
}

// Extraction is what the extractor recovers from one posting page.
type Extraction struct {
	Title   string // extractor's read of the title, may be empty
	Company string // extractor's read of the company, may be empty
	Skills  SkillSet
	Raw     []byte // the provider's JSON document, persisted verbatim
}

// Result is the per-posting outcome of one pipeline pass. A nil Err means
// the posting made it through fetch, extract and persist; Saved is false
// when the store skipped it (non-tech title).
type Result struct {
	Posting    Posting
	Extraction *Extraction // nil when a stage failed
	Saved      bool
	Err        error
}

// BatchSummary reports one completed batch to the caller.
type BatchSummary struct {
	Index     int // 1-based batch number
	Total     int // batches in this pass
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// FailedURL is a posting whose pipeline failed in an earlier pass.
type FailedURL struct {
	URL         string
	Reason      string
	Attempts    int
	LastAttempt time.Time
}

// SkillCount is one row of the top-skills ranking.
type SkillCount struct {
	Name     string
	Category string
	Jobs     int // distinct jobs referencing the skill
}

// CompanyCount is one row of the top-companies ranking.
type CompanyCount struct {
	Company string
	Jobs    int
}

// CategoryCount is one row of the job-category histogram.
type CategoryCount struct {
	Category string
	Jobs     int
}

// RecentJob is one row of the latest-postings listing.
type RecentJob struct {
	Title     string
	Company   string
	URL       string
	Skills    []string
	CreatedAt time.Time
}

// RunStats is a read-only aggregate view over the stored data.
// Computed on demand, never persisted.
type RunStats struct {
	TotalJobs    int
	WindowJobs   int // jobs created within the stats window
	UniqueSkills int
	SkillLinks   int // job_skills rows
	Companies    int // distinct companies
	TopSkills    []SkillCount
	TopCompanies []CompanyCount
	Categories   []CategoryCount
	Recent       []RecentJob
}

// Source lists candidate postings from the job index.
type Source interface {
	FetchPostings(ctx context.Context) ([]Posting, error)
}

// PageFetcher retrieves the readable text of a posting page.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// SkillExtractor pulls a structured tech stack out of posting page text.
type SkillExtractor interface {
	Extract(ctx context.Context, p Posting, content string) (*Extraction, error)
}

// Store persists postings, skills and failure records.
type Store interface {
	// SaveJob upserts one posting with its extracted skills (normalized by
	// the store) and the raw extractor document. Non-tech titles are
	// skipped: saved=false, nil error.
	SaveJob(ctx context.Context, p Posting, skills SkillSet, raw []byte) (id int64, saved bool, err error)
	URLSeen(ctx context.Context, url string) (bool, error)
	SeenURLs(ctx context.Context) (map[string]struct{}, error)

	RecordFailure(ctx context.Context, url, reason string) error
	ClearFailure(ctx context.Context, url string) error
	FailedURLs(ctx context.Context, limit int) ([]FailedURL, error)
	FailedURLSet(ctx context.Context) (map[string]struct{}, error)
	ClearAllFailures(ctx context.Context) (int64, error)

	Stats(ctx context.Context, topN int, window time.Duration) (*RunStats, error)
	Close() error
}
