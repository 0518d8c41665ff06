package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stackscout/internal/model"
	"stackscout/internal/pipeline"
	"stackscout/internal/tracker"
)

// --- Mock implementations ---

type countingSource struct {
	calls    atomic.Int32
	postings []model.Posting
}

func (s *countingSource) FetchPostings(_ context.Context) ([]model.Posting, error) {
	s.calls.Add(1)
	return s.postings, nil
}

type errorSource struct {
	calls atomic.Int32
}

func (s *errorSource) FetchPostings(_ context.Context) ([]model.Posting, error) {
	s.calls.Add(1)
	return nil, model.ErrSourceUnavailable
}

type okFetcher struct{}

func (okFetcher) FetchText(_ context.Context, url string) (string, error) {
	return "posting text for " + url, nil
}

type okExtractor struct{}

func (okExtractor) Extract(_ context.Context, _ model.Posting, _ string) (*model.Extraction, error) {
	return &model.Extraction{Skills: model.SkillSet{Languages: []string{"Go"}}}, nil
}

// schedStore backs both the tracker and the pipeline in tests: a seen set, a
// failed set, and a count of saved jobs.
type schedStore struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	failed map[string]struct{}
	saved  []string
}

func newSchedStore() *schedStore {
	return &schedStore{
		seen:   make(map[string]struct{}),
		failed: make(map[string]struct{}),
	}
}

func (s *schedStore) SaveJob(_ context.Context, p model.Posting, _ model.SkillSet, _ []byte) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, p.URL)
	s.seen[p.URL] = struct{}{}
	return int64(len(s.saved)), true, nil
}

func (s *schedStore) URLSeen(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[url]
	return ok, nil
}

func (s *schedStore) SeenURLs(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.seen))
	for u := range s.seen {
		out[u] = struct{}{}
	}
	return out, nil
}

func (s *schedStore) RecordFailure(_ context.Context, url, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[url] = struct{}{}
	return nil
}

func (s *schedStore) ClearFailure(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failed, url)
	return nil
}

func (s *schedStore) FailedURLs(_ context.Context, _ int) ([]model.FailedURL, error) {
	return nil, nil
}

func (s *schedStore) FailedURLSet(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.failed))
	for u := range s.failed {
		out[u] = struct{}{}
	}
	return out, nil
}

func (s *schedStore) ClearAllFailures(_ context.Context) (int64, error) { return 0, nil }

func (s *schedStore) Stats(_ context.Context, _ int, _ time.Duration) (*model.RunStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &model.RunStats{TotalJobs: len(s.saved)}, nil
}

func (s *schedStore) Close() error { return nil }

func (s *schedStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeScheduler(src model.Source, store model.Store, opts Options) *Scheduler {
	tr := tracker.New(store, discardLogger())
	proc := pipeline.New(okFetcher{}, okExtractor{}, store, pipeline.Options{
		BatchSize:     10,
		MaxConcurrent: 5,
		JobTimeout:    5 * time.Second,
	}, discardLogger())
	return New(src, tr, proc, opts, discardLogger())
}

func somePostings(urls ...string) []model.Posting {
	out := make([]model.Posting, len(urls))
	for i, u := range urls {
		out[i] = model.Posting{Title: "SWE Intern", Company: "Acme", URL: u}
	}
	return out
}

// --- Tests ---

func TestRun_OneShotProcessesNewPostings(t *testing.T) {
	store := newSchedStore()
	src := &countingSource{postings: somePostings(
		"https://jobs.example.com/a",
		"https://jobs.example.com/b",
		"https://jobs.example.com/c",
	)}
	s := makeScheduler(src, store, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.savedCount(); got != 3 {
		t.Errorf("saved jobs = %d, want 3", got)
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source calls = %d, want 1 (one-shot)", got)
	}
}

func TestRun_OneShotReturnsSourceError(t *testing.T) {
	s := makeScheduler(&errorSource{}, newSchedStore(), Options{})

	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error when the source is unavailable")
	}
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got: %v", err)
	}
}

func TestRun_SecondPassAddsNothing(t *testing.T) {
	store := newSchedStore()
	src := &countingSource{postings: somePostings(
		"https://jobs.example.com/a",
		"https://jobs.example.com/b",
	)}
	s := makeScheduler(src, store, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if got := store.savedCount(); got != 2 {
		t.Fatalf("saved jobs after first pass = %d, want 2", got)
	}

	// Same index content again: everything is filtered out as already stored.
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if got := store.savedCount(); got != 2 {
		t.Errorf("saved jobs after second pass = %d, want 2 (no re-processing)", got)
	}
}

func TestRun_SkipsSeenAndFailedURLs(t *testing.T) {
	store := newSchedStore()
	store.seen["https://jobs.example.com/a"] = struct{}{}
	store.failed["https://jobs.example.com/b"] = struct{}{}

	src := &countingSource{postings: somePostings(
		"https://jobs.example.com/a",
		"https://jobs.example.com/b",
		"https://jobs.example.com/c",
	)}
	s := makeScheduler(src, store, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.savedCount(); got != 1 {
		t.Errorf("saved jobs = %d, want 1 (seen and failed URLs skipped)", got)
	}
}

func TestRun_RetryFailedIncludesSkipList(t *testing.T) {
	store := newSchedStore()
	store.seen["https://jobs.example.com/a"] = struct{}{}
	store.failed["https://jobs.example.com/b"] = struct{}{}

	src := &countingSource{postings: somePostings(
		"https://jobs.example.com/a",
		"https://jobs.example.com/b",
		"https://jobs.example.com/c",
	)}
	s := makeScheduler(src, store, Options{RetryFailed: true})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.savedCount(); got != 2 {
		t.Errorf("saved jobs = %d, want 2 (failed URL retried, seen URL still skipped)", got)
	}
}

func TestRun_DaemonTicksOnInterval(t *testing.T) {
	src := &countingSource{}
	s := makeScheduler(src, newSchedStore(), Options{Daemon: true, Interval: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	// Allow time for at least two full passes (pass → sleep interval → pass).
	time.Sleep(250 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected nil error on cancel, got: %v", err)
	}

	if got := src.calls.Load(); got < 2 {
		t.Errorf("source calls = %d, want >= 2", got)
	}
}

func TestRun_DaemonSurvivesSourceFailure(t *testing.T) {
	src := &errorSource{}
	s := makeScheduler(src, newSchedStore(), Options{Daemon: true, Interval: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(250 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected nil error on cancel, got: %v", err)
	}

	if got := src.calls.Load(); got < 2 {
		t.Errorf("source calls = %d, want >= 2 (loop should continue past pass errors)", got)
	}
}

func TestRun_CancelReturnsPromptly(t *testing.T) {
	s := makeScheduler(&countingSource{}, newSchedStore(), Options{Daemon: true, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not return within 2s after cancel")
	}
}
