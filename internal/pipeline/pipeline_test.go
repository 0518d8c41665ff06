package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stackscout/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postings(n int) []model.Posting {
	out := make([]model.Posting, n)
	for i := range out {
		out[i] = model.Posting{
			Title:   fmt.Sprintf("Role %d", i),
			Company: fmt.Sprintf("Company %d", i),
			URL:     fmt.Sprintf("https://jobs.example.com/%d", i),
		}
	}
	return out
}

type stubFetcher struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, url string) (string, error)
}

func (f *stubFetcher) FetchText(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, url)
	}
	return "posting text for " + url, nil
}

type stubExtractor struct {
	fn func(p model.Posting, content string) (*model.Extraction, error)
}

func (e *stubExtractor) Extract(_ context.Context, p model.Posting, content string) (*model.Extraction, error) {
	if e.fn != nil {
		return e.fn(p, content)
	}
	return &model.Extraction{
		Skills: model.SkillSet{Languages: []string{"Go"}},
		Raw:    []byte(`{"skills":{"languages":["Go"]}}`),
	}, nil
}

// memStore records pipeline-facing store calls and satisfies the rest of the
// interface with empty answers.
type memStore struct {
	mu       sync.Mutex
	saved    []model.Posting
	recorded map[string]string
	cleared  []string
	saveFn   func(p model.Posting) (int64, bool, error)
}

func newMemStore() *memStore {
	return &memStore{recorded: make(map[string]string)}
}

func (s *memStore) SaveJob(_ context.Context, p model.Posting, _ model.SkillSet, _ []byte) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveFn != nil {
		return s.saveFn(p)
	}
	s.saved = append(s.saved, p)
	return int64(len(s.saved)), true, nil
}

func (s *memStore) RecordFailure(_ context.Context, url, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded[url] = reason
	return nil
}

func (s *memStore) ClearFailure(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, url)
	return nil
}

func (s *memStore) URLSeen(context.Context, string) (bool, error) { return false, nil }
func (s *memStore) SeenURLs(context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}
func (s *memStore) FailedURLs(context.Context, int) ([]model.FailedURL, error) { return nil, nil }
func (s *memStore) FailedURLSet(context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}
func (s *memStore) ClearAllFailures(context.Context) (int64, error) { return 0, nil }
func (s *memStore) Stats(context.Context, int, time.Duration) (*model.RunStats, error) {
	return &model.RunStats{}, nil
}
func (s *memStore) Close() error { return nil }

func newProcessor(fetcher *stubFetcher, extractor *stubExtractor, store *memStore, opts Options) *Processor {
	if opts.BatchSize == 0 {
		opts.BatchSize = 10
	}
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = 5
	}
	if opts.JobTimeout == 0 {
		opts.JobTimeout = 5 * time.Second
	}
	return New(fetcher, extractor, store, opts, discardLogger())
}

func TestRun_ProcessesAllPostings(t *testing.T) {
	store := newMemStore()
	proc := newProcessor(&stubFetcher{}, &stubExtractor{}, store, Options{})

	results := proc.Run(context.Background(), postings(3))

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("result %d: unexpected error: %v", i, r.Err)
		}
		if !r.Saved {
			t.Errorf("result %d: expected Saved", i)
		}
		if r.Extraction == nil {
			t.Errorf("result %d: expected extraction", i)
		}
	}
	if len(store.saved) != 3 {
		t.Errorf("expected 3 stored jobs, got %d", len(store.saved))
	}
}

func TestRun_EmptyInput(t *testing.T) {
	fetcher := &stubFetcher{}
	proc := newProcessor(fetcher, &stubExtractor{}, newMemStore(), Options{})

	results := proc.Run(context.Background(), nil)

	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("expected no fetches, got %d", len(fetcher.calls))
	}
}

func TestRun_ResultsAlignedWithInput(t *testing.T) {
	fetcher := &stubFetcher{
		fn: func(_ context.Context, url string) (string, error) {
			// Stagger completion so slots would shuffle if ordering relied
			// on finish time.
			if strings.HasSuffix(url, "0") || strings.HasSuffix(url, "3") {
				time.Sleep(30 * time.Millisecond)
			}
			return "text for " + url, nil
		},
	}
	proc := newProcessor(fetcher, &stubExtractor{}, newMemStore(), Options{BatchSize: 4, MaxConcurrent: 4})

	input := postings(8)
	results := proc.Run(context.Background(), input)

	for i, r := range results {
		if r.Posting.URL != input[i].URL {
			t.Errorf("result %d: expected %s, got %s", i, input[i].URL, r.Posting.URL)
		}
	}
}

func TestRun_HonorsConcurrencyCap(t *testing.T) {
	var inflight, peak atomic.Int64
	fetcher := &stubFetcher{
		fn: func(context.Context, string) (string, error) {
			cur := inflight.Add(1)
			defer inflight.Add(-1)
			for {
				seen := peak.Load()
				if cur <= seen || peak.CompareAndSwap(seen, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return "text", nil
		},
	}
	proc := newProcessor(fetcher, &stubExtractor{}, newMemStore(), Options{BatchSize: 8, MaxConcurrent: 2})

	proc.Run(context.Background(), postings(8))

	if got := peak.Load(); got > 2 {
		t.Errorf("expected at most 2 postings in flight, saw %d", got)
	}
}

func TestRun_TruncatesToMaxJobs(t *testing.T) {
	fetcher := &stubFetcher{}
	proc := newProcessor(fetcher, &stubExtractor{}, newMemStore(), Options{MaxJobs: 3})

	input := postings(5)
	results := proc.Run(context.Background(), input)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Posting.URL != input[i].URL {
			t.Errorf("result %d: expected %s, got %s", i, input[i].URL, r.Posting.URL)
		}
	}
	if len(fetcher.calls) != 3 {
		t.Errorf("expected 3 fetches, got %d", len(fetcher.calls))
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	fetcher := &stubFetcher{
		fn: func(_ context.Context, url string) (string, error) {
			if strings.HasSuffix(url, "/1") {
				return "", errors.New("connection reset")
			}
			return "text for " + url, nil
		},
	}
	store := newMemStore()
	proc := newProcessor(fetcher, &stubExtractor{}, store, Options{})

	results := proc.Run(context.Background(), postings(3))

	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("expected siblings to succeed, got %v and %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Fatal("expected result 1 to fail")
	}
	if stage := model.FailedStage(results[1].Err); stage != model.StageFetch {
		t.Errorf("expected fetch stage, got %q", stage)
	}
	if len(store.saved) != 2 {
		t.Errorf("expected 2 stored jobs, got %d", len(store.saved))
	}
}

func TestRun_StageAttribution(t *testing.T) {
	extractor := &stubExtractor{
		fn: func(p model.Posting, _ string) (*model.Extraction, error) {
			if strings.HasSuffix(p.URL, "/0") {
				return nil, errors.New("malformed reply")
			}
			return &model.Extraction{Skills: model.SkillSet{Tools: []string{"Docker"}}}, nil
		},
	}
	store := newMemStore()
	store.saveFn = func(p model.Posting) (int64, bool, error) {
		if strings.HasSuffix(p.URL, "/1") {
			return 0, false, errors.New("database is locked")
		}
		return 1, true, nil
	}
	proc := newProcessor(&stubFetcher{}, extractor, store, Options{})

	results := proc.Run(context.Background(), postings(3))

	if stage := model.FailedStage(results[0].Err); stage != model.StageExtract {
		t.Errorf("expected extract stage, got %q", stage)
	}
	if stage := model.FailedStage(results[1].Err); stage != model.StagePersist {
		t.Errorf("expected persist stage, got %q", stage)
	}
	if results[2].Err != nil {
		t.Errorf("unexpected error: %v", results[2].Err)
	}
}

func TestRun_TimeoutStage(t *testing.T) {
	fetcher := &stubFetcher{
		fn: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	proc := newProcessor(fetcher, &stubExtractor{}, newMemStore(), Options{JobTimeout: 30 * time.Millisecond})

	results := proc.Run(context.Background(), postings(1))

	if results[0].Err == nil {
		t.Fatal("expected a timeout error")
	}
	if stage := model.FailedStage(results[0].Err); stage != model.StageTimeout {
		t.Errorf("expected timeout stage, got %q", stage)
	}
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newMemStore()
	proc := newProcessor(&stubFetcher{}, &stubExtractor{}, store, Options{})

	results := proc.Run(ctx, postings(3))

	for i, r := range results {
		if stage := model.FailedStage(r.Err); stage != model.StageCanceled {
			t.Errorf("result %d: expected canceled stage, got %q", i, stage)
		}
	}
	if len(store.saved) != 0 {
		t.Errorf("expected no stored jobs, got %d", len(store.saved))
	}
	if len(store.recorded) != 0 {
		t.Errorf("expected canceled postings to stay off the failure table, got %d", len(store.recorded))
	}
}

func TestRun_InFlightSurvivesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := &stubFetcher{
		fn: func(_ context.Context, url string) (string, error) {
			if strings.HasSuffix(url, "/0") {
				close(started)
				<-release
			}
			return "text for " + url, nil
		},
	}
	go func() {
		<-started
		cancel()
		close(release)
	}()

	store := newMemStore()
	proc := newProcessor(fetcher, &stubExtractor{}, store, Options{BatchSize: 3, MaxConcurrent: 1})

	results := proc.Run(ctx, postings(3))

	if results[0].Err != nil {
		t.Errorf("expected the in-flight posting to finish, got %v", results[0].Err)
	}
	for i := 1; i < 3; i++ {
		if stage := model.FailedStage(results[i].Err); stage != model.StageCanceled {
			t.Errorf("result %d: expected canceled stage, got %q", i, stage)
		}
	}
	if len(store.saved) != 1 {
		t.Errorf("expected 1 stored job, got %d", len(store.saved))
	}
}

func TestRun_BatchCallbacks(t *testing.T) {
	var summaries []model.BatchSummary
	opts := Options{
		BatchSize:     2,
		MaxConcurrent: 2,
		OnBatch: func(s model.BatchSummary) {
			summaries = append(summaries, s)
		},
	}
	proc := newProcessor(&stubFetcher{}, &stubExtractor{}, newMemStore(), opts)

	proc.Run(context.Background(), postings(5))

	if len(summaries) != 3 {
		t.Fatalf("expected 3 batch summaries, got %d", len(summaries))
	}
	for i, s := range summaries {
		if s.Index != i+1 {
			t.Errorf("summary %d: expected index %d, got %d", i, i+1, s.Index)
		}
		if s.Total != 3 {
			t.Errorf("summary %d: expected 3 total batches, got %d", i, s.Total)
		}
	}
	if summaries[0].Succeeded != 2 || summaries[2].Succeeded != 1 {
		t.Errorf("expected batch sizes 2,2,1 reflected in successes, got %d and %d",
			summaries[0].Succeeded, summaries[2].Succeeded)
	}
}

func TestRun_RecordsAndClearsFailures(t *testing.T) {
	fetcher := &stubFetcher{
		fn: func(_ context.Context, url string) (string, error) {
			if strings.HasSuffix(url, "/1") {
				return "", errors.New("boom")
			}
			return "text", nil
		},
	}
	store := newMemStore()
	proc := newProcessor(fetcher, &stubExtractor{}, store, Options{})

	proc.Run(context.Background(), postings(2))

	reason, ok := store.recorded["https://jobs.example.com/1"]
	if !ok {
		t.Fatal("expected the failed posting to be recorded")
	}
	if !strings.Contains(reason, "fetch") {
		t.Errorf("expected the reason to name the stage, got %q", reason)
	}
	if len(store.cleared) != 1 || store.cleared[0] != "https://jobs.example.com/0" {
		t.Errorf("expected the successful posting cleared, got %v", store.cleared)
	}
}

func TestRun_NonTechSkipStillSucceeds(t *testing.T) {
	store := newMemStore()
	store.saveFn = func(model.Posting) (int64, bool, error) { return 0, false, nil }

	var summary model.BatchSummary
	proc := newProcessor(&stubFetcher{}, &stubExtractor{}, store, Options{
		OnBatch: func(s model.BatchSummary) { summary = s },
	})

	results := proc.Run(context.Background(), postings(1))

	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].Saved {
		t.Error("expected Saved to be false for a skipped posting")
	}
	if summary.Succeeded != 1 || summary.Failed != 0 {
		t.Errorf("expected the skip counted as success, got %+v", summary)
	}
}

func TestRun_MergesExtractedFields(t *testing.T) {
	extractor := &stubExtractor{
		fn: func(model.Posting, string) (*model.Extraction, error) {
			return &model.Extraction{
				Title:  "Software Engineering Intern",
				Skills: model.SkillSet{Languages: []string{"Go"}},
			}, nil
		},
	}
	store := newMemStore()
	proc := newProcessor(&stubFetcher{}, extractor, store, Options{})

	proc.Run(context.Background(), []model.Posting{
		{Title: "SWE Intern", Company: "Acme", URL: "https://jobs.example.com/acme"},
	})

	if len(store.saved) != 1 {
		t.Fatalf("expected 1 stored job, got %d", len(store.saved))
	}
	got := store.saved[0]
	if got.Title != "Software Engineering Intern" {
		t.Errorf("expected the extracted title to win, got %q", got.Title)
	}
	if got.Company != "Acme" {
		t.Errorf("expected the index company to fill the gap, got %q", got.Company)
	}
}

func TestRun_PausesBetweenBatches(t *testing.T) {
	const pause = 150 * time.Millisecond
	proc := newProcessor(&stubFetcher{}, &stubExtractor{}, newMemStore(), Options{
		BatchSize:  1,
		BatchPause: pause,
	})

	start := time.Now()
	proc.Run(context.Background(), postings(3))
	elapsed := time.Since(start)

	if elapsed < 2*pause {
		t.Errorf("expected two pauses between three batches, finished in %v", elapsed)
	}
	if elapsed >= 3*pause {
		t.Errorf("expected no pause after the last batch, took %v", elapsed)
	}
}
