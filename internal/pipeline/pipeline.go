// Package pipeline runs postings through fetch, extract and persist in
// bounded concurrent batches.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"stackscout/internal/model"
)

// Options bounds one processing pass.
type Options struct {
	BatchSize     int
	MaxConcurrent int
	MaxJobs       int           // 0 means no limit
	JobTimeout    time.Duration // fetch+extract+persist budget per posting
	BatchPause    time.Duration // gap between batches, 0 disables
	OnBatch       func(model.BatchSummary)
}

// Processor drives postings through the fetch → extract → persist pipeline.
// One posting's failure never affects its siblings.
type Processor struct {
	fetcher   model.PageFetcher
	extractor model.SkillExtractor
	store     model.Store
	opts      Options
	logger    *slog.Logger
}

// New creates a processor. Non-positive batch size or concurrency are
// clamped to 1.
func New(fetcher model.PageFetcher, extractor model.SkillExtractor, store model.Store, opts Options, logger *slog.Logger) *Processor {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Processor{
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		opts:      opts,
		logger:    logger,
	}
}

// Run processes postings in sequential batches and returns one Result per
// posting, index-aligned with the input. Cancelling ctx stops new postings
// from starting; postings already in flight keep their timeout budget.
func (p *Processor) Run(ctx context.Context, postings []model.Posting) []model.Result {
	if p.opts.MaxJobs > 0 && len(postings) > p.opts.MaxJobs {
		p.logger.Info("truncating candidates",
			"limit", p.opts.MaxJobs,
			"dropped", len(postings)-p.opts.MaxJobs,
		)
		postings = postings[:p.opts.MaxJobs]
	}

	results := make([]model.Result, len(postings))
	if len(postings) == 0 {
		return results
	}

	sem := semaphore.NewWeighted(int64(p.opts.MaxConcurrent))
	totalBatches := (len(postings) + p.opts.BatchSize - 1) / p.opts.BatchSize

	for start := 0; start < len(postings); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(postings))
		batchNum := start/p.opts.BatchSize + 1

		began := time.Now()
		p.runBatch(ctx, sem, postings[start:end], results[start:end])
		summary := summarize(batchNum, totalBatches, results[start:end], time.Since(began))

		p.logger.Info("batch complete",
			"batch", summary.Index,
			"total_batches", summary.Total,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"elapsed", summary.Elapsed,
		)
		p.recordOutcomes(ctx, results[start:end])
		if p.opts.OnBatch != nil {
			p.opts.OnBatch(summary)
		}

		if end < len(postings) && p.opts.BatchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.opts.BatchPause):
			}
		}
	}

	return results
}

// runBatch fans the batch out under the concurrency cap, writing each
// posting's Result into the matching slot of out.
func (p *Processor) runBatch(ctx context.Context, sem *semaphore.Weighted, batch []model.Posting, out []model.Result) {
	var wg sync.WaitGroup

	for i := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Pass tear-down: everything not yet started is marked, the
			// in-flight remainder still completes below.
			for j := i; j < len(batch); j++ {
				out[j] = model.Result{
					Posting: batch[j],
					Err:     &model.StageError{Stage: model.StageCanceled, URL: batch[j].URL, Err: err},
				}
			}
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			out[i] = p.processOne(ctx, batch[i])
		}(i)
	}

	wg.Wait()
}

// processOne runs one posting through fetch → extract → persist. The posting
// gets its own timeout budget, detached from pass cancellation so an
// interrupted pass does not abandon half-persisted work.
func (p *Processor) processOne(ctx context.Context, posting model.Posting) model.Result {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.JobTimeout)
	defer cancel()

	content, err := p.fetcher.FetchText(jobCtx, posting.URL)
	if err != nil {
		return failedResult(posting, model.StageFetch, err)
	}

	extraction, err := p.extractor.Extract(jobCtx, posting, content)
	if err != nil {
		return failedResult(posting, model.StageExtract, err)
	}

	_, saved, err := p.store.SaveJob(jobCtx, merge(posting, extraction), extraction.Skills, extraction.Raw)
	if err != nil {
		return failedResult(posting, model.StagePersist, err)
	}

	return model.Result{Posting: posting, Extraction: extraction, Saved: saved}
}

// recordOutcomes mirrors batch results into the failed-URL table: failures
// are recorded, successes clear any earlier record. Best effort; the pass
// outcome never depends on it.
func (p *Processor) recordOutcomes(ctx context.Context, results []model.Result) {
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	for _, r := range results {
		if r.Err == nil {
			if err := p.store.ClearFailure(recCtx, r.Posting.URL); err != nil {
				p.logger.Warn("clearing failure record", "url", r.Posting.URL, "error", err)
			}
			continue
		}
		// Cancelled postings were never attempted, so they stay off the
		// skip-list.
		if model.FailedStage(r.Err) == model.StageCanceled {
			continue
		}
		if err := p.store.RecordFailure(recCtx, r.Posting.URL, r.Err.Error()); err != nil {
			p.logger.Warn("recording failure", "url", r.Posting.URL, "error", err)
		}
	}
}

// failedResult wraps err with its pipeline stage, promoting deadline hits to
// the timeout stage.
func failedResult(p model.Posting, stage model.Stage, err error) model.Result {
	if errors.Is(err, context.DeadlineExceeded) {
		stage = model.StageTimeout
	}
	return model.Result{
		Posting: p,
		Err:     &model.StageError{Stage: stage, URL: p.URL, Err: err},
	}
}

// merge prefers the extractor's title and company, falling back to the index
// row for whatever it missed.
func merge(p model.Posting, ex *model.Extraction) model.Posting {
	if ex.Title != "" {
		p.Title = ex.Title
	}
	if ex.Company != "" {
		p.Company = ex.Company
	}
	return p
}

func summarize(index, total int, results []model.Result, elapsed time.Duration) model.BatchSummary {
	s := model.BatchSummary{Index: index, Total: total, Elapsed: elapsed}
	for _, r := range results {
		if r.Err == nil {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
