// Package scheduler owns the main loop: it runs one scrape pass immediately
// and, in daemon mode, keeps running passes on the configured interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stackscout/internal/metrics"
	"stackscout/internal/model"
	"stackscout/internal/pipeline"
	"stackscout/internal/tracker"
)

// statsWindow bounds the stats query behind the stored-jobs gauge.
const statsWindow = 24 * time.Hour

// Options adjusts how the scheduler runs passes.
type Options struct {
	Daemon      bool
	Interval    time.Duration // between passes in daemon mode
	RetryFailed bool          // include postings from the failed-URL skip-list
}

// Scheduler drives scrape passes: fetch the index, filter to new postings,
// process them through the pipeline.
type Scheduler struct {
	source    model.Source
	tracker   *tracker.Tracker
	processor *pipeline.Processor
	opts      Options
	logger    *slog.Logger
}

// New creates a scheduler over the given source, tracker and processor.
func New(source model.Source, tr *tracker.Tracker, proc *pipeline.Processor, opts Options, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		source:    source,
		tracker:   tr,
		processor: proc,
		opts:      opts,
		logger:    logger,
	}
}

// Run executes one pass immediately. In daemon mode it then ticks on the
// interval until ctx is cancelled; a failed pass is logged and the loop
// continues. In one-shot mode the pass error is returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.opts.Daemon {
		return s.pass(ctx)
	}

	s.logger.Info("starting scheduler", "interval", s.opts.Interval.String())

	if err := s.pass(ctx); err != nil {
		s.logger.Error("pass failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.opts.Interval):
			if err := s.pass(ctx); err != nil {
				s.logger.Error("pass failed", "error", err)
			}
		}
	}
}

// pass runs one fetch → filter → process cycle.
func (s *Scheduler) pass(ctx context.Context) (err error) {
	passID := uuid.NewString()
	logger := s.logger.With("pass_id", passID)
	start := time.Now()

	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.PassesTotal.WithLabelValues(status).Inc()
		metrics.PassDuration.Observe(time.Since(start).Seconds())
	}()

	candidates, err := s.source.FetchPostings(ctx)
	if err != nil {
		return fmt.Errorf("fetching postings: %w", err)
	}

	fresh, err := s.tracker.FilterNew(ctx, candidates)
	if err != nil {
		return fmt.Errorf("filtering postings: %w", err)
	}
	if !s.opts.RetryFailed {
		fresh, err = s.tracker.SkipFailed(ctx, fresh)
		if err != nil {
			return fmt.Errorf("skipping failed postings: %w", err)
		}
	}

	if len(fresh) == 0 {
		logger.Info("no new postings", "candidates", len(candidates))
		return nil
	}

	results := s.processor.Run(ctx, fresh)

	var saved, skipped, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			metrics.PostingsTotal.WithLabelValues(string(model.FailedStage(r.Err))).Inc()
		case r.Saved:
			saved++
			metrics.PostingsTotal.WithLabelValues("saved").Inc()
		default:
			skipped++
			metrics.PostingsTotal.WithLabelValues("skipped").Inc()
		}
	}

	logger.Info("pass complete",
		"candidates", len(candidates),
		"processed", len(results),
		"saved", saved,
		"skipped", skipped,
		"failed", failed,
		"elapsed", time.Since(start),
	)

	s.updateStoredGauge(ctx, logger)
	return nil
}

// updateStoredGauge refreshes the stored-jobs gauge after a pass. Best
// effort; a stats error never fails the pass.
func (s *Scheduler) updateStoredGauge(ctx context.Context, logger *slog.Logger) {
	stats, err := s.tracker.Stats(ctx, 1, statsWindow)
	if err != nil {
		logger.Debug("reading store totals", "error", err)
		return
	}
	metrics.StoredJobs.Set(float64(stats.TotalJobs))
}
