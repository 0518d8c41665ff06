// Package tracker decides which candidate postings still need processing.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stackscout/internal/model"
)

// Tracker answers "have we handled this posting before" against the store.
type Tracker struct {
	store  model.Store
	logger *slog.Logger
}

// New creates a tracker over the given store.
func New(store model.Store, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, logger: logger}
}

// FilterNew returns the candidates not yet stored, preserving input order.
// A candidate counts as seen when its exact URL or its query-stripped URL is
// already in the store, so tracking-parameter variants are not re-processed.
func (t *Tracker) FilterNew(ctx context.Context, candidates []model.Posting) ([]model.Posting, error) {
	seen, err := t.store.SeenURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing stored urls: %v", model.ErrStoreUnavailable, err)
	}

	var fresh []model.Posting
	for _, p := range candidates {
		if _, ok := seen[p.URL]; ok {
			continue
		}
		if _, ok := seen[stripQuery(p.URL)]; ok {
			continue
		}
		fresh = append(fresh, p)
	}

	t.logger.Info("filtered candidates",
		"fetched", len(candidates),
		"new", len(fresh),
		"known", len(candidates)-len(fresh),
	)
	return fresh, nil
}

// SkipFailed drops candidates whose URL is on the failure skip-list. Callers
// bypass this to re-attempt previously failed postings.
func (t *Tracker) SkipFailed(ctx context.Context, candidates []model.Posting) ([]model.Posting, error) {
	failed, err := t.store.FailedURLSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing failed urls: %v", model.ErrStoreUnavailable, err)
	}
	if len(failed) == 0 {
		return candidates, nil
	}

	var keep []model.Posting
	for _, p := range candidates {
		if _, ok := failed[p.URL]; ok {
			continue
		}
		keep = append(keep, p)
	}

	if skipped := len(candidates) - len(keep); skipped > 0 {
		t.logger.Info("skipping previously failed postings", "skipped", skipped)
	}
	return keep, nil
}

// Stats reports the aggregate view over stored jobs and skills.
func (t *Tracker) Stats(ctx context.Context, topN int, window time.Duration) (*model.RunStats, error) {
	st, err := t.store.Stats(ctx, topN, window)
	if err != nil {
		return nil, fmt.Errorf("%w: reading stats: %v", model.ErrStoreUnavailable, err)
	}
	return st, nil
}

// stripQuery removes everything from the first '?' on.
func stripQuery(url string) string {
	if i := strings.Index(url, "?"); i >= 0 {
		return url[:i]
	}
	return url
}
