package extract

import (
	"context"

	"stackscout/internal/model"
)

// NopExtractor skips the LLM entirely and reports an empty tech stack.
// Used for wiring tests and dry runs where postings should still be stored.
type NopExtractor struct{}

var _ model.SkillExtractor = (*NopExtractor)(nil)

// NewNopExtractor returns a NopExtractor.
func NewNopExtractor() *NopExtractor {
	return &NopExtractor{}
}

// Extract returns an empty extraction without calling any provider.
func (n *NopExtractor) Extract(_ context.Context, _ model.Posting, _ string) (*model.Extraction, error) {
	return &model.Extraction{}, nil
}
