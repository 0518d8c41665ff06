// Package extract turns raw posting page text into a structured tech stack.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"stackscout/internal/model"
)

// maxContentChars caps how much page text goes into the prompt. Postings
// longer than this are boilerplate-heavy; the stack is in the first part.
const maxContentChars = 8000

// Extractor implements model.SkillExtractor using an LLM provider.
type Extractor struct {
	provider Provider
	tmpl     *template.Template
	logger   *slog.Logger
}

var _ model.SkillExtractor = (*Extractor)(nil)

// NewExtractor creates an extractor that pulls tech stacks via the provider.
func NewExtractor(provider Provider, tmpl *template.Template, logger *slog.Logger) *Extractor {
	return &Extractor{
		provider: provider,
		tmpl:     tmpl,
		logger:   logger,
	}
}

// Extract sends the page content to the LLM and parses its JSON reply.
// Replies with no skills object, or with every category empty, are errors.
func (e *Extractor) Extract(ctx context.Context, p model.Posting, content string) (*model.Extraction, error) {
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	var promptBuf bytes.Buffer
	if err := e.tmpl.Execute(&promptBuf, struct{ Content string }{Content: content}); err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	raw, err := e.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return nil, fmt.Errorf("llm complete: %w", err)
	}

	ex, err := parseExtraction(raw)
	if err != nil {
		return nil, fmt.Errorf("parse extraction for %s: %w", p.URL, err)
	}

	e.logger.Debug("extracted tech stack",
		"url", p.URL,
		"skills", ex.Skills.Count(),
	)
	return ex, nil
}

// rawExtraction is the JSON shape the prompt asks for.
type rawExtraction struct {
	JobTitle string          `json:"job_title"`
	Company  string          `json:"company"`
	Skills   *model.SkillSet `json:"skills"`
}

// parseExtraction deserializes the LLM response. Models still wrap JSON in
// markdown fences now and then, so those are stripped first.
func parseExtraction(raw string) (*model.Extraction, error) {
	cleaned := stripFences(raw)

	var re rawExtraction
	if err := json.Unmarshal([]byte(cleaned), &re); err != nil {
		return nil, fmt.Errorf("unmarshal extraction JSON: %w", err)
	}
	if re.Skills == nil {
		return nil, fmt.Errorf("response carries no skills object")
	}
	if re.Skills.Empty() {
		return nil, fmt.Errorf("response carries no skills")
	}

	return &model.Extraction{
		Title:   cleanField(re.JobTitle),
		Company: cleanField(re.Company),
		Skills:  *re.Skills,
		Raw:     []byte(cleaned),
	}, nil
}

// stripFences removes the ``` markers models sometimes wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-3]
	}
	return strings.TrimSpace(s)
}

// cleanField trims a string field and maps the literal "null" some models
// emit to empty.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if s == "null" {
		return ""
	}
	return s
}
