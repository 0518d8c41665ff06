// Package scrape fetches job posting pages and reduces them to readable text.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"stackscout/internal/model"
)

// browserUserAgent makes career-site requests look like a regular browser.
// Many job boards serve bot requests an empty shell.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// MinContentLen is the floor below which a scrape counts as failed. Login
// walls and skeleton pages come back shorter than any real posting.
const MinContentLen = 500

// ErrContentTooShort marks a page that loaded but carried no usable text.
var ErrContentTooShort = errors.New("page content too short")

// PageScraper fetches a posting page over plain HTTP and strips it down to
// its visible text.
type PageScraper struct {
	client *http.Client
}

var _ model.PageFetcher = (*PageScraper)(nil)

// NewPageScraper creates a scraper using the given HTTP client.
func NewPageScraper(client *http.Client) *PageScraper {
	return &PageScraper{client: client}
}

// FetchText retrieves url and returns the page's visible text with scripts,
// styles and markup removed. Pages shorter than MinContentLen return
// ErrContentTooShort. Non-200 responses return a *model.HTTPError so retry
// logic can classify them.
func (s *PageScraper) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("fetching %s", url),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", url, err)
	}

	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")

	if len(text) < MinContentLen {
		return "", fmt.Errorf("%w: %d chars from %s", ErrContentTooShort, len(text), url)
	}
	return text, nil
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
