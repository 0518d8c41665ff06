// Package source lists candidate job postings from the SimplifyJobs
// internships index on GitHub.
package source

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stackscout/internal/model"
)

// DefaultReadmeURL is the raw README of the internships index. Fetching the
// raw file skips the GitHub web UI and needs no JavaScript.
const DefaultReadmeURL = "https://raw.githubusercontent.com/SimplifyJobs/Summer2026-Internships/dev/README.md"

// badgeRegex matches the emoji badges the index decorates roles with.
var badgeRegex = regexp.MustCompile(`[🎓🔥🛂🇺🇸🔒]+`)

// GitHubSource scrapes postings out of the index README. The README is
// markdown with an embedded HTML table, one <tr> per posting:
// company, role, location, apply link, age.
type GitHubSource struct {
	url    string
	client *http.Client
}

var _ model.Source = (*GitHubSource)(nil)

// NewGitHubSource creates a source reading from url, or DefaultReadmeURL if
// empty.
func NewGitHubSource(url string, client *http.Client) *GitHubSource {
	if url == "" {
		url = DefaultReadmeURL
	}
	return &GitHubSource{url: url, client: client}
}

// FetchPostings downloads the README and extracts every posting row. Rows
// whose apply link points back at an aggregator (simplify.jobs, github.com)
// are dropped. Fetch and parse failures wrap model.ErrSourceUnavailable.
func (s *GitHubSource) FetchPostings(ctx context.Context) ([]model.Posting, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building readme request: %v", model.ErrSourceUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching readme: %v", model.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching readme: unexpected status %d", model.ErrSourceUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing readme: %v", model.ErrSourceUnavailable, err)
	}

	var (
		postings       []model.Posting
		currentCompany string
	)
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}

		company := cleanText(cells.Eq(0).Text())
		role := cleanText(badgeRegex.ReplaceAllString(cells.Eq(1).Text(), ""))
		applyURL, ok := cells.Eq(3).Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		applyURL = strings.TrimSpace(applyURL)

		// ↳ marks a sub-listing under the previous row's company.
		if company == "↳" {
			company = currentCompany
			if company == "" {
				company = "Unknown"
			}
		} else {
			currentCompany = company
		}

		if strings.Contains(applyURL, "simplify.jobs") || strings.Contains(applyURL, "github.com") {
			return
		}
		if applyURL == "" || role == "" {
			return
		}

		postings = append(postings, model.Posting{
			Title:   role,
			Company: company,
			URL:     applyURL,
		})
	})

	return postings, nil
}

// cleanText collapses whitespace and non-breaking spaces in a table cell.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}
