// Package report renders stored data for people: plain-text stats for the
// CLI and an interactive dashboard for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"stackscout/internal/model"
)

// RenderStats formats run statistics for plain terminal output.
func RenderStats(stats *model.RunStats, window time.Duration) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	b.WriteString(rule + "\n")
	b.WriteString("JOB DATABASE STATISTICS\n")
	b.WriteString(rule + "\n\n")

	fmt.Fprintf(&b, "Total jobs:            %d\n", stats.TotalJobs)
	fmt.Fprintf(&b, "Added in last %s:     %d\n", formatWindow(window), stats.WindowJobs)
	fmt.Fprintf(&b, "Unique skills tracked: %d\n", stats.UniqueSkills)
	fmt.Fprintf(&b, "Skill references:      %d\n", stats.SkillLinks)
	fmt.Fprintf(&b, "Companies:             %d\n", stats.Companies)

	if len(stats.Categories) > 0 {
		b.WriteString("\nJobs by Category:\n")
		for _, c := range stats.Categories {
			fmt.Fprintf(&b, "   %s: %d jobs\n", c.Category, c.Jobs)
		}
	}

	if len(stats.TopCompanies) > 0 {
		b.WriteString("\nTop Companies:\n")
		for _, c := range stats.TopCompanies {
			fmt.Fprintf(&b, "   %s: %d jobs\n", c.Company, c.Jobs)
		}
	}

	if len(stats.TopSkills) > 0 {
		b.WriteString("\nTop Skills (by job frequency):\n")
		for _, s := range stats.TopSkills {
			fmt.Fprintf(&b, "   %s (%s): %d jobs\n", s.Name, s.Category, s.Jobs)
		}
	}

	b.WriteString(rule + "\n")
	return b.String()
}

// RenderFailed formats the failed-URL listing.
func RenderFailed(failed []model.FailedURL) string {
	if len(failed) == 0 {
		return "No failed URLs.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d failed URLs:\n\n", len(failed))
	for _, f := range failed {
		b.WriteString(f.URL + "\n")
		fmt.Fprintf(&b, "   attempts: %d   last: %s\n", f.Attempts, f.LastAttempt.Format("2006-01-02 15:04"))
		fmt.Fprintf(&b, "   reason: %s\n\n", truncate(f.Reason, 120))
	}
	return b.String()
}

// formatWindow renders a duration like 24h0m0s as 24h.
func formatWindow(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
