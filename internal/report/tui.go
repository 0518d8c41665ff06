package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stackscout/internal/model"
)

// StatsReader loads the aggregate view the dashboard renders.
type StatsReader interface {
	Stats(ctx context.Context, topN int, window time.Duration) (*model.RunStats, error)
}

const (
	dashboardTopN   = 15
	dashboardWindow = 24 * time.Hour
	maxBarWidth     = 30
)

var tabNames = []string{"Overview", "Skills", "Companies", "Recent"}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Foreground(lipgloss.Color("15")). // bright white
			Background(lipgloss.Color("24"))  // dark blue bg

	inactiveTabStyle = lipgloss.NewStyle().
				Padding(0, 2).
				Foreground(lipgloss.Color("245")) // mid gray

	contentBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	statLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Width(24)

	statValueStyle = lipgloss.NewStyle()

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	rankStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	itemTitleStyle = lipgloss.NewStyle().
			Bold(true)

	itemSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
)

// statsLoadedMsg is sent when an async stats load completes.
type statsLoadedMsg struct {
	stats *model.RunStats
	err   error
}

type dashModel struct {
	reader  StatsReader
	stats   *model.RunStats
	loading bool
	loadErr string

	tab      int
	viewport viewport.Model
	width    int
	height   int
	ready    bool
}

func (m dashModel) Init() tea.Cmd {
	return m.loadStatsCmd()
}

func (m dashModel) loadStatsCmd() tea.Cmd {
	reader := m.reader
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		stats, err := reader.Stats(ctx, dashboardTopN, dashboardWindow)
		return statsLoadedMsg{stats: stats, err: err}
	}
}

func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case statsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.loadErr = fmt.Sprintf("failed to load stats: %v", msg.err)
		} else {
			m.loadErr = ""
			m.stats = msg.stats
		}
		m.recalcContent()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "right", "l":
			m.tab = (m.tab + 1) % len(tabNames)
			m.recalcContent()
			m.viewport.SetYOffset(0)
			return m, nil
		case "shift+tab", "left", "h":
			m.tab = (m.tab + len(tabNames) - 1) % len(tabNames)
			m.recalcContent()
			m.viewport.SetYOffset(0)
			return m, nil
		case "r":
			if !m.loading {
				m.loading = true
				m.recalcContent()
				return m, m.loadStatsCmd()
			}
			return m, nil
		}

		// Forward scrolling keys (up/down/pgup/pgdn) to the viewport.
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *dashModel) recalcLayout() {
	// Tab bar (1) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	contentWidth := max(m.width-2, 20)
	contentHeight := max(m.height-4, 5)

	if !m.ready {
		m.viewport = viewport.New(contentWidth, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = contentHeight
	}

	m.recalcContent()
}

func (m *dashModel) recalcContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTab())
}

func (m dashModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var tabs []string
	for i, name := range tabNames {
		if i == m.tab {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	content := contentBorderStyle.Width(m.viewport.Width).Render(m.viewport.View())

	statusText := " ←/→/Tab switch  ↑/↓ scroll  r refresh  q quit"
	if m.loading {
		statusText = " loading..." + statusText
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return tabBar + "\n" + content + "\n" + statusBar
}

func (m dashModel) renderTab() string {
	if m.loadErr != "" {
		return "\n  " + errorStyle.Render("⚠ "+m.loadErr)
	}
	if m.stats == nil {
		return "\n  " + hintStyle.Render("loading stats...")
	}

	switch m.tab {
	case 0:
		return m.renderOverview()
	case 1:
		return m.renderSkills()
	case 2:
		return m.renderCompanies()
	default:
		return m.renderRecent()
	}
}

func (m dashModel) renderOverview() string {
	s := m.stats
	var b strings.Builder

	addStat := func(label string, value int) {
		b.WriteString(statLabelStyle.Render(label))
		b.WriteString(statValueStyle.Render(fmt.Sprintf("%d", value)))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	addStat("Total jobs", s.TotalJobs)
	addStat("Added in last 24h", s.WindowJobs)
	addStat("Unique skills", s.UniqueSkills)
	addStat("Skill references", s.SkillLinks)
	addStat("Companies", s.Companies)

	if len(s.Categories) > 0 {
		b.WriteString("\n" + itemTitleStyle.Render("Jobs by Category") + "\n\n")
		maxJobs := 0
		for _, c := range s.Categories {
			maxJobs = max(maxJobs, c.Jobs)
		}
		for _, c := range s.Categories {
			b.WriteString(fmt.Sprintf("  %-28s %s %d\n", c.Category, bar(c.Jobs, maxJobs), c.Jobs))
		}
	}

	return b.String()
}

func (m dashModel) renderSkills() string {
	s := m.stats
	if len(s.TopSkills) == 0 {
		return "\n  " + hintStyle.Render("no skill data yet, run a scrape pass first")
	}

	var b strings.Builder
	b.WriteString("\n" + itemTitleStyle.Render("Top Skills (by job frequency)") + "\n\n")

	maxJobs := s.TopSkills[0].Jobs
	for i, sk := range s.TopSkills {
		rank := rankStyle.Render(fmt.Sprintf("%2d.", i+1))
		name := fmt.Sprintf("%-20s", sk.Name)
		category := itemSubtitleStyle.Render(fmt.Sprintf("%-12s", sk.Category))
		b.WriteString(fmt.Sprintf("  %s %s %s %s %d\n", rank, name, category, bar(sk.Jobs, maxJobs), sk.Jobs))
	}

	return b.String()
}

func (m dashModel) renderCompanies() string {
	s := m.stats
	if len(s.TopCompanies) == 0 {
		return "\n  " + hintStyle.Render("no company data yet")
	}

	var b strings.Builder
	b.WriteString("\n" + itemTitleStyle.Render("Top Companies") + "\n\n")

	maxJobs := s.TopCompanies[0].Jobs
	for i, c := range s.TopCompanies {
		rank := rankStyle.Render(fmt.Sprintf("%2d.", i+1))
		name := fmt.Sprintf("%-28s", c.Company)
		b.WriteString(fmt.Sprintf("  %s %s %s %d\n", rank, name, bar(c.Jobs, maxJobs), c.Jobs))
	}

	return b.String()
}

func (m dashModel) renderRecent() string {
	s := m.stats
	if len(s.Recent) == 0 {
		return "\n  " + hintStyle.Render("no jobs stored yet")
	}

	var b strings.Builder
	b.WriteString("\n" + itemTitleStyle.Render("Recent Jobs") + "\n\n")

	for _, j := range s.Recent {
		b.WriteString("  " + itemTitleStyle.Render(j.Title) + "\n")
		b.WriteString("  " + itemSubtitleStyle.Render(fmt.Sprintf("%s · %s", j.Company, j.CreatedAt.Format("2006-01-02"))) + "\n")
		if len(j.Skills) > 0 {
			b.WriteString("  " + itemSubtitleStyle.Render(strings.Join(j.Skills, ", ")) + "\n")
		}
		b.WriteByte('\n')
	}

	return b.String()
}

// bar renders a proportional block bar for count against the group maximum.
func bar(count, maxCount int) string {
	if maxCount <= 0 {
		return ""
	}
	width := count * maxBarWidth / maxCount
	if width < 1 {
		width = 1
	}
	return barStyle.Render(strings.Repeat("█", width))
}

// RunDashboard launches the interactive stats dashboard and blocks until the
// user quits.
func RunDashboard(reader StatsReader) error {
	m := dashModel{reader: reader, loading: true}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
