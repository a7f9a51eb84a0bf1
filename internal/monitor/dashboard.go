package monitor

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/mathrag/internal/feedback"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
	distributionBar = 30
)

// Model is the BubbleTea dashboard model.
type Model struct {
	serverURL  string
	client     *Client
	interval   time.Duration
	lastUpdate time.Time
	snapshot   Snapshot
	err        error
	quitting   bool

	ratingProgress progress.Model
}

// Snapshot holds the latest poll plus rating history for the sparkline.
type Snapshot struct {
	Analytics     feedback.Analytics
	Health        Health
	RatingHistory []float64
}

// k9s-inspired colors
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))
)

// NewModel creates a dashboard polling serverURL every interval.
func NewModel(serverURL string, interval time.Duration) Model {
	return Model{
		serverURL: serverURL,
		client:    NewClient(serverURL),
		interval:  interval,
		ratingProgress: progress.New(
			progress.WithGradient("#ff0000", "#00ff00"),
			progress.WithWidth(40),
		),
		snapshot: Snapshot{
			RatingHistory: make([]float64, 0, historySize),
		},
	}
}

// statusBadge renders the overall server status.
func statusBadge(h Health) string {
	switch h.Status {
	case "healthy":
		return healthyStyle.Render("✓ HEALTHY")
	case "degraded":
		return warningStyle.Render("⚠ DEGRADED")
	default:
		return errorStyle.Render("✗ UNKNOWN")
	}
}

// ratingBadge grades the average rating.
func ratingBadge(avg float64, total int) string {
	switch {
	case total == 0:
		return dimStyle.Render("[-]")
	case avg >= 4:
		return healthyStyle.Render("[✓]")
	case avg >= 2.5:
		return warningStyle.Render("[⚠]")
	default:
		return errorStyle.Render("[✗]")
	}
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type snapshotMsg Snapshot
type errMsg error

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchSnapshot(m.client),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchSnapshot polls analytics and health. Analytics failure is fatal to
// the poll; a failed health probe renders as unknown.
func fetchSnapshot(client *Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		analytics, err := client.Analytics(ctx)
		if err != nil {
			return errMsg(err)
		}

		health, err := client.Health(ctx)
		if err != nil {
			health = Health{Status: "unknown"}
		}

		return snapshotMsg{Analytics: analytics, Health: health}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.client)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchSnapshot(m.client),
		)

	case snapshotMsg:
		next := Snapshot(msg)
		next.RatingHistory = appendToHistory(m.snapshot.RatingHistory, next.Analytics.AverageRating)
		m.snapshot = next
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render("mathrag Feedback Dashboard")

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(errorStyle.Render("⚠ Cannot reach mathrag server") + "\n\n")
	b.WriteString(dimStyle.Render("URL: ") + valueStyle.Render(m.serverURL) + "\n")
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n\n")
	b.WriteString(dimStyle.Render("Please ensure:") + "\n")
	b.WriteString(dimStyle.Render("  1. mathrag is running and reachable") + "\n")
	b.WriteString(dimStyle.Render("  2. the feedback store is configured") + "\n\n")
	b.WriteString(footerStyle.Render("[q] quit  [r] retry") + "\n")

	return containerStyle.Render(header + "\n" + b.String())
}

func (m Model) renderDashboard() string {
	var b strings.Builder
	a := m.snapshot.Analytics
	h := m.snapshot.Health

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}

	b.WriteString(headerStyle.Render(" mathrag Monitor ") + "\n")
	fmt.Fprintf(&b, "%s   %s   %s\n",
		statusBadge(h),
		dimStyle.Render("Knowledge base:"),
		valueStyle.Render(FormatCount(h.KnowledgeBaseSize))+dimStyle.Render(" problems   "+lastUpdateStr))

	b.WriteString("\n" + sectionStyle.Render("┃ Feedback") + "\n")
	b.WriteString(labelStyle.Render("  Total: ") + valueStyle.Render(FormatCount(a.TotalFeedback)) + "\n")

	ratio := 0.0
	if a.TotalFeedback > 0 {
		ratio = min(a.AverageRating/feedback.MaxRating, 1.0)
	}
	b.WriteString(labelStyle.Render("  Average: ") +
		valueStyle.Render(FormatRating(a.AverageRating)) +
		" " + ratingBadge(a.AverageRating, a.TotalFeedback) + "\n")
	b.WriteString(labelStyle.Render("  Score: ") +
		m.ratingProgress.ViewAs(ratio) +
		" " + dimStyle.Render(FormatPercentage(ratio)) + "\n")
	b.WriteString(labelStyle.Render("  Trend: ") + createSparkline(m.snapshot.RatingHistory) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Rating Distribution") + "\n")
	maxCount := 0
	for _, c := range a.RatingDistribution {
		maxCount = max(maxCount, c)
	}
	for r := feedback.MaxRating; r >= feedback.MinRating; r-- {
		c := a.RatingDistribution[r]
		fmt.Fprintf(&b, "%s %s %s\n",
			labelStyle.Render(fmt.Sprintf("  %d★", r)),
			barStyle.Render(Bar(c, maxCount, distributionBar)),
			valueStyle.Render(fmt.Sprintf("%d", c)))
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Components") + "\n")
	names := make([]string, 0, len(h.Components))
	for name := range h.Components {
		names = append(names, name)
	}
	slices.Sort(names)
	if len(names) == 0 {
		b.WriteString(dimStyle.Render("  no component data") + "\n")
	}
	for _, name := range names {
		badge := healthyStyle.Render("[✓]")
		if !h.Components[name] {
			badge = errorStyle.Render("[✗]")
		}
		b.WriteString("  " + badge + " " + labelStyle.Render(name) + "\n")
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	b.WriteString("\n" + footer)

	return containerStyle.Render(b.String())
}
