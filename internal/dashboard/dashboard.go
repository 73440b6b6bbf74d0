// Package dashboard renders a live terminal view of an in-progress
// run, polling a metrics.Collector's cached aggregate on a tick.
// Grounded on internal/tui/dashboard.go's box-grid layout and
// sparkline (moved here verbatim in spirit, rewired to
// model.Aggregate's fields instead of models.Report's byte-throughput
// oriented ones) and internal/tui/util.go's formatting helpers.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/deli-labs/sayl/internal/metrics"
	"github.com/deli-labs/sayl/pkg/model"
)

// TickInterval is how often the dashboard polls the collector's
// cached aggregate; matched to metrics.DefaultCacheTTL so every tick
// sees fresh numbers without forcing extra aggregation work.
const TickInterval = metrics.DefaultCacheTTL

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")).Bold(true).MarginBottom(1)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginRight(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	successSty  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failSty     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model is the bubbletea model driving the live view.
type Model struct {
	targetURL string
	duration  time.Duration
	collector *metrics.Collector
	start     time.Time
	progress  progress.Model
	agg       model.Aggregate
	done      bool
}

// New builds a dashboard Model for a run against targetURL, expected
// to last duration, reading snapshots from collector.
func New(targetURL string, duration time.Duration, collector *metrics.Collector) Model {
	return Model{
		targetURL: targetURL,
		duration:  duration,
		collector: collector,
		start:     time.Now(),
		progress:  progress.New(progress.WithDefaultGradient()),
	}
}

type tickMsg time.Time

// DoneMsg signals the run has finished; sending it to the program
// switches the dashboard to its terminal frame.
type DoneMsg struct{}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.agg = m.collector.GetCachedAggregate(TickInterval)
		if m.done {
			return m, nil
		}
		return m, m.tick()
	case DoneMsg:
		m.done = true
		m.agg = m.collector.GetCachedAggregate(0)
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render(fmt.Sprintf("running against %s", m.targetURL)))
	s.WriteString("\n\n")

	elapsed := time.Since(m.start)
	var pct float64
	if m.duration > 0 {
		pct = float64(elapsed) / float64(m.duration)
	}
	if pct > 1.0 {
		pct = 1.0
	}
	s.WriteString(m.progress.ViewAs(pct))
	s.WriteString(fmt.Sprintf("\n %s / %s\n\n", elapsed.Round(time.Second), m.duration))

	a := m.agg

	box1 := boxStyle.Render(fmt.Sprintf(
		"TPS:      %s\nTotal:    %s\n%s",
		valStyle.Render(fmt.Sprintf("%.1f", a.TPSInstant)),
		valStyle.Render(fmt.Sprintf("%d", a.Total)),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")).Render(sparkline(a.TimeSeries)),
	))

	box2 := boxStyle.Render(fmt.Sprintf(
		"P50: %s  P95: %s\nP99: %s  Max: %s",
		valStyle.Render(fmt.Sprintf("%.1fms", a.P50Ms)),
		valStyle.Render(fmt.Sprintf("%.1fms", a.P95Ms)),
		valStyle.Render(fmt.Sprintf("%.1fms", a.P99Ms)),
		valStyle.Render(fmt.Sprintf("%.1fms", a.MaxLatencyMs)),
	))

	box3 := boxStyle.Render(fmt.Sprintf(
		"Success:  %s\nFail:     %s  (%s)",
		successSty.Render(fmt.Sprintf("%d", a.Successes)),
		failSty.Render(fmt.Sprintf("%d", a.Failures)),
		valStyle.Render(fmt.Sprintf("%.2f%%", a.ErrorRatePct)),
	))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, box1, box2, box3))
	s.WriteString("\n")

	if len(a.TopErrors) > 0 {
		s.WriteString(labelStyle.Render("top errors:") + "\n")
		for _, e := range a.TopErrors {
			s.WriteString(fmt.Sprintf("  %s %s x%d\n", failSty.Render(string(e.ErrorKind)), labelStyle.Render(e.Message), e.Count))
		}
	}

	return s.String()
}

// sparkline renders the last 20 buckets' request counts as a bar
// glyph string, matching internal/tui/util.go's renderSparkline.
func sparkline(buckets []model.BucketStats) string {
	if len(buckets) == 0 {
		return ""
	}
	start := 0
	if len(buckets) > 20 {
		start = len(buckets) - 20
	}
	levels := []string{" ", "▂", "▃", "▄", "▅", "▆", "▇", "█"}
	var max int64
	for _, b := range buckets[start:] {
		if b.Count > max {
			max = b.Count
		}
	}
	var sb strings.Builder
	for _, b := range buckets[start:] {
		if max == 0 {
			sb.WriteString(levels[0])
			continue
		}
		idx := int((b.Count * 7) / max)
		if idx > 7 {
			idx = 7
		}
		sb.WriteString(levels[idx])
	}
	return sb.String()
}
