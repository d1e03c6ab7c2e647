package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/thumbatlas/pkg/status"
)

// Progress bar styles
var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
	listDimStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

const barWidth = 40

// =============================================================================
// WatchModel - Live status display
// =============================================================================

type (
	tickMsg   struct{}
	statusMsg struct {
		st  status.Status
		err error
	}
)

// WatchModel is the bubbletea model that polls the status record until the
// run reaches a terminal state.
type WatchModel struct {
	Status status.Status
	Err    error

	ctx      context.Context
	read     func(context.Context) (status.Status, error)
	interval time.Duration
	done     bool
}

// newWatchModel creates a watch model that polls read every interval.
func newWatchModel(ctx context.Context, read func(context.Context) (status.Status, error), interval time.Duration) WatchModel {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return WatchModel{
		Status:   status.Unknown(),
		ctx:      ctx,
		read:     read,
		interval: interval,
	}
}

func (m WatchModel) Init() tea.Cmd {
	return m.poll
}

func (m WatchModel) poll() tea.Msg {
	st, err := m.read(m.ctx)
	return statusMsg{st: st, err: err}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, m.poll
	case statusMsg:
		if msg.err != nil {
			m.Err = msg.err
			m.done = true
			return m, tea.Quit
		}
		m.Status = msg.st
		if m.Status.Status.Terminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, m.tick()
	}
	return m, nil
}

func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Atlas generation"))
	b.WriteString("\n\n")
	b.WriteString(renderBar(m.Status.Progress, barWidth))
	b.WriteString(" ")
	b.WriteString(StyleNumber.Render(fmt.Sprintf("%3d%%", m.Status.Progress)))
	b.WriteString("\n")

	msg := m.Status.Message
	switch m.Status.Status {
	case status.StateComplete:
		msg = styleIconSuccess.Render(iconSuccess) + " " + msg
	case status.StateError:
		msg = styleIconError.Render(iconError) + " " + msg
	default:
		msg = styleIconInfo.Render(iconInfo) + " " + msg
	}
	b.WriteString(msg)
	b.WriteString("\n")

	if m.Status.Phase != "" {
		b.WriteString(listDimStyle.Render("phase " + string(m.Status.Phase)))
		b.WriteString("\n")
	}
	if m.Err != nil {
		b.WriteString(styleIconError.Render(m.Err.Error()))
		b.WriteString("\n")
	}
	if !m.done {
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render("q quit"))
		b.WriteString("\n")
	}
	return b.String()
}

// renderBar draws a progress bar of width cells for percent in [0,100].
func renderBar(percent, width int) string {
	percent = min(100, max(0, percent))
	full := percent * width / 100
	return barFullStyle.Render(strings.Repeat("█", full)) +
		barEmptyStyle.Render(strings.Repeat("░", width-full))
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
