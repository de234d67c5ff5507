package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/goalpost/internal/model"
)

// Color palette based on TUI design
var (
	// Countdown colors
	Overdue = lipgloss.Color("#FF6B6B") // Red
	DueSoon = lipgloss.Color("#FFB347") // Orange
	DueLate = lipgloss.Color("#4ECDC4") // Blue

	// Status colors
	Completed = lipgloss.Color("#95E1A3") // Green
	Helping   = lipgloss.Color("#FFE66D") // Yellow
	Working   = lipgloss.Color("#4ECDC4") // Blue

	// UI colors
	Primary    = lipgloss.Color("#4ECDC4")
	Secondary  = lipgloss.Color("#6C757D")
	Background = lipgloss.Color("#1a1a2e")
	Surface    = lipgloss.Color("#16213e")
	Text       = lipgloss.Color("#FFFFFF")
	TextMuted  = lipgloss.Color("#888888")
	Border     = lipgloss.Color("#333333")
	Highlight  = lipgloss.Color("#4ECDC4")
)

// Styles
var (
	// App container
	AppStyle = lipgloss.NewStyle().
			Background(Background)

	// Header
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Padding(0, 1)

	// Sidebar
	SidebarStyle = lipgloss.NewStyle().
			Width(20).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(Border).
			Padding(1, 1)

	// Goal list
	GoalListStyle = lipgloss.NewStyle().
			Padding(1, 2)

	// Type item
	TypeItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	TypeItemSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	// Goal item
	GoalItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	GoalItemSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	GoalDoneStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Strikethrough(true).
			Padding(0, 1)

	// Status badges
	DoingItStyle  = lipgloss.NewStyle().Foreground(Working)
	NeedHelpStyle = lipgloss.NewStyle().Foreground(Helping).Bold(true)
	DoneStyle     = lipgloss.NewStyle().Foreground(Completed)

	// Countdowns
	OverdueStyle = lipgloss.NewStyle().Foreground(Overdue).Bold(true)
	DueSoonStyle = lipgloss.NewStyle().Foreground(DueSoon)
	DueLateStyle = lipgloss.NewStyle().Foreground(DueLate)

	// Undo banner
	UndoBannerStyle = lipgloss.NewStyle().
			Foreground(Background).
			Background(DueSoon).
			Bold(true).
			Padding(0, 1)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	// Input modal
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// GetStatusStyle returns the style for a given status
func GetStatusStyle(status model.Status) lipgloss.Style {
	switch status {
	case model.StatusDone:
		return DoneStyle
	case model.StatusNeedHelp:
		return NeedHelpStyle
	default:
		return DoingItStyle
	}
}

// FormatStatus returns a formatted status badge
func FormatStatus(status model.Status) string {
	return GetStatusStyle(status).Render(fmt.Sprintf("%-9s", status.Label()))
}

// FormatCountdown colors the countdown by how close the deadline is
func FormatCountdown(g model.Goal, now time.Time) string {
	text := fmt.Sprintf("%-11s", Countdown(g, now))
	switch {
	case g.Deadline == nil:
		return HelpStyle.Render(text)
	case g.IsExpired(now):
		return OverdueStyle.Render(text)
	case g.Remaining(now) < time.Hour:
		return DueSoonStyle.Render(text)
	default:
		return DueLateStyle.Render(text)
	}
}
