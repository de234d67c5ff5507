package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/optimistic"
)

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	// Build the layout
	sidebar := m.renderSidebar()
	goalList := m.renderGoalList()
	statusBar := m.renderStatusBar()

	// Combine sidebar and goal list
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, goalList)

	// Add modal if in input mode
	if m.mode == ModeAddGoal || m.mode == ModeEditGoal || m.mode == ModeEditDeadline {
		modal := m.renderModal()
		mainContent = lipgloss.Place(
			m.width, m.height-2,
			lipgloss.Center, lipgloss.Center,
			modal,
			lipgloss.WithWhitespaceChars(" "),
		)
	}

	if m.mode == ModeHelp {
		mainContent = m.renderHelp()
	}

	// Combine with status bar (filter input shows inline here)
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, statusBar)
}

func (m Model) renderSidebar() string {
	sidebarWidth := 22
	var s string

	// Header with time
	now := m.clock.Now().In(m.opts.Location).Format("15:04:05")
	s += lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("Goalpost") + "\n"
	s += HelpStyle.Render(now) + "\n"
	s += lipgloss.NewStyle().Foreground(Border).Render("─────────────────") + "\n"
	s += lipgloss.NewStyle().Bold(true).Render(scopeLabel(m.scope)) + "\n\n"

	all := m.active().Goals()
	labels := append([]string{"All"}, typeLabels()...)
	for i, label := range labels {
		list := all
		if i > 0 {
			list = model.FilterByType(all, model.Types[i-1])
		}
		active := 0
		for _, g := range list {
			if g.Status != model.StatusDone {
				active++
			}
		}

		cursor := "  "
		style := TypeItemStyle
		if i == m.typeCursor {
			cursor = "❯ "
			if m.pane == PaneSidebar {
				style = TypeItemSelectedStyle
			}
		}

		line := fmt.Sprintf("%s %-9s %d/%d", cursor, truncate(label, 9), active, len(list))
		s += style.Render(line) + "\n"
	}

	s += "\n" + lipgloss.NewStyle().Foreground(Border).Render("─────────────────") + "\n"
	s += HelpStyle.Render("m mine/everyone")

	return SidebarStyle.Width(sidebarWidth).Height(m.height - 2).Render(s)
}

func typeLabels() []string {
	out := make([]string, len(model.Types))
	for i, t := range model.Types {
		out[i] = t.Label()
	}
	return out
}

func (m Model) renderGoalList() string {
	width := m.width - 24
	var s string

	goals := m.visible()
	now := m.clock.Now()

	// Header
	active := 0
	for _, g := range goals {
		if g.Status != model.StatusDone {
			active++
		}
	}
	title := scopeLabel(m.scope)
	if t := m.selectedType(); t != "" {
		title += " · " + t.Label()
	}
	header := fmt.Sprintf("%s (%d active)", title, active)
	s += lipgloss.NewStyle().Bold(true).Foreground(Primary).Render(header) + "\n"
	s += lipgloss.NewStyle().Foreground(Border).Render(repeat("─", width-4)) + "\n\n"

	if len(goals) == 0 {
		s += HelpStyle.Render("  No goals. Press 'a' to post one.")
	}

	showOwner := m.scope == optimistic.ScopeAll
	contentWidth := width - 36
	if showOwner {
		contentWidth -= 11
	}
	if contentWidth < 10 {
		contentWidth = 10
	}

	for i, g := range goals {
		cursor := "  "
		style := GoalItemStyle
		if i == m.goalCursor && m.pane == PaneGoalList {
			cursor = "❯ "
			style = GoalItemSelectedStyle
		}

		icon := "[ ]"
		switch g.Status {
		case model.StatusDone:
			icon = "[x]"
			style = GoalDoneStyle
		case model.StatusNeedHelp:
			icon = "[?]"
		}

		// Render parts separately to avoid style nesting issues
		line := style.Render(cursor + icon)
		if showOwner {
			line += HelpStyle.Render(fmt.Sprintf(" %-10s", truncate(g.Handle(), 10)))
		}
		line += style.Render(fmt.Sprintf(" %-*s ", contentWidth, truncate(g.Content, contentWidth)))
		line += FormatCountdown(g, now) + " " + FormatStatus(g.Status)

		s += line + "\n"
	}

	return GoalListStyle.Width(width).Height(m.height - 2).Render(s)
}

func (m Model) renderStatusBar() string {
	// When in filter mode, show inline search input (like vim)
	if m.mode == ModeFilter {
		matches := ""
		if m.filterText != "" {
			matches = fmt.Sprintf(" [%d matches]", len(m.visible()))
		}
		return StatusBarStyle.Width(m.width).Render("/" + m.input.View() + matches)
	}

	// An open undo window takes over the bar
	if p, ok := m.active().UndoPending(); ok {
		left := p.ExpiresAt.Sub(m.clock.Now()).Seconds()
		secs := int(math.Ceil(left))
		if secs < 0 {
			secs = 0
		}
		banner := UndoBannerStyle.Render(fmt.Sprintf("Deleted \"%s\"  u to undo (%ds)", truncate(p.Goal.Content, 30), secs))
		return StatusBarStyle.Width(m.width).Render(banner)
	}

	help := "/:search  a:post  e:edit  D:deadline  x:done  1-3:status  d:del  u:undo  m:view  ?:help  q:quit"
	if m.filterText != "" {
		help = fmt.Sprintf("/%s  [%d matches]  Esc:clear", m.filterText, len(m.visible()))
	} else if m.message != "" {
		help = m.message
	}

	return StatusBarStyle.Width(m.width).Render(help)
}

func (m Model) renderModal() string {
	title := "Post Goal"
	switch m.mode {
	case ModeEditGoal:
		title = "Edit Goal"
	case ModeEditDeadline:
		title = "Edit Deadline"
	}
	if t := m.selectedType(); t != "" && m.mode == ModeAddGoal {
		title = fmt.Sprintf("Post %s Goal", t.Label())
	}

	content := lipgloss.NewStyle().Bold(true).Render(title) + "\n\n"
	content += m.input.View() + "\n\n"
	if m.mode == ModeAddGoal {
		content += HelpStyle.Render("Add a deadline with: text @ 2024-06-01 18:00") + "\n"
	}
	content += HelpStyle.Render("Enter:save  Esc:cancel")

	return ModalStyle.Render(content)
}

func (m Model) renderHelp() string {
	help := `
╭─── Keyboard Shortcuts ───╮
│                          │
│  Navigation              │
│  ──────────              │
│  j/↓    Move down        │
│  k/↑    Move up          │
│  h/l    Switch pane      │
│  Tab    Switch pane      │
│  G      Go to bottom     │
│  m      Mine/Everyone    │
│                          │
│  Actions                 │
│  ───────                 │
│  a       Post goal       │
│  e       Edit text       │
│  D       Edit deadline   │
│  x/Enter Toggle done     │
│  1/2/3   Doing/Help/Done │
│  d       Delete          │
│  u       Undo delete     │
│  r       Refresh         │
│                          │
│  Other                   │
│  ─────                   │
│  /       Search          │
│  ?       Toggle help     │
│  q       Quit            │
│                          │
╰──────────────────────────╯

     Press any key to close
`
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, strings.TrimPrefix(help, "\n"))
}
