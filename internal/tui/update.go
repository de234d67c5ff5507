package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/goalpost/internal/goals"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/optimistic"
)

// tickMsg is sent every second for countdown updates
type tickMsg time.Time

// changedMsg means a coordinator view changed
type changedMsg struct{}

// refreshErrMsg carries a failed background refresh
type refreshErrMsg struct{ err error }

// resultMsg reports how a remote mutation ended
type resultMsg struct {
	action string
	err    error
}

// loadedMsg reports the outcome of a full reload
type loadedMsg struct{ err error }

// Init loads both lists and starts the tick and change listeners
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), tickCmd(), m.waitForChange(), m.waitForError())
}

func tickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return changedMsg{}
	}
}

func (m Model) waitForError() tea.Cmd {
	return func() tea.Msg {
		return refreshErrMsg{err: <-m.errs}
	}
}

func (m Model) loadCmd() tea.Cmd {
	refresh := m.refresh
	return func() tea.Msg {
		return loadedMsg{err: refresh()}
	}
}

// awaitResult turns a coordinator result channel into a message
func awaitResult(action string, ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{action: action, err: <-ch}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		// Countdowns and the undo banner are recomputed on render
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case changedMsg:
		m.clampCursor()
		return m, m.waitForChange()

	case refreshErrMsg:
		m.message = goals.Reason(msg.err)
		return m, m.waitForError()

	case loadedMsg:
		if msg.err != nil {
			m.message = goals.Reason(msg.err)
		}
		m.clampCursor()
		return m, nil

	case resultMsg:
		return m.handleResult(msg)

	case tea.KeyMsg:
		// Handle mode-specific input
		switch m.mode {
		case ModeAddGoal, ModeEditGoal, ModeEditDeadline:
			return m.updateInput(msg)
		case ModeFilter:
			return m.updateFilter(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}
		return m.updateNormal(msg)
	}

	return m, nil
}

func (m Model) handleResult(msg resultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, optimistic.ErrUndoExpired) {
			m.message = "Too late to undo"
		} else {
			m.message = goals.Reason(msg.err)
		}
		m.log.Warn("Action failed", logger.F("action", msg.action), logger.Err(msg.err))
		m.clampCursor()
		return m, nil
	}

	m.message = msg.action
	m.clampCursor()
	// The other list saw nothing of this change
	other := m.other()
	ctx := m.ctx
	return m, func() tea.Msg {
		return loadedMsg{err: other.Refresh(ctx)}
	}
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		if m.pane == PaneSidebar {
			m.pane = PaneGoalList
		} else {
			m.pane = PaneSidebar
		}

	case key.Matches(msg, keys.Left):
		m.pane = PaneSidebar

	case key.Matches(msg, keys.Right):
		m.pane = PaneGoalList

	case key.Matches(msg, keys.Up):
		if m.pane == PaneSidebar {
			if m.typeCursor > 0 {
				m.typeCursor--
				m.goalCursor = 0
			}
		} else if m.goalCursor > 0 {
			m.goalCursor--
		}

	case key.Matches(msg, keys.Down):
		if m.pane == PaneSidebar {
			if m.typeCursor < len(model.Types) {
				m.typeCursor++
				m.goalCursor = 0
			}
		} else if m.goalCursor < len(m.visible())-1 {
			m.goalCursor++
		}

	// Vim: G = go to bottom
	case msg.String() == "G":
		m.goalCursor = len(m.visible()) - 1
		m.clampCursor()

	case key.Matches(msg, keys.Scope):
		if m.scope == optimistic.ScopeMine {
			m.scope = optimistic.ScopeAll
		} else {
			m.scope = optimistic.ScopeMine
		}
		m.goalCursor = 0
		m.message = "Showing " + scopeLabel(m.scope)

	case key.Matches(msg, keys.Refresh):
		m.message = "Refreshing..."
		return m, m.loadCmd()

	case key.Matches(msg, keys.Add):
		m.mode = ModeAddGoal
		m.input.SetValue("")
		m.input.Placeholder = "Goal text @ 2024-06-01 18:00"
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, keys.Edit):
		if g, ok := m.ownGoal(); ok {
			m.mode = ModeEditGoal
			m.input.SetValue(g.Content)
			m.input.Placeholder = "Edit goal..."
			m.input.Focus()
			m.input.CursorEnd()
			return m, textinput.Blink
		}

	case key.Matches(msg, keys.Deadline):
		if g, ok := m.ownGoal(); ok {
			m.mode = ModeEditDeadline
			m.input.SetValue("")
			if g.Deadline != nil {
				m.input.SetValue(g.Deadline.In(m.opts.Location).Format("2006-01-02 15:04"))
			}
			m.input.Placeholder = "2024-06-01 18:00 (empty clears)"
			m.input.Focus()
			m.input.CursorEnd()
			return m, textinput.Blink
		}

	case key.Matches(msg, keys.Done), key.Matches(msg, keys.Enter):
		if g, ok := m.ownGoal(); ok {
			next := model.StatusDone
			if g.Status == model.StatusDone {
				next = model.StatusDoingIt
			}
			return m, awaitResult(next.Label(), m.active().SetStatus(m.ctx, g.ID, next))
		}

	case key.Matches(msg, keys.DoingIt), key.Matches(msg, keys.NeedHelp), key.Matches(msg, keys.MarkDone):
		if g, ok := m.ownGoal(); ok {
			next := model.StatusDoingIt
			switch {
			case key.Matches(msg, keys.NeedHelp):
				next = model.StatusNeedHelp
			case key.Matches(msg, keys.MarkDone):
				next = model.StatusDone
			}
			return m, awaitResult(next.Label(), m.active().SetStatus(m.ctx, g.ID, next))
		}

	case key.Matches(msg, keys.Delete):
		if g, ok := m.ownGoal(); ok {
			ch := m.active().Delete(m.ctx, g.ID)
			m.clampCursor()
			m.message = fmt.Sprintf("Deleted: %s", truncate(g.Content, 30))
			return m, awaitResult("Deleted", ch)
		}

	case key.Matches(msg, keys.Undo):
		return m, awaitResult("Restored", m.active().Undo(m.ctx))

	// Filter/search
	case key.Matches(msg, keys.Filter):
		m.mode = ModeFilter
		m.input.SetValue(m.filterText)
		m.input.Placeholder = "/"
		m.input.Focus()
		return m, textinput.Blink

	// Clear filter with Escape
	case key.Matches(msg, keys.Escape):
		if m.filterText != "" {
			m.filterText = ""
			m.message = "Filter cleared"
		}

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp
	}

	return m, nil
}

// ownGoal returns the selected goal if the member may change it
func (m *Model) ownGoal() (model.Goal, bool) {
	g, ok := m.currentGoal()
	if !ok {
		return model.Goal{}, false
	}
	if g.OwnerID != m.opts.OwnerID {
		m.message = fmt.Sprintf("That goal belongs to %s", g.Handle())
		return model.Goal{}, false
	}
	return g, true
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil

	case key.Matches(msg, keys.Enter):
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.mode = ModeNormal
		m.input.Blur()

		switch mode {
		case ModeAddGoal:
			if value == "" {
				return m, nil
			}
			content, due := splitDeadline(value)
			draft := goals.Draft{
				Content:     content,
				Type:        m.selectedType(),
				DisplayName: m.opts.DisplayName,
				Nick:        m.opts.Nick,
			}
			if due != "" {
				draft.Deadline = due
			}
			// Create always lands in the owner's list
			mine := m.views[optimistic.ScopeMine]
			ctx := m.ctx
			return m, func() tea.Msg {
				g, err := mine.Create(ctx, draft)
				if err != nil {
					return resultMsg{action: "Post", err: err}
				}
				return resultMsg{action: fmt.Sprintf("Posted: %s", truncate(g.Content, 30))}
			}

		case ModeEditGoal:
			if g, ok := m.ownGoal(); ok && value != g.Content {
				return m, awaitResult("Updated", m.active().EditContent(m.ctx, g.ID, value))
			}

		case ModeEditDeadline:
			if g, ok := m.ownGoal(); ok {
				var due any
				if value != "" {
					due = value
				}
				return m, awaitResult("Deadline updated", m.active().EditDeadline(m.ctx, g.ID, due))
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.mode = ModeNormal
		m.filterText = ""
		m.input.Blur()
		m.clampCursor()
		return m, nil

	case key.Matches(msg, keys.Enter):
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	// Live filter as user types
	m.filterText = m.input.Value()
	m.goalCursor = 0
	return m, cmd
}

// splitDeadline splits "text @ deadline" input. Text without " @ " has no deadline.
func splitDeadline(value string) (content, due string) {
	idx := strings.LastIndex(value, " @ ")
	if idx < 0 {
		return value, ""
	}
	return strings.TrimSpace(value[:idx]), strings.TrimSpace(value[idx+3:])
}
