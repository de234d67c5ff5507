package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/existflow/goalpost/internal/clock"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/optimistic"
)

// Pane represents which pane is focused
type Pane int

const (
	PaneSidebar Pane = iota
	PaneGoalList
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAddGoal
	ModeEditGoal
	ModeEditDeadline
	ModeFilter
	ModeHelp
)

// Options configures the TUI
type Options struct {
	OwnerID         string
	DisplayName     string
	Nick            string
	UndoWindow      time.Duration
	RefreshInterval time.Duration
	Location        *time.Location
	Logger          *logger.Logger
	Clock           clock.Clock // nil means the wall clock
}

// views holds one coordinator per list the TUI can show
type views map[optimistic.Scope]*optimistic.Coordinator

// Refresh reloads every list
func (v views) Refresh(ctx context.Context) error {
	var firstErr error
	for _, scope := range []optimistic.Scope{optimistic.ScopeMine, optimistic.ScopeAll} {
		if err := v[scope].Refresh(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Model is the main TUI model
type Model struct {
	ctx   context.Context
	opts  Options
	clock clock.Clock
	log   *logger.Logger

	views views
	scope optimistic.Scope

	// Background refresh
	refresh func() error
	changes chan struct{} // Nudged by the coordinators on every view change
	errs    chan error    // Background refresh failures

	// UI state
	width      int
	height     int
	pane       Pane
	mode       Mode
	typeCursor int // 0 is "All", then model.Types
	goalCursor int

	// Input
	input textinput.Model

	// Filter (vim-style)
	filterText string

	message string
}

// NewModel creates a new TUI model over repo
func NewModel(ctx context.Context, repo optimistic.Repository, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	opts.Logger.Info("Initializing TUI model", logger.F("owner", opts.OwnerID))

	ti := textinput.New()
	ti.Placeholder = "Enter goal..."
	ti.CharLimit = 256
	ti.Width = 50

	m := Model{
		ctx:     ctx,
		opts:    opts,
		clock:   opts.Clock,
		log:     opts.Logger.WithFields(logger.F("component", "tui")),
		views:   views{},
		scope:   optimistic.ScopeMine,
		pane:    PaneGoalList,
		mode:    ModeNormal,
		input:   ti,
		changes: make(chan struct{}, 1), // Buffered to avoid blocking
		errs:    make(chan error, 1),
	}

	for _, scope := range []optimistic.Scope{optimistic.ScopeMine, optimistic.ScopeAll} {
		coordOpts := []optimistic.Option{
			optimistic.WithClock(opts.Clock),
			optimistic.WithLogger(opts.Logger),
			optimistic.WithLocation(opts.Location),
			optimistic.WithScope(scope),
		}
		if opts.UndoWindow > 0 {
			coordOpts = append(coordOpts, optimistic.WithUndoWindow(opts.UndoWindow))
		}
		c := optimistic.New(repo, opts.OwnerID, coordOpts...)
		c.SetOnChange(func([]model.Goal) { m.nudge() })
		m.views[scope] = c
	}
	m.refresh = func() error { return m.views.Refresh(m.ctx) }

	return m
}

// nudge signals a view change without blocking; one pending signal is enough
func (m Model) nudge() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// reportError hands a background failure to the UI without blocking
func (m Model) reportError(err error) {
	select {
	case m.errs <- err:
	default:
	}
}

func (m Model) active() *optimistic.Coordinator {
	return m.views[m.scope]
}

func (m Model) other() *optimistic.Coordinator {
	if m.scope == optimistic.ScopeMine {
		return m.views[optimistic.ScopeAll]
	}
	return m.views[optimistic.ScopeMine]
}

// selectedType returns the sidebar filter, "" for all types
func (m Model) selectedType() model.Type {
	if m.typeCursor == 0 || m.typeCursor > len(model.Types) {
		return ""
	}
	return model.Types[m.typeCursor-1]
}

// visible returns the goals the list pane shows
func (m Model) visible() []model.Goal {
	list := model.FilterByType(m.active().Goals(), m.selectedType())
	if m.filterText == "" {
		return list
	}
	filter := strings.ToLower(m.filterText)
	out := list[:0:0]
	for _, g := range list {
		if strings.Contains(strings.ToLower(g.Content), filter) ||
			strings.Contains(strings.ToLower(g.Handle()), filter) {
			out = append(out, g)
		}
	}
	return out
}

func (m Model) currentGoal() (model.Goal, bool) {
	list := m.visible()
	if m.goalCursor < 0 || m.goalCursor >= len(list) {
		return model.Goal{}, false
	}
	return list[m.goalCursor], true
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if m.goalCursor >= n {
		m.goalCursor = n - 1
	}
	if m.goalCursor < 0 {
		m.goalCursor = 0
	}
}

func scopeLabel(s optimistic.Scope) string {
	if s == optimistic.ScopeAll {
		return "Everyone"
	}
	return "My goals"
}
