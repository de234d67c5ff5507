// Package optimistic keeps a local view of goals that mutations change immediately,
// before the store confirms them, and puts back when the store refuses.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/existflow/goalpost/internal/clock"
	"github.com/existflow/goalpost/internal/deadline"
	"github.com/existflow/goalpost/internal/goals"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/model"
)

// DefaultUndoWindow is how long a delete can be taken back
const DefaultUndoWindow = 6 * time.Second

// ErrUndoExpired is returned by Undo when no delete is waiting to be undone
var ErrUndoExpired = errors.New("undo window expired")

// Repository is the part of goals.Repository the coordinator drives
type Repository interface {
	Create(ctx context.Context, ownerID string, d goals.Draft) (model.Goal, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Goal, error)
	ListAll(ctx context.Context) ([]model.Goal, error)
	Update(ctx context.Context, ownerID, id string, p goals.Patch) (model.Goal, error)
	SetStatus(ctx context.Context, ownerID, id string, status model.Status) (model.Goal, error)
	SoftDelete(ctx context.Context, ownerID, id string) (model.Goal, error)
	UndoDelete(ctx context.Context, ownerID, id string) (model.Goal, error)
}

// Scope selects which list the view mirrors
type Scope int

const (
	// ScopeMine shows the owner's goals
	ScopeMine Scope = iota
	// ScopeAll shows every member's goals
	ScopeAll
)

// Mutation is one optimistic change. Apply and Rollback run under the view lock and
// must not block.
type Mutation struct {
	Op     string
	Apply  func(view []model.Goal) []model.Goal
	Remote func(ctx context.Context) error
	// Rollback computes the view after Remote fails. Nil restores the snapshot taken
	// before Apply.
	Rollback func(view, snapshot []model.Goal) []model.Goal
}

type undoEntry struct {
	goal      model.Goal
	index     int
	token     uint64
	expiresAt time.Time
	timer     clock.Timer

	deleteDone chan struct{}
	deleteErr  error
}

// Pending describes the delete that can still be undone
type Pending struct {
	Goal      model.Goal
	ExpiresAt time.Time
}

// Coordinator owns the local view. All methods are safe for concurrent use.
type Coordinator struct {
	repo   Repository
	owner  string
	scope  Scope
	clock  clock.Clock
	norm   deadline.Normalizer
	window time.Duration
	log    *logger.Logger

	mu       sync.Mutex
	view     []model.Goal
	pending  *undoEntry
	token    uint64
	onChange func([]model.Goal)

	inflight sync.WaitGroup
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithClock replaces the wall clock used for the undo timer and the deadline rule
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithUndoWindow sets the undo window. Non-positive values keep the default.
func WithUndoWindow(d time.Duration) Option {
	return func(co *Coordinator) {
		if d > 0 {
			co.window = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(co *Coordinator) { co.log = l }
}

// WithLocation sets the zone calendar-local deadline input is read in
func WithLocation(loc *time.Location) Option {
	return func(co *Coordinator) { co.norm.Location = loc }
}

// WithScope selects the list Load and Refresh read
func WithScope(s Scope) Option {
	return func(co *Coordinator) { co.scope = s }
}

// New creates a coordinator acting as ownerID
func New(repo Repository, ownerID string, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:   repo,
		owner:  ownerID,
		clock:  clock.Real(),
		norm:   deadline.Normalizer{Location: time.Local},
		window: DefaultUndoWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Default()
	}
	c.log = c.log.WithFields(logger.F("component", "optimistic"))
	return c
}

// SetOnChange registers fn to receive a copy of the view after every change. fn runs
// outside the view lock.
func (c *Coordinator) SetOnChange(fn func([]model.Goal)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Owner returns the member the coordinator acts as
func (c *Coordinator) Owner() string {
	return c.owner
}

// Scope returns the list the view mirrors
func (c *Coordinator) Scope() Scope {
	return c.scope
}

// Goals returns a copy of the view
func (c *Coordinator) Goals() []model.Goal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.view)
}

// UndoPending returns the delete that can still be undone, if any
func (c *Coordinator) UndoPending() (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Pending{}, false
	}
	return Pending{Goal: c.pending.goal, ExpiresAt: c.pending.expiresAt}, true
}

// Wait blocks until every remote call started so far has finished
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

// Load replaces the view with the store's list
func (c *Coordinator) Load(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh replaces the view with the store's list. A goal inside an open undo window
// stays hidden.
func (c *Coordinator) Refresh(ctx context.Context) error {
	var (
		list []model.Goal
		err  error
	)
	if c.scope == ScopeAll {
		list, err = c.repo.ListAll(ctx)
	} else {
		list, err = c.repo.ListByOwner(ctx, c.owner)
	}
	if err != nil {
		c.log.Warn("Refresh failed", logger.Err(err))
		return err
	}

	c.update(func() {
		view := make([]model.Goal, 0, len(list))
		for _, g := range list {
			if c.pending != nil && c.pending.goal.ID == g.ID {
				continue
			}
			view = append(view, g)
		}
		c.view = view
	})
	return nil
}

// ApplyOptimistic applies m locally, then runs m.Remote in the background. The
// returned channel receives exactly one value: nil on success, or the remote error
// after the view has been rolled back.
func (c *Coordinator) ApplyOptimistic(ctx context.Context, m Mutation) <-chan error {
	result := make(chan error, 1)

	var snapshot []model.Goal
	c.update(func() {
		snapshot = clone(c.view)
		c.view = m.Apply(clone(c.view))
	})

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		err := m.Remote(ctx)
		if err != nil {
			c.log.Warn("Mutation failed, rolling back", logger.F("op", m.Op), logger.Err(err))
			c.update(func() {
				if m.Rollback != nil {
					c.view = m.Rollback(clone(c.view), snapshot)
				} else {
					c.view = snapshot
				}
			})
		}
		result <- err
	}()

	return result
}

// SetStatus changes a goal's status
func (c *Coordinator) SetStatus(ctx context.Context, id string, status model.Status) <-chan error {
	const op = "setStatus"

	if !status.Valid() {
		return failed(&goals.Error{Kind: goals.KindValidation, Op: op, ID: id,
			Msg: fmt.Sprintf("status must be one of DoingIt, NeedHelp, Done (got %q)", status), Err: goals.ErrInvalidStatus})
	}
	if !c.has(id) {
		return failed(&goals.Error{Kind: goals.KindNotOwnerOrNotFound, Op: op, ID: id})
	}

	return c.ApplyOptimistic(ctx, Mutation{
		Op: op,
		Apply: func(view []model.Goal) []model.Goal {
			return replace(view, id, func(g *model.Goal) { g.Status = status })
		},
		Remote: func(ctx context.Context) error {
			_, err := c.repo.SetStatus(ctx, c.owner, id, status)
			return err
		},
		Rollback: restoreGoal(id),
	})
}

// EditContent replaces a goal's text
func (c *Coordinator) EditContent(ctx context.Context, id, content string) <-chan error {
	const op = "editContent"

	trimmed, err := goals.ValidateContent(content)
	if err != nil {
		return failed(err)
	}
	if !c.has(id) {
		return failed(&goals.Error{Kind: goals.KindNotOwnerOrNotFound, Op: op, ID: id})
	}

	return c.ApplyOptimistic(ctx, Mutation{
		Op: op,
		Apply: func(view []model.Goal) []model.Goal {
			return replace(view, id, func(g *model.Goal) { g.Content = trimmed })
		},
		Remote: func(ctx context.Context) error {
			_, err := c.repo.Update(ctx, c.owner, id, goals.Patch{Content: &trimmed})
			return err
		},
		Rollback: restoreGoal(id),
	})
}

// EditDeadline moves a goal's deadline. nil or "" clears it. A future deadline on a goal
// that is not Done shows as DoingIt right away, matching what the store will record.
func (c *Coordinator) EditDeadline(ctx context.Context, id string, input any) <-chan error {
	const op = "editDeadline"

	due, err := c.norm.Normalize(input)
	if err != nil {
		return failed(&goals.Error{Kind: goals.KindParse, Op: op, ID: id, Err: err})
	}
	if !c.has(id) {
		return failed(&goals.Error{Kind: goals.KindNotOwnerOrNotFound, Op: op, ID: id})
	}

	now := c.clock.Now()
	return c.ApplyOptimistic(ctx, Mutation{
		Op: op,
		Apply: func(view []model.Goal) []model.Goal {
			return replace(view, id, func(g *model.Goal) {
				g.Deadline = due
				if due != nil && due.After(now) && g.Status != model.StatusDone {
					g.Status = model.StatusDoingIt
				}
			})
		},
		Remote: func(ctx context.Context) error {
			_, err := c.repo.Update(ctx, c.owner, id, goals.Patch{Deadline: due, ClearDeadline: due == nil})
			return err
		},
		Rollback: restoreGoal(id),
	})
}

// Create stores a new goal and puts it at the front of the view. It waits for the
// store, since the goal has no id until then.
func (c *Coordinator) Create(ctx context.Context, d goals.Draft) (model.Goal, error) {
	g, err := c.repo.Create(ctx, c.owner, d)
	if err != nil {
		return model.Goal{}, err
	}
	c.update(func() {
		c.view = append([]model.Goal{g}, c.view...)
	})
	return g, nil
}

// Delete removes a goal from the view and soft-deletes it in the store. The delete can
// be undone until the undo window closes; starting another delete closes the current
// window early. If the store refuses the delete, the goal returns to its old position.
func (c *Coordinator) Delete(ctx context.Context, id string) <-chan error {
	const op = "softDelete"

	result := make(chan error, 1)
	var (
		entry   *undoEntry
		missing bool
	)
	c.update(func() {
		idx := indexOf(c.view, id)
		if idx < 0 {
			missing = true
			return
		}
		c.closeWindowLocked()

		c.token++
		token := c.token
		entry = &undoEntry{
			goal:       c.view[idx],
			index:      idx,
			token:      token,
			expiresAt:  c.clock.Now().Add(c.window),
			deleteDone: make(chan struct{}),
		}
		c.view = remove(c.view, idx)
		c.pending = entry
		entry.timer = c.clock.AfterFunc(c.window, func() { c.expire(token) })
	})
	if missing {
		result <- &goals.Error{Kind: goals.KindNotOwnerOrNotFound, Op: op, ID: id}
		return result
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		_, err := c.repo.SoftDelete(ctx, c.owner, id)
		if err != nil {
			c.log.Warn("Delete failed, restoring", logger.F("id", id), logger.Err(err))
			c.update(func() {
				if c.pending == entry {
					entry.timer.Stop()
					c.pending = nil
				}
				if indexOf(c.view, id) < 0 {
					c.view = insertAt(c.view, entry.index, entry.goal)
				}
			})
		}
		entry.deleteErr = err
		close(entry.deleteDone)
		result <- err
	}()

	return result
}

// Undo takes back the pending delete. The goal returns to the front of the view at
// once; the store is asked to restore it after the delete itself has landed.
func (c *Coordinator) Undo(ctx context.Context) <-chan error {
	result := make(chan error, 1)

	var entry *undoEntry
	c.update(func() {
		entry = c.pending
		if entry == nil {
			return
		}
		entry.timer.Stop()
		c.pending = nil
		if indexOf(c.view, entry.goal.ID) < 0 {
			c.view = append([]model.Goal{entry.goal}, c.view...)
		}
	})
	if entry == nil {
		result <- ErrUndoExpired
		return result
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		select {
		case <-entry.deleteDone:
		case <-ctx.Done():
			// The delete still stands remotely, so the goal leaves the view again
			id := entry.goal.ID
			c.update(func() {
				if idx := indexOf(c.view, id); idx >= 0 {
					c.view = remove(c.view, idx)
				}
			})
			result <- ctx.Err()
			return
		}
		// A failed delete left the goal in place; nothing to restore remotely
		if entry.deleteErr != nil {
			result <- nil
			return
		}

		id := entry.goal.ID
		_, err := c.repo.UndoDelete(ctx, c.owner, id)
		if err != nil {
			c.log.Warn("Undo failed, removing again", logger.F("id", id), logger.Err(err))
			c.update(func() {
				if idx := indexOf(c.view, id); idx >= 0 {
					c.view = remove(c.view, idx)
				}
			})
		}
		result <- err
	}()

	return result
}

// expire closes the undo window identified by token, if it is still the open one
func (c *Coordinator) expire(token uint64) {
	c.update(func() {
		if c.pending != nil && c.pending.token == token {
			c.log.Debug("Undo window closed", logger.F("id", c.pending.goal.ID))
			c.pending = nil
		}
	})
}

// closeWindowLocked ends the open undo window without touching the store
func (c *Coordinator) closeWindowLocked() {
	if c.pending == nil {
		return
	}
	c.pending.timer.Stop()
	c.pending = nil
}

// update runs fn under the lock, then hands the resulting view to the change hook
func (c *Coordinator) update(fn func()) {
	c.mu.Lock()
	fn()
	view, hook := clone(c.view), c.onChange
	c.mu.Unlock()

	if hook != nil {
		hook(view)
	}
}

func (c *Coordinator) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return indexOf(c.view, id) >= 0
}

// restoreGoal rolls back a single goal to its snapshot value, leaving the rest of the
// view as it is now
func restoreGoal(id string) func(view, snapshot []model.Goal) []model.Goal {
	return func(view, snapshot []model.Goal) []model.Goal {
		at := indexOf(snapshot, id)
		if at < 0 {
			return view
		}
		if idx := indexOf(view, id); idx >= 0 {
			view[idx] = snapshot[at]
			return view
		}
		return insertAt(view, at, snapshot[at])
	}
}

func failed(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}

func clone(view []model.Goal) []model.Goal {
	if view == nil {
		return nil
	}
	out := make([]model.Goal, len(view))
	copy(out, view)
	return out
}

func indexOf(view []model.Goal, id string) int {
	for i := range view {
		if view[i].ID == id {
			return i
		}
	}
	return -1
}

func replace(view []model.Goal, id string, fn func(*model.Goal)) []model.Goal {
	if idx := indexOf(view, id); idx >= 0 {
		fn(&view[idx])
	}
	return view
}

func remove(view []model.Goal, idx int) []model.Goal {
	return append(view[:idx:idx], view[idx+1:]...)
}

func insertAt(view []model.Goal, idx int, g model.Goal) []model.Goal {
	if idx > len(view) {
		idx = len(view)
	}
	if idx < 0 {
		idx = 0
	}
	out := make([]model.Goal, 0, len(view)+1)
	out = append(out, view[:idx]...)
	out = append(out, g)
	return append(out, view[idx:]...)
}
