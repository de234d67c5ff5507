// Package goals is the goal synchronization core: it builds canonical goal records, writes
// them to the owner-scoped collection of a store, and keeps the public projection that
// global listings read in step on a best-effort basis.
package goals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/existflow/goalpost/internal/clock"
	"github.com/existflow/goalpost/internal/deadline"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
)

const defaultMaxAttempts = 3

// ListCache caches the global list. Implementations must be safe for concurrent use.
type ListCache interface {
	// GetGlobal returns the cached list; ok is false on a miss
	GetGlobal(ctx context.Context) (goals []model.Goal, ok bool, err error)
	SetGlobal(ctx context.Context, goals []model.Goal) error
	Invalidate(ctx context.Context) error
}

// Draft is the input to Create
type Draft struct {
	Content string
	// Deadline accepts anything deadline.Normalizer does; nil means no deadline
	Deadline    any
	Type        model.Type
	DisplayName string
	Nick        string
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Content *string
	// Deadline, when non-nil, is normalized and written. A value that normalizes to
	// nil (for example "") clears the deadline.
	Deadline      any
	ClearDeadline bool
	Status        *model.Status
	Deleted       *bool
}

func (p Patch) touchesDeadline() bool {
	return p.ClearDeadline || p.Deadline != nil
}

// Repository exposes the read/write contract the UI layer consumes
type Repository struct {
	store       store.Store
	clock       clock.Clock
	norm        deadline.Normalizer
	cache       ListCache
	sf          singleflight.Group
	generation  atomic.Uint64
	log         *logger.Logger
	maxAttempts int
}

// Option configures a Repository
type Option func(*Repository)

// WithClock replaces the wall clock
func WithClock(c clock.Clock) Option {
	return func(r *Repository) { r.clock = c }
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithCache enables the global list cache
func WithCache(c ListCache) Option {
	return func(r *Repository) { r.cache = c }
}

// WithLocation sets the zone calendar-local deadline strings are read in
func WithLocation(loc *time.Location) Option {
	return func(r *Repository) { r.norm.Location = loc }
}

// WithMaxAttempts bounds read-modify-write retries on conflicting writes
func WithMaxAttempts(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// NewRepository creates a repository over s
func NewRepository(s store.Store, opts ...Option) *Repository {
	r := &Repository{
		store:       s,
		clock:       clock.Real(),
		norm:        deadline.Normalizer{Location: time.Local},
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Default()
	}
	r.log = r.log.WithFields(logger.F("component", "goals"))
	return r
}

// Normalizer returns the deadline normalizer the repository uses
func (r *Repository) Normalizer() deadline.Normalizer {
	return r.norm
}

// Clock returns the repository's clock
func (r *Repository) Clock() clock.Clock {
	return r.clock
}

// Create writes a new goal for ownerID and mirrors it into the public projection.
// A failed mirror write is logged and does not fail the create.
func (r *Repository) Create(ctx context.Context, ownerID string, d Draft) (model.Goal, error) {
	const op = "create"

	if strings.TrimSpace(ownerID) == "" {
		return model.Goal{}, validationError(op, "owner is required", nil)
	}
	content, err := validateContent(op, d.Content)
	if err != nil {
		return model.Goal{}, err
	}
	goalType := d.Type
	if goalType == "" {
		goalType = model.TypeOneTime
	}
	if !goalType.Valid() {
		return model.Goal{}, validationError(op, fmt.Sprintf("unknown goal type %q", d.Type), nil)
	}
	due, err := r.norm.Normalize(d.Deadline)
	if err != nil {
		return model.Goal{}, parseError(op, err)
	}

	now := r.now()
	g := model.Goal{
		OwnerID:     ownerID,
		Content:     content,
		Deadline:    due,
		Status:      model.StatusDoingIt,
		Type:        goalType,
		Deleted:     false,
		CreatedAt:   now,
		UpdatedAt:   now,
		DisplayName: strings.TrimSpace(d.DisplayName),
		Nick:        strings.TrimSpace(d.Nick),
	}

	id, err := r.store.Put(ctx, ownerID, g)
	if err != nil {
		r.log.Error("Create failed", logger.F("owner", ownerID), logger.Err(err))
		return model.Goal{}, remoteError(op, "", err)
	}
	g.ID = id

	if err := r.store.PutPublic(ctx, g.Public()); err != nil {
		r.mirrorFailed(op, id, err)
	}
	r.invalidate(ctx)

	r.log.Info("Goal created", logger.F("owner", ownerID), logger.F("id", id), logger.F("type", g.Type))
	return g, nil
}

// Get returns one of the owner's goals, soft-deleted ones included
func (r *Repository) Get(ctx context.Context, ownerID, id string) (model.Goal, error) {
	const op = "get"

	if err := requireIDs(op, ownerID, id); err != nil {
		return model.Goal{}, err
	}
	g, err := r.store.Get(ctx, ownerID, id)
	if err != nil {
		return model.Goal{}, storeError(op, id, err)
	}
	return r.canonical(g), nil
}

// ListByOwner returns the owner's goals that are not deleted, newest first
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]model.Goal, error) {
	const op = "listByOwner"

	if strings.TrimSpace(ownerID) == "" {
		return nil, validationError(op, "owner is required", nil)
	}
	list, err := r.store.ScanByOwner(ctx, ownerID, store.NotDeleted())
	if err != nil {
		r.log.Warn("Owner scan failed", logger.F("owner", ownerID), logger.Err(err))
		return nil, remoteError(op, "", err)
	}

	out := r.canonicalList(list)
	store.NewestFirst().Sort(out)
	return out, nil
}

// ListDeleted returns the owner's soft-deleted goals, newest first. They stay restorable
// with UndoDelete.
func (r *Repository) ListDeleted(ctx context.Context, ownerID string) ([]model.Goal, error) {
	const op = "listDeleted"

	if strings.TrimSpace(ownerID) == "" {
		return nil, validationError(op, "owner is required", nil)
	}
	deleted := true
	list, err := r.store.ScanByOwner(ctx, ownerID, store.Filter{Deleted: &deleted})
	if err != nil {
		r.log.Warn("Owner scan failed", logger.F("owner", ownerID), logger.Err(err))
		return nil, remoteError(op, "", err)
	}

	out := r.canonicalList(list)
	store.NewestFirst().Sort(out)
	return out, nil
}

// ListAll returns every goal that is not deleted across all owners, newest first. It reads
// the public projection only.
func (r *Repository) ListAll(ctx context.Context) ([]model.Goal, error) {
	const op = "listAll"

	// The shared scan outlives any single caller; each caller stops waiting on its own ctx
	shared := context.WithoutCancel(ctx)
	ch := r.sf.DoChan("global", func() (interface{}, error) {
		return r.loadGlobal(shared)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, remoteError(op, "", ctx.Err())
	}
	if res.Err != nil {
		r.log.Warn("Global scan failed", logger.Err(res.Err))
		return nil, remoteError(op, "", res.Err)
	}
	v := res.Val

	// Projection records may be stale; the filter is re-applied on the way out
	var kept []model.Goal
	for _, g := range v.([]model.Goal) {
		if store.NotDeleted().Match(g) {
			kept = append(kept, g)
		}
	}
	out := r.canonicalList(kept)
	store.NewestFirst().Sort(out)
	return out, nil
}

// loadGlobal reads the global list through the cache. A list scanned while a mutation
// invalidated the cache is returned but not stored.
func (r *Repository) loadGlobal(ctx context.Context) ([]model.Goal, error) {
	if r.cache == nil {
		return r.store.ScanGlobal(ctx, store.NotDeleted(), store.NewestFirst())
	}

	cached, ok, err := r.cache.GetGlobal(ctx)
	if err != nil {
		r.log.Warn("Global list cache read failed", logger.Err(err))
	} else if ok {
		return cached, nil
	}

	gen := r.generation.Load()
	list, err := r.store.ScanGlobal(ctx, store.NotDeleted(), store.NewestFirst())
	if err != nil {
		return nil, err
	}
	if r.generation.Load() != gen {
		r.log.Debug("Global list changed during scan, not caching")
		return list, nil
	}
	if err := r.cache.SetGlobal(ctx, list); err != nil {
		r.log.Warn("Global list cache write failed", logger.Err(err))
		return list, nil
	}
	// An invalidation between the check and the write may have run before the write landed
	if r.generation.Load() != gen {
		r.invalidate(ctx)
	}
	return list, nil
}

// Update merges p into the owner's goal. A deadline in p is re-normalized, and a future
// deadline on a goal that is not Done resets its status to DoingIt in the same write.
func (r *Repository) Update(ctx context.Context, ownerID, id string, p Patch) (model.Goal, error) {
	const op = "update"

	if err := requireIDs(op, ownerID, id); err != nil {
		return model.Goal{}, err
	}
	fields, err := r.patchFields(op, p)
	if err != nil {
		return model.Goal{}, err
	}
	return r.apply(ctx, op, ownerID, id, fields)
}

// SetStatus changes only the status. Setting the status a goal already has succeeds.
func (r *Repository) SetStatus(ctx context.Context, ownerID, id string, status model.Status) (model.Goal, error) {
	const op = "setStatus"

	if !status.Valid() {
		return model.Goal{}, validationError(op, fmt.Sprintf("status must be one of DoingIt, NeedHelp, Done (got %q)", status), ErrInvalidStatus)
	}
	if err := requireIDs(op, ownerID, id); err != nil {
		return model.Goal{}, err
	}
	return r.apply(ctx, op, ownerID, id, store.Fields{store.FieldStatus: status})
}

// SoftDelete hides the goal from every listing; it stays addressable by id
func (r *Repository) SoftDelete(ctx context.Context, ownerID, id string) (model.Goal, error) {
	const op = "softDelete"

	if err := requireIDs(op, ownerID, id); err != nil {
		return model.Goal{}, err
	}
	return r.apply(ctx, op, ownerID, id, store.Fields{store.FieldDeleted: true})
}

// UndoDelete restores a soft-deleted goal
func (r *Repository) UndoDelete(ctx context.Context, ownerID, id string) (model.Goal, error) {
	const op = "undoDelete"

	if err := requireIDs(op, ownerID, id); err != nil {
		return model.Goal{}, err
	}
	return r.apply(ctx, op, ownerID, id, store.Fields{store.FieldDeleted: false})
}

// UpdateProfile pushes new display fields onto every goal the owner has, deleted ones
// included, and onto their projections. It returns how many goals were updated.
func (r *Repository) UpdateProfile(ctx context.Context, ownerID, displayName, nick string) (int, error) {
	const op = "updateProfile"

	if strings.TrimSpace(ownerID) == "" {
		return 0, validationError(op, "owner is required", nil)
	}
	list, err := r.store.ScanByOwner(ctx, ownerID, store.Filter{})
	if err != nil {
		return 0, remoteError(op, "", err)
	}

	fields := store.Fields{
		store.FieldDisplayName: strings.TrimSpace(displayName),
		store.FieldNick:        strings.TrimSpace(nick),
	}
	updated := 0
	for _, g := range list {
		if g.DisplayName == fields[store.FieldDisplayName] && g.Nick == fields[store.FieldNick] {
			continue
		}
		if _, err := r.apply(ctx, op, ownerID, g.ID, fields); err != nil {
			return updated, err
		}
		updated++
	}

	r.log.Info("Profile pushed", logger.F("owner", ownerID), logger.F("updated", updated))
	return updated, nil
}

// Backfill rewrites the public projection of every goal the owner has from the
// authoritative records. Unlike the inline mirror writes, failures are reported.
func (r *Repository) Backfill(ctx context.Context, ownerID string) (int, error) {
	const op = "backfill"

	if strings.TrimSpace(ownerID) == "" {
		return 0, validationError(op, "owner is required", nil)
	}
	list, err := r.store.ScanByOwner(ctx, ownerID, store.Filter{})
	if err != nil {
		return 0, remoteError(op, "", err)
	}

	written := 0
	var errs []error
	for _, g := range list {
		if err := r.store.PutPublic(ctx, g.Public()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.ID, err))
			continue
		}
		written++
	}
	r.invalidate(ctx)

	r.log.Info("Projection backfilled", logger.F("owner", ownerID), logger.F("written", written), logger.F("failed", len(errs)))
	if len(errs) > 0 {
		return written, &Error{Kind: KindMirrorWriteFailed, Op: op, Err: errors.Join(errs...)}
	}
	return written, nil
}

// apply is the read-modify-write shared by every mutation. The write is conditional on
// the updatedAt that was read, so the deadline rule sees the status it overwrites.
func (r *Repository) apply(ctx context.Context, op, ownerID, id string, fields store.Fields) (model.Goal, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		current, err := r.store.Get(ctx, ownerID, id)
		if err != nil {
			return model.Goal{}, storeError(op, id, err)
		}

		now := r.now()
		write := make(store.Fields, len(fields)+2)
		for k, v := range fields {
			write[k] = v
		}
		if write.Has(store.FieldDeadline) {
			applyDeadlineRule(current, write, now)
		}

		// updatedAt must move forward, or a racing writer's precondition could still match
		stamp := now
		if !stamp.After(current.UpdatedAt) {
			stamp = current.UpdatedAt.Add(time.Millisecond)
		}
		write[store.FieldUpdatedAt] = stamp

		err = r.store.Patch(ctx, ownerID, id, write, &store.Precondition{UpdatedAt: current.UpdatedAt})
		if errors.Is(err, store.ErrConflict) {
			lastErr = err
			r.log.Debug("Write conflict, retrying", logger.F("op", op), logger.F("id", id), logger.F("attempt", attempt))
			continue
		}
		if err != nil {
			r.log.Warn("Write failed", logger.F("op", op), logger.F("id", id), logger.Err(err))
			return model.Goal{}, storeError(op, id, err)
		}

		updated := current
		if err := write.Apply(&updated); err != nil {
			return model.Goal{}, validationError(op, "invalid field value", err)
		}

		r.mirror(ctx, op, updated, write)
		r.invalidate(ctx)

		r.log.Debug("Goal updated", logger.F("op", op), logger.F("id", id), logger.F("status", updated.Status))
		return r.canonical(updated), nil
	}

	return model.Goal{}, remoteError(op, id, fmt.Errorf("gave up after %d attempts: %w", r.maxAttempts, lastErr))
}

// applyDeadlineRule forces DoingIt when the written deadline is in the future and the
// goal is not Done. A status in the same write takes precedence over the stored one.
func applyDeadlineRule(current model.Goal, write store.Fields, now time.Time) {
	due, _ := write[store.FieldDeadline].(*time.Time)
	if due == nil || !due.After(now) {
		return
	}
	prior := current.Status
	if s, ok := write[store.FieldStatus].(model.Status); ok {
		prior = s
	}
	if prior != model.StatusDone {
		write[store.FieldStatus] = model.StatusDoingIt
	}
}

// mirror copies the public subset of a write into the projection. When the projection
// is missing, the full projection is recreated from the updated record.
func (r *Repository) mirror(ctx context.Context, op string, g model.Goal, fields store.Fields) {
	pub := fields.Public()
	if len(pub) == 0 {
		return
	}

	err := r.store.PatchPublic(ctx, g.ID, pub)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Debug("Projection missing, recreating", logger.F("id", g.ID))
		err = r.store.PutPublic(ctx, g.Public())
	}
	if err != nil {
		r.mirrorFailed(op, g.ID, err)
	}
}

func (r *Repository) mirrorFailed(op, id string, err error) {
	r.log.Warn("Public projection write failed",
		logger.F("kind", KindMirrorWriteFailed),
		logger.F("op", op),
		logger.F("id", id),
		logger.Err(err))
}

func (r *Repository) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	r.generation.Add(1)
	if err := r.cache.Invalidate(ctx); err != nil {
		r.log.Warn("Global list cache invalidation failed", logger.Err(err))
	}
}

func (r *Repository) patchFields(op string, p Patch) (store.Fields, error) {
	fields := store.Fields{}

	if p.Content != nil {
		content, err := validateContent(op, *p.Content)
		if err != nil {
			return nil, err
		}
		fields[store.FieldContent] = content
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, validationError(op, fmt.Sprintf("status must be one of DoingIt, NeedHelp, Done (got %q)", *p.Status), ErrInvalidStatus)
		}
		fields[store.FieldStatus] = *p.Status
	}
	if p.touchesDeadline() {
		var due *time.Time
		if !p.ClearDeadline {
			var err error
			due, err = r.norm.Normalize(p.Deadline)
			if err != nil {
				return nil, parseError(op, err)
			}
		}
		fields[store.FieldDeadline] = due
	}
	if p.Deleted != nil {
		fields[store.FieldDeleted] = *p.Deleted
	}

	return fields, nil
}

func (r *Repository) now() time.Time {
	return r.clock.Now().UTC().Truncate(time.Millisecond)
}

func (r *Repository) canonical(g model.Goal) model.Goal {
	// A *time.Time always normalizes
	g.Deadline, _ = r.norm.Normalize(g.Deadline)
	return g
}

func (r *Repository) canonicalList(list []model.Goal) []model.Goal {
	out := make([]model.Goal, len(list))
	for i, g := range list {
		out[i] = r.canonical(g)
	}
	return out
}

// SortByDeadline orders goals soonest deadline first; goals without one sort last
func SortByDeadline(list []model.Goal) {
	sort.SliceStable(list, func(i, j int) bool {
		return deadline.Less(list[i].Deadline, list[j].Deadline)
	})
}

// ValidateContent trims content and rejects it when blank
func ValidateContent(content string) (string, error) {
	return validateContent("validate", content)
}

func validateContent(op, content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", validationError(op, "goal content is required", ErrEmptyContent)
	}
	return trimmed, nil
}

func requireIDs(op, ownerID, id string) error {
	if strings.TrimSpace(ownerID) == "" {
		return validationError(op, "owner is required", nil)
	}
	if strings.TrimSpace(id) == "" {
		return validationError(op, "goal id is required", nil)
	}
	return nil
}

func storeError(op, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError(op, id, err)
	}
	return remoteError(op, id, err)
}
