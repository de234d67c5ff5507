// Package store defines the record store contract the goal repository depends on.
//
// A store holds two collections: the owner-scoped goals keyed by (ownerID, id), which
// are authoritative, and a flat public projection keyed by id that global listings read
// without per-owner authorization. Every operation is atomic for a single record; nothing
// spans records.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/existflow/goalpost/internal/model"
)

var (
	// ErrNotFound means the record does not exist under the given owner (or id, for the projection)
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a Patch precondition did not hold
	ErrConflict = errors.New("record changed concurrently")
)

// Store is the capability interface implemented by every backend
type Store interface {
	// Get returns one owner-scoped record, including soft-deleted ones
	Get(ctx context.Context, ownerID, id string) (model.Goal, error)
	// Put creates an owner-scoped record and returns the id the store assigned
	Put(ctx context.Context, ownerID string, g model.Goal) (string, error)
	// Patch merges fields into an existing owner-scoped record. It never creates one.
	Patch(ctx context.Context, ownerID, id string, fields Fields, pre *Precondition) error
	// ScanByOwner lists one owner's records matching f
	ScanByOwner(ctx context.Context, ownerID string, f Filter) ([]model.Goal, error)
	// ScanGlobal lists public projection records across all owners
	ScanGlobal(ctx context.Context, f Filter, o Order) ([]model.Goal, error)
	// PutPublic upserts the projection of g, keyed by g.ID. Last write wins.
	PutPublic(ctx context.Context, g model.Goal) error
	// PatchPublic merges fields into an existing projection
	PatchPublic(ctx context.Context, id string, fields Fields) error
}

// Precondition guards a Patch: it applies only while the stored updatedAt still equals UpdatedAt
type Precondition struct {
	UpdatedAt time.Time
}

// Holds reports whether the stored record satisfies the precondition
func (p *Precondition) Holds(g model.Goal) bool {
	if p == nil {
		return true
	}
	return g.UpdatedAt.Equal(p.UpdatedAt)
}

// Filter selects records. A nil field matches everything.
type Filter struct {
	Deleted *bool
}

// NotDeleted is the equality filter deleted == false used by every listing
func NotDeleted() Filter {
	f := false
	return Filter{Deleted: &f}
}

// Match reports whether g passes the filter
func (f Filter) Match(g model.Goal) bool {
	if f.Deleted != nil && g.Deleted != *f.Deleted {
		return false
	}
	return true
}

// Order sorts scan results by a timestamp field
type Order struct {
	Field Field
	Desc  bool
}

// NewestFirst orders by creation time, most recent first
func NewestFirst() Order {
	return Order{Field: FieldCreatedAt, Desc: true}
}

// Sort orders goals in place. Unknown fields leave the slice untouched.
func (o Order) Sort(goals []model.Goal) {
	key := func(g model.Goal) time.Time {
		switch o.Field {
		case FieldCreatedAt:
			return g.CreatedAt
		case FieldUpdatedAt:
			return g.UpdatedAt
		}
		return time.Time{}
	}
	if o.Field != FieldCreatedAt && o.Field != FieldUpdatedAt {
		return
	}

	sort.SliceStable(goals, func(i, j int) bool {
		a, b := key(goals[i]), key(goals[j])
		if o.Desc {
			return a.After(b)
		}
		return a.Before(b)
	})
}
