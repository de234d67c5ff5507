// Package memstore is an in-process store.Store. It backs tests and the "memory" backend,
// and can inject failures per operation to exercise rollback paths.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
)

// Op identifies a store operation for fault injection and call counting
type Op string

const (
	OpGet         Op = "get"
	OpPut         Op = "put"
	OpPatch       Op = "patch"
	OpScanByOwner Op = "scanByOwner"
	OpScanGlobal  Op = "scanGlobal"
	OpPutPublic   Op = "putPublic"
	OpPatchPublic Op = "patchPublic"
)

// Store keeps both collections in maps guarded by one mutex
type Store struct {
	mu     sync.Mutex
	owners map[string]map[string]model.Goal
	public map[string]model.Goal
	faults map[Op]error
	calls  map[Op]int

	// NewID assigns ids on Put. Defaults to random UUIDs.
	NewID func() string
}

var _ store.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		owners: make(map[string]map[string]model.Goal),
		public: make(map[string]model.Goal),
		faults: make(map[Op]error),
		calls:  make(map[Op]int),
		NewID:  func() string { return uuid.New().String() },
	}
}

// Fail makes every subsequent call of op return err until Heal is called
func (s *Store) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// Heal clears injected faults. With no arguments it clears all of them.
func (s *Store) Heal(ops ...Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ops) == 0 {
		s.faults = make(map[Op]error)
		return
	}
	for _, op := range ops {
		delete(s.faults, op)
	}
}

// Calls returns how many times op was invoked, failed calls included
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Public returns the raw projection record for id, for assertions
func (s *Store) Public(id string) (model.Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.public[id]
	return g, ok
}

// enter counts the call and returns the injected fault, if any. Caller holds s.mu.
func (s *Store) enter(ctx context.Context, op Op) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.faults[op]
}

func (s *Store) Get(ctx context.Context, ownerID, id string) (model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpGet); err != nil {
		return model.Goal{}, err
	}
	g, ok := s.owners[ownerID][id]
	if !ok {
		return model.Goal{}, store.ErrNotFound
	}
	return g, nil
}

func (s *Store) Put(ctx context.Context, ownerID string, g model.Goal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpPut); err != nil {
		return "", err
	}
	g.ID = s.NewID()
	g.OwnerID = ownerID
	if s.owners[ownerID] == nil {
		s.owners[ownerID] = make(map[string]model.Goal)
	}
	s.owners[ownerID][g.ID] = g
	return g.ID, nil
}

func (s *Store) Patch(ctx context.Context, ownerID, id string, fields store.Fields, pre *store.Precondition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpPatch); err != nil {
		return err
	}
	g, ok := s.owners[ownerID][id]
	if !ok {
		return store.ErrNotFound
	}
	if !pre.Holds(g) {
		return store.ErrConflict
	}
	if err := fields.Apply(&g); err != nil {
		return err
	}
	s.owners[ownerID][id] = g
	return nil
}

func (s *Store) ScanByOwner(ctx context.Context, ownerID string, f store.Filter) ([]model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpScanByOwner); err != nil {
		return nil, err
	}
	var out []model.Goal
	for _, g := range s.owners[ownerID] {
		if f.Match(g) {
			out = append(out, g)
		}
	}
	store.NewestFirst().Sort(out)
	return out, nil
}

func (s *Store) ScanGlobal(ctx context.Context, f store.Filter, o store.Order) ([]model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpScanGlobal); err != nil {
		return nil, err
	}
	var out []model.Goal
	for _, g := range s.public {
		if f.Match(g) {
			out = append(out, g)
		}
	}
	o.Sort(out)
	return out, nil
}

func (s *Store) PutPublic(ctx context.Context, g model.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpPutPublic); err != nil {
		return err
	}
	s.public[g.ID] = g.Public()
	return nil
}

func (s *Store) PatchPublic(ctx context.Context, id string, fields store.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpPatchPublic); err != nil {
		return err
	}
	g, ok := s.public[id]
	if !ok {
		return store.ErrNotFound
	}
	if err := fields.Public().Apply(&g); err != nil {
		return err
	}
	s.public[id] = g
	return nil
}
