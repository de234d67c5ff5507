// Package fsstore keeps goals in Cloud Firestore. Owner records live at
// users/{ownerId}/goals/{id}; the public projection lives at publicGoals/{id}.
//
// The global scan filters on deleted and orders by createdAt, which needs the
// composite index (deleted ASC, createdAt DESC) on publicGoals.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
)

const (
	usersCollection  = "users"
	goalsCollection  = "goals"
	publicCollection = "publicGoals"
)

type goalDoc struct {
	OwnerID     string     `firestore:"ownerId"`
	Content     string     `firestore:"content"`
	Deadline    *time.Time `firestore:"deadline"`
	Status      string     `firestore:"status"`
	Type        string     `firestore:"type"`
	Deleted     bool       `firestore:"deleted"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt,omitempty"`
	DisplayName string     `firestore:"displayName"`
	Nick        string     `firestore:"nick"`
}

func toDoc(g model.Goal) goalDoc {
	return goalDoc{
		OwnerID:     g.OwnerID,
		Content:     g.Content,
		Deadline:    g.Deadline,
		Status:      string(g.Status),
		Type:        string(g.Type),
		Deleted:     g.Deleted,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
		DisplayName: g.DisplayName,
		Nick:        g.Nick,
	}
}

func (d goalDoc) goal(id string) model.Goal {
	g := model.Goal{
		ID:          id,
		OwnerID:     d.OwnerID,
		Content:     d.Content,
		Status:      model.Status(d.Status),
		Type:        model.Type(d.Type),
		Deleted:     d.Deleted,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
		DisplayName: d.DisplayName,
		Nick:        d.Nick,
	}
	if d.Deadline != nil {
		t := d.Deadline.UTC()
		g.Deadline = &t
	}
	return g
}

// Store implements store.Store on Firestore
type Store struct {
	client *firestore.Client
}

var _ store.Store = (*Store)(nil)

// New wraps an existing client
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Open connects to projectID. With FIRESTORE_EMULATOR_HOST set the client talks to
// the emulator and credentials are ignored.
func Open(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return New(client), nil
}

// Close closes the client
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) owned(ownerID string) *firestore.CollectionRef {
	return s.client.Collection(usersCollection).Doc(ownerID).Collection(goalsCollection)
}

func (s *Store) public() *firestore.CollectionRef {
	return s.client.Collection(publicCollection)
}

// mapErr turns gRPC status codes into store errors
func mapErr(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return store.ErrNotFound
	case codes.Aborted:
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func (s *Store) Get(ctx context.Context, ownerID, id string) (model.Goal, error) {
	snap, err := s.owned(ownerID).Doc(id).Get(ctx)
	if err != nil {
		return model.Goal{}, mapErr(err)
	}
	var d goalDoc
	if err := snap.DataTo(&d); err != nil {
		return model.Goal{}, fmt.Errorf("decode goal %s: %w", id, err)
	}
	return d.goal(snap.Ref.ID), nil
}

func (s *Store) Put(ctx context.Context, ownerID string, g model.Goal) (string, error) {
	g.OwnerID = ownerID
	ref := s.owned(ownerID).NewDoc()
	if _, err := ref.Create(ctx, toDoc(g)); err != nil {
		return "", mapErr(err)
	}
	return ref.ID, nil
}

func (s *Store) Patch(ctx context.Context, ownerID, id string, fields store.Fields, pre *store.Precondition) error {
	updates, err := toUpdates(fields)
	if err != nil {
		return err
	}
	ref := s.owned(ownerID).Doc(id)

	if pre == nil {
		if len(updates) == 0 {
			_, err := ref.Get(ctx)
			return mapErr(err)
		}
		_, err := ref.Update(ctx, updates)
		return mapErr(err)
	}

	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var d goalDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		if !pre.Holds(d.goal(id)) {
			return store.ErrConflict
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Update(ref, updates)
	})
	if errors.Is(err, store.ErrConflict) {
		return store.ErrConflict
	}
	return mapErr(err)
}

func (s *Store) ScanByOwner(ctx context.Context, ownerID string, f store.Filter) ([]model.Goal, error) {
	q := s.owned(ownerID).Query
	if f.Deleted != nil {
		q = q.Where("deleted", "==", *f.Deleted)
	}
	out, err := collect(ctx, q)
	if err != nil {
		return nil, err
	}
	// Sorted here so the owner scan needs no composite index
	store.NewestFirst().Sort(out)
	return out, nil
}

func (s *Store) ScanGlobal(ctx context.Context, f store.Filter, o store.Order) ([]model.Goal, error) {
	q := s.public().Query
	if f.Deleted != nil {
		q = q.Where("deleted", "==", *f.Deleted)
	}
	if o.Field == store.FieldCreatedAt {
		dir := firestore.Asc
		if o.Desc {
			dir = firestore.Desc
		}
		q = q.OrderBy(string(o.Field), dir)
	}
	out, err := collect(ctx, q)
	if err != nil {
		return nil, err
	}
	if o.Field != store.FieldCreatedAt {
		o.Sort(out)
	}
	return out, nil
}

func (s *Store) PutPublic(ctx context.Context, g model.Goal) error {
	d := toDoc(g.Public())
	_, err := s.public().Doc(g.ID).Set(ctx, d)
	return mapErr(err)
}

func (s *Store) PatchPublic(ctx context.Context, id string, fields store.Fields) error {
	updates, err := toUpdates(fields.Public())
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}
	_, err = s.public().Doc(id).Update(ctx, updates)
	return mapErr(err)
}

func collect(ctx context.Context, q firestore.Query) ([]model.Goal, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []model.Goal
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}
		var d goalDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode goal %s: %w", snap.Ref.ID, err)
		}
		out = append(out, d.goal(snap.Ref.ID))
	}
	return out, nil
}

func toUpdates(fields store.Fields) ([]firestore.Update, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(fields))
	for _, k := range keys {
		v := fields[store.Field(k)]
		switch val := v.(type) {
		case *time.Time:
			if val == nil {
				v = nil
			} else {
				v = *val
			}
		case model.Status:
			v = string(val)
		}
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return updates, nil
}
