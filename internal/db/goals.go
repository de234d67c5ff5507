package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/existflow/goalpost/internal/deadline"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
)

func newUUID() string {
	return uuid.NewString()
}

// columns maps patchable fields to their column names
var columns = map[store.Field]string{
	store.FieldContent:     "content",
	store.FieldDeadline:    "deadline",
	store.FieldStatus:      "status",
	store.FieldDeleted:     "deleted",
	store.FieldUpdatedAt:   "updated_at",
	store.FieldDisplayName: "display_name",
	store.FieldNick:        "nick",
}

const goalColumns = `id, owner_id, content, deadline, status, type, deleted, created_at, updated_at, display_name, nick`

const publicColumns = `id, owner_id, content, deadline, status, type, deleted, created_at, display_name, nick`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (model.Goal, error) {
	var (
		g                model.Goal
		due              sql.NullInt64
		created, updated int64
		status, goalType string
	)
	err := row.Scan(&g.ID, &g.OwnerID, &g.Content, &due, &status, &goalType, &g.Deleted,
		&created, &updated, &g.DisplayName, &g.Nick)
	if err != nil {
		return model.Goal{}, err
	}
	fill(&g, due, status, goalType, created)
	g.UpdatedAt = deadline.FromMillis(updated)
	return g, nil
}

func scanPublic(row rowScanner) (model.Goal, error) {
	var (
		g                model.Goal
		due              sql.NullInt64
		created          int64
		status, goalType string
	)
	err := row.Scan(&g.ID, &g.OwnerID, &g.Content, &due, &status, &goalType, &g.Deleted,
		&created, &g.DisplayName, &g.Nick)
	if err != nil {
		return model.Goal{}, err
	}
	fill(&g, due, status, goalType, created)
	return g, nil
}

func fill(g *model.Goal, due sql.NullInt64, status, goalType string, created int64) {
	if due.Valid {
		t := deadline.FromMillis(due.Int64)
		g.Deadline = &t
	}
	g.Status = model.Status(status)
	g.Type = model.Type(goalType)
	g.CreatedAt = deadline.FromMillis(created)
}

func nullMillis(d *time.Time) sql.NullInt64 {
	if ms := deadline.ToMillis(d); ms != nil {
		return sql.NullInt64{Int64: *ms, Valid: true}
	}
	return sql.NullInt64{}
}

// Get returns the owner's goal
func (db *DB) Get(ctx context.Context, ownerID, id string) (model.Goal, error) {
	row := db.QueryRowContext(ctx,
		db.rebind(`SELECT `+goalColumns+` FROM goals WHERE owner_id = ? AND id = ?`), ownerID, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Goal{}, store.ErrNotFound
	}
	if err != nil {
		return model.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// Put inserts a new goal and returns its id
func (db *DB) Put(ctx context.Context, ownerID string, g model.Goal) (string, error) {
	id := db.newID()
	_, err := db.ExecContext(ctx, db.rebind(`
INSERT INTO goals (`+goalColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, ownerID, g.Content, nullMillis(g.Deadline), string(g.Status), string(g.Type), g.Deleted,
		g.CreatedAt.UnixMilli(), g.UpdatedAt.UnixMilli(), g.DisplayName, g.Nick)
	if err != nil {
		return "", fmt.Errorf("insert goal: %w", err)
	}
	return id, nil
}

// Patch updates the given fields. With a precondition, the update applies only while
// updated_at still holds the expected value.
func (db *DB) Patch(ctx context.Context, ownerID, id string, fields store.Fields, pre *store.Precondition) error {
	set, args, err := setClause(fields)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		_, err := db.Get(ctx, ownerID, id)
		return err
	}

	query := `UPDATE goals SET ` + set + ` WHERE owner_id = ? AND id = ?`
	args = append(args, ownerID, id)
	if pre != nil {
		query += ` AND updated_at = ?`
		args = append(args, pre.UpdatedAt.UnixMilli())
	}

	res, err := db.ExecContext(ctx, db.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := db.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return store.ErrConflict
}

// ScanByOwner lists the owner's goals, newest first
func (db *DB) ScanByOwner(ctx context.Context, ownerID string, f store.Filter) ([]model.Goal, error) {
	where, args := filterClause(f, "owner_id = ?", ownerID)
	rows, err := db.QueryContext(ctx,
		db.rebind(`SELECT `+goalColumns+` FROM goals WHERE `+where+` ORDER BY created_at DESC`), args...)
	if err != nil {
		return nil, fmt.Errorf("scan goals: %w", err)
	}
	defer rows.Close()

	var out []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goals: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ScanGlobal lists the public projection
func (db *DB) ScanGlobal(ctx context.Context, f store.Filter, o store.Order) ([]model.Goal, error) {
	where, args := filterClause(f, "1 = 1")
	query := `SELECT ` + publicColumns + ` FROM public_goals WHERE ` + where
	if o.Field == store.FieldCreatedAt {
		query += ` ORDER BY created_at`
		if o.Desc {
			query += ` DESC`
		}
	}

	rows, err := db.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("scan public goals: %w", err)
	}
	defer rows.Close()

	var out []model.Goal
	for rows.Next() {
		g, err := scanPublic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan public goals: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if o.Field != store.FieldCreatedAt {
		o.Sort(out)
	}
	return out, nil
}

// PutPublic writes the projection of g, replacing any existing one
func (db *DB) PutPublic(ctx context.Context, g model.Goal) error {
	p := g.Public()
	_, err := db.ExecContext(ctx, db.rebind(`
INSERT INTO public_goals (`+publicColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    owner_id = excluded.owner_id,
    content = excluded.content,
    deadline = excluded.deadline,
    status = excluded.status,
    type = excluded.type,
    deleted = excluded.deleted,
    created_at = excluded.created_at,
    display_name = excluded.display_name,
    nick = excluded.nick`),
		p.ID, p.OwnerID, p.Content, nullMillis(p.Deadline), string(p.Status), string(p.Type), p.Deleted,
		p.CreatedAt.UnixMilli(), p.DisplayName, p.Nick)
	if err != nil {
		return fmt.Errorf("upsert public goal: %w", err)
	}
	return nil
}

// PatchPublic updates an existing projection. It never creates one.
func (db *DB) PatchPublic(ctx context.Context, id string, fields store.Fields) error {
	set, args, err := setClause(fields.Public())
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return nil
	}

	res, err := db.ExecContext(ctx, db.rebind(`UPDATE public_goals SET `+set+` WHERE id = ?`), append(args, id)...)
	if err != nil {
		return fmt.Errorf("update public goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update public goal: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func setClause(fields store.Fields) (string, []any, error) {
	if err := fields.Validate(); err != nil {
		return "", nil, err
	}

	var (
		parts []string
		args  []any
	)
	// Fixed column order keeps statements stable across calls
	for _, field := range []store.Field{
		store.FieldContent, store.FieldDeadline, store.FieldStatus, store.FieldDeleted,
		store.FieldUpdatedAt, store.FieldDisplayName, store.FieldNick,
	} {
		v, ok := fields[field]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case *time.Time:
			v = nullMillis(val)
		case time.Time:
			v = val.UnixMilli()
		case model.Status:
			v = string(val)
		}
		parts = append(parts, columns[field]+" = ?")
		args = append(args, v)
	}
	return strings.Join(parts, ", "), args, nil
}

func filterClause(f store.Filter, base string, args ...any) (string, []any) {
	where := base
	if f.Deleted != nil {
		where += " AND deleted = ?"
		args = append(args, *f.Deleted)
	}
	return where, args
}
