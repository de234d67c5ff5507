package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/existflow/goalpost/internal/model"
)

// Field names a record field. The values double as document keys and JSON keys.
type Field string

const (
	FieldContent     Field = "content"
	FieldDeadline    Field = "deadline"
	FieldStatus      Field = "status"
	FieldDeleted     Field = "deleted"
	FieldUpdatedAt   Field = "updatedAt"
	FieldDisplayName Field = "displayName"
	FieldNick        Field = "nick"

	// FieldCreatedAt is orderable but never patched
	FieldCreatedAt Field = "createdAt"
)

// publicFields are the patchable fields the public projection carries
var publicFields = map[Field]bool{
	FieldContent:     true,
	FieldDeadline:    true,
	FieldStatus:      true,
	FieldDeleted:     true,
	FieldDisplayName: true,
	FieldNick:        true,
}

// Fields is a partial record. Value types per field:
//
//	content, displayName, nick  string
//	deadline                    *time.Time (nil clears the deadline)
//	status                      model.Status
//	deleted                     bool
//	updatedAt                   time.Time
type Fields map[Field]any

// Has reports whether f sets field
func (f Fields) Has(field Field) bool {
	_, ok := f[field]
	return ok
}

// Public returns the subset of f mirrored into the public projection
func (f Fields) Public() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if publicFields[k] {
			out[k] = v
		}
	}
	return out
}

// Validate checks that every value has the type its field expects
func (f Fields) Validate() error {
	var scratch model.Goal
	return f.Apply(&scratch)
}

// Apply writes the fields onto g
func (f Fields) Apply(g *model.Goal) error {
	for k, v := range f {
		var ok bool
		switch k {
		case FieldContent:
			g.Content, ok = v.(string)
		case FieldDisplayName:
			g.DisplayName, ok = v.(string)
		case FieldNick:
			g.Nick, ok = v.(string)
		case FieldStatus:
			g.Status, ok = v.(model.Status)
		case FieldDeleted:
			g.Deleted, ok = v.(bool)
		case FieldUpdatedAt:
			g.UpdatedAt, ok = v.(time.Time)
		case FieldDeadline:
			g.Deadline, ok = v.(*time.Time)
		default:
			return fmt.Errorf("field %q is not patchable", k)
		}
		if !ok {
			return fmt.Errorf("field %q: unexpected value type %T", k, v)
		}
	}
	return nil
}

// MarshalJSON encodes times as RFC3339 and a cleared deadline as null
func (f Fields) MarshalJSON() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(f))
	for k, v := range f {
		switch val := v.(type) {
		case *time.Time:
			if val == nil {
				out[string(k)] = nil
			} else {
				out[string(k)] = val.UTC().Format(time.RFC3339Nano)
			}
		case time.Time:
			out[string(k)] = val.UTC().Format(time.RFC3339Nano)
		default:
			out[string(k)] = val
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes each field into its Go type and rejects unknown fields
func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Fields, len(raw))
	for key, msg := range raw {
		field := Field(key)
		switch field {
		case FieldContent, FieldDisplayName, FieldNick:
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			out[field] = s
		case FieldStatus:
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			out[field] = model.Status(s)
		case FieldDeleted:
			var b bool
			if err := json.Unmarshal(msg, &b); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			out[field] = b
		case FieldUpdatedAt:
			t, err := decodeTime(msg)
			if err != nil || t == nil {
				return fmt.Errorf("field %q: invalid time", key)
			}
			out[field] = *t
		case FieldDeadline:
			t, err := decodeTime(msg)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			out[field] = t
		default:
			return fmt.Errorf("field %q is not patchable", key)
		}
	}

	*f = out
	return nil
}

func decodeTime(msg json.RawMessage) (*time.Time, error) {
	if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
