// Package api holds the JSON shapes the record server and its client exchange.
package api

import (
	"net/url"
	"strconv"
	"time"

	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
)

// OwnerHeader carries the acting member's id on every /api/v1 request
const OwnerHeader = "X-Goalpost-Owner"

// PatchRequest is the body of the PATCH routes
type PatchRequest struct {
	Fields      store.Fields `json:"fields"`
	IfUpdatedAt *time.Time   `json:"ifUpdatedAt,omitempty"`
}

// Precondition converts IfUpdatedAt into a store precondition
func (r PatchRequest) Precondition() *store.Precondition {
	if r.IfUpdatedAt == nil {
		return nil
	}
	return &store.Precondition{UpdatedAt: *r.IfUpdatedAt}
}

// IDResponse answers a create
type IDResponse struct {
	ID string `json:"id"`
}

// GoalsResponse answers the scan routes
type GoalsResponse struct {
	Goals []model.Goal `json:"goals"`
}

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error string `json:"error"`
}

// FilterQuery encodes a filter and order as query parameters
func FilterQuery(f store.Filter, o *store.Order) url.Values {
	q := url.Values{}
	if f.Deleted != nil {
		q.Set("deleted", strconv.FormatBool(*f.Deleted))
	}
	if o != nil && o.Field != "" {
		q.Set("order", string(o.Field))
		q.Set("desc", strconv.FormatBool(o.Desc))
	}
	return q
}

// ParseFilter decodes the query parameters written by FilterQuery
func ParseFilter(q url.Values) (store.Filter, store.Order, error) {
	var (
		f store.Filter
		o store.Order
	)
	if v := q.Get("deleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, o, err
		}
		f.Deleted = &b
	}
	if v := q.Get("order"); v != "" {
		o.Field = store.Field(v)
		if d := q.Get("desc"); d != "" {
			b, err := strconv.ParseBool(d)
			if err != nil {
				return f, o, err
			}
			o.Desc = b
		}
	}
	return f, o, nil
}
