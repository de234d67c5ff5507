// Package sync talks to goalpost-server: Client is a store.Store over HTTP and
// Refresher keeps a coordinator's view current in the background.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/existflow/goalpost/internal/api"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
)

// Client is the record server client. It acts as a single member.
type Client struct {
	serverURL  string
	owner      string
	httpClient *http.Client
}

var _ store.Store = (*Client)(nil)

// NewClient creates a client for the server at serverURL acting as owner
func NewClient(serverURL, owner string) *Client {
	return &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		owner:      owner,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// ServerURL returns the server base URL
func (c *Client) ServerURL() string {
	return c.serverURL
}

// Health checks the server answers
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Get(ctx context.Context, ownerID, id string) (model.Goal, error) {
	var g model.Goal
	err := c.do(ctx, http.MethodGet, ownerPath(ownerID, id), nil, &g)
	return g, err
}

func (c *Client) Put(ctx context.Context, ownerID string, g model.Goal) (string, error) {
	var resp api.IDResponse
	if err := c.do(ctx, http.MethodPost, ownerPath(ownerID, ""), g, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) Patch(ctx context.Context, ownerID, id string, fields store.Fields, pre *store.Precondition) error {
	req := api.PatchRequest{Fields: fields}
	if pre != nil {
		at := pre.UpdatedAt
		req.IfUpdatedAt = &at
	}
	return c.do(ctx, http.MethodPatch, ownerPath(ownerID, id), req, nil)
}

func (c *Client) ScanByOwner(ctx context.Context, ownerID string, f store.Filter) ([]model.Goal, error) {
	var resp api.GoalsResponse
	path := ownerPath(ownerID, "") + query(api.FilterQuery(f, nil))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Goals, nil
}

func (c *Client) ScanGlobal(ctx context.Context, f store.Filter, o store.Order) ([]model.Goal, error) {
	var resp api.GoalsResponse
	path := "/api/v1/goals" + query(api.FilterQuery(f, &o))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Goals, nil
}

func (c *Client) PutPublic(ctx context.Context, g model.Goal) error {
	return c.do(ctx, http.MethodPut, "/api/v1/goals/"+url.PathEscape(g.ID), g.Public(), nil)
}

func (c *Client) PatchPublic(ctx context.Context, id string, fields store.Fields) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/goals/"+url.PathEscape(id), api.PatchRequest{Fields: fields.Public()}, nil)
}

func ownerPath(ownerID, id string) string {
	p := "/api/v1/owners/" + url.PathEscape(ownerID) + "/goals"
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

func query(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// do sends body as JSON and decodes a 2xx answer into out. Not-found and forbidden
// answers become store.ErrNotFound; conflicts become store.ErrConflict.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(api.OwnerHeader, c.owner)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(respBody))
	var e api.ErrorResponse
	if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
		msg = e.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusForbidden:
		return fmt.Errorf("%w: %s", store.ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", store.ErrConflict, msg)
	default:
		return &StatusError{Code: resp.StatusCode, Msg: msg}
	}
}

// StatusError is a non-2xx answer that has no store meaning
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Msg)
}
