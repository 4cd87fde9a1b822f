// ABOUTME: HTTP client for the folio gateway progress API
// ABOUTME: Satisfies store.ProgressStore and store.Marker for authenticated readers

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/lookupcache"
	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/store"
)

// ErrUnauthorized is returned when the gateway rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the gateway HTTP API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	cache   *lookupcache.Cache
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLookupCache caches article metadata across Lookup calls.
func WithLookupCache(cache *lookupcache.Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// New creates a client for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticated reports whether the client carries a token.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// Get implements store.ProgressStore.
func (c *Client) Get(ctx context.Context, id progress.EntityID) (*progress.Record, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := all[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

// List implements store.ProgressStore.
func (c *Client) List(ctx context.Context) (store.Records, error) {
	var raw map[string]*progress.Record
	if err := c.do(ctx, http.MethodGet, "/progress", nil, &raw); err != nil {
		return nil, err
	}
	out := make(store.Records, len(raw))
	for key, rec := range raw {
		id, err := progress.ParseEntityID(key)
		if err != nil || rec == nil {
			continue
		}
		rec.PostID = id
		out[id] = rec
	}
	return out, nil
}

// Set implements store.ProgressStore. The gateway normalizes the record and
// stamps its own update time.
func (c *Client) Set(ctx context.Context, rec *progress.Record) (*progress.Record, error) {
	var out progress.Record
	if err := c.do(ctx, http.MethodPost, "/progress", progress.SaveRequestFor(rec), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete implements store.ProgressStore.
func (c *Client) Delete(ctx context.Context, id progress.EntityID) error {
	return c.do(ctx, http.MethodDelete, "/progress?post_id="+id.String(), nil, nil)
}

// Mark implements store.Marker.
func (c *Client) Mark(ctx context.Context, id progress.EntityID, locked bool) (*progress.Record, error) {
	var out progress.Record
	req := progress.MarkRequest{PostID: id, Locked: locked}
	if err := c.do(ctx, http.MethodPost, "/mark", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Lookup returns display metadata for the visible articles among ids.
// Unknown and hidden ids are omitted.
func (c *Client) Lookup(ctx context.Context, ids []progress.EntityID) (map[progress.EntityID]progress.ArticleMeta, error) {
	out := make(map[progress.EntityID]progress.ArticleMeta)
	missing := ids
	if c.cache != nil {
		var hits map[progress.EntityID]progress.ArticleMeta
		hits, missing = c.cache.Get(ids)
		for id, m := range hits {
			out[id] = m
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	parts := make([]string, len(missing))
	for i, id := range missing {
		parts[i] = id.String()
	}
	var raw map[string]progress.ArticleMeta
	path := "/lookup?ids=" + url.QueryEscape(strings.Join(parts, ","))
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	found := make(map[progress.EntityID]progress.ArticleMeta, len(raw))
	for key, m := range raw {
		id, err := progress.ParseEntityID(key)
		if err != nil {
			continue
		}
		m.ID = id
		found[id] = m
		out[id] = m
	}
	if c.cache != nil {
		c.cache.Put(missing, found)
	}
	return out, nil
}

// Readings returns the caller's in-progress articles, most recent first.
// A non-positive limit uses the gateway's default.
func (c *Client) Readings(ctx context.Context, limit int) ([]progress.ReadingItem, error) {
	path := "/readings"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []progress.ReadingItem
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Config fetches the tracking configuration the gateway publishes.
func (c *Client) Config(ctx context.Context) (*config.Published, error) {
	var out config.Published
	if err := c.do(ctx, http.MethodGet, "/config", nil, &out); err != nil {
		return nil, err
	}
	if err := out.Tracking.ParseDurations(); err != nil {
		return nil, fmt.Errorf("gateway config: %w", err)
	}
	return &out, nil
}

// Health checks gateway liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// handleErrorResponse extracts the error message from non-2xx responses.
func handleErrorResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := strings.TrimSpace(string(data))
	var errResp progress.ErrorResponse
	if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: msg}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", store.ErrNotFound, apiErr)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %w", store.ErrUnavailable, apiErr)
	}
	return apiErr
}
