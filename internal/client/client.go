// Package client talks to the layout sync API over HTTP.
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
	"strings"
	"time"

	"gridboard/pkg/dashboard"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gridboard api: status %d", e.Status)
	}
	return fmt.Sprintf("gridboard api: status %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto the dashboard sentinels so callers
// can use errors.Is regardless of transport.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return dashboard.ErrNotFound
	case http.StatusBadRequest:
		switch e.Message {
		case dashboard.ErrMissingID.Error():
			return dashboard.ErrMissingID
		case dashboard.ErrInvalidPayload.Error():
			return dashboard.ErrInvalidPayload
		}
	}
	return nil
}

// Client is a small JSON client for /layout and /widget.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the API rooted at base. A nil httpClient gets a
// ten second timeout.
func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimSuffix(base, "/"), http: httpClient}
}

// Get fetches the full state.
func (c *Client) Get(ctx context.Context) (dashboard.State, error) {
	var state dashboard.State
	err := c.do(ctx, http.MethodGet, "/layout", nil, nil, &state)
	return state, err
}

// Replace posts a snapshot. Halves without their Has flag are omitted from
// the body so the server leaves them untouched.
func (c *Client) Replace(ctx context.Context, r dashboard.Replacement) (dashboard.State, error) {
	body := map[string]any{}
	if r.HasLayout {
		body["layout"] = nonNilLayout(r.Layout)
	}
	if r.HasWidgets {
		body["widgets"] = nonNilWidgets(r.Widgets)
	}
	var state dashboard.State
	err := c.do(ctx, http.MethodPost, "/layout", nil, body, &state)
	return state, err
}

// DeleteWidget removes a widget server-side and returns the resulting state.
func (c *Client) DeleteWidget(ctx context.Context, id string) (dashboard.State, error) {
	var out struct {
		OK      bool                              `json:"ok"`
		Layout  []dashboard.LayoutItem            `json:"layout"`
		Widgets map[string]dashboard.WidgetConfig `json:"widgets"`
	}
	if err := c.do(ctx, http.MethodDelete, "/widget", idQuery(id), nil, &out); err != nil {
		return dashboard.State{}, err
	}
	return dashboard.State{Layout: nonNilLayout(out.Layout), Widgets: nonNilWidgets(out.Widgets)}, nil
}

// GetWidget fetches a single widget config.
func (c *Client) GetWidget(ctx context.Context, id string) (dashboard.WidgetConfig, error) {
	var out struct {
		Widget dashboard.WidgetConfig `json:"widget"`
	}
	err := c.do(ctx, http.MethodGet, "/widget", idQuery(id), nil, &out)
	return out.Widget, err
}

func idQuery(id string) url.Values {
	params := url.Values{}
	if id != "" {
		params.Set("id", id)
	}
	return params
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		return &StatusError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func nonNilLayout(l []dashboard.LayoutItem) []dashboard.LayoutItem {
	if l == nil {
		return []dashboard.LayoutItem{}
	}
	return l
}

func nonNilWidgets(w map[string]dashboard.WidgetConfig) map[string]dashboard.WidgetConfig {
	if w == nil {
		return map[string]dashboard.WidgetConfig{}
	}
	return w
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == code
}
