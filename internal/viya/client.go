// Package viya is a thin client for the SAS Viya REST services the tools
// call: microanalyticScore, casManagement, compute, jobExecution,
// jobDefinitions and catalog. Every call takes the session's resolved logon
// payload explicitly; the client itself holds no credentials.
package viya

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx response from a Viya service.
type APIError struct {
	Status int
	Method string
	URL    string
	Body   string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("viya: %s %s returned %d: %s", e.Method, e.URL, e.Status, msg)
}

// Collection is the standard Viya paged list envelope.
type Collection[T any] struct {
	Items []T   `json:"items"`
	Count int64 `json:"count"`
	Start int64 `json:"start"`
	Limit int64 `json:"limit"`
}

// Logon is the authentication material for one call. It mirrors the
// resolver's payload without importing it, keeping this package reusable.
type Logon struct {
	Host      string
	AuthType  string
	Token     string
	TokenType string
}

// Client issues authenticated requests against a Viya deployment.
type Client struct {
	hc  *http.Client
	log *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the transport, typically one carrying the VIYACERT
// CA pool.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// NewClient builds a Client.
func NewClient(log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		hc:  &http.Client{Timeout: 5 * time.Minute},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get issues a GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, logon *Logon, path string, query url.Values, out any) error {
	return c.do(ctx, logon, http.MethodGet, path, query, "", nil, out)
}

// post issues a POST with a JSON body and decodes the response into out.
func (c *Client) post(ctx context.Context, logon *Logon, path string, contentType string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("viya: encode request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	return c.do(ctx, logon, http.MethodPost, path, nil, contentType, rd, out)
}

// postRaw issues a POST with a preencoded body, used for SAS source text.
func (c *Client) postRaw(ctx context.Context, logon *Logon, path, contentType string, body io.Reader, out any) error {
	return c.do(ctx, logon, http.MethodPost, path, nil, contentType, body, out)
}

func (c *Client) delete(ctx context.Context, logon *Logon, path string) error {
	return c.do(ctx, logon, http.MethodDelete, path, nil, "", nil, nil)
}

// do runs one request. path is joined to the logon host unless it is
// already absolute, which direct scoring endpoints use. out may be nil to
// discard the body, a *string for raw text, or a pointer to decode JSON
// into.
func (c *Client) do(ctx context.Context, logon *Logon, method, path string, query url.Values, contentType string, body io.Reader, out any) error {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if logon.Host == "" {
			return fmt.Errorf("viya: no host in logon payload")
		}
		u = strings.TrimRight(logon.Host, "/") + path
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("viya: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if logon.AuthType != "none" && logon.Token != "" {
		tt := logon.TokenType
		if tt == "" {
			tt = "Bearer"
		}
		req.Header.Set("Authorization", tt+" "+logon.Token)
	}

	start := time.Now()
	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("viya: %s %s: %w", method, u, err)
	}
	defer res.Body.Close()

	c.log.DebugContext(ctx, "viya.call",
		slog.String("method", method),
		slog.String("url", u),
		slog.Int("status", res.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	raw, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("viya: read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{Status: res.StatusCode, Method: method, URL: u, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = string(raw)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("viya: decode %s %s response: %w", method, u, err)
	}
	return nil
}

// pageQuery builds the standard start/limit/filter query parameters.
func pageQuery(start, limit int, filter string) url.Values {
	q := url.Values{}
	if start > 0 {
		q.Set("start", fmt.Sprint(start))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if filter != "" {
		q.Set("filter", filter)
	}
	return q
}
