// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rpc calls database functions exposed by a hosted PostgREST
// backend (Supabase) at /rest/v1/rpc/<function>.
package rpc

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
	"unicode/utf8"

	"github.com/techcare/ops/pkg/types"
)

const (
	rpcPath          = "/rest/v1/rpc/"
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "techcare-ops/0.1"

	// maxErrorBody caps how much of a non-JSON error body ends up in Error.Message.
	maxErrorBody = 512
)

// ErrMissingCredentials is returned by NewClient when the URL or key is empty.
var ErrMissingCredentials = errors.New("backend URL and service key are required")

// Error is a non-2xx response from the backend. PostgREST reports failures
// as {"code","message","details","hint"}; other bodies land in Message.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP %d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Details != "" {
		fmt.Fprintf(&b, " [details: %s]", e.Details)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " [hint: %s]", e.Hint)
	}
	return b.String()
}

// Client is a reusable RPC client bound to one backend and one key.
// It is safe to reuse serially across calls.
type Client struct {
	HTTP       *http.Client
	baseURL    string
	key        string
	userAgent  string
	maxRetries int
}

// NewClient validates cfg and returns a client. When httpClient is nil a
// client with cfg.Timeout (default 60s) is created.
func NewClient(cfg types.BackendConfig, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, ErrMissingCredentials
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", cfg.URL)
	}

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		HTTP:       httpClient,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		key:        cfg.ServiceKey,
		userAgent:  userAgent,
		maxRetries: cfg.RateLimitRetries,
	}, nil
}

// Endpoint returns the URL for a named function.
func (c *Client) Endpoint(function string) string {
	return c.baseURL + rpcPath + url.PathEscape(function)
}

// Call invokes function with params encoded as a JSON object and returns
// the raw response body. An empty body (HTTP 204 for void functions) yields
// a nil payload and no error.
func (c *Client) Call(ctx context.Context, function string, params any) (json.RawMessage, error) {
	if function == "" {
		return nil, fmt.Errorf("empty function name")
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding params for %s: %w", function, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(function), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := doWithRetry(ctx, c.HTTP, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", function, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading rpc %s response: %w", function, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, data)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

func decodeError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}
	if err := json.Unmarshal(body, e); err == nil && (e.Message != "" || e.Code != "") {
		return e
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = truncate(msg, maxErrorBody) + "..."
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	e.Message = msg
	return e
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
