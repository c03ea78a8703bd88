// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techcare/ops/pkg/types"
)

func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(types.BackendConfig{URL: ts.URL + "/", ServiceKey: "service-key"}, ts.Client())
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.BackendConfig
		wantErr error
		errMsg  string
	}{
		{name: "missing url", cfg: types.BackendConfig{ServiceKey: "k"}, wantErr: ErrMissingCredentials},
		{name: "missing key", cfg: types.BackendConfig{URL: "https://x.supabase.co"}, wantErr: ErrMissingCredentials},
		{name: "whitespace key", cfg: types.BackendConfig{URL: "https://x.supabase.co", ServiceKey: "  "}, wantErr: ErrMissingCredentials},
		{name: "relative url", cfg: types.BackendConfig{URL: "x.supabase.co", ServiceKey: "k"}, errMsg: "invalid backend URL"},
		{name: "valid", cfg: types.BackendConfig{URL: "https://x.supabase.co", ServiceKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg, nil)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, defaultTimeout, c.HTTP.Timeout)
			}
		})
	}
}

func TestCall_SendsAuthenticatedRequest(t *testing.T) {
	var got struct {
		method, path, apikey, auth, contentType string
		body                                    map[string]string
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.apikey = r.Header.Get("apikey")
		got.auth = r.Header.Get("Authorization")
		got.contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	res, err := c.Call(context.Background(), "exec_sql", map[string]string{"query": "SELECT 1;"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"status":"ok"}`, string(res))
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/rest/v1/rpc/exec_sql", got.path)
	assert.Equal(t, "service-key", got.apikey)
	assert.Equal(t, "Bearer service-key", got.auth)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, map[string]string{"query": "SELECT 1;"}, got.body)
}

func TestCall_NoContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	res, err := newTestClient(t, ts).Call(context.Background(), "exec_sql", map[string]string{"query": "SELECT 1;"})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCall_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "postgrest error body",
			status:     http.StatusBadRequest,
			body:       `{"code":"42P01","message":"relation \"t\" does not exist","details":null,"hint":null}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "42P01",
			wantMsg:    `relation "t" does not exist`,
		},
		{
			name:       "function missing",
			status:     http.StatusNotFound,
			body:       `{"code":"PGRST202","message":"Could not find the function public.exec_sql(query)","hint":"Perhaps you meant to call public.exec"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "PGRST202",
			wantMsg:    "Could not find the function public.exec_sql(query)",
		},
		{
			name:       "plain text body",
			status:     http.StatusBadGateway,
			body:       "upstream unavailable",
			wantStatus: http.StatusBadGateway,
			wantMsg:    "upstream unavailable",
		},
		{
			name:       "empty body",
			status:     http.StatusUnauthorized,
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := newTestClient(t, ts).Call(context.Background(), "exec_sql", map[string]string{"query": "x;"})
			require.Error(t, err)

			var rpcErr *Error
			require.True(t, errors.As(err, &rpcErr), "want *rpc.Error, got %T", err)
			assert.Equal(t, tt.wantStatus, rpcErr.StatusCode)
			assert.Equal(t, tt.wantCode, rpcErr.Code)
			assert.Equal(t, tt.wantMsg, rpcErr.Message)
			assert.True(t, strings.HasPrefix(err.Error(), "HTTP "))
		})
	}
}

func TestDecodeError_TruncatesOnRuneBoundary(t *testing.T) {
	body := "a" + strings.Repeat("ç", maxErrorBody)
	e := decodeError(http.StatusBadGateway, []byte(body))

	assert.True(t, utf8.ValidString(e.Message))
	assert.True(t, strings.HasSuffix(e.Message, "ç..."))
	assert.LessOrEqual(t, len(e.Message), maxErrorBody+len("..."))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"ação", 2, "a"},
		{"ação", 3, "aç"},
		{"ç", 1, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.s, tt.n), "%q[:%d]", tt.s, tt.n)
	}
}

func TestCall_RateLimitRetriesConfigured(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c, err := NewClient(types.BackendConfig{URL: ts.URL, ServiceKey: "k", RateLimitRetries: 2}, ts.Client())
	require.NoError(t, err)

	res, err := c.Call(context.Background(), "exec_sql", map[string]string{"query": "SELECT 1;"})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(res))
	assert.Equal(t, 2, calls)
}

func TestCall_EmptyFunction(t *testing.T) {
	c, err := NewClient(types.BackendConfig{URL: "https://x.supabase.co", ServiceKey: "k"}, nil)
	require.NoError(t, err)
	_, err = c.Call(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestEndpoint_EscapesFunction(t *testing.T) {
	c, err := NewClient(types.BackendConfig{URL: "https://x.supabase.co/", ServiceKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://x.supabase.co/rest/v1/rpc/exec_sql", c.Endpoint("exec_sql"))
	assert.Equal(t, "https://x.supabase.co/rest/v1/rpc/a%2Fb", c.Endpoint("a/b"))
}
