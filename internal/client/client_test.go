package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/scijournal/config"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/service/session"
	"github.com/weiwangfds/scijournal/internal/service/storage"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(context.Background(), storage.NewMemoryStore())
	require.NoError(t, err)
	return s
}

func newClient(srv *httptest.Server, tokens TokenSource) *Client {
	return New(config.APIConfig{
		BaseURL:                  srv.URL + "/api/",
		Timeout:                  5 * time.Second,
		UserAgent:                "scijournal-test",
		ClearTokenOnUnauthorized: true,
	}, tokens)
}

// recorder 记录收到的请求
type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func (r *recorder) add(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.bodies = append(r.bodies, string(body))
	r.mu.Unlock()
}

func (r *recorder) last() (*http.Request, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.requests)
	return r.requests[n-1], r.bodies[n-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginThenAuthorizedRequest(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		switch r.URL.Path {
		case "/api/auth/login":
			writeJSON(w, http.StatusOK, map[string]string{"token": "mock-token", "message": "Login successful"})
		case "/api/entries":
			writeJSON(w, http.StatusOK, map[string]any{"entries": []any{}, "total": 0})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sess := newSession(t)
	c := newClient(srv, sess)
	ctx := context.Background()

	resp, err := c.Login(ctx, model.Credentials{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "mock-token", resp.Token)

	loginReq, loginBody := rec.last()
	assert.Empty(t, loginReq.Header.Get("Authorization"))
	assert.JSONEq(t, `{"email":"a@b.c","password":"secret"}`, loginBody)

	require.NoError(t, sess.SetToken(ctx, resp.Token))
	assert.True(t, sess.IsAuthenticated())

	list, err := c.ListEntries(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, list.Entries)

	req, _ := rec.last()
	assert.Equal(t, "Bearer mock-token", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "scijournal-test", req.Header.Get("User-Agent"))
	assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
	assert.Equal(t, "1", req.URL.Query().Get("page"))
	assert.Equal(t, "10", req.URL.Query().Get("pageSize"))
}

func TestListEntriesQueryParams(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"entries": []map[string]any{{"id": 1, "title": "t", "content": "one two three", "tags": nil}},
			"total":   1,
		})
	}))
	defer srv.Close()

	c := newClient(srv, nil)
	list, err := c.ListEntries(context.Background(), model.ListParams{
		Page: 2, PageSize: 5, CategoryID: model.Ptr(uint(3)), TagID: model.Ptr(uint(9)),
	})
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, 3, list.Entries[0].WordCount)
	assert.NotNil(t, list.Entries[0].Tags)

	req, _ := rec.last()
	q := req.URL.Query()
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "5", q.Get("pageSize"))
	assert.Equal(t, "3", q.Get("categoryId"))
	assert.Equal(t, "9", q.Get("tagId"))
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantCode    apperrors.ErrorCode
		wantMessage string
	}{
		{"json error field", http.StatusBadRequest, "application/json", `{"error":"Title is required"}`, apperrors.ErrInvalidParams, "Title is required"},
		{"json message field", http.StatusConflict, "application/json", `{"message":"User already exists"}`, apperrors.ErrConflict, "User already exists"},
		{"plain text", http.StatusInternalServerError, "text/plain", "Failed to create entry\n", apperrors.ErrInternalServer, "Failed to create entry"},
		{"empty body", http.StatusNotFound, "text/plain", "", apperrors.ErrNotFound, "Resource Not Found"},
		{"oversized text", http.StatusBadGateway, "text/plain", strings.Repeat("x", 600), apperrors.ErrServiceUnavailable, "Service Unavailable"},
		{"html page", http.StatusInternalServerError, "text/html", "<html>boom</html>", apperrors.ErrInternalServer, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newClient(srv, nil).GetEntry(context.Background(), 1)
			require.Error(t, err)
			appErr, ok := apperrors.GetAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.wantMessage, appErr.Message)
		})
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newClient(srv, nil)
	srv.Close()

	_, err := c.GetStats(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
	assert.ErrorIs(t, err, apperrors.ErrNetworkFailure)
}

func TestDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	_, err := newClient(srv, nil).GetStats(context.Background())
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrDecodeResponse, appErr.Code)
}

func TestUnauthorizedClearsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
	}))
	defer srv.Close()

	ctx := context.Background()
	sess := newSession(t)
	require.NoError(t, sess.SetToken(ctx, "stale"))

	_, err := newClient(srv, sess).ListCategories(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Equal(t, "Invalid token", apperrors.UserMessage(err))
	assert.False(t, sess.IsAuthenticated())
}

func TestUnauthorizedKeepsNewerToken(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t)
	require.NoError(t, sess.SetToken(ctx, "old"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 请求在途期间用户重新登录
		_ = sess.SetToken(context.Background(), "new")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(srv, sess).GetPreferences(ctx)
	require.Error(t, err)
	assert.Equal(t, "new", sess.Token())
}

func TestUnauthorizedWithoutClearing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()
	sess := newSession(t)
	require.NoError(t, sess.SetToken(ctx, "keep"))

	c := New(config.APIConfig{BaseURL: srv.URL + "/api", Timeout: time.Second}, sess)
	_, err := c.GetStats(ctx)
	require.Error(t, err)
	assert.Equal(t, "keep", sess.Token())
}

func TestMutationsUseContract(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case strings.HasPrefix(r.URL.Path, "/api/categories"):
			writeJSON(w, http.StatusOK, map[string]any{"id": 4, "name": "Work", "color": "#00ff00"})
		case r.URL.Path == "/api/user/preferences":
			writeJSON(w, http.StatusOK, map[string]any{"theme": "dark"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"id": 7, "title": "Day", "content": "a b", "tags": []map[string]any{{"id": 1, "name": "x"}}})
		}
	}))
	defer srv.Close()

	c := newClient(srv, nil)
	ctx := context.Background()

	entry, err := c.UpdateEntry(ctx, 7, model.EntryInput{Title: "Day", Content: "a b", Tags: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, uint(7), entry.ID)
	req, body := rec.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/entries/7", req.URL.Path)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"title":"Day","content":"a b","mood":"","categoryId":null,"tags":["x"]}`, body)

	require.NoError(t, c.DeleteEntry(ctx, 7))
	req, _ = rec.last()
	assert.Equal(t, "/api/entries/7", req.URL.Path)

	category, err := c.CreateCategory(ctx, model.CategoryInput{Name: "Work", Color: "#00ff00"})
	require.NoError(t, err)
	assert.Equal(t, uint(4), category.ID)

	require.NoError(t, c.DeleteCategory(ctx, 4))
	req, _ = rec.last()
	assert.Equal(t, "/api/categories/4", req.URL.Path)

	updated, err := c.UpdatePreferences(ctx, model.RemotePreferences{Theme: model.Ptr("dark")})
	require.NoError(t, err)
	assert.Equal(t, "dark", *updated.Theme)
	_, body = rec.last()
	assert.JSONEq(t, `{"theme":"dark"}`, body)
}

func TestRateLimitRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []any{})
	}))
	defer srv.Close()

	c := New(config.APIConfig{BaseURL: srv.URL + "/api", Timeout: time.Second, RateLimit: 0.001, RateLimitBurst: 1}, nil)
	_, err := c.ListCategories(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListCategories(ctx)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
}
