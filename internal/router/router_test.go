package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/scijournal/config"
	"github.com/weiwangfds/scijournal/internal/database"
	"github.com/weiwangfds/scijournal/internal/model"
)

type testServer struct {
	t     *testing.T
	r     *Router
	token string
}

func newTestServer(t *testing.T, rateLimit float64, burst int) *testServer {
	t.Helper()
	db, err := database.InitServer(config.DatabaseConfig{Driver: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	r := NewRouter(db, config.ServerConfig{
		JWTSecret:      "router-test",
		JWTExpiry:      time.Hour,
		RateLimit:      rateLimit,
		RateLimitBurst: burst,
	})
	return &testServer{t: t, r: r}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.r.GetEngine().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) register(email string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register", model.Credentials{Email: email, Password: "pw"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	s.token = decode[model.AuthResponse](s.t, rec).Token
	require.NotEmpty(s.t, s.token)
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rec)["error"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0, 0)
	rec := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, 0, 0)

	rec := s.do(http.MethodGet, "/api/entries", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authorization header required", errorOf(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	s.r.GetEngine().ServeHTTP(rec, req)
	assert.Equal(t, "Invalid authorization header", errorOf(t, rec))

	s.token = "not-a-jwt"
	rec = s.do(http.MethodGet, "/api/entries", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", errorOf(t, rec))
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, 0, 0)
	s.register("ada@example.com")

	rec := s.do(http.MethodPost, "/api/auth/register", model.Credentials{Email: "ada@example.com", Password: "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists", errorOf(t, rec))

	rec = s.do(http.MethodPost, "/api/auth/login", model.Credentials{Email: "ada@example.com", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", errorOf(t, rec))

	rec = s.do(http.MethodPost, "/api/auth/login", model.Credentials{Email: "ada@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[model.AuthResponse](t, rec).Token)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	s.r.GetEngine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", errorOf(t, rec))
}

func TestEntryRoutes(t *testing.T) {
	s := newTestServer(t, 0, 0)
	s.register("ada@example.com")

	rec := s.do(http.MethodPost, "/api/entries", model.EntryInput{
		Title: "Day one", Content: "a quiet morning", Mood: model.MoodPeaceful, Tags: []string{"home"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entry := decode[model.Entry](t, rec)
	assert.Equal(t, 3, entry.WordCount)

	rec = s.do(http.MethodPost, "/api/entries", model.EntryInput{Title: "", Content: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/entries?page=1&pageSize=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[model.EntryList](t, rec)
	assert.Equal(t, int64(1), list.Total)

	rec = s.do(http.MethodGet, "/api/entries/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[model.EntryStats](t, rec)
	assert.Equal(t, int64(1), stats.TotalEntries)
	assert.Equal(t, int64(3), stats.TotalWords)

	rec = s.do(http.MethodGet, "/api/entries/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid entry ID", errorOf(t, rec))

	rec = s.do(http.MethodPut, "/api/entries/9999", model.EntryInput{Title: "t", Content: "c"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Entry not found", errorOf(t, rec))

	path := "/api/entries/" + jsonNumber(entry.ID)
	rec = s.do(http.MethodPut, path, model.EntryInput{Title: "Day one", Content: "edited", Mood: model.MoodHappy})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[model.Entry](t, rec).Tags)

	rec = s.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryAndPreferenceRoutes(t *testing.T) {
	s := newTestServer(t, 0, 0)
	s.register("ada@example.com")

	rec := s.do(http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Category](t, rec), 3)

	rec = s.do(http.MethodPost, "/api/categories", model.CategoryInput{Name: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Category name is required", errorOf(t, rec))

	rec = s.do(http.MethodPost, "/api/categories", model.CategoryInput{Name: "Travel"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.Category](t, rec)
	assert.Equal(t, "#0693E3", created.Color)

	rec = s.do(http.MethodPut, "/api/categories/9999", model.CategoryInput{Name: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Category not found", errorOf(t, rec))

	rec = s.do(http.MethodDelete, "/api/categories/"+jsonNumber(created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/user/preferences", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prefs := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "light", prefs["theme"])
	assert.Equal(t, "MM/DD/YYYY", prefs["dateFormat"])
	assert.Equal(t, true, prefs["emailNotifications"])

	rec = s.do(http.MethodPut, "/api/user/preferences", map[string]interface{}{"theme": "dark"})
	require.Equal(t, http.StatusOK, rec.Code)
	prefs = decode[map[string]interface{}](t, rec)
	assert.Equal(t, "dark", prefs["theme"])
	assert.Equal(t, "list", prefs["defaultView"])

	rec = s.do(http.MethodPut, "/api/user/preferences", map[string]interface{}{"defaultView": "grid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 0.001, 2)

	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodGet, "/api/entries", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := s.do(http.MethodGet, "/api/entries", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests. Please try again later.", errorOf(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// 健康检查不受限流影响
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestSwaggerDocCoversAPIRoutes(t *testing.T) {
	s := newTestServer(t, 0, 0)
	rec := s.do(http.MethodGet, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		BasePath string                               `json:"basePath"`
		Paths    map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "/api", doc.BasePath)

	// 每个接口都要有文档
	for _, route := range s.r.GetEngine().Routes() {
		if !strings.HasPrefix(route.Path, "/api/") {
			continue
		}
		path := strings.ReplaceAll(strings.TrimPrefix(route.Path, "/api"), ":id", "{id}")
		_, ok := doc.Paths[path][strings.ToLower(route.Method)]
		assert.True(t, ok, "%s %s missing from swagger doc", route.Method, route.Path)
	}
}
