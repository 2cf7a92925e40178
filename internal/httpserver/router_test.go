package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habittracker/internal/access"
	"habittracker/internal/handler"
	"habittracker/internal/repository"
	"habittracker/internal/service/auth"
	"habittracker/internal/service/habit"
	"habittracker/pkg/trace"
	"habittracker/pkg/util"
)

type testServer struct {
	engine *gin.Engine
	store  *repository.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zap.NewNop()
	store := repository.NewMemoryStore()
	authService := auth.NewService(store, "router-test-secret", time.Hour, log)
	habitService := habit.NewService(store, access.NewHabitPolicy(), habit.Options{}, log)

	engine := NewRouter(Deps{
		AuthHandler:   handler.NewAuthHandler(authService, log),
		HabitHandler:  handler.NewHabitHandler(habitService, util.NewDeduper(rdb, time.Minute, log), log),
		Authenticator: authService,
		Storage:       store,
		Logger:        log,
	})
	return &testServer{engine: engine, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "password123"}

	w := s.do(t, http.MethodPost, "/users/register", "", creds)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/users/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func (s *testServer) createHabit(t *testing.T, token, action string, public bool) int {
	t.Helper()
	w := s.do(t, http.MethodPost, "/habits", token, habitBody(action, public))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func habitBody(action string, public bool) map[string]any {
	return map[string]any{
		"place":            "park",
		"time":             "07:15",
		"action":           action,
		"frequency_number": 1,
		"duration":         90,
		"is_public":        public,
	}
}

type listResponse struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []map[string]any `json:"results"`
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var resp listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(trace.HeaderName))

	w = s.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/healthz", "", nil, trace.HeaderName, "abc123")
	assert.Equal(t, "abc123", w.Header().Get(trace.HeaderName))
}

func TestHabitAccess(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice@example.com")
	bob := s.login(t, "bob@example.com")

	h1 := s.createHabit(t, alice, "stretch", false)
	h2 := s.createHabit(t, bob, "read", true)

	t.Run("anonymous list shows public habits", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/habits", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeList(t, w)
		require.Equal(t, 1, resp.Count)
		assert.EqualValues(t, h2, resp.Results[0]["id"])
	})

	t.Run("authenticated list shows own habits", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/habits", alice, nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeList(t, w)
		require.Equal(t, 1, resp.Count)
		assert.EqualValues(t, h1, resp.Results[0]["id"])
	})

	t.Run("public endpoint", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/habits/public", alice, nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeList(t, w)
		require.Equal(t, 1, resp.Count)
		assert.EqualValues(t, h2, resp.Results[0]["id"])
	})

	t.Run("anonymous create", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/habits", "", habitBody("walk", true))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("client supplied owner is ignored", func(t *testing.T) {
		body := habitBody("walk", true)
		body["user"] = 999
		w := s.do(t, http.MethodPost, "/habits", alice, body)
		require.Equal(t, http.StatusCreated, w.Code)

		var created map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.EqualValues(t, 1, created["user"])
	})

	t.Run("retrieve", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/habits/"+strconv.Itoa(h1), alice, nil).Code)
		assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/habits/"+strconv.Itoa(h1), "", nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/habits/"+strconv.Itoa(h1), bob, nil).Code)
		assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/habits/"+strconv.Itoa(h2), alice, nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/habits/abc", alice, nil).Code)
	})

	t.Run("patch", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/habits/"+strconv.Itoa(h1), alice, map[string]any{"reward": "tea"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "tea", got["reward"])
		assert.Equal(t, "stretch", got["action"])

		w = s.do(t, http.MethodPatch, "/habits/"+strconv.Itoa(h2), alice, map[string]any{"reward": "tea"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("put validation", func(t *testing.T) {
		body := habitBody("stretch", false)
		body["duration"] = 0
		w := s.do(t, http.MethodPut, "/habits/"+strconv.Itoa(h1), alice, body)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "duration")
	})

	t.Run("delete", func(t *testing.T) {
		before := s.store.Count()
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/habits/"+strconv.Itoa(h1), bob, nil).Code)
		assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, "/habits/"+strconv.Itoa(h2), alice, nil).Code)
		assert.Equal(t, before, s.store.Count())

		assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/habits/"+strconv.Itoa(h1), alice, nil).Code)
		assert.Equal(t, before-1, s.store.Count())
	})
}

func TestInvalidToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/habits", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/habits", "", nil, "Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUsers(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "dave@example.com")

	w := s.do(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dave@example.com")
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(t, http.MethodPost, "/users/register", "", map[string]string{"email": "dave@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/users/login", "", map[string]string{"email": "dave@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPagination(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "erin@example.com")
	for i := 0; i < 7; i++ {
		s.createHabit(t, token, "jog", true)
	}

	w := s.do(t, http.MethodGet, "/habits?search=JOG", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeList(t, w)
	assert.Equal(t, 7, first.Count)
	assert.Len(t, first.Results, 5)
	require.NotNil(t, first.Next)
	assert.Contains(t, *first.Next, "page=2")
	assert.Contains(t, *first.Next, "search=JOG")
	assert.Nil(t, first.Previous)

	w = s.do(t, http.MethodGet, "/habits?page=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeList(t, w)
	assert.Len(t, second.Results, 2)
	assert.Nil(t, second.Next)
	require.NotNil(t, second.Previous)
	assert.NotContains(t, *second.Previous, "page=")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/habits?page=9", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/habits?page=x", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/habits?ordering=name", token, nil).Code)
}

func TestIdempotentCreate(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "frank@example.com")

	w := s.do(t, http.MethodPost, "/habits", token, habitBody("swim", true), handler.IdempotencyHeader, "key-1")
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/habits", token, habitBody("swim", true), handler.IdempotencyHeader, "key-1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, s.store.Count())

	// 失败的请求释放幂等键，客户端可以重试
	bad := habitBody("", true)
	w = s.do(t, http.MethodPost, "/habits", token, bad, handler.IdempotencyHeader, "key-2")
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPost, "/habits", token, habitBody("swim", true), handler.IdempotencyHeader, "key-2")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHugePageIsNotFound(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "gina@example.com")
	s.createHabit(t, token, "yoga", true)

	for _, path := range []string{
		"/habits/public?page=1844674407370955163",
		"/habits?page=9223372036854775807",
		"/habits?page=1844674407370955163&page_size=50",
	} {
		w := s.do(t, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestPutKeepsVisibility(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "hank@example.com")
	id := s.createHabit(t, token, "journal", false)

	body := habitBody("journal at night", false)
	delete(body, "is_public")
	w := s.do(t, http.MethodPut, "/habits/"+strconv.Itoa(id), token, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, false, got["is_public"])

	w = s.do(t, http.MethodGet, "/habits", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeList(t, w).Count)
}

func TestAnonymousMalformedBody(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "iris@example.com")
	id := s.createHabit(t, token, "stretch", true)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch} {
		path := "/habits"
		if method != http.MethodPost {
			path += "/" + strconv.Itoa(id)
		}
		req := httptest.NewRequest(method, path, bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, method)
	}
}
