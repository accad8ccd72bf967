package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/auth"
	"github.com/example/movie-diary/services/diary/internal/diary"
	"github.com/example/movie-diary/services/diary/internal/store"
)

// withTestUser stands in for auth.RequireUser: the X-Test-User header becomes the user id.
func withTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid := r.Header.Get("X-Test-User"); uid != "" {
			r = r.WithContext(auth.WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestRouter() chi.Router {
	svc := diary.New(store.NewInMemoryStore(), diary.Options{Pick: func(int) int { return 0 }})
	log := zap.NewNop()

	r := chi.NewRouter()
	r.Use(withTestUser)
	r.Post("/v1/diary/logs", CreateLog(svc, log))
	r.Put("/v1/diary/logs/{log_id}", UpdateLog(svc, log))
	r.Get("/v1/diary/logs", ListLogs(svc))
	r.Get("/v1/diary/users/{user_id}/logs", ListLogs(svc))
	r.Post("/v1/watchlist", AddToWatchlist(svc, log))
	r.Get("/v1/watchlist", ListWatchlist(svc))
	r.Get("/v1/watchlist/random", PickRandom(svc))
	r.Delete("/v1/watchlist/{movie_id}", RemoveFromWatchlist(svc))
	r.Get("/v1/badges", BadgeStatus(svc))
	return r
}

func do(r http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func matrix(runtime int) map[string]any {
	return map[string]any{"tmdb_id": 603, "title": "The Matrix", "runtime": runtime, "production_countries": []string{"US"}}
}

func TestCreateAndUpdateLog(t *testing.T) {
	r := newTestRouter()

	rec := do(r, http.MethodPost, "/v1/diary/logs", "me", map[string]any{
		"movie":      matrix(136),
		"rating":     9,
		"review":     "Sigue siendo increíble",
		"watched_at": "2024-05-04",
		"companions": []string{"ana"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created diary.LogResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(603), created.Log.MovieID)
	require.Len(t, created.Unlocked, 1)
	assert.Equal(t, "NEWBIE", created.Unlocked[0].Code)

	rec = do(r, http.MethodPut, "/v1/diary/logs/"+created.Log.ID, "me", map[string]any{"rating": 10})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodPut, "/v1/diary/logs/"+created.Log.ID, "intruder", map[string]any{"rating": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "LOG_NOT_FOUND", errorCode(t, rec))

	rec = do(r, http.MethodGet, "/v1/diary/users/me/logs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list logsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.NotNil(t, list.Items[0].Rating)
	assert.Equal(t, 10, *list.Items[0].Rating)
}

func TestCreateLog_Validation(t *testing.T) {
	r := newTestRouter()

	rec := do(r, http.MethodPost, "/v1/diary/logs", "me", map[string]any{"movie": matrix(100), "rating": 11})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, rec))

	rec = do(r, http.MethodPost, "/v1/diary/logs", "me", map[string]any{"movie": matrix(100), "watched_at": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/v1/diary/logs", "", map[string]any{"movie": matrix(100)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWatchlistFlow(t *testing.T) {
	r := newTestRouter()

	rec := do(r, http.MethodPost, "/v1/watchlist", "me", map[string]any{"movie": matrix(136)})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(r, http.MethodPost, "/v1/watchlist", "me", map[string]any{"movie": matrix(136)})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_IN_WATCHLIST", errorCode(t, rec))

	rec = do(r, http.MethodGet, "/v1/watchlist?max_runtime=120", "me", nil)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())

	rec = do(r, http.MethodGet, "/v1/watchlist/random?max_runtime=120", "me", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "WATCHLIST_EMPTY", errorCode(t, rec))

	rec = do(r, http.MethodGet, "/v1/watchlist/random", "me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tmdb_id":603`)

	rec = do(r, http.MethodGet, "/v1/watchlist?max_runtime=abc", "me", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodDelete, "/v1/watchlist/603", "me", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(r, http.MethodGet, "/v1/watchlist", "me", nil)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestBadgeStatus(t *testing.T) {
	r := newTestRouter()
	rec := do(r, http.MethodGet, "/v1/badges", "me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Items []struct {
			Code     string `json:"code"`
			Unlocked bool   `json:"unlocked"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 5)
	for _, b := range resp.Items {
		assert.False(t, b.Unlocked)
	}
}
