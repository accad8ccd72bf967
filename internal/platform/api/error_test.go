package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) APIError {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestWriteError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Conflict(rr, "ALREADY_FOLLOWING", "Already following", "req-1", map[string]any{"user_id": "u2"})

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	e := decodeError(t, rr)
	assert.Equal(t, "ALREADY_FOLLOWING", e.Code)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "u2", e.Details["user_id"])
}

func TestRateLimited_RetryAfter(t *testing.T) {
	cases := []struct {
		name  string
		after time.Duration
		want  string
	}{
		{"none", 0, ""},
		{"whole", time.Minute, "60"},
		{"rounded up", 1500 * time.Millisecond, "2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RateLimited(rr, "slow down", "", tc.after)
			assert.Equal(t, http.StatusTooManyRequests, rr.Code)
			assert.Equal(t, tc.want, rr.Header().Get("Retry-After"))
			assert.Equal(t, CodeRateLimited, decodeError(t, rr).Code)
		})
	}
}

func TestStatusHelpers(t *testing.T) {
	rr := httptest.NewRecorder()
	Unauthorized(rr, CodeAuthRequired, "Missing token", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")

	rr = httptest.NewRecorder()
	BadGateway(rr, "down", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, CodeUpstream, decodeError(t, rr).Code)

	rr = httptest.NewRecorder()
	ServiceUnavailable(rr, "db down", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, CodeNotReady, decodeError(t, rr).Code)

	rr = httptest.NewRecorder()
	Internal(rr, "r")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rr).Message)
}
