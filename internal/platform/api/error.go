package api

import (
	"net/http"
	"strconv"
	"time"
)

// Error codes shared by every service.
const (
	CodeAuthRequired = "AUTH_REQUIRED"
	CodeForbidden    = "FORBIDDEN"
	CodeInvalidJSON  = "INVALID_JSON"
	CodeValidation   = "VALIDATION_FAILED"
	CodeNotFound     = "NOT_FOUND"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUpstream     = "UPSTREAM_UNAVAILABLE"
	CodeNotReady     = "NOT_READY"
	CodeInternal     = "INTERNAL"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// WriteError writes the error envelope. Error bodies are never cached.
func WriteError(w http.ResponseWriter, status int, code, message, requestID string, details map[string]any) {
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, status, ErrorResponse{Error: APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: requestID,
	}})
}

func BadRequest(w http.ResponseWriter, code, message, requestID string, details map[string]any) {
	WriteError(w, http.StatusBadRequest, code, message, requestID, details)
}

func Unauthorized(w http.ResponseWriter, code, message, requestID string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="movie-diary"`)
	WriteError(w, http.StatusUnauthorized, code, message, requestID, nil)
}

func Forbidden(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusForbidden, code, message, requestID, nil)
}

func NotFound(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusNotFound, code, message, requestID, nil)
}

func Conflict(w http.ResponseWriter, code, message, requestID string, details map[string]any) {
	WriteError(w, http.StatusConflict, code, message, requestID, details)
}

// RateLimited answers 429. A positive retryAfter is sent as whole seconds, rounded up.
func RateLimited(w http.ResponseWriter, message, requestID string, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, message, requestID, nil)
}

// BadGateway reports a failed dependency such as the movie metadata provider.
func BadGateway(w http.ResponseWriter, message, requestID string) {
	WriteError(w, http.StatusBadGateway, CodeUpstream, message, requestID, nil)
}

func ServiceUnavailable(w http.ResponseWriter, message, requestID string) {
	WriteError(w, http.StatusServiceUnavailable, CodeNotReady, message, requestID, nil)
}

func Internal(w http.ResponseWriter, requestID string) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal server error", requestID, nil)
}
