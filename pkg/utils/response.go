package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
)

// Response is the envelope every JSON endpoint answers with. Extra payload
// fields are merged in by embedding Response in a handler-specific struct.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse adds the machine-readable code and rate-limit wait.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes the bare envelope.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{Success: status < 400, Message: message})
}

// WriteError maps err onto a status and user-facing message.
func WriteError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Message: apperr.Message(err)}
	var rl *apperr.RateLimitedError
	var ae *apperr.Error
	switch {
	case errors.As(err, &rl):
		resp.Code = "rate_limited"
		resp.RetryAfter = apperr.WaitSeconds(rl.Wait)
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
	case errors.As(err, &ae):
		resp.Code = ae.Code
	}
	WriteJSON(w, apperr.HTTPStatus(err), resp)
}

// WriteRateLimited writes a 429 with Retry-After for middleware-level limits.
func WriteRateLimited(w http.ResponseWriter, wait time.Duration, message string) {
	secs := apperr.WaitSeconds(wait)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{Message: message, Code: "rate_limited", RetryAfter: secs})
}
