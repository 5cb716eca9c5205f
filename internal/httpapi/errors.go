package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/flagwise/moderation/internal/community"
	"github.com/flagwise/moderation/internal/moderation"
)

// Error codes carried in the JSON error body. Clients branch on these, not
// on the human-readable message.
const (
	codeInvalidInput = "invalid_input"
	codeConflict     = "conflict"
	codeNotFound     = "not_found"
	codeRateLimited  = "rate_limited"
	codeUnavailable  = "moderation_unavailable"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

// writeError writes a structured JSON error.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeDomainError maps registry and engine errors onto the HTTP taxonomy.
// Unrecognized errors become a 500 without leaking internals.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, community.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "community not found")
	case errors.Is(err, community.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, "community already exists")
	case errors.Is(err, moderation.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "moderation backend unavailable")
	default:
		log.Printf("[http] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
