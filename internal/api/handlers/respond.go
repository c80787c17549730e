// Package handlers provides HTTP handlers for the tablefold API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/queue"
)

// ErrorResponse is the API error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// writeDomainError maps a domain error onto an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, queue.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	if errors.Is(err, queue.ErrRetryUnavailable) {
		writeError(w, http.StatusConflict, "retry unavailable", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch domain.TypeOf(err) {
	case domain.ErrorTypeValidation:
		status = http.StatusBadRequest
	case domain.ErrorTypeSelection, domain.ErrorTypeRead:
		status = http.StatusUnprocessableEntity
	case domain.ErrorTypeState:
		status = http.StatusConflict
	}
	writeError(w, status, "request failed", err.Error())
}
