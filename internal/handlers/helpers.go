package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/models"
)

// RequireMethod validates that the HTTP request uses one of the given methods.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, method := range methods {
		if r.Method == method {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteServiceError maps service errors onto HTTP status codes:
// validation 400, unknown job 404, not runnable 409, anything else 500.
func WriteServiceError(w http.ResponseWriter, logger arbor.ILogger, err error) {
	var notRunnable *models.JobNotRunnableError
	switch {
	case errors.Is(err, models.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrJobNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &notRunnable):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		logger.Error().Err(err).Msg("Request failed")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// clearWriteDeadline lifts the server write timeout for requests that run
// pipeline stages synchronously.
func clearWriteDeadline(w http.ResponseWriter) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
}
