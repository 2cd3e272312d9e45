package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
)

type APIHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

// NewAPIHandler creates the system endpoints handler. scheduler may be nil.
func NewAPIHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// SchedulerStatusHandler reports the cron trigger state
func (h *APIHandler) SchedulerStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if h.scheduler == nil {
		WriteJSON(w, http.StatusOK, interfaces.SweepStatus{})
		return
	}
	WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
