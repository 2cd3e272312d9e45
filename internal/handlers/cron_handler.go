package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
)

// Sweeper runs admission sweeps with the configured limits
type Sweeper interface {
	SweepOptions(now time.Time) models.SweepOptions
	RunBatchSweep(ctx context.Context, opts models.SweepOptions) (*models.SweepReport, error)
}

// CronHandler serves the externally triggered sweep endpoints
type CronHandler struct {
	sweeper      Sweeper
	kvStorage    interfaces.KeyValueStorage
	configSecret string
	logger       arbor.ILogger
}

// NewCronHandler creates a cron handler. The bearer secret is resolved per
// request from env, then the KV store, then configSecret.
func NewCronHandler(sweeper Sweeper, kvStorage interfaces.KeyValueStorage, configSecret string, logger arbor.ILogger) *CronHandler {
	return &CronHandler{
		sweeper:      sweeper,
		kvStorage:    kvStorage,
		configSecret: configSecret,
		logger:       logger,
	}
}

// BatchAnalyzeHandler runs one sweep and returns its report.
// GET|POST /api/cron/batch-analyze (alias /api/cron/check-and-do)
func (h *CronHandler) BatchAnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	secret, err := common.ResolveAPIKey(r.Context(), h.kvStorage, "cron_secret", h.configSecret)
	if err != nil || secret == "" {
		WriteError(w, http.StatusServiceUnavailable, "Cron secret is not configured")
		return
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		h.logger.Warn().Str("remote", r.RemoteAddr).Msg("Rejected cron request")
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	clearWriteDeadline(w)
	report, err := h.sweeper.RunBatchSweep(r.Context(), h.sweeper.SweepOptions(time.Now().UTC()))
	if err != nil {
		h.logger.Error().Err(err).Msg("Batch sweep failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, report)
}
