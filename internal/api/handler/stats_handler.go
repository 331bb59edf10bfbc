package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/gitjobs/notifier/internal/service"
)

// StatsHandler serves a human-readable JSON snapshot of the queue.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type StatsHandler struct {
	svc    *service.NotificationService
	logger *zap.Logger
}

func NewStatsHandler(svc *service.NotificationService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, logger: logger}
}

// GetStats handles GET /api/v1/stats
//
// @Summary  Pending backlog and open leases
// @Tags     stats
// @Produce  json
// @Success  200  {object}  domain.Stats
// @Router   /api/v1/stats [get]
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		mapError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
