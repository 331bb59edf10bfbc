package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apimw "github.com/gitjobs/notifier/internal/api/middleware"
	"github.com/gitjobs/notifier/internal/domain"
	"github.com/gitjobs/notifier/internal/service"
)

// NotificationHandler handles the notification queue endpoints.
type NotificationHandler struct {
	svc    *service.NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// Enqueue handles POST /api/v1/notifications
//
// @Summary     Queue an email for one or more users
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Param       body  body      domain.NewNotification  true  "Notification payload"
// @Success     202   {object}  map[string]any
// @Failure     400   {object}  map[string]string
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/notifications [post]
func (h *NotificationHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.NewNotification
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := h.svc.Enqueue(r.Context(), req)
	if err != nil {
		h.logger.Warn("enqueue notification failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{"notifications": created})
}

// GetByID handles GET /api/v1/notifications/{id}
//
// @Summary  Get a notification by ID
// @Tags     notifications
// @Produce  json
// @Param    id   path      string  true  "Notification UUID"
// @Success  200  {object}  domain.Notification
// @Failure  400  {object}  map[string]string
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id} [get]
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid notification id")
		return
	}
	n, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// List handles GET /api/v1/notifications
//
// @Summary  List notifications with filtering and pagination
// @Tags     notifications
// @Produce  json
// @Param    kind       query     string  false  "Filter by kind"
// @Param    processed  query     bool    false  "Filter by processed flag"
// @Param    failed     query     bool    false  "Only records with (true) or without (false) an error"
// @Param    page       query     int     false  "Page number (default 1)"
// @Param    limit      query     int     false  "Items per page (default 20, max 100)"
// @Success  200        {object}  map[string]any
// @Router   /api/v1/notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		mapError(w, r, err)
		return
	}
	notifications, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  notifications,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// parseListFilter reads the query string. Malformed booleans are ignored;
// an unknown kind is rejected.
func parseListFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	filter := domain.ListFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if k := q.Get("kind"); k != "" {
		kind, err := domain.ParseKind(k)
		if err != nil {
			return filter, err
		}
		filter.Kind = &kind
	}
	if p, err := strconv.ParseBool(q.Get("processed")); err == nil {
		filter.Processed = &p
	}
	if f, err := strconv.ParseBool(q.Get("failed")); err == nil {
		filter.Failed = &f
	}
	return filter, nil
}
