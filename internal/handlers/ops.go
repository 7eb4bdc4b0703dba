package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/outbox"
	"github.com/ukydev/garage-service/internal/response"
	"github.com/ukydev/garage-service/internal/services"
)

// Reporter produces the management summary.
type Reporter interface {
	Summary(ctx context.Context) (*services.Summary, error)
}

// ReportHandler serves /api/reports.
type ReportHandler struct {
	reports Reporter
}

// NewReportHandler creates a report handler.
func NewReportHandler(reports Reporter) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Summary handles GET /api/reports/summary
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Summary(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"summary": summary})
}

// OutboxManager lists and replays recorded secondary effects.
type OutboxManager interface {
	List(ctx context.Context, status models.OutboxStatus, limit int64) ([]models.OutboxEvent, error)
	Retry(ctx context.Context, id string) (*models.OutboxEvent, error)
}

// OutboxHandler serves /api/outbox.
type OutboxHandler struct {
	outbox OutboxManager
}

// NewOutboxHandler creates an outbox handler.
func NewOutboxHandler(o OutboxManager) *OutboxHandler {
	return &OutboxHandler{outbox: o}
}

// List handles GET /api/outbox. Failed events are listed unless another status is asked for.
func (h *OutboxHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.OutboxStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.OutboxFailed
	}
	switch status {
	case models.OutboxPending, models.OutboxFailed, models.OutboxDone:
	default:
		response.Fail(w, http.StatusBadRequest, "Invalid status: "+string(status))
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if limit == 0 {
		limit = 100
	}

	events, err := h.outbox.List(r.Context(), status, limit)
	if err != nil {
		response.Error(w, r, apperror.Internal(err, "failed to list outbox events"))
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"events": events, "count": len(events)})
}

// Retry handles POST /api/outbox/{id}/retry
func (h *OutboxHandler) Retry(w http.ResponseWriter, r *http.Request) {
	evt, err := h.outbox.Retry(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		response.Success(w, http.StatusOK, "Event processed", response.Fields{"event": evt})
	case errors.Is(err, db.ErrNotFound):
		response.Fail(w, http.StatusNotFound, "Event not found")
	case errors.Is(err, outbox.ErrAlreadyProcessed):
		response.Fail(w, http.StatusConflict, "Event already processed")
	case evt != nil:
		log.WithError(err).WithField("event_id", evt.ID).Warn("Manual outbox retry failed")
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"error":   "Retry failed, the event stays queued",
			"event":   evt,
		})
	default:
		response.Error(w, r, apperror.Internal(err, "failed to retry event"))
	}
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves /health.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		log.WithError(err).Warn("Health check failed")
		response.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"success": false,
			"status":  "unhealthy",
			"mongo":   "unreachable",
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  "healthy",
		"mongo":   "ok",
	})
}
