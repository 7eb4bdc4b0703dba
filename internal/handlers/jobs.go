package handlers

import (
	"context"
	"net/http"

	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/response"
	"github.com/ukydev/garage-service/internal/services"
)

// JobManager is the job lifecycle as the handlers see it.
type JobManager interface {
	Create(ctx context.Context, actor services.Actor, bookingRef string, in services.CreateJobInput) (*services.CreateJobResult, error)
	UpdateStatus(ctx context.Context, actor services.Actor, ref string, in services.StatusInput) (*services.JobView, error)
	AddWorkLog(ctx context.Context, actor services.Actor, ref string, in services.WorkLogInput) (*services.JobView, error)
	RecordInspection(ctx context.Context, actor services.Actor, ref string, in services.InspectionInput) (*services.JobView, error)
	List(ctx context.Context, actor services.Actor, f services.JobListFilter) ([]models.Job, error)
	Get(ctx context.Context, actor services.Actor, ref string) (*services.JobView, error)
}

// JobHandler serves /api/jobs.
type JobHandler struct {
	jobs JobManager
}

// NewJobHandler creates a job handler.
func NewJobHandler(jobs JobManager) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Create handles POST /api/jobs/booking/{bookingId}
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var in services.CreateJobInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}

	res, err := h.jobs.Create(r.Context(), actor, r.PathValue("bookingId"), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	msg := "Job created successfully"
	fields := response.Fields{"job": res.Job, "goodsRequests": res.GoodsRequests}
	if len(res.GoodsRequestErrors) > 0 {
		msg = "Job created, some goods requests could not be created"
		fields["goodsRequestErrors"] = res.GoodsRequestErrors
	}
	response.Success(w, http.StatusCreated, msg, fields)
}

// List handles GET /api/jobs
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	q := r.URL.Query()
	jobs, err := h.jobs.List(r.Context(), actor, services.JobListFilter{
		Status:  models.JobStatus(q.Get("status")),
		Booking: q.Get("booking"),
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"jobs": jobs, "count": len(jobs)})
}

// Get handles GET /api/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	job, err := h.jobs.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"job": job})
}

// UpdateStatus handles PATCH /api/jobs/{id}/status
func (h *JobHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var in services.StatusInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	job, err := h.jobs.UpdateStatus(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Job status updated successfully", response.Fields{"job": job})
}

// AddWorkLog handles POST /api/jobs/{id}/worklog
func (h *JobHandler) AddWorkLog(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var in services.WorkLogInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	job, err := h.jobs.AddWorkLog(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Work log added successfully", response.Fields{"job": job})
}

// RecordInspection handles POST /api/jobs/{id}/inspection
func (h *JobHandler) RecordInspection(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var in services.InspectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	job, err := h.jobs.RecordInspection(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Inspection recorded successfully", response.Fields{"job": job})
}
