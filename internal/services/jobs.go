package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobService owns the job lifecycle.
type JobService struct {
	jobs     db.JobCollection
	bookings db.BookingCollection
	users    db.UserCollection
	counters db.CounterCollection
	goods    *GoodsRequestService
	syncer   *BookingSyncer
	events   EventPublisher
	now      func() time.Time
}

// NewJobService creates a job service.
func NewJobService(repos Repositories, goods *GoodsRequestService, syncer *BookingSyncer, events EventPublisher) *JobService {
	return &JobService{
		jobs:     repos.Jobs,
		bookings: repos.Bookings,
		users:    repos.Users,
		counters: repos.Counters,
		goods:    goods,
		syncer:   syncer,
		events:   eventsOrNop(events),
		now:      time.Now,
	}
}

// LabourerRefs accepts technician ids either as plain strings or as {"technician": id}.
type LabourerRefs []string

func (l *LabourerRefs) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(LabourerRefs, 0, len(raw))
	for _, r := range raw {
		var id string
		if err := json.Unmarshal(r, &id); err == nil {
			out = append(out, id)
			continue
		}
		var obj struct {
			Technician string `json:"technician"`
		}
		if err := json.Unmarshal(r, &obj); err != nil {
			return err
		}
		out = append(out, obj.Technician)
	}
	*l = out
	return nil
}

// CreateJobInput is the body of a job creation.
type CreateJobInput struct {
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	Category           string              `json:"category"`
	Priority           models.Priority     `json:"priority"`
	Requirements       models.Requirements `json:"requirements"`
	AssignedTechnician string              `json:"assignedTechnician"`
	AssignedLabourers  LabourerRefs        `json:"assignedLabourers"`
	EstimatedHours     float64             `json:"estimatedHours"`
	EstimatedCost      float64             `json:"estimatedCost"`
}

// LabourerView is an assignment with the technician resolved.
type LabourerView struct {
	Technician  *models.UserRef `json:"technician"`
	AssignedAt  time.Time       `json:"assignedAt"`
	HoursWorked float64         `json:"hoursWorked"`
}

// JobView is a job with its references resolved.
type JobView struct {
	models.Job
	Booking           *models.BookingSummary `json:"booking"`
	CreatedBy         *models.UserRef        `json:"createdBy"`
	AssignedLabourers []LabourerView         `json:"assignedLabourers"`
}

// CreateJobResult is the outcome of a job creation, including partial goods request failures.
type CreateJobResult struct {
	Job                *JobView              `json:"job"`
	GoodsRequests      []models.GoodsRequest `json:"goodsRequests"`
	GoodsRequestErrors []GoodsRequestError   `json:"goodsRequestErrors,omitempty"`
}

// Create opens a job on an inspecting booking. Technician checks are all-or-nothing and
// run before anything is written.
func (s *JobService) Create(ctx context.Context, actor Actor, bookingRef string, in CreateJobInput) (*CreateJobResult, error) {
	booking, err := s.bookings.FindBooking(ctx, bookingRef)
	if err != nil {
		return nil, lookupErr(err, "Booking")
	}
	if booking.Status != models.BookingInspecting {
		return nil, apperror.BadRequest("Job can only be created for bookings in inspecting status (current: %s)", booking.Status)
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperror.BadRequest("title is required")
	}
	if in.Category == "" {
		in.Category = "repair"
	}
	if !models.IsValidJobCategory(in.Category) {
		return nil, apperror.BadRequest("invalid category")
	}
	if in.Priority == "" {
		in.Priority = booking.Priority
	}
	if !models.IsValidPriority(in.Priority) {
		return nil, apperror.BadRequest("invalid priority")
	}
	if in.EstimatedHours < 0 || in.EstimatedCost < 0 {
		return nil, apperror.BadRequest("estimates cannot be negative")
	}
	for i, m := range in.Requirements.Materials {
		if strings.TrimSpace(m.ItemID) == "" || m.RequestedQuantity <= 0 {
			return nil, apperror.BadRequest("materials[%d] needs an itemId and a positive requestedQuantity", i)
		}
	}

	technicians, err := s.verifyTechnicians(ctx, in)
	if err != nil {
		return nil, err
	}

	jobID, err := nextID(ctx, s.counters, db.SeqJob, prefixJob)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &models.Job{
		JobID:          jobID,
		Booking:        booking.ID,
		Title:          in.Title,
		Description:    in.Description,
		Category:       in.Category,
		Priority:       in.Priority,
		Status:         models.JobPending,
		Requirements:   in.Requirements,
		WorkLog:        []models.WorkLogEntry{},
		StatusHistory:  []models.StatusChange{},
		EstimatedHours: in.EstimatedHours,
		EstimatedCost:  in.EstimatedCost,
		CreatedBy:      actor.ID,
	}
	job.AssignedLabourers = make([]models.AssignedLabourer, 0, len(technicians))
	for _, t := range technicians {
		job.AssignedLabourers = append(job.AssignedLabourers, models.AssignedLabourer{Technician: t.ID, AssignedAt: now})
	}

	if err := s.jobs.InsertJob(ctx, job); err != nil {
		return nil, apperror.Internal(err, "failed to create job")
	}
	log.WithFields(log.Fields{
		"job_id":     job.JobID,
		"booking_id": booking.BookingID,
		"labourers":  len(job.AssignedLabourers),
		"materials":  len(job.Requirements.Materials),
		"created_by": actor.ID.Hex(),
	}).Info("Job created")

	// The job is stored; what follows must not be cut short by the client going away.
	ctx = context.WithoutCancel(ctx)
	result := &CreateJobResult{GoodsRequests: []models.GoodsRequest{}}
	if len(job.Requirements.Materials) > 0 {
		result.GoodsRequests, result.GoodsRequestErrors = s.goods.CreateForJob(ctx, job, actor.ID)
	}
	result.Job = s.view(ctx, job, booking)
	return result, nil
}

// verifyTechnicians resolves every referenced technician; any invalid or repeated one
// fails the lot.
func (s *JobService) verifyTechnicians(ctx context.Context, in CreateJobInput) ([]models.User, error) {
	refs := append([]string{}, in.AssignedLabourers...)
	if in.AssignedTechnician != "" {
		refs = append([]string{in.AssignedTechnician}, refs...)
	}

	seen := make(map[primitive.ObjectID]bool, len(refs))
	ids := make([]primitive.ObjectID, 0, len(refs))
	for _, ref := range refs {
		oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(ref))
		if err != nil {
			return nil, apperror.BadRequest("One or more assigned technicians are invalid or inactive")
		}
		// a repeated id would verify fewer technicians than were requested
		if seen[oid] {
			return nil, apperror.BadRequest("One or more assigned technicians are invalid or inactive")
		}
		seen[oid] = true
		ids = append(ids, oid)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	found, err := s.users.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load technicians")
	}
	byID := make(map[primitive.ObjectID]models.User, len(found))
	for _, u := range found {
		if u.Role == models.RoleTechnician && u.IsActive() {
			byID[u.ID] = u
		}
	}
	if len(byID) != len(ids) {
		return nil, apperror.BadRequest("One or more assigned technicians are invalid or inactive")
	}

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}

// StatusInput is the body of a status update.
type StatusInput struct {
	Status models.JobStatus `json:"status"`
	Notes  string           `json:"notes"`
}

// UpdateStatus moves a job to a new status and propagates it to the booking.
// Technicians are restricted to their assigned jobs and the technician edges; staff may
// set any known status.
func (s *JobService) UpdateStatus(ctx context.Context, actor Actor, ref string, in StatusInput) (*JobView, error) {
	if !models.IsValidJobStatus(in.Status) {
		return nil, apperror.BadRequest("Invalid status: %s", in.Status)
	}
	job, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	if actor.Role == models.RoleTechnician {
		if !job.IsAssigned(actor.ID) {
			return nil, apperror.Forbidden("You are not assigned to this job")
		}
		if !models.TechnicianCanTransition(job.Status, in.Status) {
			return nil, apperror.BadRequest("Invalid status transition from %s to %s", job.Status, in.Status)
		}
	}

	now := s.now()
	startedAt, completedAt := job.StatusTimestamps(in.Status, now)
	updated, err := s.jobs.UpdateJobStatus(ctx, job.ID, db.JobStatusUpdate{
		Status:      in.Status,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Change: models.StatusChange{
			From:      job.Status,
			To:        in.Status,
			ChangedBy: actor.ID,
			Notes:     in.Notes,
			ChangedAt: now,
		},
	})
	if err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, apperror.Conflict("Job status was changed concurrently, reload and retry")
		}
		return nil, lookupErr(err, "Job")
	}

	log.WithFields(log.Fields{
		"job_id":  updated.JobID,
		"from":    job.Status,
		"to":      updated.Status,
		"user_id": actor.ID.Hex(),
	}).Info("Job status updated")

	ctx = context.WithoutCancel(ctx)
	s.syncer.Sync(ctx, updated, actor.ID, now)
	s.events.JobStatusChanged(ctx, updated, job.Status)
	return s.view(ctx, updated, nil), nil
}

// WorkLogInput is the body of a work log entry.
type WorkLogInput struct {
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Description string    `json:"description"`
}

// AddWorkLog records technician time. The job total and the technician's own hours
// are incremented in the same write.
func (s *JobService) AddWorkLog(ctx context.Context, actor Actor, ref string, in WorkLogInput) (*JobView, error) {
	if actor.Role != models.RoleTechnician {
		return nil, apperror.Forbidden("Only technicians can log work")
	}
	job, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !job.IsAssigned(actor.ID) {
		return nil, apperror.Forbidden("You are not assigned to this job")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return nil, apperror.BadRequest("startTime and endTime are required")
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, apperror.BadRequest("End time must be after start time")
	}

	entry := models.WorkLogEntry{
		Technician:  actor.ID,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		HoursWorked: models.HoursBetween(in.StartTime, in.EndTime),
		Description: in.Description,
		LoggedAt:    s.now(),
	}
	updated, err := s.jobs.AddWorkLog(ctx, job.ID, entry)
	if err != nil {
		return nil, lookupErr(err, "Job")
	}
	log.WithFields(log.Fields{
		"job_id":  updated.JobID,
		"hours":   entry.HoursWorked,
		"user_id": actor.ID.Hex(),
	}).Info("Work logged")
	return s.view(ctx, updated, nil), nil
}

// Inspection types.
const (
	InspectionPre  = "pre"
	InspectionPost = "post"
)

// InspectionInput is the body of an inspection report.
type InspectionInput struct {
	Type          string   `json:"type"`
	Condition     string   `json:"condition"`
	Issues        []string `json:"issues"`
	Photos        []string `json:"photos"`
	Notes         string   `json:"notes"`
	QualityRating int      `json:"qualityRating"`
	Approved      bool     `json:"approved"`
}

// RecordInspection attaches a pre-work or post-work report. Post-work reports need a
// completed job.
func (s *JobService) RecordInspection(ctx context.Context, actor Actor, ref string, in InspectionInput) (*JobView, error) {
	job, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var updated *models.Job
	switch in.Type {
	case InspectionPre:
		if strings.TrimSpace(in.Condition) == "" {
			return nil, apperror.BadRequest("condition is required")
		}
		updated, err = s.jobs.SetPreWorkInspection(ctx, job.ID, models.PreWorkInspection{
			Condition:   in.Condition,
			Issues:      in.Issues,
			Photos:      in.Photos,
			Notes:       in.Notes,
			InspectedBy: actor.ID,
			InspectedAt: now,
		})
	case InspectionPost:
		if job.Status != models.JobCompleted {
			return nil, apperror.BadRequest("Post-work inspection requires a completed job")
		}
		if in.QualityRating < 1 || in.QualityRating > 5 {
			return nil, apperror.BadRequest("qualityRating must be between 1 and 5")
		}
		updated, err = s.jobs.SetPostWorkInspection(ctx, job.ID, models.PostWorkInspection{
			QualityRating: in.QualityRating,
			Issues:        in.Issues,
			Photos:        in.Photos,
			Notes:         in.Notes,
			Approved:      in.Approved,
			InspectedBy:   actor.ID,
			InspectedAt:   now,
		})
		if errors.Is(err, db.ErrConflict) {
			return nil, apperror.BadRequest("Post-work inspection requires a completed job")
		}
	default:
		return nil, apperror.BadRequest("type must be 'pre' or 'post'")
	}
	if err != nil {
		return nil, lookupErr(err, "Job")
	}

	log.WithFields(log.Fields{"job_id": updated.JobID, "type": in.Type, "approved": in.Approved}).Info("Inspection recorded")
	return s.view(ctx, updated, nil), nil
}

// JobListFilter narrows job listings.
type JobListFilter struct {
	Status  models.JobStatus
	Booking string
}

// List returns jobs. Technicians only see the jobs they are assigned to.
func (s *JobService) List(ctx context.Context, actor Actor, f JobListFilter) ([]models.Job, error) {
	if f.Status != "" && !models.IsValidJobStatus(f.Status) {
		return nil, apperror.BadRequest("Invalid status: %s", f.Status)
	}
	filter := db.JobFilter{Status: f.Status}
	if actor.Role == models.RoleTechnician {
		filter.Technician = &actor.ID
	}
	if f.Booking != "" {
		booking, err := s.bookings.FindBooking(ctx, f.Booking)
		if err != nil {
			return nil, lookupErr(err, "Booking")
		}
		filter.Booking = &booking.ID
	}
	jobs, err := s.jobs.FindJobs(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(err, "failed to list jobs")
	}
	return jobs, nil
}

// Get returns one job with references resolved.
func (s *JobService) Get(ctx context.Context, actor Actor, ref string) (*JobView, error) {
	job, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleTechnician && !job.IsAssigned(actor.ID) {
		return nil, apperror.Forbidden("You are not assigned to this job")
	}
	return s.view(ctx, job, nil), nil
}

func (s *JobService) load(ctx context.Context, ref string) (*models.Job, error) {
	job, err := s.jobs.FindJob(ctx, ref)
	if err != nil {
		return nil, lookupErr(err, "Job")
	}
	return job, nil
}

// view resolves the booking summary, creator and labourers. Resolution failures leave
// the reference empty rather than failing the request.
func (s *JobService) view(ctx context.Context, job *models.Job, booking *models.Booking) *JobView {
	v := &JobView{Job: *job, AssignedLabourers: make([]LabourerView, 0, len(job.AssignedLabourers))}

	if booking == nil {
		b, err := s.bookings.FindBooking(ctx, job.Booking.Hex())
		if err != nil {
			log.WithError(err).WithField("job_id", job.JobID).Warn("Failed to resolve job booking")
		} else {
			booking = b
		}
	}
	if booking != nil {
		v.Booking = booking.Summary()
	}

	ids := []primitive.ObjectID{job.CreatedBy}
	for _, l := range job.AssignedLabourers {
		ids = append(ids, l.Technician)
	}
	refs := userRefs(ctx, s.users, ids)

	v.CreatedBy = refs[job.CreatedBy]
	for _, l := range job.AssignedLabourers {
		ref := refs[l.Technician]
		if ref == nil {
			ref = &models.UserRef{ID: l.Technician}
		}
		v.AssignedLabourers = append(v.AssignedLabourers, LabourerView{
			Technician:  ref,
			AssignedAt:  l.AssignedAt,
			HoursWorked: l.HoursWorked,
		})
	}
	return v
}
