package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/outbox"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// jobToBooking maps a job status onto the booking status it pushes. Pending has no
// booking counterpart.
var jobToBooking = map[models.JobStatus]models.BookingStatus{
	models.JobWorking:   models.BookingWorking,
	models.JobCompleted: models.BookingCompleted,
	models.JobOnHold:    models.BookingOnHold,
	models.JobCancelled: models.BookingCancelled,
}

// BookingStatusFor returns the booking status a job status propagates to.
func BookingStatusFor(s models.JobStatus) (models.BookingStatus, bool) {
	b, ok := jobToBooking[s]
	return b, ok
}

type bookingSyncPayload struct {
	Booking   primitive.ObjectID `bson:"booking"`
	JobID     string             `bson:"job_id"`
	JobStatus models.JobStatus   `bson:"job_status"`
	ChangedBy primitive.ObjectID `bson:"changed_by"`
	At        time.Time          `bson:"at"`
}

// BookingSyncer pushes job status changes onto the parent booking. It is one-way and
// last-writer-wins across sibling jobs.
type BookingSyncer struct {
	bookings db.BookingCollection
	jobs     db.JobCollection
	outbox   outbox.Deferrer
	events   EventPublisher
}

// NewBookingSyncer creates a syncer. Failed syncs are recorded in deferrer; jobs is
// read on replay to drop syncs the job has since moved past.
func NewBookingSyncer(bookings db.BookingCollection, jobs db.JobCollection, deferrer outbox.Deferrer, events EventPublisher) *BookingSyncer {
	return &BookingSyncer{bookings: bookings, jobs: jobs, outbox: deferrer, events: eventsOrNop(events)}
}

// Sync propagates the job's current status. It never fails the caller: errors are
// logged and recorded for retry. The job write has already committed, so the sync
// outlives a cancelled request.
func (s *BookingSyncer) Sync(ctx context.Context, job *models.Job, changedBy primitive.ObjectID, at time.Time) {
	if _, ok := BookingStatusFor(job.Status); !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)
	p := bookingSyncPayload{
		Booking:   job.Booking,
		JobID:     job.JobID,
		JobStatus: job.Status,
		ChangedBy: changedBy,
		At:        at,
	}
	err := s.apply(ctx, p)
	if err == nil {
		return
	}

	logger := log.WithFields(log.Fields{
		"job_id":  job.JobID,
		"booking": job.Booking.Hex(),
		"status":  job.Status,
	})
	logger.WithError(err).Error("Booking status sync failed")
	if s.outbox == nil {
		return
	}
	if derr := s.outbox.Defer(ctx, models.EventBookingSync, job.JobID, p, err); derr != nil {
		logger.WithError(derr).Error("Failed to record booking sync for retry")
	}
}

func (s *BookingSyncer) apply(ctx context.Context, p bookingSyncPayload) error {
	target, ok := BookingStatusFor(p.JobStatus)
	if !ok {
		return nil
	}
	booking, err := s.bookings.FindBooking(ctx, p.Booking.Hex())
	if err != nil {
		return fmt.Errorf("failed to load booking %s: %w", p.Booking.Hex(), err)
	}

	changedBy := p.ChangedBy
	note := &models.BookingNote{
		Note:    fmt.Sprintf("Status changed to %s by job %s", target, p.JobID),
		JobID:   p.JobID,
		AddedBy: &changedBy,
		AddedAt: p.At,
	}
	updated, err := s.bookings.UpdateBookingStatus(ctx, booking.ID, target, note)
	if err != nil {
		return fmt.Errorf("failed to update booking %s: %w", booking.BookingID, err)
	}

	log.WithFields(log.Fields{
		"booking_id": booking.BookingID,
		"job_id":     p.JobID,
		"from":       booking.Status,
		"to":         target,
	}).Info("Booking status synced from job")
	s.events.BookingStatusChanged(ctx, updated, booking.Status)
	return nil
}

// HandleEvent replays a recorded sync. A sync the job has moved past is dropped, since
// the later change has synced or been recorded itself.
func (s *BookingSyncer) HandleEvent(ctx context.Context, evt models.OutboxEvent) error {
	var p bookingSyncPayload
	if err := outbox.Decode(evt, &p); err != nil {
		return fmt.Errorf("failed to decode booking sync payload: %w", err)
	}
	job, err := s.jobs.FindJob(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", p.JobID, err)
	}
	if superseded(job, p) {
		log.WithFields(log.Fields{
			"job_id":     p.JobID,
			"event":      evt.ID,
			"recorded":   p.JobStatus,
			"job_status": job.Status,
		}).Info("Skipping superseded booking sync")
		return nil
	}
	return s.apply(ctx, p)
}

// superseded reports whether the job changed status after the recorded sync. Times are
// compared at the millisecond precision the store keeps.
func superseded(job *models.Job, p bookingSyncPayload) bool {
	if job.Status != p.JobStatus {
		return true
	}
	if n := len(job.StatusHistory); n > 0 {
		last := job.StatusHistory[n-1].ChangedAt.Truncate(time.Millisecond)
		return last.After(p.At.Truncate(time.Millisecond))
	}
	return false
}
