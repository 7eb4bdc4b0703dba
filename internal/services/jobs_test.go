package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/garage-service/internal/models"
)

func TestJobService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("materials become pending goods requests without touching stock", func(t *testing.T) {
		f := newFixture(t)
		f.addBooking(t, "BK-1", models.BookingInspecting)
		f.addItem(t, "I1", 10, 2, 100)

		res, err := f.jobs.Create(ctx, f.advisor, "BK-1", CreateJobInput{
			Title:              "Replace brake pads",
			AssignedTechnician: f.tech.ID.Hex(),
			Requirements: models.Requirements{
				Materials: []models.MaterialRequirement{{ItemID: "I1", RequestedQuantity: 2}},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, models.JobPending, res.Job.Status)
		assert.Equal(t, "JOB00001", res.Job.JobID)
		assert.Equal(t, "repair", res.Job.Category)
		assert.Equal(t, models.PriorityHigh, res.Job.Priority)
		require.NotNil(t, res.Job.Booking)
		assert.Equal(t, "BK-1", res.Job.Booking.BookingID)
		require.Len(t, res.Job.AssignedLabourers, 1)
		assert.Equal(t, f.tech.ID, res.Job.AssignedLabourers[0].Technician.ID)
		assert.Empty(t, res.GoodsRequestErrors)

		require.Len(t, res.GoodsRequests, 1)
		req := res.GoodsRequests[0]
		assert.Equal(t, "I1", req.ItemID)
		assert.Equal(t, 2.0, req.Quantity)
		assert.Equal(t, models.GoodsRequestPending, req.Status)
		assert.Equal(t, models.GoodsRequestKey(res.Job.ID, 1), req.RequestID)

		assert.Equal(t, 10.0, f.stock(t, "I1"))
	})

	t.Run("booking not inspecting creates nothing", func(t *testing.T) {
		f := newFixture(t)
		f.addBooking(t, "BK-2", models.BookingPending)

		_, err := f.jobs.Create(ctx, f.advisor, "BK-2", CreateJobInput{Title: "Oil change"})
		assertStatus(t, err, http.StatusBadRequest)
		assert.Empty(t, f.store.jobs)
		assert.Zero(t, f.store.counters["job"])
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.jobs.Create(ctx, f.advisor, "BK-404", CreateJobInput{Title: "x"})
		assertStatus(t, err, http.StatusNotFound)
	})

	t.Run("invalid technician fails the whole assignment", func(t *testing.T) {
		f := newFixture(t)
		f.addBooking(t, "BK-3", models.BookingInspecting)

		_, err := f.jobs.Create(ctx, f.advisor, "BK-3", CreateJobInput{
			Title:             "Engine check",
			AssignedLabourers: LabourerRefs{f.tech.ID.Hex(), f.customer.ID.Hex()},
		})
		assertStatus(t, err, http.StatusBadRequest)
		assert.Empty(t, f.store.jobs)
	})

	t.Run("repeated technician fails the count check", func(t *testing.T) {
		f := newFixture(t)
		f.addBooking(t, "BK-4", models.BookingInspecting)

		for _, in := range []CreateJobInput{
			{Title: "Alignment", AssignedLabourers: LabourerRefs{f.tech.ID.Hex(), f.tech.ID.Hex()}},
			{Title: "Alignment", AssignedTechnician: f.tech.ID.Hex(), AssignedLabourers: LabourerRefs{f.tech.ID.Hex()}},
		} {
			_, err := f.jobs.Create(ctx, f.advisor, "BK-4", in)
			assertStatus(t, err, http.StatusBadRequest)
		}
		assert.Empty(t, f.store.jobs)
	})

	t.Run("missing item is reported and recorded for retry", func(t *testing.T) {
		f := newFixture(t)
		f.addBooking(t, "BK-5", models.BookingInspecting)
		f.addItem(t, "I1", 5, 1, 10)

		res, err := f.jobs.Create(ctx, f.advisor, "BK-5", CreateJobInput{
			Title: "Service",
			Requirements: models.Requirements{Materials: []models.MaterialRequirement{
				{ItemID: "I1", RequestedQuantity: 1},
				{ItemID: "GHOST", RequestedQuantity: 3},
			}},
		})
		require.NoError(t, err)
		assert.Len(t, res.GoodsRequests, 1)
		require.Len(t, res.GoodsRequestErrors, 1)
		assert.Equal(t, 1, res.GoodsRequestErrors[0].Index)
		assert.Equal(t, "GHOST", res.GoodsRequestErrors[0].ItemID)

		require.Len(t, f.deferrer.events, 1)
		assert.Equal(t, models.EventGoodsRequest, f.deferrer.events[0].eventType)
		assert.Equal(t, res.Job.JobID, f.deferrer.events[0].aggregateID)
	})

	t.Run("bad material line", func(t *testing.T) {
		f := newFixture(t)
		f.addBooking(t, "BK-6", models.BookingInspecting)
		_, err := f.jobs.Create(ctx, f.advisor, "BK-6", CreateJobInput{
			Title:        "Service",
			Requirements: models.Requirements{Materials: []models.MaterialRequirement{{ItemID: "I1"}}},
		})
		assertStatus(t, err, http.StatusBadRequest)
	})
}

func TestJobService_UpdateStatus_Technician(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.newJob(t, "BK-10")

	_, err := f.jobs.UpdateStatus(ctx, f.tech, job.JobID, StatusInput{Status: models.JobCompleted})
	assertStatus(t, err, http.StatusBadRequest)

	working, err := f.jobs.UpdateStatus(ctx, f.tech, job.JobID, StatusInput{Status: models.JobWorking})
	require.NoError(t, err)
	require.NotNil(t, working.StartedAt)
	assert.Nil(t, working.CompletedAt)
	started := *working.StartedAt
	assert.Equal(t, models.BookingWorking, f.booking(t, "BK-10").Status)

	onHold, err := f.jobs.UpdateStatus(ctx, f.tech, job.JobID, StatusInput{Status: models.JobOnHold, Notes: "waiting for parts"})
	require.NoError(t, err)
	assert.Equal(t, models.JobOnHold, onHold.Status)

	_, err = f.jobs.UpdateStatus(ctx, f.tech, job.JobID, StatusInput{Status: models.JobWorking})
	require.NoError(t, err)

	notesBefore := len(f.booking(t, "BK-10").Notes)
	done, err := f.jobs.UpdateStatus(ctx, f.tech, job.JobID, StatusInput{Status: models.JobCompleted})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, started, *done.StartedAt, "startedAt is only set once")
	assert.Len(t, done.StatusHistory, 4)

	booking := f.booking(t, "BK-10")
	assert.Equal(t, models.BookingCompleted, booking.Status)
	require.Len(t, booking.Notes, notesBefore+1)
	last := booking.Notes[len(booking.Notes)-1]
	assert.Equal(t, job.JobID, last.JobID)
	assert.Contains(t, last.Note, "completed")

	assert.Equal(t, []models.JobStatus{models.JobWorking, models.JobOnHold, models.JobWorking, models.JobCompleted}, f.events.jobs)
	assert.Empty(t, f.deferrer.events)
}

func TestJobService_UpdateStatus_Rules(t *testing.T) {
	ctx := context.Background()

	t.Run("unassigned technician is forbidden", func(t *testing.T) {
		f := newFixture(t)
		job := f.newJob(t, "BK-11")
		other := f.addUser(t, "other-tech", models.RoleTechnician)

		_, err := f.jobs.UpdateStatus(ctx, other, job.JobID, StatusInput{Status: models.JobWorking})
		assertStatus(t, err, http.StatusForbidden)
	})

	t.Run("staff transitions are unrestricted", func(t *testing.T) {
		f := newFixture(t)
		job := f.newJob(t, "BK-12")

		done, err := f.jobs.UpdateStatus(ctx, f.manager, job.JobID, StatusInput{Status: models.JobCompleted})
		require.NoError(t, err)
		assert.NotNil(t, done.CompletedAt)
		assert.Nil(t, done.StartedAt)
		assert.Equal(t, models.BookingCompleted, f.booking(t, "BK-12").Status)
	})

	t.Run("pending does not touch the booking", func(t *testing.T) {
		f := newFixture(t)
		job := f.newJob(t, "BK-13")
		_, err := f.jobs.UpdateStatus(ctx, f.manager, job.JobID, StatusInput{Status: models.JobWorking})
		require.NoError(t, err)
		notes := len(f.booking(t, "BK-13").Notes)

		_, err = f.jobs.UpdateStatus(ctx, f.manager, job.JobID, StatusInput{Status: models.JobPending})
		require.NoError(t, err)
		b := f.booking(t, "BK-13")
		assert.Equal(t, models.BookingWorking, b.Status)
		assert.Len(t, b.Notes, notes)
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newFixture(t)
		job := f.newJob(t, "BK-14")
		_, err := f.jobs.UpdateStatus(ctx, f.manager, job.JobID, StatusInput{Status: "exploded"})
		assertStatus(t, err, http.StatusBadRequest)
	})

	t.Run("booking sync failure is recorded and does not fail the update", func(t *testing.T) {
		f := newFixture(t)
		job := f.newJob(t, "BK-15")
		f.store.failBookingUpdates = errBoom

		updated, err := f.jobs.UpdateStatus(ctx, f.tech, job.JobID, StatusInput{Status: models.JobWorking})
		require.NoError(t, err)
		assert.Equal(t, models.JobWorking, updated.Status)

		require.Len(t, f.deferrer.events, 1)
		assert.Equal(t, models.EventBookingSync, f.deferrer.events[0].eventType)
		assert.ErrorIs(t, f.deferrer.events[0].cause, errBoom)
	})
}

func TestJobService_AddWorkLog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.newJob(t, "BK-20")
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, err := f.jobs.AddWorkLog(ctx, f.tech, job.JobID, WorkLogInput{StartTime: start, EndTime: start.Add(90 * time.Minute)})
	require.NoError(t, err)
	updated, err := f.jobs.AddWorkLog(ctx, f.tech, job.JobID, WorkLogInput{StartTime: start.Add(2 * time.Hour), EndTime: start.Add(2*time.Hour + 45*time.Minute)})
	require.NoError(t, err)

	assert.InDelta(t, 2.25, updated.ActualHours, 1e-9)
	assert.InDelta(t, updated.TotalLoggedHours(), updated.ActualHours, 1e-9)
	require.Len(t, updated.AssignedLabourers, 1)
	assert.InDelta(t, 2.25, updated.AssignedLabourers[0].HoursWorked, 1e-9)

	_, err = f.jobs.AddWorkLog(ctx, f.tech, job.JobID, WorkLogInput{StartTime: start, EndTime: start})
	assertStatus(t, err, http.StatusBadRequest)

	_, err = f.jobs.AddWorkLog(ctx, f.manager, job.JobID, WorkLogInput{StartTime: start, EndTime: start.Add(time.Hour)})
	assertStatus(t, err, http.StatusForbidden)

	other := f.addUser(t, "other-tech", models.RoleTechnician)
	_, err = f.jobs.AddWorkLog(ctx, other, job.JobID, WorkLogInput{StartTime: start, EndTime: start.Add(time.Hour)})
	assertStatus(t, err, http.StatusForbidden)
}

func TestJobService_RecordInspection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.newJob(t, "BK-30")

	_, err := f.jobs.RecordInspection(ctx, f.tech, job.JobID, InspectionInput{Type: InspectionPre})
	assertStatus(t, err, http.StatusBadRequest)

	pre, err := f.jobs.RecordInspection(ctx, f.tech, job.JobID, InspectionInput{Type: InspectionPre, Condition: "worn pads", Issues: []string{"rotor scoring"}})
	require.NoError(t, err)
	require.NotNil(t, pre.InspectionReport.PreWork)
	assert.Equal(t, f.tech.ID, pre.InspectionReport.PreWork.InspectedBy)

	_, err = f.jobs.RecordInspection(ctx, f.manager, job.JobID, InspectionInput{Type: InspectionPost, QualityRating: 4, Approved: true})
	assertStatus(t, err, http.StatusBadRequest)

	_, err = f.jobs.UpdateStatus(ctx, f.manager, job.JobID, StatusInput{Status: models.JobCompleted})
	require.NoError(t, err)

	_, err = f.jobs.RecordInspection(ctx, f.manager, job.JobID, InspectionInput{Type: InspectionPost, QualityRating: 6})
	assertStatus(t, err, http.StatusBadRequest)

	post, err := f.jobs.RecordInspection(ctx, f.manager, job.JobID, InspectionInput{Type: InspectionPost, QualityRating: 5, Approved: true})
	require.NoError(t, err)
	assert.NotNil(t, post.ApprovedAt)
	require.NotNil(t, post.InspectedBy)
	assert.Equal(t, f.manager.ID, *post.InspectedBy)

	_, err = f.jobs.RecordInspection(ctx, f.manager, job.JobID, InspectionInput{Type: "mid"})
	assertStatus(t, err, http.StatusBadRequest)
}

func TestJobService_ListAndGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mine := f.newJob(t, "BK-40")
	f.addBooking(t, "BK-41", models.BookingInspecting)
	_, err := f.jobs.Create(ctx, f.advisor, "BK-41", CreateJobInput{Title: "Unassigned"})
	require.NoError(t, err)

	all, err := f.jobs.List(ctx, f.manager, JobListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := f.jobs.List(ctx, f.tech, JobListFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.JobID, own[0].JobID)

	byBooking, err := f.jobs.List(ctx, f.manager, JobListFilter{Booking: "BK-41"})
	require.NoError(t, err)
	assert.Len(t, byBooking, 1)

	other := f.addUser(t, "other-tech", models.RoleTechnician)
	_, err = f.jobs.Get(ctx, other, mine.JobID)
	assertStatus(t, err, http.StatusForbidden)

	got, err := f.jobs.Get(ctx, f.tech, mine.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, got.CreatedBy)
	assert.Equal(t, f.advisor.ID, got.CreatedBy.ID)

	_, err = f.jobs.Get(ctx, f.manager, "JOB99999")
	assertStatus(t, err, http.StatusNotFound)
}

func TestLabourerRefs_UnmarshalJSON(t *testing.T) {
	var in CreateJobInput
	err := json.Unmarshal([]byte(`{"assignedLabourers":["a1",{"technician":"b2"}]}`), &in)
	require.NoError(t, err)
	assert.Equal(t, LabourerRefs{"a1", "b2"}, in.AssignedLabourers)

	err = json.Unmarshal([]byte(`{"assignedLabourers":[42]}`), &in)
	assert.Error(t, err)
}
