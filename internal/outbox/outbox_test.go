package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// MockOutboxStore is a mock implementation of db.OutboxCollection
type MockOutboxStore struct {
	mock.Mock
}

func (m *MockOutboxStore) InsertEvent(ctx context.Context, evt *models.OutboxEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockOutboxStore) FindEvent(ctx context.Context, id string) (*models.OutboxEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OutboxEvent), args.Error(1)
}

func (m *MockOutboxStore) FindEvents(ctx context.Context, status models.OutboxStatus, limit int64) ([]models.OutboxEvent, error) {
	args := m.Called(ctx, status, limit)
	return args.Get(0).([]models.OutboxEvent), args.Error(1)
}

func (m *MockOutboxStore) FindRetryable(ctx context.Context, now time.Time, maxAttempts int, limit int64) ([]models.OutboxEvent, error) {
	args := m.Called(ctx, now, maxAttempts, limit)
	return args.Get(0).([]models.OutboxEvent), args.Error(1)
}

func (m *MockOutboxStore) MarkEventDone(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockOutboxStore) MarkEventFailed(ctx context.Context, id string, errMsg string, next time.Time) error {
	args := m.Called(ctx, id, errMsg, next)
	return args.Error(0)
}

type syncPayload struct {
	JobID  string `bson:"job_id"`
	Status string `bson:"status"`
}

func newTestOutbox(store *MockOutboxStore, now time.Time) *Outbox {
	o := New(store, Options{MaxAttempts: 3, Backoff: time.Minute, BatchSize: 10})
	o.now = func() time.Time { return now }
	return o
}

func TestDefer_StoresFailedEvent(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store := new(MockOutboxStore)
	o := newTestOutbox(store, now)

	store.On("InsertEvent", mock.Anything, mock.MatchedBy(func(evt *models.OutboxEvent) bool {
		return evt.Type == models.EventBookingSync &&
			evt.AggregateID == "JOB00001" &&
			evt.Status == models.OutboxFailed &&
			evt.Attempts == 1 &&
			evt.LastError == "booking missing" &&
			evt.NextAttemptAt.Equal(now.Add(time.Minute)) &&
			evt.Payload["job_id"] == "JOB00001" &&
			evt.ID != ""
	})).Return(nil)

	err := o.Defer(context.Background(), models.EventBookingSync, "JOB00001",
		syncPayload{JobID: "JOB00001", Status: "completed"}, errors.New("booking missing"))
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestRetryDue_MarksOutcome(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store := new(MockOutboxStore)
	o := newTestOutbox(store, now)

	var seen []string
	o.Register(models.EventBookingSync, func(ctx context.Context, evt models.OutboxEvent) error {
		var p syncPayload
		require.NoError(t, Decode(evt, &p))
		seen = append(seen, p.JobID)
		if p.JobID == "JOB00002" {
			return errors.New("still failing")
		}
		return nil
	})

	events := []models.OutboxEvent{
		{ID: "a", Type: models.EventBookingSync, Attempts: 1, Payload: bson.M{"job_id": "JOB00001"}},
		{ID: "b", Type: models.EventBookingSync, Attempts: 2, Payload: bson.M{"job_id": "JOB00002"}},
		{ID: "c", Type: "unknown", Attempts: 1},
	}
	store.On("FindRetryable", mock.Anything, now, 3, int64(10)).Return(events, nil)
	store.On("MarkEventDone", mock.Anything, "a", now).Return(nil)
	store.On("MarkEventFailed", mock.Anything, "b", "still failing", now.Add(4*time.Minute)).Return(nil)
	store.On("MarkEventFailed", mock.Anything, "c", mock.AnythingOfType("string"), now.Add(2*time.Minute)).Return(nil)

	ok, failed, err := o.RetryDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"JOB00001", "JOB00002"}, seen)
	store.AssertExpectations(t)
}

func TestRetry_AlreadyProcessed(t *testing.T) {
	store := new(MockOutboxStore)
	o := newTestOutbox(store, time.Now())

	store.On("FindEvent", mock.Anything, "done-1").Return(&models.OutboxEvent{ID: "done-1", Status: models.OutboxDone}, nil)

	_, err := o.Retry(context.Background(), "done-1")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestRetry_Succeeds(t *testing.T) {
	now := time.Now()
	store := new(MockOutboxStore)
	o := newTestOutbox(store, now)
	o.Register(models.EventNotify, func(ctx context.Context, evt models.OutboxEvent) error { return nil })

	evt := &models.OutboxEvent{ID: "n-1", Type: models.EventNotify, Status: models.OutboxFailed, Attempts: 5}
	store.On("FindEvent", mock.Anything, "n-1").Return(evt, nil).Once()
	store.On("MarkEventDone", mock.Anything, "n-1", now).Return(nil)
	store.On("FindEvent", mock.Anything, "n-1").Return(&models.OutboxEvent{ID: "n-1", Status: models.OutboxDone, Attempts: 6}, nil).Once()

	updated, err := o.Retry(context.Background(), "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutboxDone, updated.Status)
	store.AssertExpectations(t)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, Backoff(time.Minute, 1))
	assert.Equal(t, 2*time.Minute, Backoff(time.Minute, 2))
	assert.Equal(t, 8*time.Minute, Backoff(time.Minute, 4))
	assert.Equal(t, time.Hour, Backoff(time.Minute, 20))
}

func TestNewRelay_InvalidSchedule(t *testing.T) {
	_, err := NewRelay(New(new(MockOutboxStore), Options{}), "not a schedule")
	assert.Error(t, err)

	r, err := NewRelay(New(new(MockOutboxStore), Options{}), "@every 30s")
	require.NoError(t, err)
	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
