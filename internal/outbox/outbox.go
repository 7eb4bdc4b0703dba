// Package outbox records secondary effects that failed inline and retries them later.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNoHandler        = errors.New("no handler registered for event type")
	ErrAlreadyProcessed = errors.New("event already processed")
)

// maxBackoff caps the delay between two attempts of one event.
const maxBackoff = time.Hour

// Handler replays one event. Handlers must be idempotent.
type Handler func(ctx context.Context, evt models.OutboxEvent) error

// Deferrer is the part of the outbox producers depend on.
type Deferrer interface {
	Defer(ctx context.Context, eventType, aggregateID string, payload interface{}, cause error) error
}

// Options configures retries.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	BatchSize   int64
}

// Outbox stores failed effects and replays them through registered handlers.
type Outbox struct {
	store db.OutboxCollection
	opts  Options
	now   func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates an outbox backed by store.
func New(store db.OutboxCollection, opts Options) *Outbox {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &Outbox{
		store:    store,
		opts:     opts,
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
}

// Register sets the handler used to replay events of eventType.
func (o *Outbox) Register(eventType string, h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[eventType] = h
}

func (o *Outbox) handler(eventType string) (Handler, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.handlers[eventType]
	return h, ok
}

// Defer records an effect whose inline attempt failed with cause. The inline attempt
// counts as the first one.
func (o *Outbox) Defer(ctx context.Context, eventType, aggregateID string, payload interface{}, cause error) error {
	doc, err := toDocument(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	now := o.now()
	evt := &models.OutboxEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateID:   aggregateID,
		Payload:       doc,
		Status:        models.OutboxFailed,
		Attempts:      1,
		NextAttemptAt: now.Add(o.opts.Backoff),
		CreatedAt:     now,
	}
	if cause != nil {
		evt.LastError = cause.Error()
	}
	if err := o.store.InsertEvent(ctx, evt); err != nil {
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}

	log.WithFields(log.Fields{
		"event_id":     evt.ID,
		"event_type":   eventType,
		"aggregate_id": aggregateID,
	}).WithError(cause).Warn("Secondary effect failed, recorded for retry")
	return nil
}

// RetryDue replays one batch of due events and reports how many succeeded and failed.
func (o *Outbox) RetryDue(ctx context.Context) (succeeded, failed int, err error) {
	events, err := o.store.FindRetryable(ctx, o.now(), o.opts.MaxAttempts, o.opts.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load retryable events: %w", err)
	}
	for _, evt := range events {
		if err := o.replay(ctx, evt); err != nil {
			failed++
			continue
		}
		succeeded++
	}
	return succeeded, failed, nil
}

// Retry replays one event immediately, regardless of its schedule or attempt count.
func (o *Outbox) Retry(ctx context.Context, id string) (*models.OutboxEvent, error) {
	evt, err := o.store.FindEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if evt.Status == models.OutboxDone {
		return nil, ErrAlreadyProcessed
	}
	replayErr := o.replay(ctx, *evt)

	updated, err := o.store.FindEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return updated, replayErr
}

// List returns recorded events, newest first.
func (o *Outbox) List(ctx context.Context, status models.OutboxStatus, limit int64) ([]models.OutboxEvent, error) {
	return o.store.FindEvents(ctx, status, limit)
}

func (o *Outbox) replay(ctx context.Context, evt models.OutboxEvent) error {
	logger := log.WithFields(log.Fields{
		"event_id":   evt.ID,
		"event_type": evt.Type,
		"attempt":    evt.Attempts + 1,
	})

	h, ok := o.handler(evt.Type)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNoHandler, evt.Type)
		o.markFailed(ctx, evt, err)
		return err
	}
	if err := h(ctx, evt); err != nil {
		logger.WithError(err).Warn("Outbox event retry failed")
		o.markFailed(ctx, evt, err)
		return err
	}
	if err := o.store.MarkEventDone(ctx, evt.ID, o.now()); err != nil {
		logger.WithError(err).Error("Failed to mark outbox event done")
		return err
	}
	logger.Info("Outbox event processed")
	return nil
}

func (o *Outbox) markFailed(ctx context.Context, evt models.OutboxEvent, cause error) {
	next := o.now().Add(Backoff(o.opts.Backoff, evt.Attempts+1))
	if err := o.store.MarkEventFailed(ctx, evt.ID, cause.Error(), next); err != nil {
		log.WithError(err).WithField("event_id", evt.ID).Error("Failed to record outbox failure")
	}
}

// Backoff doubles base for every attempt already made, capped at one hour.
func Backoff(base time.Duration, attempts int) time.Duration {
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Decode unpacks an event payload into out.
func Decode(evt models.OutboxEvent, out interface{}) error {
	raw, err := bson.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

func toDocument(payload interface{}) (bson.M, error) {
	raw, err := bson.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
