package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Outbox event types.
const (
	EventBookingSync  = "booking.status_sync"
	EventGoodsRequest = "goods_request.create"
	EventNotify       = "notify.publish"
)

// OutboxStatus of a recorded secondary effect.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxDone    OutboxStatus = "done"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxEvent is a secondary effect that failed inline and waits for a retry.
type OutboxEvent struct {
	ID            string       `bson:"_id" json:"id"`
	Type          string       `bson:"type" json:"type"`
	AggregateID   string       `bson:"aggregate_id" json:"aggregateId"`
	Payload       bson.M       `bson:"payload" json:"payload"`
	Status        OutboxStatus `bson:"status" json:"status"`
	Attempts      int          `bson:"attempts" json:"attempts"`
	LastError     string       `bson:"last_error,omitempty" json:"lastError,omitempty"`
	NextAttemptAt time.Time    `bson:"next_attempt_at" json:"nextAttemptAt"`
	CreatedAt     time.Time    `bson:"created_at" json:"createdAt"`
	ProcessedAt   *time.Time   `bson:"processed_at,omitempty" json:"processedAt,omitempty"`
}
