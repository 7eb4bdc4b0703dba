package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GoodsRequestStatus of a claim against inventory.
type GoodsRequestStatus string

const (
	GoodsRequestPending   GoodsRequestStatus = "pending"
	GoodsRequestFulfilled GoodsRequestStatus = "fulfilled"
	GoodsRequestRejected  GoodsRequestStatus = "rejected"
)

// GoodsRequest is a claim against one inventory item for one job.
type GoodsRequest struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	RequestID      string              `bson:"request_id" json:"requestId"`
	Job            primitive.ObjectID  `bson:"job" json:"job"`
	JobID          string              `bson:"job_id" json:"jobId"`
	Item           primitive.ObjectID  `bson:"item,omitempty" json:"item"`
	ItemID         string              `bson:"item_id" json:"itemId"`
	ItemName       string              `bson:"item_name,omitempty" json:"itemName,omitempty"`
	Unit           Unit                `bson:"unit,omitempty" json:"unit,omitempty"`
	Quantity       float64             `bson:"quantity" json:"quantity"`
	Purpose        string              `bson:"purpose,omitempty" json:"purpose,omitempty"`
	Notes          string              `bson:"notes,omitempty" json:"notes,omitempty"`
	RequestedBy    primitive.ObjectID  `bson:"requested_by" json:"requestedBy"`
	Status         GoodsRequestStatus  `bson:"status" json:"status"`
	HandledBy      *primitive.ObjectID `bson:"handled_by,omitempty" json:"handledBy,omitempty"`
	HandledAt      *time.Time          `bson:"handled_at,omitempty" json:"handledAt,omitempty"`
	RejectedReason string              `bson:"rejected_reason,omitempty" json:"rejectedReason,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updatedAt"`
}

// GoodsRequestKey builds the request key from the job's internal id and a 1-based ordinal.
func GoodsRequestKey(job primitive.ObjectID, ordinal int) string {
	return fmt.Sprintf("%s-%d", job.Hex(), ordinal)
}

// IsValidGoodsRequestStatus checks if a goods request status is valid
func IsValidGoodsRequestStatus(s GoodsRequestStatus) bool {
	switch s {
	case GoodsRequestPending, GoodsRequestFulfilled, GoodsRequestRejected:
		return true
	default:
		return false
	}
}
