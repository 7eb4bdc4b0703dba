package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingStatus is the customer-facing lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingInspecting BookingStatus = "inspecting"
	BookingWorking    BookingStatus = "working"
	BookingCompleted  BookingStatus = "completed"
	BookingOnHold     BookingStatus = "on_hold"
	BookingCancelled  BookingStatus = "cancelled"
)

// Priority is shared by bookings and jobs.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ServiceTypes lists the service types a booking may request.
var ServiceTypes = []string{
	"general_service",
	"oil_change",
	"brake_service",
	"engine_repair",
	"transmission",
	"electrical",
	"tire_service",
	"body_work",
	"inspection",
	"other",
}

// bookingTransitions holds the explicit (staff-driven) booking edges.
// Job-driven changes bypass this table, see the booking sync.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:    {BookingInspecting, BookingCancelled},
	BookingInspecting: {BookingWorking, BookingOnHold, BookingCancelled},
	BookingWorking:    {BookingCompleted, BookingOnHold, BookingCancelled},
	BookingOnHold:     {BookingInspecting, BookingWorking, BookingCancelled},
}

// BookingNote is an audit entry on a booking.
type BookingNote struct {
	Note    string              `bson:"note" json:"note"`
	JobID   string              `bson:"job_id,omitempty" json:"jobId,omitempty"`
	AddedBy *primitive.ObjectID `bson:"added_by,omitempty" json:"addedBy,omitempty"`
	AddedAt time.Time           `bson:"added_at" json:"addedAt"`
}

// Booking is a customer's service request.
type Booking struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	BookingID         string              `bson:"booking_id" json:"bookingId"`
	Customer          primitive.ObjectID  `bson:"customer" json:"customer"`
	Vehicle           primitive.ObjectID  `bson:"vehicle" json:"vehicle"`
	ServiceType       string              `bson:"service_type" json:"serviceType"`
	Description       string              `bson:"description,omitempty" json:"description,omitempty"`
	Status            BookingStatus       `bson:"status" json:"status"`
	Priority          Priority            `bson:"priority" json:"priority"`
	ScheduledDate     time.Time           `bson:"scheduled_date" json:"scheduledDate"`
	AssignedInspector *primitive.ObjectID `bson:"assigned_inspector,omitempty" json:"assignedInspector,omitempty"`
	Notes             []BookingNote       `bson:"notes" json:"notes"`
	CreatedBy         primitive.ObjectID  `bson:"created_by" json:"createdBy"`
	CreatedAt         time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updated_at" json:"updatedAt"`
}

// IsValidBookingStatus checks if a booking status is valid
func IsValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingPending, BookingInspecting, BookingWorking, BookingCompleted, BookingOnHold, BookingCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether staff may move a booking from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValidPriority checks if a priority is valid
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// IsValidServiceType checks the service type against ServiceTypes.
func IsValidServiceType(t string) bool {
	for _, s := range ServiceTypes {
		if s == t {
			return true
		}
	}
	return false
}

// BookingSummary is the resolved form of a booking embedded in job responses.
type BookingSummary struct {
	ID            primitive.ObjectID `json:"id"`
	BookingID     string             `json:"bookingId"`
	ServiceType   string             `json:"serviceType"`
	Status        BookingStatus      `json:"status"`
	ScheduledDate time.Time          `json:"scheduledDate"`
}

// Summary returns the embedded form of the booking.
func (b *Booking) Summary() *BookingSummary {
	return &BookingSummary{
		ID:            b.ID,
		BookingID:     b.BookingID,
		ServiceType:   b.ServiceType,
		Status:        b.Status,
		ScheduledDate: b.ScheduledDate,
	}
}
