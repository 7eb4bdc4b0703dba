package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrDuplicate         = errors.New("duplicate key")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("document changed concurrently")
	ErrInvalidID         = errors.New("invalid id")
)

// UserFilter narrows user listings. Zero values match everything.
type UserFilter struct {
	Role           models.Role
	Status         models.UserStatus
	Specialization string
}

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsers(ctx context.Context, filter UserFilter) ([]models.User, error)
	FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	SetUserStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
	RecordFailedLogin(ctx context.Context, id string, attempts int, lockUntil *time.Time) error
}

// VehicleFilter narrows vehicle listings.
type VehicleFilter struct {
	Owner *primitive.ObjectID
}

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle *models.Vehicle) error
	FindVehicles(ctx context.Context, filter VehicleFilter) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, vehicle *models.Vehicle) error
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	Customer *primitive.ObjectID
	Status   models.BookingStatus
}

// BookingCollection defines the interface for booking data operations.
type BookingCollection interface {
	InsertBooking(ctx context.Context, booking *models.Booking) error
	// FindBooking accepts either the document id or the human readable booking id.
	FindBooking(ctx context.Context, ref string) (*models.Booking, error)
	FindBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id primitive.ObjectID, status models.BookingStatus, note *models.BookingNote) (*models.Booking, error)
	AssignInspector(ctx context.Context, id, inspector primitive.ObjectID, note *models.BookingNote) (*models.Booking, error)
	CountBookingsByStatus(ctx context.Context) (map[string]int64, error)
}

// JobFilter narrows job listings.
type JobFilter struct {
	Booking    *primitive.ObjectID
	Technician *primitive.ObjectID
	Status     models.JobStatus
}

// JobStatusUpdate is one status write. Nil timestamps are left untouched.
type JobStatusUpdate struct {
	Status      models.JobStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	Change      models.StatusChange
}

// JobCollection defines the interface for job data operations.
type JobCollection interface {
	InsertJob(ctx context.Context, job *models.Job) error
	// FindJob accepts either the document id or the human readable job id.
	FindJob(ctx context.Context, ref string) (*models.Job, error)
	FindJobs(ctx context.Context, filter JobFilter) ([]models.Job, error)
	// UpdateJobStatus applies the update only while the job is still in Change.From.
	UpdateJobStatus(ctx context.Context, id primitive.ObjectID, update JobStatusUpdate) (*models.Job, error)
	AddWorkLog(ctx context.Context, id primitive.ObjectID, entry models.WorkLogEntry) (*models.Job, error)
	SetPreWorkInspection(ctx context.Context, id primitive.ObjectID, report models.PreWorkInspection) (*models.Job, error)
	SetPostWorkInspection(ctx context.Context, id primitive.ObjectID, report models.PostWorkInspection) (*models.Job, error)
	CountJobsByStatus(ctx context.Context) (map[string]int64, error)
}

// ItemFilter narrows inventory listings.
type ItemFilter struct {
	Category            models.ItemCategory
	Status              models.ItemStatus
	Search              string
	LowStockOnly        bool
	ExcludeDiscontinued bool
}

// InventoryCollection defines the interface for inventory data operations.
type InventoryCollection interface {
	InsertItem(ctx context.Context, item *models.InventoryItem) error
	// FindItem accepts either the document id or the item code.
	FindItem(ctx context.Context, ref string) (*models.InventoryItem, error)
	FindItems(ctx context.Context, filter ItemFilter) ([]models.InventoryItem, error)
	// UpdateItem writes descriptive fields only; stock changes go through AdjustStock.
	UpdateItem(ctx context.Context, item *models.InventoryItem) error
	// AdjustStock atomically applies delta and returns the item as it was before.
	// A negative delta larger than the current stock fails with ErrInsufficientStock.
	AdjustStock(ctx context.Context, id primitive.ObjectID, delta float64) (*models.InventoryItem, error)
	CountLowStock(ctx context.Context) (int64, error)
}

// GoodsRequestFilter narrows goods request listings.
type GoodsRequestFilter struct {
	Job    *primitive.ObjectID
	Status models.GoodsRequestStatus
}

// GoodsRequestUpdate moves a goods request out of its current status.
type GoodsRequestUpdate struct {
	Status         models.GoodsRequestStatus
	HandledBy      primitive.ObjectID
	HandledAt      time.Time
	RejectedReason string
}

// GoodsRequestCollection defines the interface for goods request data operations.
type GoodsRequestCollection interface {
	InsertGoodsRequest(ctx context.Context, req *models.GoodsRequest) error
	FindGoodsRequest(ctx context.Context, ref string) (*models.GoodsRequest, error)
	FindGoodsRequests(ctx context.Context, filter GoodsRequestFilter) ([]models.GoodsRequest, error)
	// UpdateGoodsRequestStatus applies the update only while the request is in from.
	UpdateGoodsRequestStatus(ctx context.Context, id primitive.ObjectID, from models.GoodsRequestStatus, update GoodsRequestUpdate) (*models.GoodsRequest, error)
}

// MovementCollection defines the interface for the stock movement log.
type MovementCollection interface {
	InsertMovement(ctx context.Context, movement *models.StockMovement) error
	FindMovements(ctx context.Context, item primitive.ObjectID, limit int64) ([]models.StockMovement, error)
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status   models.InvoiceStatus
	Customer *primitive.ObjectID
}

// InvoiceCollection defines the interface for invoice data operations.
type InvoiceCollection interface {
	InsertInvoice(ctx context.Context, invoice *models.Invoice) error
	FindInvoice(ctx context.Context, ref string) (*models.Invoice, error)
	FindInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error)
	FindInvoiceByJob(ctx context.Context, job primitive.ObjectID) (*models.Invoice, error)
	// MarkInvoicePaid settles a pending invoice; anything else fails with ErrConflict.
	MarkInvoicePaid(ctx context.Context, id primitive.ObjectID, method models.PaymentMethod, paidAt time.Time) (*models.Invoice, error)
	SumPaidRevenue(ctx context.Context) (float64, error)
}

// CounterCollection hands out sequence numbers for human readable ids.
type CounterCollection interface {
	NextSequence(ctx context.Context, name string) (int64, error)
	SeedSequence(ctx context.Context, name string, value int64) error
}

// OutboxCollection stores secondary effects awaiting a retry.
type OutboxCollection interface {
	InsertEvent(ctx context.Context, evt *models.OutboxEvent) error
	FindEvent(ctx context.Context, id string) (*models.OutboxEvent, error)
	FindEvents(ctx context.Context, status models.OutboxStatus, limit int64) ([]models.OutboxEvent, error)
	FindRetryable(ctx context.Context, now time.Time, maxAttempts int, limit int64) ([]models.OutboxEvent, error)
	MarkEventDone(ctx context.Context, id string, at time.Time) error
	MarkEventFailed(ctx context.Context, id string, errMsg string, next time.Time) error
}
