// Package services holds the workshop's business rules: job lifecycle, booking sync,
// stock accounting and billing. Handlers translate HTTP to these calls and back.
package services

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   primitive.ObjectID
	Role models.Role
}

// ActorFromClaims converts token claims into an Actor.
func ActorFromClaims(c *models.Claims) (Actor, error) {
	if c == nil {
		return Actor{}, apperror.Unauthorized("Authentication required")
	}
	id, err := primitive.ObjectIDFromHex(c.UserID)
	if err != nil {
		return Actor{}, apperror.Unauthorized("Invalid token subject")
	}
	return Actor{ID: id, Role: c.Role}, nil
}

// IsStaff reports whether the actor is garage staff.
func (a Actor) IsStaff() bool {
	return models.IsStaffRole(a.Role)
}

// Repositories groups the collections the services read and write.
type Repositories struct {
	Users         db.UserCollection
	Vehicles      db.VehicleCollection
	Bookings      db.BookingCollection
	Jobs          db.JobCollection
	Inventory     db.InventoryCollection
	GoodsRequests db.GoodsRequestCollection
	Movements     db.MovementCollection
	Invoices      db.InvoiceCollection
	Counters      db.CounterCollection
}

// RepositoriesFromStore exposes a Mongo store through the repository interfaces.
func RepositoriesFromStore(s *db.Store) Repositories {
	return Repositories{
		Users:         s.Users,
		Vehicles:      s.Vehicles,
		Bookings:      s.Bookings,
		Jobs:          s.Jobs,
		Inventory:     s.Inventory,
		GoodsRequests: s.GoodsRequests,
		Movements:     s.Movements,
		Invoices:      s.Invoices,
		Counters:      s.Counters,
	}
}

// EventPublisher announces domain events. Implementations must not block on failure.
type EventPublisher interface {
	JobStatusChanged(ctx context.Context, job *models.Job, from models.JobStatus)
	BookingStatusChanged(ctx context.Context, booking *models.Booking, from models.BookingStatus)
	LowStock(ctx context.Context, item *models.InventoryItem)
}

type nopEvents struct{}

func (nopEvents) JobStatusChanged(context.Context, *models.Job, models.JobStatus)             {}
func (nopEvents) BookingStatusChanged(context.Context, *models.Booking, models.BookingStatus) {}
func (nopEvents) LowStock(context.Context, *models.InventoryItem)                             {}

func eventsOrNop(e EventPublisher) EventPublisher {
	if e == nil {
		return nopEvents{}
	}
	return e
}

// Human readable id prefixes.
const (
	prefixBooking   = "BK"
	prefixJob       = "JOB"
	prefixInventory = "ITM"
	prefixInvoice   = "INV"
)

// nextID formats the next value of seq as prefix plus five zero-padded digits.
func nextID(ctx context.Context, counters db.CounterCollection, seq, prefix string) (string, error) {
	n, err := counters.NextSequence(ctx, seq)
	if err != nil {
		return "", apperror.Internal(err, "failed to generate id")
	}
	return fmt.Sprintf("%s%05d", prefix, n), nil
}

// lookupErr maps a repository read failure: missing documents become 404.
func lookupErr(err error, what string) error {
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID) {
		return apperror.NotFound("%s not found", what)
	}
	return apperror.Internal(err, "failed to load "+what)
}

func parseID(id, what string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperror.BadRequest("invalid %s id", what)
	}
	return oid, nil
}

// userRefs resolves a set of users into embeddable references, keyed by id.
func userRefs(ctx context.Context, users db.UserCollection, ids []primitive.ObjectID) map[primitive.ObjectID]*models.UserRef {
	out := make(map[primitive.ObjectID]*models.UserRef, len(ids))
	found, err := users.FindUsersByIDs(ctx, ids)
	if err != nil {
		log.WithError(err).Warn("Failed to resolve user references")
		return out
	}
	for i := range found {
		out[found[i].ID] = found[i].Ref()
	}
	return out
}

