package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
)

// BookingService manages customer bookings and their explicit, staff-driven transitions.
// Job-driven transitions go through BookingSyncer instead.
type BookingService struct {
	bookings db.BookingCollection
	vehicles db.VehicleCollection
	users    db.UserCollection
	counters db.CounterCollection
	events   EventPublisher
	now      func() time.Time
}

// NewBookingService creates a booking service.
func NewBookingService(repos Repositories, events EventPublisher) *BookingService {
	return &BookingService{
		bookings: repos.Bookings,
		vehicles: repos.Vehicles,
		users:    repos.Users,
		counters: repos.Counters,
		events:   eventsOrNop(events),
		now:      time.Now,
	}
}

// BookingInput is the body of a booking creation. Customer is only read for staff callers.
type BookingInput struct {
	Customer      string          `json:"customer"`
	Vehicle       string          `json:"vehicle"`
	ServiceType   string          `json:"serviceType"`
	Description   string          `json:"description"`
	Priority      models.Priority `json:"priority"`
	ScheduledDate time.Time       `json:"scheduledDate"`
}

// Create books a vehicle in. Customers book for themselves; staff book on behalf of a customer.
func (s *BookingService) Create(ctx context.Context, actor Actor, in BookingInput) (*models.Booking, error) {
	customerID := actor.ID
	if actor.Role != models.RoleCustomer {
		if in.Customer == "" {
			return nil, apperror.BadRequest("customer is required")
		}
		customer, err := s.users.FindUserByID(ctx, in.Customer)
		if err != nil {
			return nil, lookupErr(err, "Customer")
		}
		if customer.Role != models.RoleCustomer || !customer.IsActive() {
			return nil, apperror.BadRequest("customer must be an active customer account")
		}
		customerID = customer.ID
	}

	if in.Vehicle == "" {
		return nil, apperror.BadRequest("vehicle is required")
	}
	vehicle, err := s.vehicles.FindVehicleByID(ctx, in.Vehicle)
	if err != nil {
		return nil, lookupErr(err, "Vehicle")
	}
	if vehicle.Owner != customerID {
		return nil, apperror.BadRequest("vehicle does not belong to the customer")
	}
	if !models.IsValidServiceType(in.ServiceType) {
		return nil, apperror.BadRequest("invalid serviceType")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !models.IsValidPriority(in.Priority) {
		return nil, apperror.BadRequest("invalid priority")
	}
	if in.ScheduledDate.IsZero() {
		return nil, apperror.BadRequest("scheduledDate is required")
	}

	bookingID, err := nextID(ctx, s.counters, db.SeqBooking, prefixBooking)
	if err != nil {
		return nil, err
	}
	booking := &models.Booking{
		BookingID:     bookingID,
		Customer:      customerID,
		Vehicle:       vehicle.ID,
		ServiceType:   in.ServiceType,
		Description:   strings.TrimSpace(in.Description),
		Status:        models.BookingPending,
		Priority:      in.Priority,
		ScheduledDate: in.ScheduledDate,
		CreatedBy:     actor.ID,
	}
	if err := s.bookings.InsertBooking(ctx, booking); err != nil {
		return nil, apperror.Internal(err, "failed to create booking")
	}

	log.WithFields(log.Fields{
		"booking_id": booking.BookingID,
		"customer":   customerID.Hex(),
		"vehicle":    vehicle.RegistrationNumber,
	}).Info("Booking created")
	return booking, nil
}

// List returns bookings; customers only see their own.
func (s *BookingService) List(ctx context.Context, actor Actor, status models.BookingStatus) ([]models.Booking, error) {
	if status != "" && !models.IsValidBookingStatus(status) {
		return nil, apperror.BadRequest("Invalid status: %s", status)
	}
	filter := db.BookingFilter{Status: status}
	if actor.Role == models.RoleCustomer {
		filter.Customer = &actor.ID
	}
	bookings, err := s.bookings.FindBookings(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(err, "failed to list bookings")
	}
	return bookings, nil
}

// Get returns one booking.
func (s *BookingService) Get(ctx context.Context, actor Actor, ref string) (*models.Booking, error) {
	booking, err := s.bookings.FindBooking(ctx, ref)
	if err != nil {
		return nil, lookupErr(err, "Booking")
	}
	if actor.Role == models.RoleCustomer && booking.Customer != actor.ID {
		return nil, apperror.Forbidden("Access denied")
	}
	return booking, nil
}

// UpdateStatus applies an explicit transition from the booking transition table.
func (s *BookingService) UpdateStatus(ctx context.Context, actor Actor, ref string, status models.BookingStatus, notes string) (*models.Booking, error) {
	if !models.IsValidBookingStatus(status) {
		return nil, apperror.BadRequest("Invalid status: %s", status)
	}
	booking, err := s.bookings.FindBooking(ctx, ref)
	if err != nil {
		return nil, lookupErr(err, "Booking")
	}
	if !booking.Status.CanTransitionTo(status) {
		return nil, apperror.BadRequest("Invalid status transition from %s to %s", booking.Status, status)
	}
	if booking.Status == models.BookingPending && status == models.BookingInspecting && booking.AssignedInspector == nil {
		return nil, apperror.BadRequest("An inspector must be assigned before inspection starts")
	}

	text := fmt.Sprintf("Status changed to %s", status)
	if notes = strings.TrimSpace(notes); notes != "" {
		text += ": " + notes
	}
	return s.transition(ctx, actor, booking, status, text)
}

// AssignInspector sets the technician who will inspect the vehicle.
func (s *BookingService) AssignInspector(ctx context.Context, actor Actor, ref, inspectorID string) (*models.Booking, error) {
	booking, err := s.bookings.FindBooking(ctx, ref)
	if err != nil {
		return nil, lookupErr(err, "Booking")
	}
	if booking.Status == models.BookingCompleted || booking.Status == models.BookingCancelled {
		return nil, apperror.BadRequest("Cannot assign an inspector to a %s booking", booking.Status)
	}
	if _, err := parseID(inspectorID, "inspector"); err != nil {
		return nil, err
	}
	inspector, err := s.users.FindUserByID(ctx, inspectorID)
	if err != nil {
		return nil, lookupErr(err, "Inspector")
	}
	if inspector.Role != models.RoleTechnician || !inspector.IsActive() {
		return nil, apperror.BadRequest("Inspector must be an active technician")
	}

	note := &models.BookingNote{
		Note:    "Inspector assigned: " + inspector.FullName(),
		AddedBy: &actor.ID,
		AddedAt: s.now(),
	}
	updated, err := s.bookings.AssignInspector(ctx, booking.ID, inspector.ID, note)
	if err != nil {
		return nil, lookupErr(err, "Booking")
	}
	log.WithFields(log.Fields{"booking_id": updated.BookingID, "inspector": inspector.Username}).Info("Inspector assigned")
	return updated, nil
}

// Cancel cancels a booking. Customers may only cancel their own bookings while pending.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, ref, reason string) (*models.Booking, error) {
	booking, err := s.bookings.FindBooking(ctx, ref)
	if err != nil {
		return nil, lookupErr(err, "Booking")
	}
	if actor.Role == models.RoleCustomer {
		if booking.Customer != actor.ID {
			return nil, apperror.Forbidden("Access denied")
		}
		if booking.Status != models.BookingPending {
			return nil, apperror.BadRequest("Only pending bookings can be cancelled")
		}
	} else if !booking.Status.CanTransitionTo(models.BookingCancelled) {
		return nil, apperror.BadRequest("Cannot cancel a %s booking", booking.Status)
	}

	text := "Booking cancelled"
	if reason = strings.TrimSpace(reason); reason != "" {
		text += ": " + reason
	}
	return s.transition(ctx, actor, booking, models.BookingCancelled, text)
}

func (s *BookingService) transition(ctx context.Context, actor Actor, booking *models.Booking, status models.BookingStatus, text string) (*models.Booking, error) {
	note := &models.BookingNote{Note: text, AddedBy: &actor.ID, AddedAt: s.now()}
	updated, err := s.bookings.UpdateBookingStatus(ctx, booking.ID, status, note)
	if err != nil {
		return nil, lookupErr(err, "Booking")
	}
	log.WithFields(log.Fields{
		"booking_id": updated.BookingID,
		"from":       booking.Status,
		"to":         updated.Status,
		"user_id":    actor.ID.Hex(),
	}).Info("Booking status updated")
	s.events.BookingStatusChanged(context.WithoutCancel(ctx), updated, booking.Status)
	return updated, nil
}
