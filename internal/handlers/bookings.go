package handlers

import (
	"context"
	"net/http"

	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/response"
	"github.com/ukydev/garage-service/internal/services"
)

// BookingManager is the booking workflow as the handlers see it.
type BookingManager interface {
	Create(ctx context.Context, actor services.Actor, in services.BookingInput) (*models.Booking, error)
	List(ctx context.Context, actor services.Actor, status models.BookingStatus) ([]models.Booking, error)
	Get(ctx context.Context, actor services.Actor, ref string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, actor services.Actor, ref string, status models.BookingStatus, notes string) (*models.Booking, error)
	AssignInspector(ctx context.Context, actor services.Actor, ref, inspectorID string) (*models.Booking, error)
	Cancel(ctx context.Context, actor services.Actor, ref, reason string) (*models.Booking, error)
}

// BookingHandler serves /api/bookings.
type BookingHandler struct {
	bookings BookingManager
}

// NewBookingHandler creates a booking handler.
func NewBookingHandler(bookings BookingManager) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Create handles POST /api/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var in services.BookingInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	booking, err := h.bookings.Create(r.Context(), actor, in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, "Booking created successfully", response.Fields{"booking": booking})
}

// List handles GET /api/bookings
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	bookings, err := h.bookings.List(r.Context(), actor, models.BookingStatus(r.URL.Query().Get("status")))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"bookings": bookings, "count": len(bookings)})
}

// Get handles GET /api/bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	booking, err := h.bookings.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"booking": booking})
}

// UpdateStatus handles PATCH /api/bookings/{id}/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var body struct {
		Status models.BookingStatus `json:"status"`
		Notes  string               `json:"notes"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, err)
		return
	}
	booking, err := h.bookings.UpdateStatus(r.Context(), actor, r.PathValue("id"), body.Status, body.Notes)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Booking status updated successfully", response.Fields{"booking": booking})
}

// AssignInspector handles PATCH /api/bookings/{id}/inspector
func (h *BookingHandler) AssignInspector(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var body struct {
		Inspector string `json:"inspector"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, err)
		return
	}
	booking, err := h.bookings.AssignInspector(r.Context(), actor, r.PathValue("id"), body.Inspector)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Inspector assigned successfully", response.Fields{"booking": booking})
}

// Cancel handles POST /api/bookings/{id}/cancel
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			response.Error(w, r, err)
			return
		}
	}
	booking, err := h.bookings.Cancel(r.Context(), actor, r.PathValue("id"), body.Reason)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Booking cancelled successfully", response.Fields{"booking": booking})
}
