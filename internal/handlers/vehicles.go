package handlers

import (
	"context"
	"net/http"

	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/response"
	"github.com/ukydev/garage-service/internal/services"
)

// VehicleManager is vehicle registration as the handlers see it.
type VehicleManager interface {
	Create(ctx context.Context, actor services.Actor, in services.VehicleInput) (*models.Vehicle, error)
	List(ctx context.Context, actor services.Actor, owner string) ([]models.Vehicle, error)
	Get(ctx context.Context, actor services.Actor, id string) (*models.Vehicle, error)
	Update(ctx context.Context, actor services.Actor, id string, in services.VehicleInput) (*models.Vehicle, error)
}

// VehicleHandler serves /api/vehicles.
type VehicleHandler struct {
	vehicles VehicleManager
}

// NewVehicleHandler creates a vehicle handler.
func NewVehicleHandler(vehicles VehicleManager) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles}
}

// Create handles POST /api/vehicles
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var in services.VehicleInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	v, err := h.vehicles.Create(r.Context(), actor, in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, "Vehicle registered successfully", response.Fields{"vehicle": v})
}

// List handles GET /api/vehicles
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	vehicles, err := h.vehicles.List(r.Context(), actor, r.URL.Query().Get("owner"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"vehicles": vehicles, "count": len(vehicles)})
}

// Get handles GET /api/vehicles/{id}
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	v, err := h.vehicles.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"vehicle": v})
}

// Update handles PUT /api/vehicles/{id}
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var in services.VehicleInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	v, err := h.vehicles.Update(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Vehicle updated successfully", response.Fields{"vehicle": v})
}
