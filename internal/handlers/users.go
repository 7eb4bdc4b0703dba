package handlers

import (
	"context"
	"net/http"

	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/response"
	"github.com/ukydev/garage-service/internal/services"
)

// UserManager is account administration as the handlers see it.
type UserManager interface {
	CreateStaff(ctx context.Context, actor services.Actor, in services.StaffInput) (*models.User, error)
	List(ctx context.Context, filter db.UserFilter) ([]models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateStatus(ctx context.Context, actor services.Actor, id string, status models.UserStatus) (*models.User, error)
	Deactivate(ctx context.Context, actor services.Actor, id string) (*models.User, error)
	Technicians(ctx context.Context, specialization string) ([]models.User, error)
}

// UserHandler serves /api/users.
type UserHandler struct {
	users UserManager
}

// NewUserHandler creates a user handler.
func NewUserHandler(users UserManager) *UserHandler {
	return &UserHandler{users: users}
}

// Create handles POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var in services.StaffInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	user, err := h.users.CreateStaff(r.Context(), actor, in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, "User created successfully", response.Fields{"user": user})
}

// List handles GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := h.users.List(r.Context(), db.UserFilter{
		Role:           models.Role(q.Get("role")),
		Status:         models.UserStatus(q.Get("status")),
		Specialization: q.Get("specialization"),
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"users": users, "count": len(users)})
}

// Technicians handles GET /api/users/technicians
func (h *UserHandler) Technicians(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Technicians(r.Context(), r.URL.Query().Get("specialization"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"technicians": users, "count": len(users)})
}

// Get handles GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"user": user})
}

// UpdateStatus handles PATCH /api/users/{id}/status
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var body struct {
		Status models.UserStatus `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, err)
		return
	}
	user, err := h.users.UpdateStatus(r.Context(), actor, r.PathValue("id"), body.Status)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "User status updated successfully", response.Fields{"user": user})
}

// Delete handles DELETE /api/users/{id}. Accounts are deactivated, never removed.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	user, err := h.users.Deactivate(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "User deactivated successfully", response.Fields{"user": user})
}
