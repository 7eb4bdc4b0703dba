package services

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VehicleService manages customer vehicles.
type VehicleService struct {
	vehicles db.VehicleCollection
	users    db.UserCollection
}

// NewVehicleService creates a vehicle service.
func NewVehicleService(repos Repositories) *VehicleService {
	return &VehicleService{vehicles: repos.Vehicles, users: repos.Users}
}

// VehicleInput is the body of a vehicle create or update. Nil fields are left unchanged on update.
type VehicleInput struct {
	Owner              string           `json:"owner"`
	RegistrationNumber *string          `json:"registrationNumber"`
	Make               *string          `json:"make"`
	Model              *string          `json:"model"`
	Year               *int             `json:"year"`
	VIN                *string          `json:"vin"`
	Color              *string          `json:"color"`
	FuelType           *models.FuelType `json:"fuelType"`
	Mileage            *float64         `json:"mileage"`
}

func (in VehicleInput) applyTo(v *models.Vehicle) {
	if in.RegistrationNumber != nil {
		v.RegistrationNumber = *in.RegistrationNumber
	}
	if in.Make != nil {
		v.Make = strings.TrimSpace(*in.Make)
	}
	if in.Model != nil {
		v.Model = strings.TrimSpace(*in.Model)
	}
	if in.Year != nil {
		v.Year = *in.Year
	}
	if in.VIN != nil {
		v.VIN = strings.ToUpper(strings.TrimSpace(*in.VIN))
	}
	if in.Color != nil {
		v.Color = *in.Color
	}
	if in.FuelType != nil {
		v.FuelType = *in.FuelType
	}
	if in.Mileage != nil {
		v.Mileage = *in.Mileage
	}
}

// Create registers a vehicle. Customers register their own; staff name the owner.
func (s *VehicleService) Create(ctx context.Context, actor Actor, in VehicleInput) (*models.Vehicle, error) {
	owner := actor.ID
	if actor.Role != models.RoleCustomer {
		if in.Owner == "" {
			return nil, apperror.BadRequest("owner is required")
		}
		user, err := s.users.FindUserByID(ctx, in.Owner)
		if err != nil {
			return nil, lookupErr(err, "Owner")
		}
		if user.Role != models.RoleCustomer {
			return nil, apperror.BadRequest("owner must be a customer")
		}
		owner = user.ID
	}

	v := &models.Vehicle{Owner: owner}
	in.applyTo(v)
	if err := v.Validate(); err != nil {
		return nil, apperror.BadRequest("%s", err.Error())
	}
	if err := s.vehicles.InsertVehicle(ctx, v); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperror.Conflict("Vehicle %s is already registered", v.RegistrationNumber)
		}
		return nil, apperror.Internal(err, "failed to create vehicle")
	}
	log.WithFields(log.Fields{"registration": v.RegistrationNumber, "owner": owner.Hex()}).Info("Vehicle registered")
	return v, nil
}

// List returns vehicles. Customers see their own; staff may filter by owner.
func (s *VehicleService) List(ctx context.Context, actor Actor, owner string) ([]models.Vehicle, error) {
	var filter db.VehicleFilter
	switch {
	case actor.Role == models.RoleCustomer:
		filter.Owner = &actor.ID
	case owner != "":
		oid, err := primitive.ObjectIDFromHex(owner)
		if err != nil {
			return nil, apperror.BadRequest("invalid owner id")
		}
		filter.Owner = &oid
	}
	vehicles, err := s.vehicles.FindVehicles(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(err, "failed to list vehicles")
	}
	return vehicles, nil
}

// Get returns one vehicle.
func (s *VehicleService) Get(ctx context.Context, actor Actor, id string) (*models.Vehicle, error) {
	v, err := s.vehicles.FindVehicleByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "Vehicle")
	}
	if actor.Role == models.RoleCustomer && v.Owner != actor.ID {
		return nil, apperror.Forbidden("Access denied")
	}
	return v, nil
}

// Update changes vehicle details. Ownership cannot be changed.
func (s *VehicleService) Update(ctx context.Context, actor Actor, id string, in VehicleInput) (*models.Vehicle, error) {
	v, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(v)
	if err := v.Validate(); err != nil {
		return nil, apperror.BadRequest("%s", err.Error())
	}
	if err := s.vehicles.UpdateVehicle(ctx, v); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperror.Conflict("Vehicle %s is already registered", v.RegistrationNumber)
		}
		return nil, lookupErr(err, "Vehicle")
	}
	return v, nil
}
