package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FuelType of a customer vehicle.
type FuelType string

const (
	FuelPetrol   FuelType = "petrol"
	FuelDiesel   FuelType = "diesel"
	FuelHybrid   FuelType = "hybrid"
	FuelElectric FuelType = "electric"
)

// Vehicle represents a customer's vehicle.
type Vehicle struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner              primitive.ObjectID `bson:"owner" json:"owner"`
	RegistrationNumber string             `bson:"registration_number" json:"registrationNumber"`
	Make               string             `bson:"make" json:"make"`
	Model              string             `bson:"model" json:"model"`
	Year               int                `bson:"year" json:"year"`
	VIN                string             `bson:"vin,omitempty" json:"vin,omitempty"`
	Color              string             `bson:"color,omitempty" json:"color,omitempty"`
	FuelType           FuelType           `bson:"fuel_type,omitempty" json:"fuelType,omitempty"`
	Mileage            float64            `bson:"mileage" json:"mileage"` // in kilometers
	CreatedAt          time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Validate checks the fields a vehicle must carry.
func (v *Vehicle) Validate() error {
	v.RegistrationNumber = strings.ToUpper(strings.TrimSpace(v.RegistrationNumber))
	if v.RegistrationNumber == "" {
		return errors.New("registration number is required")
	}
	if strings.TrimSpace(v.Make) == "" || strings.TrimSpace(v.Model) == "" {
		return errors.New("make and model are required")
	}
	if v.Year < 1900 || v.Year > time.Now().Year()+1 {
		return errors.New("year is out of range")
	}
	if v.Mileage < 0 {
		return errors.New("mileage cannot be negative")
	}
	switch v.FuelType {
	case "", FuelPetrol, FuelDiesel, FuelHybrid, FuelElectric:
	default:
		return errors.New("invalid fuel type")
	}
	return nil
}
