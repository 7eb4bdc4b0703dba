package models

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"customer role", RoleCustomer, true},
		{"technician role", RoleTechnician, true},
		{"service advisor role", RoleServiceAdvisor, true},
		{"manager role", RoleManager, true},
		{"cashier role", RoleCashier, true},
		{"admin role", RoleAdmin, true},
		{"invalid role", "invalid", false},
		{"empty role", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidRole(tt.role)
			if result != tt.expected {
				t.Errorf("IsValidRole(%s) = %v, want %v", tt.role, result, tt.expected)
			}
		})
	}
}

func TestIsStaffRole(t *testing.T) {
	if IsStaffRole(RoleCustomer) {
		t.Error("customer should not be staff")
	}
	if !IsStaffRole(RoleTechnician) || !IsStaffRole(RoleCashier) {
		t.Error("technician and cashier should be staff")
	}
	if IsStaffRole("mechanic") {
		t.Error("unknown role should not be staff")
	}
}

func TestUser_IsLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(5 * time.Minute)
	past := now.Add(-5 * time.Minute)

	tests := []struct {
		name      string
		lockUntil *time.Time
		expected  bool
	}{
		{"never locked", nil, false},
		{"lock in the future", &future, true},
		{"lock expired", &past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{LockUntil: tt.lockUntil}
			if got := u.IsLocked(now); got != tt.expected {
				t.Errorf("IsLocked() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUser_FullNameAndRef(t *testing.T) {
	id := primitive.NewObjectID()
	user := &User{
		ID:       id,
		Username: "kasun",
		Role:     RoleTechnician,
		Status:   UserStatusActive,
		Profile:  Profile{FirstName: "Kasun", LastName: "Perera"},
	}

	if user.FullName() != "Kasun Perera" {
		t.Errorf("Expected FullName to be 'Kasun Perera', got %s", user.FullName())
	}
	ref := user.Ref()
	if ref.ID != id || ref.Role != RoleTechnician {
		t.Errorf("unexpected ref: %+v", ref)
	}
	if !user.IsActive() {
		t.Error("expected user to be active")
	}

	anonymous := &User{Username: "walkin"}
	if anonymous.FullName() != "walkin" {
		t.Errorf("Expected FullName to fall back to username, got %s", anonymous.FullName())
	}
}

func TestUser_HasSpecialization(t *testing.T) {
	tech := &User{Employment: &EmploymentDetails{Specializations: []string{"Brakes", "engine"}}}
	if !tech.HasSpecialization("brakes") {
		t.Error("expected case-insensitive match")
	}
	if tech.HasSpecialization("electrical") {
		t.Error("unexpected specialization match")
	}
	if (&User{}).HasSpecialization("brakes") {
		t.Error("user without employment details has no specializations")
	}
}
