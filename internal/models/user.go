package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleCustomer       Role = "customer"
	RoleTechnician     Role = "technician"
	RoleServiceAdvisor Role = "service_advisor"
	RoleManager        Role = "manager"
	RoleCashier        Role = "cashier"
	RoleAdmin          Role = "admin"
)

// UserStatus is the account state of a user.
type UserStatus string

const (
	UserStatusActive     UserStatus = "active"
	UserStatusInactive   UserStatus = "inactive"
	UserStatusSuspended  UserStatus = "suspended"
	UserStatusTerminated UserStatus = "terminated"
)

const (
	// MaxLoginAttempts is the number of consecutive failed logins before the account is locked.
	MaxLoginAttempts = 5
	// LockDuration is how long a locked account stays locked.
	LockDuration = 15 * time.Minute
)

// Profile holds personal details shared by every role.
type Profile struct {
	FirstName string `bson:"first_name" json:"firstName"`
	LastName  string `bson:"last_name" json:"lastName"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`
	NIC       string `bson:"nic,omitempty" json:"nic,omitempty"`
	Address   string `bson:"address,omitempty" json:"address,omitempty"`
}

// EmploymentDetails is only set for staff accounts.
type EmploymentDetails struct {
	EmployeeID      string     `bson:"employee_id,omitempty" json:"employeeId,omitempty"`
	Department      string     `bson:"department,omitempty" json:"department,omitempty"`
	Specializations []string   `bson:"specializations,omitempty" json:"specializations,omitempty"`
	HireDate        *time.Time `bson:"hire_date,omitempty" json:"hireDate,omitempty"`
}

// CustomerDetails is only set for customer accounts.
type CustomerDetails struct {
	LoyaltyPoints  int    `bson:"loyalty_points" json:"loyaltyPoints"`
	MembershipTier string `bson:"membership_tier" json:"membershipTier"`
}

// User represents a user in the system
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username      string             `bson:"username" json:"username"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"password_hash" json:"-"`
	Role          Role               `bson:"role" json:"role"`
	Status        UserStatus         `bson:"status" json:"status"`
	Profile       Profile            `bson:"profile" json:"profile"`
	Employment    *EmploymentDetails `bson:"employment,omitempty" json:"employment,omitempty"`
	Customer      *CustomerDetails   `bson:"customer,omitempty" json:"customer,omitempty"`
	LoginAttempts int                `bson:"login_attempts" json:"-"`
	LockUntil     *time.Time         `bson:"lock_until,omitempty" json:"lockUntil,omitempty"`
	LastLogin     *time.Time         `bson:"last_login,omitempty" json:"lastLogin,omitempty"`
	DeactivatedAt *time.Time         `bson:"deactivated_at,omitempty" json:"deactivatedAt,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}

// UserRef is the resolved form of a user reference embedded in other responses.
type UserRef struct {
	ID   primitive.ObjectID `json:"id"`
	Name string             `json:"name"`
	Role Role               `json:"role"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a customer self-registration request
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	NIC       string `json:"nic"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleCustomer, RoleTechnician, RoleServiceAdvisor, RoleManager, RoleCashier, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsStaffRole reports whether the role belongs to garage staff.
func IsStaffRole(role Role) bool {
	return IsValidRole(role) && role != RoleCustomer
}

// IsValidUserStatus checks if a status is valid
func IsValidUserStatus(status UserStatus) bool {
	switch status {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended, UserStatusTerminated:
		return true
	default:
		return false
	}
}

// IsActive reports whether the account may be used.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// IsLocked reports whether the account is locked at the given time.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// FullName returns the display name, falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.Profile.FirstName + " " + u.Profile.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Ref returns the user as an embedded reference.
func (u *User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Name: u.FullName(), Role: u.Role}
}

// HasSpecialization reports whether a staff member lists the given specialization.
func (u *User) HasSpecialization(spec string) bool {
	if u.Employment == nil {
		return false
	}
	for _, s := range u.Employment.Specializations {
		if strings.EqualFold(s, spec) {
			return true
		}
	}
	return false
}
