package services

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/auth"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
)

// UserService administers accounts. Self-service login and registration live in the auth handler.
type UserService struct {
	users db.UserCollection
	auth  *auth.Service
	now   func() time.Time
}

// NewUserService creates a user service.
func NewUserService(repos Repositories, authService *auth.Service) *UserService {
	return &UserService{users: repos.Users, auth: authService, now: time.Now}
}

// StaffInput is the body of a staff account creation.
type StaffInput struct {
	Username        string      `json:"username"`
	Email           string      `json:"email"`
	Password        string      `json:"password"`
	Role            models.Role `json:"role"`
	FirstName       string      `json:"firstName"`
	LastName        string      `json:"lastName"`
	Phone           string      `json:"phone"`
	NIC             string      `json:"nic"`
	Address         string      `json:"address"`
	EmployeeID      string      `json:"employeeId"`
	Department      string      `json:"department"`
	Specializations []string    `json:"specializations"`
	HireDate        *time.Time  `json:"hireDate"`
}

// CreateStaff creates a staff account.
func (s *UserService) CreateStaff(ctx context.Context, actor Actor, in StaffInput) (*models.User, error) {
	if !models.IsStaffRole(in.Role) {
		return nil, apperror.BadRequest("role must be a staff role")
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.auth.ValidateUsername(in.Username); err != nil {
		return nil, apperror.BadRequest("%s", err.Error())
	}
	if err := s.auth.ValidateEmail(in.Email); err != nil {
		return nil, apperror.BadRequest("%s", err.Error())
	}
	if err := s.auth.ValidatePassword(in.Password); err != nil {
		return nil, apperror.BadRequest("%s", err.Error())
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, apperror.BadRequest("firstName and lastName are required")
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal(err, "failed to hash password")
	}

	specs := make([]string, 0, len(in.Specializations))
	for _, sp := range in.Specializations {
		if sp = strings.TrimSpace(sp); sp != "" {
			specs = append(specs, sp)
		}
	}
	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Status:       models.UserStatusActive,
		Profile: models.Profile{
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			Phone:     in.Phone,
			NIC:       in.NIC,
			Address:   in.Address,
		},
		Employment: &models.EmploymentDetails{
			EmployeeID:      in.EmployeeID,
			Department:      in.Department,
			Specializations: specs,
			HireDate:        in.HireDate,
		},
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperror.Conflict("Username or email already exists")
		}
		return nil, apperror.Internal(err, "failed to create user")
	}

	log.WithFields(log.Fields{
		"username":   user.Username,
		"role":       user.Role,
		"created_by": actor.ID.Hex(),
	}).Info("Staff account created")
	return user, nil
}

// List returns users matching the filter.
func (s *UserService) List(ctx context.Context, filter db.UserFilter) ([]models.User, error) {
	if filter.Role != "" && !models.IsValidRole(filter.Role) {
		return nil, apperror.BadRequest("Invalid role: %s", filter.Role)
	}
	if filter.Status != "" && !models.IsValidUserStatus(filter.Status) {
		return nil, apperror.BadRequest("Invalid status: %s", filter.Status)
	}
	users, err := s.users.FindUsers(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(err, "failed to list users")
	}
	return users, nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "User")
	}
	return user, nil
}

// UpdateStatus changes an account's status. Admins cannot change their own.
func (s *UserService) UpdateStatus(ctx context.Context, actor Actor, id string, status models.UserStatus) (*models.User, error) {
	if !models.IsValidUserStatus(status) {
		return nil, apperror.BadRequest("Invalid status: %s", status)
	}
	oid, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	if oid == actor.ID {
		return nil, apperror.BadRequest("You cannot change your own status")
	}
	user, err := s.users.SetUserStatus(ctx, id, status)
	if err != nil {
		return nil, lookupErr(err, "User")
	}
	log.WithFields(log.Fields{
		"username":   user.Username,
		"status":     status,
		"changed_by": actor.ID.Hex(),
	}).Info("User status updated")
	return user, nil
}

// Deactivate soft-deletes an account.
func (s *UserService) Deactivate(ctx context.Context, actor Actor, id string) (*models.User, error) {
	return s.UpdateStatus(ctx, actor, id, models.UserStatusInactive)
}

// Technicians lists active technicians, optionally with a given specialization.
func (s *UserService) Technicians(ctx context.Context, specialization string) ([]models.User, error) {
	return s.List(ctx, db.UserFilter{
		Role:           models.RoleTechnician,
		Status:         models.UserStatusActive,
		Specialization: strings.TrimSpace(specialization),
	})
}

// EnsureAdmin creates the initial admin account when no admin exists yet.
// It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	admins, err := s.users.FindUsers(ctx, db.UserFilter{Role: models.RoleAdmin})
	if err != nil {
		return false, apperror.Internal(err, "failed to list admins")
	}
	if len(admins) > 0 {
		return false, nil
	}
	_, err = s.CreateStaff(ctx, Actor{Role: models.RoleAdmin}, StaffInput{
		Username:  username,
		Email:     email,
		Password:  password,
		Role:      models.RoleAdmin,
		FirstName: "System",
		LastName:  "Administrator",
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
