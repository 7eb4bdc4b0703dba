package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/auth"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/response"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
	now            func() time.Time
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
		now:            time.Now,
	}
}

// Login handles user login. Repeated failures lock the account.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := decodeJSON(w, r, &loginReq); err != nil {
		response.Error(w, r, err)
		return
	}

	loginReq.Username = strings.TrimSpace(loginReq.Username)
	if loginReq.Username == "" || loginReq.Password == "" {
		response.Fail(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			response.Fail(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		response.Error(w, r, apperror.Internal(err, "failed to load user"))
		return
	}

	now := h.now()
	if user.IsLocked(now) {
		response.Fail(w, http.StatusLocked, "Account is locked due to too many failed login attempts")
		return
	}

	if !user.IsActive() {
		response.Fail(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		attempts, lockUntil := auth.FailedLogin(user.LoginAttempts, now)
		if err := h.userCollection.RecordFailedLogin(r.Context(), user.ID.Hex(), attempts, lockUntil); err != nil {
			log.WithError(err).WithField("username", user.Username).Error("Failed to record failed login")
		}
		if lockUntil != nil {
			log.WithFields(log.Fields{"username": user.Username, "until": lockUntil}).Warn("Account locked")
			response.Fail(w, http.StatusLocked, "Account is locked due to too many failed login attempts")
			return
		}
		response.Fail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		response.Error(w, r, apperror.Internal(err, "failed to generate token"))
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		response.Error(w, r, apperror.Internal(err, "failed to generate refresh token"))
		return
	}

	// Log error but don't fail the login
	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).WithField("username", user.Username).Error("Failed to update last login")
	}

	response.JSON(w, http.StatusOK, models.LoginResponse{
		Success:      true,
		Message:      "Login successful",
		Token:        token,
		RefreshToken: refreshToken,
		User:         *user,
	})
}

// Register handles customer self-registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := decodeJSON(w, r, &registerReq); err != nil {
		response.Error(w, r, err)
		return
	}

	registerReq.Username = strings.TrimSpace(registerReq.Username)
	registerReq.Email = strings.ToLower(strings.TrimSpace(registerReq.Email))

	// Validate input
	if err := h.authService.ValidateUsername(registerReq.Username); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidateEmail(registerReq.Email); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidatePassword(registerReq.Password); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(registerReq.FirstName) == "" || strings.TrimSpace(registerReq.LastName) == "" {
		response.Fail(w, http.StatusBadRequest, "First name and last name are required")
		return
	}

	if _, err := h.userCollection.FindUserByUsername(r.Context(), registerReq.Username); err == nil {
		response.Fail(w, http.StatusConflict, "Username already exists")
		return
	}
	if _, err := h.userCollection.FindUserByEmail(r.Context(), registerReq.Email); err == nil {
		response.Fail(w, http.StatusConflict, "Email already exists")
		return
	}

	passwordHash, err := h.authService.HashPassword(registerReq.Password)
	if err != nil {
		response.Error(w, r, apperror.Internal(err, "failed to hash password"))
		return
	}

	user := &models.User{
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleCustomer,
		Status:       models.UserStatusActive,
		Profile: models.Profile{
			FirstName: strings.TrimSpace(registerReq.FirstName),
			LastName:  strings.TrimSpace(registerReq.LastName),
			Phone:     registerReq.Phone,
			NIC:       registerReq.NIC,
		},
		Customer: &models.CustomerDetails{MembershipTier: "bronze"},
	}
	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			response.Fail(w, http.StatusConflict, "Username or email already exists")
			return
		}
		response.Error(w, r, apperror.Internal(err, "failed to create user"))
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		response.Error(w, r, apperror.Internal(err, "failed to generate token"))
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		response.Error(w, r, apperror.Internal(err, "failed to generate refresh token"))
		return
	}

	log.WithField("username", user.Username).Info("Customer registered")
	response.JSON(w, http.StatusCreated, models.LoginResponse{
		Success:      true,
		Message:      "Registration successful",
		Token:        token,
		RefreshToken: refreshToken,
		User:         *user,
	})
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"user": user})
}

// UpdateProfile updates the current user's profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var updateReq struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Phone     string `json:"phone"`
		Address   string `json:"address"`
		Email     string `json:"email"`
	}
	if err := decodeJSON(w, r, &updateReq); err != nil {
		response.Error(w, r, err)
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	// Update fields if provided
	if updateReq.FirstName != "" {
		user.Profile.FirstName = strings.TrimSpace(updateReq.FirstName)
	}
	if updateReq.LastName != "" {
		user.Profile.LastName = strings.TrimSpace(updateReq.LastName)
	}
	if updateReq.Phone != "" {
		user.Profile.Phone = updateReq.Phone
	}
	if updateReq.Address != "" {
		user.Profile.Address = updateReq.Address
	}
	if email := strings.ToLower(strings.TrimSpace(updateReq.Email)); email != "" && email != user.Email {
		if err := h.authService.ValidateEmail(email); err != nil {
			response.Fail(w, http.StatusBadRequest, err.Error())
			return
		}
		if existing, err := h.userCollection.FindUserByEmail(r.Context(), email); err == nil && existing.ID != user.ID {
			response.Fail(w, http.StatusConflict, "Email already exists")
			return
		}
		user.Email = email
	}

	if err := h.userCollection.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			response.Fail(w, http.StatusConflict, "Email already exists")
			return
		}
		response.Error(w, r, apperror.Internal(err, "failed to update user"))
		return
	}
	response.Success(w, http.StatusOK, "Profile updated successfully", response.Fields{"user": user})
}

// ChangePassword changes the current user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var passwordReq struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &passwordReq); err != nil {
		response.Error(w, r, err)
		return
	}

	if passwordReq.CurrentPassword == "" || passwordReq.NewPassword == "" {
		response.Fail(w, http.StatusBadRequest, "Current password and new password are required")
		return
	}
	if err := h.authService.ValidatePassword(passwordReq.NewPassword); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !h.authService.CheckPassword(passwordReq.CurrentPassword, user.PasswordHash) {
		response.Fail(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	newPasswordHash, err := h.authService.HashPassword(passwordReq.NewPassword)
	if err != nil {
		response.Error(w, r, apperror.Internal(err, "failed to hash password"))
		return
	}
	user.PasswordHash = newPasswordHash
	if err := h.userCollection.UpdateUser(r.Context(), user); err != nil {
		response.Error(w, r, apperror.Internal(err, "failed to update password"))
		return
	}
	response.Success(w, http.StatusOK, "Password changed successfully", nil)
}

func (h *AuthHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return nil, false
	}
	user, err := h.userCollection.FindUserByID(r.Context(), actor.ID.Hex())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			response.Fail(w, http.StatusNotFound, "User not found")
			return nil, false
		}
		response.Error(w, r, apperror.Internal(err, "failed to load user"))
		return nil, false
	}
	return user, true
}
