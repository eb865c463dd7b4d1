package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formsage/backend/internal/domain/models"
	"github.com/formsage/backend/internal/domain/ports"
	"github.com/formsage/backend/pkg/auth"
	appErrors "github.com/formsage/backend/pkg/errors"
)

// AuthService handles login and account registration
type AuthService struct {
	users ports.UserStore
}

// NewAuthService creates a new AuthService
func NewAuthService(users ports.UserStore) *AuthService {
	return &AuthService{users: users}
}

// Users exposes the underlying store for bootstrap seeding
func (s *AuthService) Users() ports.UserStore {
	return s.users
}

// LoginResult carries the issued token alongside the authenticated user
type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login verifies credentials and issues a JWT.
// A wrong email and a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to look up user", err)
	}
	if user == nil || !user.IsActive {
		return nil, appErrors.NewUnauthorizedError("invalid credentials")
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, appErrors.NewUnauthorizedError("invalid credentials")
	}

	token, err := auth.GenerateToken(auth.UserSession{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	})
	if err != nil {
		return nil, appErrors.NewInternalError("failed to issue token", err)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		log.Printf("⚠️ Failed to record last login for %s: %v", user.ID, err)
	}

	log.Printf("✅ User %s logged in", user.Email)
	return &LoginResult{Token: token, User: user}, nil
}

// Register creates a new active user account
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !auth.IsValidEmail(email) {
		return nil, appErrors.NewValidationError("email", "invalid email address")
	}
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return nil, appErrors.NewValidationError("password", err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to look up user", err)
	}
	if existing != nil {
		return nil, appErrors.NewValidationError("email", "email is already registered")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to hash password", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedDate:  time.Now(),
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, appErrors.NewInternalError("failed to create user", err)
	}

	log.Printf("✅ Registered user %s", user.Email)
	return user, nil
}

// ValidateToken parses the JWT and returns the embedded session
func (s *AuthService) ValidateToken(token string) (*auth.UserSession, error) {
	claims, err := auth.ValidateToken(token)
	if err != nil {
		return nil, appErrors.NewUnauthorizedError("invalid or expired token")
	}
	return &claims.User, nil
}
