package bootstrap

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/formsage/backend/internal/domain/models"
	"github.com/formsage/backend/internal/domain/ports"
	"github.com/formsage/backend/pkg/auth"
)

const defaultAdminEmail = "admin@formsage.local"

// InitializeSystemData seeds the admin account on first startup.
// ADMIN_EMAIL/ADMIN_PASSWORD override the defaults; an existing admin is
// left untouched.
func InitializeSystemData(ctx context.Context, users ports.UserStore) error {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = defaultAdminEmail
	}

	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
		log.Println("⚠️  ADMIN_PASSWORD not set, seeding admin with default password")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := &models.User{
		ID:           uuid.New().String(),
		Name:         "Administrator",
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      true,
		IsActive:     true,
		CreatedDate:  time.Now(),
	}
	if err := users.Insert(ctx, admin); err != nil {
		return err
	}

	log.Printf("✅ Seeded admin account %s", email)
	return nil
}
