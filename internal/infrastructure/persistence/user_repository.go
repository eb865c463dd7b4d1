package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/formsage/backend/internal/domain/models"
)

const tableUsers = "users"

// UserRepository persists user accounts
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Insert stores a new user
func (r *UserRepository) Insert(ctx context.Context, user *models.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, email, password, is_admin, is_active, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tableUsers)

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.IsAdmin, user.IsActive, user.CreatedDate)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user by ID, nil when absent
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, name, email, password, is_admin, is_active, created_date, last_login
		FROM %s WHERE id = ? LIMIT 1
	`, tableUsers)
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail fetches a user by email, nil when absent
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, name, email, password, is_admin, is_active, created_date, last_login
		FROM %s WHERE email = ? LIMIT 1
	`, tableUsers)
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// TouchLastLogin stamps the user's last login time
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET last_login = NOW() WHERE id = ?", tableUsers)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var lastLogin sql.NullTime

	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.IsActive, &u.CreatedDate, &lastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}
