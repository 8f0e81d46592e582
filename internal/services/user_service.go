package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/reminder-be/internal/database"
	"github.com/isdelr/reminder-be/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
	CreateUser(ctx context.Context, fullName, email, password string) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db   *sql.DB
	cost int
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.cost = cost
	return s
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, full_name, email, created_at FROM users WHERE id = ?", id)
	user, err := scanUser(row, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return models.User{}, storeErr("get user", err)
	}
	return user, nil
}

// getUserByEmail retrieves a single user by their email, including the password hash.
func (s *UserService) getUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, full_name, email, created_at, password_hash FROM users WHERE email = ?", email)
	user, err := scanUser(row, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, storeErr("get user by email", err)
	}
	return user, nil
}

// CreateUser creates a new user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, fullName, email, password string) (models.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)
	switch {
	case fullName == "":
		return models.User{}, invalid("fullName", "is required")
	case email == "" || !strings.Contains(email, "@"):
		return models.User{}, invalid("email", "must be a valid address")
	case password == "":
		return models.User{}, invalid("password", "is required")
	}

	if _, err := s.getUserByEmail(ctx, email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, full_name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.FullName, user.Email, user.PasswordHash, database.FormatTime(user.CreatedAt))
	if err != nil {
		// Lost a race with a concurrent signup for the same address.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, storeErr("insert user", err)
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// AuthenticateUser verifies a user's credentials.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.getUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func scanUser(scanner interface{ Scan(...interface{}) error }, withHash bool) (models.User, error) {
	var user models.User
	var createdAt string
	dest := []interface{}{&user.ID, &user.FullName, &user.Email, &createdAt}
	if withHash {
		dest = append(dest, &user.PasswordHash)
	}
	if err := scanner.Scan(dest...); err != nil {
		return models.User{}, err
	}
	t, err := database.ParseTime(createdAt)
	if err != nil {
		return models.User{}, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	user.CreatedAt = t
	return user, nil
}
