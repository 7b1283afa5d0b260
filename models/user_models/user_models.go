package user_models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mantay/busbooking/logger"
	"github.com/mantay/busbooking/models/shared_models"
	"github.com/mantay/busbooking/utils"
)

// User represents an account. PasswordHash is never serialized.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PhoneNumber  string    `json:"phone_number"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates a User struct with a hashed password and customer role.
func NewUser(name, email, phoneNumber, password string) (*User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for user: %w", err)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &User{
		ID:           id,
		Name:         name,
		Email:        email,
		PhoneNumber:  phoneNumber,
		PasswordHash: hash,
		Role:         shared_models.RoleCustomer,
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CreateUser inserts a new user record.
func CreateUser(ctx context.Context, db *pgxpool.Pool, user *User) (*User, error) {
	query := `
		INSERT INTO users (id, name, email, phone_number, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var insertedID uuid.UUID
	err := db.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.PhoneNumber, user.PasswordHash,
		user.Role, user.Status, user.CreatedAt, user.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, utils.ErrDuplicateKey
		}
		logger.ErrorLogger.Errorf("Failed to insert user %s: %v", user.Email, err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = insertedID
	logger.InfoLogger.Infof("User %s created", user.ID)
	return user, nil
}

const userColumns = `id, name, email, phone_number, password_hash, role, status, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.PasswordHash,
		&u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return u, nil
}

// GetUserByID fetches a user record by its ID.
func GetUserByID(ctx context.Context, db *pgxpool.Pool, userID uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(db.QueryRow(ctx, query, userID))
}

// GetUserByEmail fetches a user record by email.
func GetUserByEmail(ctx context.Context, db *pgxpool.Pool, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(db.QueryRow(ctx, query, email))
}

// GetAllUsers lists every account, newest first.
func GetAllUsers(ctx context.Context, db *pgxpool.Pool) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := db.Query(ctx, query)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to fetch users: %v", err)
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserRole changes a user's role.
func UpdateUserRole(ctx context.Context, db *pgxpool.Pool, userID uuid.UUID, role string) (*User, error) {
	query := `
		UPDATE users SET role = $2, updated_at = $3 WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(db.QueryRow(ctx, query, userID, role, time.Now()))
}

// UpdateUserStatus changes a user's account status.
func UpdateUserStatus(ctx context.Context, db *pgxpool.Pool, userID uuid.UUID, status string) (*User, error) {
	query := `
		UPDATE users SET status = $2, updated_at = $3 WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(db.QueryRow(ctx, query, userID, status, time.Now()))
}

// CountCustomers returns the number of customer accounts.
func CountCustomers(ctx context.Context, db *pgxpool.Pool) (int, error) {
	var n int
	err := db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, shared_models.RoleCustomer).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// MonthlySignups groups registrations by year/month for the admin dashboard.
type MonthlySignups struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

// GetUserAnalytics returns signups grouped by month.
func GetUserAnalytics(ctx context.Context, db *pgxpool.Pool) ([]MonthlySignups, error) {
	query := `
		SELECT EXTRACT(YEAR FROM created_at)::int, EXTRACT(MONTH FROM created_at)::int, COUNT(*)
		FROM users
		GROUP BY 1, 2
		ORDER BY 1, 2`
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user analytics: %w", err)
	}
	defer rows.Close()

	var out []MonthlySignups
	for rows.Next() {
		var m MonthlySignups
		if err := rows.Scan(&m.Year, &m.Month, &m.Count); err != nil {
			return nil, fmt.Errorf("failed to scan user analytics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
