package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/fleetwise/truck-tco/internal/model"
)

// UserStore persists dashboard accounts with bcrypt password hashes.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a UserStore.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticate returns the user when email and password match.
// A wrong password and an unknown email both yield ErrNotFound.
func (s *UserStore) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	var (
		u    model.User
		hash string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, is_admin, password_hash
		FROM users
		WHERE email = ?
	`, normalizeEmail(email)).Scan(&u.ID, &u.Email, &u.IsAdmin, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("query user credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// Create inserts a user and returns it with its id.
func (s *UserStore) Create(ctx context.Context, email, password string, isAdmin bool) (model.User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return model.User{}, fmt.Errorf("%w: email %q", ErrInvalid, email)
	}
	if len(password) < 8 {
		return model.User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalid)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO users (email, password_hash, is_admin) VALUES (?, ?, ?)`, email, hash, isAdmin)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("%w: user %s already exists", ErrConflict, email)
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("read user id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the user with id.
func (s *UserStore) Get(ctx context.Context, id int64) (model.User, error) {
	var (
		u         model.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, is_admin, CAST(created_at AS TEXT)
		FROM users
		WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &u.IsAdmin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("query user %d: %w", id, err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// List returns every user ordered by id.
func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, email, is_admin, CAST(created_at AS TEXT) FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var (
			u         model.User
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.IsAdmin, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Delete removes a user.
func (s *UserStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return requireAffected(result)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
