package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AuthType says where a user authenticates.
type AuthType string

const (
	AuthLDAP  AuthType = "ldap"
	AuthLocal AuthType = "local"
)

var (
	// ErrInvalidAuthType is returned for auth types outside ldap/local.
	ErrInvalidAuthType = errors.New("invalid auth type")
	// ErrPasswordPolicy is returned when a local user has no password or an
	// LDAP user has one.
	ErrPasswordPolicy = errors.New("password not allowed for auth type")
	// ErrBadCredentials is returned by Authenticate on any mismatch.
	ErrBadCredentials = errors.New("bad credentials")
)

// ParseAuthType accepts "ldap" or "local"; "" means local.
func ParseAuthType(s string) (AuthType, error) {
	switch AuthType(strings.ToLower(strings.TrimSpace(s))) {
	case "", AuthLocal:
		return AuthLocal, nil
	case AuthLDAP:
		return AuthLDAP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAuthType, s)
}

// User is a row of the users table. PasswordHash is nil for LDAP users.
type User struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash *string   `db:"password"`
	AuthType     AuthType  `db:"authType"`
	CreatedAt    time.Time `db:"created_at"`
}

// NewUser is the input to CreateUser.
type NewUser struct {
	Email    string
	Password string
	AuthType AuthType
}

const userColumns = `id, email, password, "authType", created_at`

// CreateUser inserts a user. Local users must carry a password, which is
// stored as a bcrypt hash; LDAP users must not.
func (s *Store) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	authType, err := ParseAuthType(string(u.AuthType))
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(u.Email)
	if email == "" {
		return nil, errors.New("email is required")
	}

	var password any
	switch {
	case authType == AuthLocal && u.Password == "":
		return nil, fmt.Errorf("%w: local users need a password", ErrPasswordPolicy)
	case authType == AuthLDAP && u.Password != "":
		return nil, fmt.Errorf("%w: ldap users authenticate elsewhere", ErrPasswordPolicy)
	case authType == AuthLocal:
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		password = string(hash)
	}

	var id int64
	query := s.db.Rebind(`INSERT INTO users (email, password, "authType") VALUES (?, ?, ?) RETURNING id`)
	if err := s.db.GetContext(ctx, &id, query, email, password, string(authType)); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.getUser(ctx, "id", id)
}

// GetUser looks a user up by email.
func (s *Store) GetUser(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email", strings.TrimSpace(email))
}

func (s *Store) getUser(ctx context.Context, column string, value any) (*User, error) {
	var user User
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`)
	err := s.db.GetContext(ctx, &user, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Authenticate checks a local user's password.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.GetUser(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.AuthType != AuthLocal || user.PasswordHash == nil {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// DeleteUser removes a user and, through the foreign key, their accounts.
func (s *Store) DeleteUser(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE email = ?`), strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
