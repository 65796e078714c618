package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// User is an admin-surface account from the _users table.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	Active       bool
}

// Bootstrap creates the rule store tables and seeds the default admin user.
func (s *Store) Bootstrap(ctx context.Context, logger *zap.Logger) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.SystemTablesSQL()); err != nil {
		return fmt.Errorf("bootstrap system tables: %w", err)
	}
	if err := s.seedAdminUser(ctx, logger); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

func (s *Store) seedAdminUser(ctx context.Context, logger *zap.Logger) error {
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM _users").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if err := s.CreateUser(ctx, "admin@localhost", "changeme", []string{"admin"}); err != nil {
		return err
	}
	logger.Warn("default admin user created, change the password immediately",
		zap.String("email", "admin@localhost"))
	return nil
}

// CreateUser stores a new user with a bcrypt password hash.
func (s *Store) CreateUser(ctx context.Context, email, password string, roles []string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	pb := s.Dialect.NewParamBuilder()
	query := fmt.Sprintf("INSERT INTO _users (id, email, password_hash, roles) VALUES (%s, %s, %s, %s)",
		pb.Add(uuid.New().String()), pb.Add(email), pb.Add(string(hash)), pb.Add(s.Dialect.ArrayParam(roles)))
	if _, err := Exec(ctx, s.DB, query, pb.Params()...); err != nil {
		return s.Dialect.MapError(err)
	}
	return nil
}

// FindUserByEmail returns the user with the given email or ErrNotFound.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	pb := s.Dialect.NewParamBuilder()
	row, err := QueryRow(ctx, s.DB,
		"SELECT id, email, password_hash, roles, active FROM _users WHERE email = "+pb.Add(email),
		pb.Params()...)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	roles, err := s.Dialect.ScanArray(row["roles"])
	if err != nil {
		return nil, fmt.Errorf("user roles: %w", err)
	}
	return &User{
		ID:           asString(row["id"]),
		Email:        asString(row["email"]),
		PasswordHash: asString(row["password_hash"]),
		Roles:        roles,
		Active:       asBool(row["active"]),
	}, nil
}

// CheckPassword compares a plaintext password against the user's bcrypt hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
