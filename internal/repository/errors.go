package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound reports that no user row matched the requested id.
	ErrNotFound = errors.New("repository: user not found")

	// ErrEmailTaken reports that another user already holds the email
	// address.
	ErrEmailTaken = errors.New("repository: email already in use")

	// ErrPersistence marks any failure talking to the store. The root
	// cause stays reachable through the error chain.
	ErrPersistence = errors.New("persistence failure")
)

// persistence wraps a store failure so callers can match ErrPersistence
// with errors.Is while the cause remains unwrappable.
func persistence(action string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", action, ErrPersistence, err)
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
