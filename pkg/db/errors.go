package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation.
// When constraintName is set only that constraint matches. SQLite errors are
// recognised by message so repository tests behave like Postgres.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if constraintName != "" && strings.Contains(msg, "duplicate key value") {
		return strings.Contains(msg, constraintName)
	}
	return true
}

// RetryOnUniqueViolation calls fn until it succeeds, fails with another
// error, or attempts run out. Each call must run in its own transaction
// because Postgres aborts a transaction after a constraint violation.
func RetryOnUniqueViolation(attempts int, constraintName string, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if !IsUniqueViolation(err, constraintName) {
			return err
		}
	}
	return err
}
