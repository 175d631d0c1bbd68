package postgres

import (
	"database/sql"
	"errors"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/lib/pq"
)

// SQLSTATE codes the repositories translate into domain error kinds
const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqCheckViolation       = "23514"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

// WrapError marks a database error with the matching domain sentinel.
// Lock timeouts, deadlocks and serialization failures become ErrConcurrencyConflict
// so callers can retry them.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithMessage(msg).
			WithHint("Resource not found").
			Mark(ierr.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		details := map[string]any{
			"code":       string(pqErr.Code),
			"constraint": pqErr.Constraint,
		}

		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return ierr.WithError(err).
				WithMessage(msg).
				WithHint("A record with the same unique value already exists").
				WithReportableDetails(details).
				Mark(ierr.ErrAlreadyExists)
		case pqForeignKeyViolation, pqCheckViolation:
			return ierr.WithError(err).
				WithMessage(msg).
				WithHint("The record violates a data constraint").
				WithReportableDetails(details).
				Mark(ierr.ErrValidation)
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return ierr.WithError(err).
				WithMessage(msg).
				WithHint("The resource is busy, please retry").
				WithReportableDetails(details).
				Mark(ierr.ErrConcurrencyConflict)
		}
	}

	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("Database operation failed").
		Mark(ierr.ErrDatabase)
}
