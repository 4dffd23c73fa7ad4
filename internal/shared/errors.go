package shared

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrTemporarilyUnavailable indicates a transient failure the caller may
	// surface as a retry-later response.
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
)

// Postgres error codes treated as transient.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// Retryable reports whether err is a transient store failure, such as a
// lock-wait timeout during the resolver slow path. Callers retry the
// operation once before giving up.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return true
		}
	}
	return false
}
