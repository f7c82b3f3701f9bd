package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Domain sentinel errors. Handlers map these to HTTP statuses; anything else
// is an upstream failure surfaced as a generic 500.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrExpired        = errors.New("expired")
	ErrAlreadyMember  = errors.New("already a member")
	ErrDeliveryFailed = errors.New("delivery failed")
)

// ExpiredError reports a time-based invalidation along with the original
// deadline, so callers can echo expired_at.
type ExpiredError struct {
	ExpiredAt time.Time
}

func (e *ExpiredError) Error() string {
	return "invitation has expired"
}

func (e *ExpiredError) Is(target error) bool {
	return target == ErrExpired
}

const pgErrCodeUniqueViolation = "23505"

// isUniqueViolation checks for a PostgreSQL unique constraint violation,
// the storage-level backstop for check-then-insert races.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
