package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

// IsTransient reports whether err looks like a connectivity problem rather
// than a query or constraint error. Context cancellation is not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// Wrap annotates a database error with op. Transient errors also match
// common.ErrUnavailable and unique violations match common.ErrConflict.
func Wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, common.ErrConflict, err)
	case IsTransient(err):
		return fmt.Errorf("%s: %w: %w", op, common.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
