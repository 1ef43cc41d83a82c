package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/pelyams/cached_product_service/internal/domain"
)

// storeError wraps err as domain.ErrStoreUnavailable while keeping the
// original chain (context.DeadlineExceeded etc.) reachable through errors.Is.
func storeError(format string, err error, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if code := sqlState(err); code != "" {
		msg = fmt.Sprintf("%s (sqlstate %s)", msg, code)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, msg, err)
}

// sqlState extracts the server error code from whichever driver produced err.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.SQLState != [5]byte{} {
			return string(myErr.SQLState[:])
		}
		return fmt.Sprintf("%d", myErr.Number)
	}
	return ""
}
