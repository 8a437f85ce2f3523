package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const sqlStateUniqueViolation = "23505"

// isUniqueViolation reports a primary key clash on identities. Re-saving a
// template that is already stored is not an error for write-through.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation
	}

	// pgxmock and wrapped driver errors only carry the text
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, sqlStateUniqueViolation) || strings.Contains(msg, "duplicate key")
}
