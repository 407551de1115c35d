package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgresのunique制約違反
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
