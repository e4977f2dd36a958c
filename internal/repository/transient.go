package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgDuplicatePreparedStatement = "42P05"
	pgDuplicateObject            = "42710"
)

// IsTransient reporta errores de conexion que se resuelven reiniciando el
// pool: sentencias preparadas duplicadas u objetos duplicados que aparecen
// cuando un pooler externo recicla conexiones.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDuplicatePreparedStatement || pgErr.Code == pgDuplicateObject
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "prepared statement") && strings.Contains(msg, "already exists")
}
