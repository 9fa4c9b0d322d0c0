package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
)

// SQLSTATEs relevantes
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeAdminShutdown        = "57P01"
	codeCannotConnectNow     = "57P03"
)

// Classify traduz erros do driver para a taxonomia de apperr.
// Erros que já são de domínio passam intactos.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound.Wrap(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return apperr.DuplicateReference.With("unique constraint %s", pqErr.Constraint).Wrap(err)
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return apperr.ConcurrentWrite.Wrap(err)
		case codeAdminShutdown, codeCannotConnectNow:
			return apperr.Unavailable.Wrap(err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return apperr.Unavailable.Wrap(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.Unavailable.Wrap(err)
	}

	return err
}

// IsUniqueViolation indica violação de UNIQUE na constraint informada
// (ou em qualquer uma, se constraint for vazia).
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsForeignKeyViolation indica violação de FK (ex.: DELETE de linha ainda referenciada).
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation
}
