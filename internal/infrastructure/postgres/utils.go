package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jhoicas/fuel-ledger/internal/domain"
)

// SQLSTATE relevantes.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// dbError clasifica un error del driver: conflictos de serialización/deadlock quedan como
// ErrTransactionConflict (reintentables), violaciones de constraint como PersistenceError.
func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %s: %v", domain.ErrTransactionConflict, op, err)
	case codeUniqueViolation, codeCheckViolation, codeForeignKeyViolation, codeNotNullViolation:
		return &domain.PersistenceError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// attemptError trata como reintentable un timeout del intento mientras el contexto del
// llamador siga vivo; el resto pasa por dbError.
func attemptError(parent context.Context, op string, err error) error {
	if errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrConsistencyViolation) ||
		errors.Is(err, domain.ErrPersistence) ||
		errors.Is(err, domain.ErrTransactionConflict) {
		return err
	}
	if parent.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err)) {
		return fmt.Errorf("%w: %s: timeout: %v", domain.ErrTransactionConflict, op, err)
	}
	return dbError(op, err)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
