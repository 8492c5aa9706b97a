package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDBError_Clasificacion(t *testing.T) {
	cases := []struct {
		code       string
		retryable  bool
		persistent bool
	}{
		{codeSerializationFailure, true, false},
		{codeDeadlockDetected, true, false},
		{codeUniqueViolation, false, true},
		{codeCheckViolation, false, true},
		{codeForeignKeyViolation, false, true},
		{"42P01", false, false},
	}
	for _, c := range cases {
		t.Run(c.code, func(t *testing.T) {
			err := dbError("op", fmt.Errorf("wrap: %w", &pgconn.PgError{Code: c.code}))
			assert.Equal(t, c.retryable, domain.IsRetryable(err))
			assert.Equal(t, c.persistent, errors.Is(err, domain.ErrPersistence))
		})
	}
	assert.NoError(t, dbError("op", nil))
}

func TestAttemptError_Timeout(t *testing.T) {
	err := attemptError(context.Background(), "commit", context.DeadlineExceeded)
	assert.True(t, domain.IsRetryable(err), "timeout con el llamador vivo se reintenta")

	parent, cancel := context.WithCancel(context.Background())
	cancel()
	err = attemptError(parent, "commit", context.Canceled)
	assert.False(t, domain.IsRetryable(err))

	v := domain.Invalid(domain.ErrInsufficientStock, "x")
	assert.Same(t, v, attemptError(context.Background(), "uow", v))
}

func TestPgx5URL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", pgx5URL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://u@h/db", pgx5URL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://h/db", pgx5URL("pgx5://h/db"))
}
