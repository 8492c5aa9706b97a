package ledger

import (
	"context"
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/repository"
)

// IsolationLevel nivel de aislamiento solicitado al backend.
type IsolationLevel string

// Niveles soportados. Todas las operaciones del ledger usan SERIALIZABLE.
const (
	IsolationSerializable   IsolationLevel = "SERIALIZABLE"
	IsolationRepeatableRead IsolationLevel = "REPEATABLE_READ"
	IsolationReadCommitted  IsolationLevel = "READ_COMMITTED"
)

// TxOptions opciones de una unidad de trabajo.
// MaxRetries = 0 usa el valor configurado en el runner; NoRetry desactiva reintentos.
type TxOptions struct {
	Isolation  IsolationLevel
	MaxRetries int
	NoRetry    bool
	ReadOnly   bool
}

// DefaultTxOptions aislamiento serializable con los reintentos del runner.
func DefaultTxOptions() TxOptions {
	return TxOptions{Isolation: IsolationSerializable}
}

// ReadOnlyTxOptions para chequeos de consistencia y consultas.
func ReadOnlyTxOptions() TxOptions {
	return TxOptions{Isolation: IsolationSerializable, ReadOnly: true}
}

// Repositories repositorios atados a una misma transacción.
type Repositories struct {
	Tanks     repository.TankRepository
	Lots      repository.LotRepository
	Movements repository.FuelMovementRepository
	Audit     repository.AuditRepository
}

// UnitOfWork se ejecuta dentro de una transacción y puede re-ejecutarse ante conflictos,
// por lo que no debe tener efectos fuera de la transacción.
type UnitOfWork func(ctx context.Context, repos Repositories) error

// TxRunner ejecuta una unidad de trabajo con aislamiento serializable, reintentando
// conflictos de serialización/deadlock con backoff exponencial y jitter.
type TxRunner interface {
	Run(ctx context.Context, opts TxOptions, fn UnitOfWork) error
}

// InTx ejecuta fn en una transacción y devuelve su resultado.
func InTx[T any](ctx context.Context, runner TxRunner, opts TxOptions, fn func(ctx context.Context, repos Repositories) (T, error)) (T, error) {
	var out T
	err := runner.Run(ctx, opts, func(ctx context.Context, repos Repositories) error {
		v, err := fn(ctx, repos)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// TokenStore almacén de tokens de override con TTL, visible para todas las instancias.
type TokenStore interface {
	Save(ctx context.Context, token *entity.OverrideToken, ttl time.Duration) error
	// Consume valida y elimina atómicamente el token si coincide con tanque y operación;
	// nil si no existe, venció o pertenece a otro tanque u operación.
	Consume(ctx context.Context, token, tankID, operationType string) (*entity.OverrideToken, error)
}
