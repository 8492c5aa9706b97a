package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrForbidden         = errors.New("acceso denegado")
	ErrInsufficientStock = errors.New("cantidad insuficiente en tanque")
	ErrCapacityExceeded  = errors.New("capacidad del tanque excedida")
	ErrFuelTypeMismatch  = errors.New("tipo de combustible distinto entre tanques")
	ErrTankNotActive     = errors.New("tanque no operativo")
	ErrNotADrain         = errors.New("el movimiento referenciado no es un drenaje")
	ErrDrainOverdrawn    = errors.New("cantidad supera el saldo pendiente del drenaje")
	ErrInvalidOverride   = errors.New("token de override inválido o expirado")

	// Categorías usadas con errors.Is por los handlers y el TxRunner.
	ErrValidation           = errors.New("validación fallida")
	ErrTransactionConflict  = errors.New("conflicto de transacción")
	ErrConsistencyViolation = errors.New("tanque inconsistente con sus lotes")
	ErrPersistence          = errors.New("error de persistencia")
)

// ValidationError rechazo síncrono previo a cualquier mutación.
// errors.Is funciona tanto con ErrValidation como con el motivo concreto.
type ValidationError struct {
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason.Error(), e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid construye un ValidationError con detalle formateado.
func Invalid(reason error, format string, args ...any) error {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// TransactionConflictError se devuelve solo cuando se agotaron los reintentos.
type TransactionConflictError struct {
	Attempts int
	Err      error
}

func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("conflicto de transacción tras %d intentos: %v", e.Attempts, e.Err)
}

func (e *TransactionConflictError) Unwrap() error { return e.Err }

func (e *TransactionConflictError) Is(target error) bool { return target == ErrTransactionConflict }

// ConsistencyViolationError lo produce el pre-chequeo cuando la deriva supera la tolerancia
// y no se presentó un override válido.
type ConsistencyViolationError struct {
	TankID        string
	TankQuantity  decimal.Decimal
	LotSum        decimal.Decimal
	Difference    decimal.Decimal
	ToleranceUsed decimal.Decimal
}

func (e *ConsistencyViolationError) Error() string {
	return fmt.Sprintf("tanque %s inconsistente: cantidad=%s suma_lotes=%s diferencia=%s (tolerancia %s)",
		e.TankID, e.TankQuantity.String(), e.LotSum.String(), e.Difference.String(), e.ToleranceUsed.String())
}

func (e *ConsistencyViolationError) Is(target error) bool { return target == ErrConsistencyViolation }

// PersistenceError violación de constraint o fila inexistente al actualizar.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// IsRetryable indica si el error corresponde a un conflicto de serialización/deadlock
// que el TxRunner puede reintentar.
func IsRetryable(err error) bool {
	var conflict *TransactionConflictError
	if errors.As(err, &conflict) {
		// ya agotado: no se reintenta de nuevo
		return false
	}
	return errors.Is(err, ErrTransactionConflict)
}
