package repository

import (
	"context"
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// FuelMovementRepository define el puerto de persistencia (append-only) para movimientos.
type FuelMovementRepository interface {
	Create(ctx context.Context, movement *entity.FuelMovement) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.FuelMovement, error)
	// SumSettledAgainstDrain suma (en valor absoluto) los retornos y ventas que referencian el drenaje.
	SumSettledAgainstDrain(ctx context.Context, drainID string) (decimal.Decimal, error)
	ListByTank(ctx context.Context, tankID string, from, to *time.Time, limit, offset int) ([]*entity.FuelMovement, error)
}
