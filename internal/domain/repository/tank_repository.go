package repository

import (
	"context"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// TankRepository define el puerto de persistencia para tanques.
// Usado dentro de transacciones del TxRunner.
type TankRepository interface {
	Create(ctx context.Context, tank *entity.Tank) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Tank, error)
	// GetForUpdate bloquea la fila (SELECT FOR UPDATE) cuando el backend lo soporta.
	GetForUpdate(ctx context.Context, id string) (*entity.Tank, error)
	UpdateQuantity(ctx context.Context, id string, quantity decimal.Decimal) error
	UpdateStatus(ctx context.Context, id, status string) error
	List(ctx context.Context) ([]*entity.Tank, error)
}
