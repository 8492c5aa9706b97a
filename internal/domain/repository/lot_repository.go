package repository

import (
	"context"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// LotRepository define el puerto de persistencia para lotes por MRN.
// Un lote es único por (tankID, declarationNumber).
type LotRepository interface {
	Create(ctx context.Context, lot *entity.Lot) error
	// UpdateQuantities persiste OriginalQuantity y RemainingQuantity del lote.
	UpdateQuantities(ctx context.Context, lot *entity.Lot) error
	// ListAvailableFIFO lotes con saldo > 0 ordenados por DateAdded ascendente.
	ListAvailableFIFO(ctx context.Context, tankID string) ([]*entity.Lot, error)
	// ListByTank todos los lotes del tanque (incluidos agotados) en orden FIFO.
	ListByTank(ctx context.Context, tankID string) ([]*entity.Lot, error)
	// GetByDeclaration devuelve nil, nil si no existe.
	GetByDeclaration(ctx context.Context, tankID, declarationNumber string) (*entity.Lot, error)
	// GetLatest el lote agregado más recientemente (nil, nil si el tanque no tiene lotes).
	GetLatest(ctx context.Context, tankID string) (*entity.Lot, error)
	SumRemaining(ctx context.Context, tankID string) (decimal.Decimal, error)
}
