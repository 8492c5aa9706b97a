package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/fuel"
	"github.com/jhoicas/fuel-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// AllocationEngine único punto donde se consumen o producen lotes por MRN.
// Todas las operaciones de movimiento pasan por aquí.
type AllocationEngine struct {
	now func() time.Time
}

// NewAllocationEngine construye el motor de asignación.
func NewAllocationEngine(now func() time.Time) *AllocationEngine {
	if now == nil {
		now = time.Now
	}
	return &AllocationEngine{now: now}
}

// Consume descuenta quantity de los lotes del tanque en orden FIFO y persiste los lotes tocados.
// Un faltante no es error: se devuelve en FIFOResult.Shortfall.
func (e *AllocationEngine) Consume(ctx context.Context, lots repository.LotRepository, tankID string, quantity decimal.Decimal) (fuel.FIFOResult, error) {
	available, err := lots.ListAvailableFIFO(ctx, tankID)
	if err != nil {
		return fuel.FIFOResult{}, err
	}
	res := fuel.ConsumeFIFO(available, quantity)
	now := e.now()
	for _, l := range res.Touched {
		l.UpdatedAt = now
		if err := lots.UpdateQuantities(ctx, l); err != nil {
			return fuel.FIFOResult{}, err
		}
	}
	return res, nil
}

// Produce suma quantity al lote (tankID, declarationNumber) si existe; si no, crea uno nuevo
// con dateAdded, que fija su posición FIFO.
func (e *AllocationEngine) Produce(ctx context.Context, lots repository.LotRepository, tankID string, quantity decimal.Decimal, declarationNumber string, dateAdded time.Time) (*entity.Lot, error) {
	existing, err := lots.GetByDeclaration(ctx, tankID, declarationNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return e.grow(ctx, lots, existing, quantity)
	}
	lot := &entity.Lot{
		ID:                uuid.New().String(),
		TankID:            tankID,
		DeclarationNumber: declarationNumber,
		OriginalQuantity:  quantity,
		RemainingQuantity: quantity,
		DateAdded:         dateAdded,
		UpdatedAt:         e.now(),
	}
	if err := lots.Create(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

// ProduceIntoLatest agrega quantity al lote más reciente del tanque; si el tanque no tiene lotes
// crea uno con fallbackDeclaration.
func (e *AllocationEngine) ProduceIntoLatest(ctx context.Context, lots repository.LotRepository, tankID string, quantity decimal.Decimal, fallbackDeclaration string) (*entity.Lot, error) {
	latest, err := lots.GetLatest(ctx, tankID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		return e.grow(ctx, lots, latest, quantity)
	}
	return e.Produce(ctx, lots, tankID, quantity, fallbackDeclaration, e.now())
}

func (e *AllocationEngine) grow(ctx context.Context, lots repository.LotRepository, lot *entity.Lot, quantity decimal.Decimal) (*entity.Lot, error) {
	lot.OriginalQuantity = lot.OriginalQuantity.Add(quantity)
	lot.RemainingQuantity = lot.RemainingQuantity.Add(quantity)
	lot.UpdatedAt = e.now()
	if err := lots.UpdateQuantities(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}
