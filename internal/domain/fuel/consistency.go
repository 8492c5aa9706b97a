package fuel

import (
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// DefaultTolerance tolerancia por defecto en litros.
var DefaultTolerance = decimal.RequireFromString("0.01")

// Compare calcula el reporte de consistencia de un tanque frente a sus lotes.
// Solo los lotes con saldo > 0 aparecen en el desglose.
func Compare(tank *entity.Tank, lots []*entity.Lot, tolerance decimal.Decimal, now time.Time) entity.ConsistencyReport {
	lotSum := SumRemaining(lots)
	diff := tank.CurrentQuantity.Sub(lotSum)
	return entity.ConsistencyReport{
		TankID:       tank.ID,
		IsConsistent: diff.Abs().LessThanOrEqual(tolerance),
		TankQuantity: tank.CurrentQuantity,
		LotSum:       lotSum,
		Difference:   diff,
		Tolerance:    tolerance,
		LotBreakdown: balances(lots),
		CheckedAt:    now,
	}
}

// Snapshot congela el estado de un tanque y sus lotes para auditoría.
func Snapshot(tank *entity.Tank, lots []*entity.Lot) *entity.TankSnapshot {
	return &entity.TankSnapshot{
		TankID:   tank.ID,
		Quantity: tank.CurrentQuantity,
		Status:   tank.Status,
		LotSum:   SumRemaining(lots),
		Lots:     balances(lots),
	}
}

func balances(lots []*entity.Lot) []entity.LotBalance {
	out := make([]entity.LotBalance, 0, len(lots))
	for _, l := range lots {
		if !l.RemainingQuantity.IsPositive() {
			continue
		}
		out = append(out, entity.LotBalance{DeclarationNumber: l.DeclarationNumber, Remaining: l.RemainingQuantity})
	}
	return out
}
