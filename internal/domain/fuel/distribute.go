package fuel

import (
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// DistributeResult resultado de repartir una diferencia sobre los lotes.
type DistributeResult struct {
	Adjustments []entity.LotAdjustment
	Touched     []*entity.Lot
	Unresolved  decimal.Decimal
}

// DistributeDelta reparte delta (= cantidad tanque - suma lotes) sobre los lotes empezando por el
// más reciente. Un delta positivo se suma al lote más reciente (subiendo Original si hace falta para
// mantener Remaining <= Original); uno negativo se descuenta lote a lote con piso en 0.
// Lo que no se pudo absorber queda en Unresolved con el signo original.
func DistributeDelta(lots []*entity.Lot, delta decimal.Decimal) DistributeResult {
	res := DistributeResult{Unresolved: decimal.Zero}
	if delta.IsZero() {
		return res
	}
	SortFIFO(lots)
	if len(lots) == 0 {
		res.Unresolved = delta
		return res
	}

	if delta.IsPositive() {
		latest := lots[len(lots)-1]
		before := latest.RemainingQuantity
		latest.RemainingQuantity = latest.RemainingQuantity.Add(delta)
		if latest.RemainingQuantity.GreaterThan(latest.OriginalQuantity) {
			latest.OriginalQuantity = latest.RemainingQuantity
		}
		res.Touched = append(res.Touched, latest)
		res.Adjustments = append(res.Adjustments, entity.LotAdjustment{
			LotID: latest.ID, DeclarationNumber: latest.DeclarationNumber,
			Before: before, After: latest.RemainingQuantity,
		})
		return res
	}

	pending := delta.Neg()
	for i := len(lots) - 1; i >= 0 && pending.IsPositive(); i-- {
		lot := lots[i]
		if !lot.RemainingQuantity.IsPositive() {
			continue
		}
		take := decimal.Min(lot.RemainingQuantity, pending)
		before := lot.RemainingQuantity
		lot.RemainingQuantity = lot.RemainingQuantity.Sub(take)
		pending = pending.Sub(take)
		res.Touched = append(res.Touched, lot)
		res.Adjustments = append(res.Adjustments, entity.LotAdjustment{
			LotID: lot.ID, DeclarationNumber: lot.DeclarationNumber,
			Before: before, After: lot.RemainingQuantity,
		})
	}
	if pending.IsPositive() {
		res.Unresolved = pending.Neg()
	}
	return res
}
