package fuel

import (
	"sort"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// FIFOResult resultado de consumir una cantidad sobre los lotes de un tanque.
type FIFOResult struct {
	Breakdown []entity.LotAllocation
	Touched   []*entity.Lot // lotes modificados, en el orden consumido
	Allocated decimal.Decimal
	Shortfall decimal.Decimal
}

// SortFIFO ordena los lotes por DateAdded ascendente (estable para empates).
func SortFIFO(lots []*entity.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].DateAdded.Before(lots[j].DateAdded)
	})
}

// ConsumeFIFO toma min(lote.Remaining, pendiente) de cada lote en orden FIFO, decrementando en sitio,
// hasta cubrir quantity o agotar los lotes. Lo no cubierto se devuelve como Shortfall, no como error.
func ConsumeFIFO(lots []*entity.Lot, quantity decimal.Decimal) FIFOResult {
	SortFIFO(lots)
	res := FIFOResult{Allocated: decimal.Zero, Shortfall: decimal.Zero}
	pending := quantity
	for _, lot := range lots {
		if !pending.IsPositive() {
			break
		}
		if !lot.RemainingQuantity.IsPositive() {
			continue
		}
		take := decimal.Min(lot.RemainingQuantity, pending)
		lot.RemainingQuantity = lot.RemainingQuantity.Sub(take)
		pending = pending.Sub(take)
		res.Allocated = res.Allocated.Add(take)
		res.Touched = append(res.Touched, lot)
		res.Breakdown = append(res.Breakdown, entity.LotAllocation{
			DeclarationNumber: lot.DeclarationNumber,
			Quantity:          take,
			DateAdded:         lot.DateAdded,
		})
	}
	if pending.IsPositive() {
		res.Shortfall = pending
	}
	return res
}

// SumRemaining suma los saldos de los lotes.
func SumRemaining(lots []*entity.Lot) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lots {
		sum = sum.Add(l.RemainingQuantity)
	}
	return sum
}
