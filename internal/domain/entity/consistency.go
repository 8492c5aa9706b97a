package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estrategias de reconciliación.
const (
	StrategyReportOnly         = "REPORT_ONLY"
	StrategyAdjustTankQuantity = "ADJUST_TANK_QUANTITY"
	StrategyAdjustMRNRecords   = "ADJUST_MRN_RECORDS"
)

// ValidStrategy valida el nombre de la estrategia.
func ValidStrategy(s string) bool {
	switch s {
	case StrategyReportOnly, StrategyAdjustTankQuantity, StrategyAdjustMRNRecords:
		return true
	}
	return false
}

// ConsistencyReport resultado de comparar la cantidad agregada contra la suma de lotes.
// Difference = TankQuantity - LotSum.
type ConsistencyReport struct {
	TankID       string
	IsConsistent bool
	TankQuantity decimal.Decimal
	LotSum       decimal.Decimal
	Difference   decimal.Decimal
	Tolerance    decimal.Decimal
	LotBreakdown []LotBalance
	CheckedAt    time.Time
}

// BatchConsistencyReport particiona un conjunto de tanques.
type BatchConsistencyReport struct {
	Consistent   []ConsistencyReport
	Inconsistent []ConsistencyReport
}

// LotAdjustment cambio aplicado a un lote durante ADJUST_MRN_RECORDS.
type LotAdjustment struct {
	LotID             string
	DeclarationNumber string
	Before            decimal.Decimal
	After             decimal.Decimal
}

// SyncResult resultado de una reconciliación; After siempre se re-verifica.
type SyncResult struct {
	TankID      string
	Strategy    string
	Before      ConsistencyReport
	After       ConsistencyReport
	Applied     bool
	Unresolved  decimal.Decimal
	Adjustments []LotAdjustment
}
