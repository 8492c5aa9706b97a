package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Prefijos de declaraciones sintéticas (lotes sin MRN real).
const (
	UntrackedIntakePrefix = "UNTRACKED-INTAKE-"
	DrainReturnPrefix     = "POVRAT-"
)

// Lot representa la porción de combustible de un tanque asociada a una declaración aduanera (MRN).
// Los lotes de un tanque se consumen en orden FIFO por DateAdded; nunca se eliminan.
// Invariante: 0 <= RemainingQuantity <= OriginalQuantity.
type Lot struct {
	ID                string
	TankID            string
	DeclarationNumber string
	OriginalQuantity  decimal.Decimal
	RemainingQuantity decimal.Decimal
	DateAdded         time.Time
	UpdatedAt         time.Time
}

// Clone copia el lote para snapshots y stores en memoria.
func (l *Lot) Clone() *Lot {
	c := *l
	return &c
}

// UntrackedIntakeDeclaration genera la declaración sintética de una entrada sin MRN.
func UntrackedIntakeDeclaration(movementID string) string {
	return UntrackedIntakePrefix + movementID
}

// DrainReturnDeclaration genera la declaración sintética de un retorno de drenaje sin lote destino.
func DrainReturnDeclaration(drainID string) string {
	return DrainReturnPrefix + drainID
}
