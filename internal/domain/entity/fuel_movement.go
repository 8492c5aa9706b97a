package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento de combustible.
const (
	MovementKindIntake        = "INTAKE"
	MovementKindTransfer      = "TRANSFER"
	MovementKindDispense      = "DISPENSE"
	MovementKindDrain         = "DRAIN"
	MovementKindDrainReversal = "DRAIN_REVERSAL"
	MovementKindDrainSale     = "DRAIN_SALE"
)

// Estados del registro de movimiento. CREATED nunca es visible fuera de la transacción.
const (
	MovementStatusCreated   = "CREATED"
	MovementStatusCommitted = "COMMITTED"
)

// LotAllocation una línea del desglose por MRN de un movimiento.
type LotAllocation struct {
	DeclarationNumber string          `json:"declaration_number"`
	Quantity          decimal.Decimal `json:"quantity"`
	DateAdded         time.Time       `json:"date_added"`
}

// FuelMovement registro inmutable de un movimiento de combustible.
// Quantity es con signo respecto a TankID: positivo entra, negativo sale.
type FuelMovement struct {
	ID                     string
	TransactionID          string
	Kind                   string
	TankID                 string
	DestinationTankID      string // solo TRANSFER
	RelatedDrainID         string // DRAIN_REVERSAL y DRAIN_SALE
	Quantity               decimal.Decimal
	Shortfall              decimal.Decimal // litros que los lotes no pudieron cubrir
	LotBreakdown           []LotAllocation
	DestinationDescription string
	BuyerName              string
	Notes                  string
	ActorID                string
	Status                 string
	CreatedAt              time.Time
}

// Commit marca el registro como confirmado justo antes de persistirlo.
func (m *FuelMovement) Commit() {
	m.Status = MovementStatusCommitted
}

// HasShortfall indica si la asignación FIFO no cubrió toda la cantidad.
func (m *FuelMovement) HasShortfall() bool {
	return m.Shortfall.GreaterThan(decimal.Zero)
}

// Clone copia profunda (el desglose incluido).
func (m *FuelMovement) Clone() *FuelMovement {
	c := *m
	c.LotBreakdown = append([]LotAllocation(nil), m.LotBreakdown...)
	return &c
}
