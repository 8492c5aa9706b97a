package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de entidad referenciados en auditoría.
const (
	EntityTypeTank     = "TANK"
	EntityTypeMovement = "MOVEMENT"
	EntityTypeBuyer    = "BUYER"
	EntityTypeExternal = "EXTERNAL"
)

// Operaciones auditadas (además de los tipos de movimiento).
const (
	AuditOpReconcile   = "RECONCILE"
	AuditOpOverride    = "OVERRIDE_ISSUED"
	AuditOpTankCreated = "TANK_CREATED"
	AuditOpTankStatus  = "TANK_STATUS_CHANGED"
)

// EntityRef referencia tipada a una entidad.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// LotBalance saldo de un lote dentro de un snapshot.
type LotBalance struct {
	DeclarationNumber string          `json:"declaration_number"`
	Remaining         decimal.Decimal `json:"remaining"`
}

// TankSnapshot estado de un tanque y sus lotes en un instante.
type TankSnapshot struct {
	TankID   string          `json:"tank_id"`
	Quantity decimal.Decimal `json:"quantity"`
	Status   string          `json:"status"`
	LotSum   decimal.Decimal `json:"lot_sum"`
	Lots     []LotBalance    `json:"lots"`
}

// AuditEntry registro append-only de una operación. TransactionID correlaciona
// las entradas de una misma operación (una por tanque afectado).
type AuditEntry struct {
	ID            string
	OperationType string
	Source        EntityRef
	Target        *EntityRef
	Quantity      decimal.Decimal
	FuelType      string
	ActorID       string
	TransactionID string
	Timestamp     time.Time
	StateBefore   *TankSnapshot
	StateAfter    *TankSnapshot
	Success       bool
	ErrorMessage  string
	Warning       string
}

// Clone copia la entrada (los snapshots se tratan como inmutables).
func (a *AuditEntry) Clone() *AuditEntry {
	c := *a
	return &c
}
