package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de tanque.
const (
	TankKindFixed  = "FIXED"
	TankKindMobile = "MOBILE"
)

// Estados de tanque.
const (
	TankStatusActive       = "ACTIVE"
	TankStatusInactive     = "INACTIVE"
	TankStatusMaintenance  = "MAINTENANCE"
	TankStatusOutOfService = "OUT_OF_SERVICE"
)

// Tank representa un tanque de combustible (fijo o cisterna móvil).
// CurrentQuantity es la única fuente de verdad de la cantidad física; 0 <= CurrentQuantity <= Capacity.
type Tank struct {
	ID              string
	Name            string
	Kind            string
	FuelType        string
	Capacity        decimal.Decimal // litros
	CurrentQuantity decimal.Decimal // litros
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive indica si el tanque admite movimientos normales.
func (t *Tank) IsActive() bool {
	return t.Status == TankStatusActive
}

// FreeCapacity devuelve los litros que aún caben en el tanque.
func (t *Tank) FreeCapacity() decimal.Decimal {
	return t.Capacity.Sub(t.CurrentQuantity)
}

// ValidTankKind valida el tipo de tanque.
func ValidTankKind(kind string) bool {
	return kind == TankKindFixed || kind == TankKindMobile
}

// ValidTankStatus valida el estado del tanque.
func ValidTankStatus(status string) bool {
	switch status {
	case TankStatusActive, TankStatusInactive, TankStatusMaintenance, TankStatusOutOfService:
		return true
	}
	return false
}
