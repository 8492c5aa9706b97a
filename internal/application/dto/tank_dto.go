package dto

import (
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CreateTankRequest entrada para registrar un tanque.
type CreateTankRequest struct {
	Name     string          `json:"name" validate:"required,min=1,max=120"`
	Kind     string          `json:"kind" validate:"required,oneof=FIXED MOBILE"`
	FuelType string          `json:"fuel_type" validate:"required,min=1,max=40"`
	Capacity decimal.Decimal `json:"capacity" validate:"positive_decimal"`
	Status   string          `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE MAINTENANCE OUT_OF_SERVICE"`
}

// UpdateTankStatusRequest cambio de estado operativo.
type UpdateTankStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE INACTIVE MAINTENANCE OUT_OF_SERVICE"`
}

// TankResponse salida de un tanque.
type TankResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Kind            string          `json:"kind"`
	FuelType        string          `json:"fuel_type"`
	Capacity        decimal.Decimal `json:"capacity"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TankListResponse lista de tanques.
type TankListResponse struct {
	Items []TankResponse `json:"items"`
}

// LotResponse saldo de un lote por MRN.
type LotResponse struct {
	ID                string          `json:"id"`
	DeclarationNumber string          `json:"declaration_number"`
	OriginalQuantity  decimal.Decimal `json:"original_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	DateAdded         time.Time       `json:"date_added"`
}

// LotListResponse desglose FIFO de un tanque.
type LotListResponse struct {
	TankID string        `json:"tank_id"`
	Items  []LotResponse `json:"items"`
}

// NewTankResponse mapea la entidad.
func NewTankResponse(t *entity.Tank) TankResponse {
	return TankResponse{
		ID:              t.ID,
		Name:            t.Name,
		Kind:            t.Kind,
		FuelType:        t.FuelType,
		Capacity:        t.Capacity,
		CurrentQuantity: t.CurrentQuantity,
		Status:          t.Status,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// NewLotListResponse mapea los lotes en el orden recibido.
func NewLotListResponse(tankID string, lots []*entity.Lot) LotListResponse {
	out := LotListResponse{TankID: tankID, Items: make([]LotResponse, 0, len(lots))}
	for _, l := range lots {
		out.Items = append(out.Items, LotResponse{
			ID:                l.ID,
			DeclarationNumber: l.DeclarationNumber,
			OriginalQuantity:  l.OriginalQuantity,
			RemainingQuantity: l.RemainingQuantity,
			DateAdded:         l.DateAdded,
		})
	}
	return out
}
