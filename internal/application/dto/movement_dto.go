package dto

import (
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// IntakeRequest entrada de combustible. Sin declaration_number se crea un lote sintético.
type IntakeRequest struct {
	TankID            string          `json:"tank_id" validate:"required"`
	Quantity          decimal.Decimal `json:"quantity" validate:"positive_decimal"`
	DeclarationNumber string          `json:"declaration_number" validate:"omitempty,max=64"`
	Notes             string          `json:"notes" validate:"max=500"`
}

// TransferRequest traslado entre tanques.
type TransferRequest struct {
	SourceTankID      string          `json:"source_tank_id" validate:"required"`
	DestinationTankID string          `json:"destination_tank_id" validate:"required,nefield=SourceTankID"`
	Quantity          decimal.Decimal `json:"quantity" validate:"positive_decimal"`
	Notes             string          `json:"notes" validate:"max=500"`
	SkipCheck         bool            `json:"skip_consistency_check"`
}

// DispenseRequest despacho a aeronave.
type DispenseRequest struct {
	TankID                 string          `json:"tank_id" validate:"required"`
	Quantity               decimal.Decimal `json:"quantity" validate:"positive_decimal"`
	DestinationDescription string          `json:"destination_description" validate:"required,max=200"`
	Notes                  string          `json:"notes" validate:"max=500"`
	SkipCheck              bool            `json:"skip_consistency_check"`
}

// DrainRequest drenaje.
type DrainRequest struct {
	TankID    string          `json:"tank_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"positive_decimal"`
	Notes     string          `json:"notes" validate:"max=500"`
	SkipCheck bool            `json:"skip_consistency_check"`
}

// DrainReversalRequest retorno de combustible drenado.
type DrainReversalRequest struct {
	DestinationTankID string          `json:"destination_tank_id" validate:"required"`
	Quantity          decimal.Decimal `json:"quantity" validate:"positive_decimal"`
	OriginalDrainID   string          `json:"original_drain_id" validate:"required"`
	Notes             string          `json:"notes" validate:"max=500"`
}

// DrainSaleRequest venta de combustible drenado.
type DrainSaleRequest struct {
	OriginalDrainID string          `json:"original_drain_id" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity" validate:"positive_decimal"`
	BuyerName       string          `json:"buyer_name" validate:"required,max=200"`
	Notes           string          `json:"notes" validate:"max=500"`
}

// MovementQuery filtros de GET /api/tanks/:id/movements.
type MovementQuery struct {
	PageRequest
	From string `query:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To   string `query:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// LotAllocationDTO una línea del desglose por MRN.
type LotAllocationDTO struct {
	DeclarationNumber string          `json:"declaration_number"`
	Quantity          decimal.Decimal `json:"quantity"`
	DateAdded         time.Time       `json:"date_added"`
}

// MovementResponse registro de movimiento.
type MovementResponse struct {
	ID                     string             `json:"id"`
	TransactionID          string             `json:"transaction_id"`
	Kind                   string             `json:"kind"`
	TankID                 string             `json:"tank_id,omitempty"`
	DestinationTankID      string             `json:"destination_tank_id,omitempty"`
	RelatedDrainID         string             `json:"related_drain_id,omitempty"`
	Quantity               decimal.Decimal    `json:"quantity"`
	Shortfall              decimal.Decimal    `json:"shortfall"`
	LotBreakdown           []LotAllocationDTO `json:"lot_breakdown"`
	DestinationDescription string             `json:"destination_description,omitempty"`
	BuyerName              string             `json:"buyer_name,omitempty"`
	Notes                  string             `json:"notes,omitempty"`
	ActorID                string             `json:"actor_id"`
	Status                 string             `json:"status"`
	CreatedAt              time.Time          `json:"created_at"`
}

// MovementListResponse lista paginada de movimientos.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// NewMovementResponse mapea la entidad.
func NewMovementResponse(m *entity.FuelMovement) MovementResponse {
	breakdown := make([]LotAllocationDTO, 0, len(m.LotBreakdown))
	for _, b := range m.LotBreakdown {
		breakdown = append(breakdown, LotAllocationDTO{
			DeclarationNumber: b.DeclarationNumber,
			Quantity:          b.Quantity,
			DateAdded:         b.DateAdded,
		})
	}
	return MovementResponse{
		ID:                     m.ID,
		TransactionID:          m.TransactionID,
		Kind:                   m.Kind,
		TankID:                 m.TankID,
		DestinationTankID:      m.DestinationTankID,
		RelatedDrainID:         m.RelatedDrainID,
		Quantity:               m.Quantity,
		Shortfall:              m.Shortfall,
		LotBreakdown:           breakdown,
		DestinationDescription: m.DestinationDescription,
		BuyerName:              m.BuyerName,
		Notes:                  m.Notes,
		ActorID:                m.ActorID,
		Status:                 m.Status,
		CreatedAt:              m.CreatedAt,
	}
}
