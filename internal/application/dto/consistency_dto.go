package dto

import (
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ── Consistencia ─────────────────────────────────────────────────────────────

// LotBalanceDTO saldo de un lote en un reporte o snapshot.
type LotBalanceDTO struct {
	DeclarationNumber string          `json:"declaration_number"`
	Remaining         decimal.Decimal `json:"remaining"`
}

// ConsistencyReportResponse resultado de comparar agregado contra lotes.
type ConsistencyReportResponse struct {
	TankID       string          `json:"tank_id"`
	IsConsistent bool            `json:"is_consistent"`
	TankQuantity decimal.Decimal `json:"tank_quantity"`
	LotSum       decimal.Decimal `json:"lot_sum"`
	Difference   decimal.Decimal `json:"difference"`
	Tolerance    decimal.Decimal `json:"tolerance"`
	LotBreakdown []LotBalanceDTO `json:"lot_breakdown"`
	CheckedAt    time.Time       `json:"checked_at"`
}

// BatchCheckRequest chequeo de un conjunto de tanques.
type BatchCheckRequest struct {
	TankIDs []string `json:"tank_ids" validate:"required,min=1,max=200,dive,required"`
}

// BatchConsistencyResponse partición consistentes / inconsistentes.
type BatchConsistencyResponse struct {
	Consistent   []ConsistencyReportResponse `json:"consistent"`
	Inconsistent []ConsistencyReportResponse `json:"inconsistent"`
}

// ConsistencyListResponse reportes de todos los tanques.
type ConsistencyListResponse struct {
	Items []ConsistencyReportResponse `json:"items"`
}

// ── Reconciliación ───────────────────────────────────────────────────────────

// ReconcileRequest estrategia a aplicar.
type ReconcileRequest struct {
	Strategy string `json:"strategy" validate:"required,oneof=REPORT_ONLY ADJUST_TANK_QUANTITY ADJUST_MRN_RECORDS"`
}

// LotAdjustmentDTO cambio aplicado a un lote.
type LotAdjustmentDTO struct {
	LotID             string          `json:"lot_id"`
	DeclarationNumber string          `json:"declaration_number"`
	Before            decimal.Decimal `json:"before"`
	After             decimal.Decimal `json:"after"`
}

// SyncResultResponse resultado de una reconciliación.
type SyncResultResponse struct {
	TankID      string                    `json:"tank_id"`
	Strategy    string                    `json:"strategy"`
	Applied     bool                      `json:"applied"`
	Unresolved  decimal.Decimal           `json:"unresolved"`
	Before      ConsistencyReportResponse `json:"before"`
	After       ConsistencyReportResponse `json:"after"`
	Adjustments []LotAdjustmentDTO        `json:"adjustments,omitempty"`
}

// ── Override ─────────────────────────────────────────────────────────────────

// OverrideRequest emisión de token de override.
type OverrideRequest struct {
	TankID        string `json:"tank_id" validate:"required"`
	OperationType string `json:"operation_type" validate:"required,oneof=TRANSFER DISPENSE DRAIN"`
	TTLSeconds    int    `json:"ttl_seconds" validate:"min=0,max=3600"`
}

// OverrideResponse token emitido.
type OverrideResponse struct {
	Token            string    `json:"token"`
	TankID           string    `json:"tank_id"`
	OperationType    string    `json:"operation_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
}

// ── Auditoría ────────────────────────────────────────────────────────────────

// AuditQuery filtros de GET /api/audit.
type AuditQuery struct {
	PageRequest
	OperationType string `query:"operation_type" validate:"omitempty,max=40"`
	EntityID      string `query:"entity_id"`
	ActorID       string `query:"actor_id"`
	TransactionID string `query:"transaction_id"`
	Success       string `query:"success" validate:"omitempty,oneof=true false"`
	From          string `query:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To            string `query:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// EntityRefDTO referencia tipada.
type EntityRefDTO struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// SnapshotDTO estado de un tanque en un instante.
type SnapshotDTO struct {
	Quantity decimal.Decimal `json:"quantity"`
	Status   string          `json:"status,omitempty"`
	LotSum   decimal.Decimal `json:"lot_sum"`
	Lots     []LotBalanceDTO `json:"lots,omitempty"`
}

// AuditEntryResponse entrada del log de auditoría.
type AuditEntryResponse struct {
	ID            string          `json:"id"`
	OperationType string          `json:"operation_type"`
	Source        EntityRefDTO    `json:"source"`
	Target        *EntityRefDTO   `json:"target,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	FuelType      string          `json:"fuel_type,omitempty"`
	ActorID       string          `json:"actor_id"`
	TransactionID string          `json:"transaction_id"`
	Timestamp     time.Time       `json:"timestamp"`
	StateBefore   *SnapshotDTO    `json:"state_before,omitempty"`
	StateAfter    *SnapshotDTO    `json:"state_after,omitempty"`
	Success       bool            `json:"success"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Warning       string          `json:"warning,omitempty"`
}

// AuditListResponse lista paginada.
type AuditListResponse struct {
	Items []AuditEntryResponse `json:"items"`
	Page  PageResponse         `json:"page"`
}

// NewConsistencyReportResponse mapea el reporte.
func NewConsistencyReportResponse(r entity.ConsistencyReport) ConsistencyReportResponse {
	return ConsistencyReportResponse{
		TankID:       r.TankID,
		IsConsistent: r.IsConsistent,
		TankQuantity: r.TankQuantity,
		LotSum:       r.LotSum,
		Difference:   r.Difference,
		Tolerance:    r.Tolerance,
		LotBreakdown: balances(r.LotBreakdown),
		CheckedAt:    r.CheckedAt,
	}
}

// NewConsistencyReports mapea una lista de reportes.
func NewConsistencyReports(reports []entity.ConsistencyReport) []ConsistencyReportResponse {
	out := make([]ConsistencyReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, NewConsistencyReportResponse(r))
	}
	return out
}

// NewSyncResultResponse mapea el resultado de reconciliación.
func NewSyncResultResponse(s *entity.SyncResult) SyncResultResponse {
	out := SyncResultResponse{
		TankID:     s.TankID,
		Strategy:   s.Strategy,
		Applied:    s.Applied,
		Unresolved: s.Unresolved,
		Before:     NewConsistencyReportResponse(s.Before),
		After:      NewConsistencyReportResponse(s.After),
	}
	for _, a := range s.Adjustments {
		out.Adjustments = append(out.Adjustments, LotAdjustmentDTO{
			LotID: a.LotID, DeclarationNumber: a.DeclarationNumber, Before: a.Before, After: a.After,
		})
	}
	return out
}

// NewAuditEntryResponse mapea una entrada de auditoría.
func NewAuditEntryResponse(e *entity.AuditEntry) AuditEntryResponse {
	out := AuditEntryResponse{
		ID:            e.ID,
		OperationType: e.OperationType,
		Source:        EntityRefDTO{Type: e.Source.Type, ID: e.Source.ID},
		Quantity:      e.Quantity,
		FuelType:      e.FuelType,
		ActorID:       e.ActorID,
		TransactionID: e.TransactionID,
		Timestamp:     e.Timestamp,
		StateBefore:   snapshot(e.StateBefore),
		StateAfter:    snapshot(e.StateAfter),
		Success:       e.Success,
		ErrorMessage:  e.ErrorMessage,
		Warning:       e.Warning,
	}
	if e.Target != nil {
		out.Target = &EntityRefDTO{Type: e.Target.Type, ID: e.Target.ID}
	}
	return out
}

func snapshot(s *entity.TankSnapshot) *SnapshotDTO {
	if s == nil {
		return nil
	}
	return &SnapshotDTO{Quantity: s.Quantity, Status: s.Status, LotSum: s.LotSum, Lots: balances(s.Lots)}
}

func balances(in []entity.LotBalance) []LotBalanceDTO {
	out := make([]LotBalanceDTO, 0, len(in))
	for _, b := range in {
		out = append(out, LotBalanceDTO{DeclarationNumber: b.DeclarationNumber, Remaining: b.Remaining})
	}
	return out
}
