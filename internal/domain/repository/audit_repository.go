package repository

import (
	"context"
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
)

// AuditFilter filtros para consultar el log de auditoría. Campos vacíos no filtran.
type AuditFilter struct {
	OperationType string
	EntityID      string // coincide con origen o destino
	ActorID       string
	TransactionID string
	Success       *bool
	From          *time.Time
	To            *time.Time
}

// AuditRepository define el puerto de persistencia (append-only) para auditoría.
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error
	List(ctx context.Context, filter AuditFilter, limit, offset int) ([]*entity.AuditEntry, error)
}
