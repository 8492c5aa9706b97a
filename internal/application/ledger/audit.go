package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/repository"
	"github.com/rs/zerolog"
)

// AuditLog registra operación, entidades, cantidad, snapshots y resultado.
// Las entradas exitosas se escriben en la misma transacción que la mutación.
type AuditLog struct {
	tx  TxRunner
	now func() time.Time
	log zerolog.Logger
}

// NewAuditLog construye el log de auditoría.
func NewAuditLog(tx TxRunner, cfg Config, log zerolog.Logger) *AuditLog {
	cfg = cfg.withDefaults()
	return &AuditLog{tx: tx, now: cfg.Now, log: log}
}

// Record agrega una entrada exitosa usando los repositorios de la transacción en curso.
func (a *AuditLog) Record(ctx context.Context, repos Repositories, entry *entity.AuditEntry) error {
	a.stamp(entry)
	entry.Success = true
	return repos.Audit.Create(ctx, entry)
}

// RecordFailure escribe una entrada fallida en su propia transacción, después de que la
// unidad de trabajo original hizo rollback. Un error aquí solo se registra en el log.
func (a *AuditLog) RecordFailure(ctx context.Context, entry *entity.AuditEntry, cause error) {
	a.stamp(entry)
	entry.Success = false
	entry.ErrorMessage = cause.Error()
	err := a.tx.Run(ctx, TxOptions{Isolation: IsolationSerializable, NoRetry: true}, func(ctx context.Context, repos Repositories) error {
		return repos.Audit.Create(ctx, entry)
	})
	if err != nil {
		a.log.Error().Err(err).
			Str("operation", entry.OperationType).
			Str("transaction_id", entry.TransactionID).
			Msg("no se pudo registrar auditoría de fallo")
	}
}

// List consulta el log con filtros y paginación.
func (a *AuditLog) List(ctx context.Context, filter repository.AuditFilter, limit, offset int) ([]*entity.AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return InTx(ctx, a.tx, ReadOnlyTxOptions(), func(ctx context.Context, repos Repositories) ([]*entity.AuditEntry, error) {
		return repos.Audit.List(ctx, filter, limit, offset)
	})
}

func (a *AuditLog) stamp(entry *entity.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now()
	}
}
