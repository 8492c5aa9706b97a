package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

const auditColumns = `id, operation_type, source_type, source_id, target_type, target_id, quantity, fuel_type,
	actor_id, transaction_id, occurred_at, state_before, state_after, success, error_message, warning`

// AuditRepo log de auditoría append-only; los snapshots se guardan en JSONB.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Create inserta la entrada.
func (r *AuditRepo) Create(ctx context.Context, e *entity.AuditEntry) error {
	before, err := marshalSnapshot(e.StateBefore)
	if err != nil {
		return err
	}
	after, err := marshalSnapshot(e.StateAfter)
	if err != nil {
		return err
	}
	var targetType, targetID *string
	if e.Target != nil {
		targetType, targetID = &e.Target.Type, &e.Target.ID
	}
	query := `
		INSERT INTO audit_entries (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err = r.q.Exec(ctx, query,
		e.ID, e.OperationType, e.Source.Type, e.Source.ID, targetType, targetID, e.Quantity, e.FuelType,
		e.ActorID, e.TransactionID, e.Timestamp, before, after, e.Success, e.ErrorMessage, e.Warning,
	)
	return dbError("create audit entry", err)
}

// List filtra por los campos no vacíos de f, más recientes primero.
func (r *AuditRepo) List(ctx context.Context, f repository.AuditFilter, limit, offset int) ([]*entity.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.OperationType != "" {
		add("operation_type = $%d", f.OperationType)
	}
	if f.EntityID != "" {
		args = append(args, f.EntityID)
		n := len(args)
		where = append(where, fmt.Sprintf("(source_id = $%d OR target_id = $%d)", n, n))
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.TransactionID != "" {
		add("transaction_id = $%d", f.TransactionID)
	}
	if f.Success != nil {
		add("success = $%d", *f.Success)
	}
	if f.From != nil {
		add("occurred_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("occurred_at <= $%d", *f.To)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY occurred_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("list audit entries", err)
	}
	defer rows.Close()

	var list []*entity.AuditEntry
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, dbError("scan audit entry", err)
		}
		list = append(list, e)
	}
	return list, dbError("list audit entries", rows.Err())
}

func scanAudit(row pgx.Row) (*entity.AuditEntry, error) {
	var e entity.AuditEntry
	var targetType, targetID *string
	var before, after []byte
	err := row.Scan(&e.ID, &e.OperationType, &e.Source.Type, &e.Source.ID, &targetType, &targetID, &e.Quantity, &e.FuelType,
		&e.ActorID, &e.TransactionID, &e.Timestamp, &before, &after, &e.Success, &e.ErrorMessage, &e.Warning)
	if err != nil {
		return nil, err
	}
	if targetType != nil {
		e.Target = &entity.EntityRef{Type: *targetType, ID: deref(targetID)}
	}
	if e.StateBefore, err = unmarshalSnapshot(before); err != nil {
		return nil, err
	}
	if e.StateAfter, err = unmarshalSnapshot(after); err != nil {
		return nil, err
	}
	return &e, nil
}

func marshalSnapshot(s *entity.TankSnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return b, nil
}

func unmarshalSnapshot(b []byte) (*entity.TankSnapshot, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s entity.TankSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, nil
}
