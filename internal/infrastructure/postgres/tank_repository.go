package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.TankRepository = (*TankRepo)(nil)

const tankColumns = `id, name, kind, fuel_type, capacity, current_quantity, status, created_at, updated_at`

// TankRepo implementación de TankRepository sobre PostgreSQL (usable con pool o tx).
type TankRepo struct {
	q Querier
}

// NewTankRepository construye el adaptador de tanques. Pasar pool o tx (Querier).
func NewTankRepository(q Querier) *TankRepo {
	return &TankRepo{q: q}
}

// Create inserta un tanque.
func (r *TankRepo) Create(ctx context.Context, t *entity.Tank) error {
	query := `
		INSERT INTO tanks (` + tankColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.Name, t.Kind, t.FuelType, t.Capacity, t.CurrentQuantity, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	return dbError("create tank", err)
}

// GetByID devuelve nil, nil si no existe.
func (r *TankRepo) GetByID(ctx context.Context, id string) (*entity.Tank, error) {
	return r.get(ctx, `SELECT `+tankColumns+` FROM tanks WHERE id = $1`, id, "get tank")
}

// GetForUpdate obtiene el tanque y bloquea la fila (SELECT FOR UPDATE).
func (r *TankRepo) GetForUpdate(ctx context.Context, id string) (*entity.Tank, error) {
	return r.get(ctx, `SELECT `+tankColumns+` FROM tanks WHERE id = $1 FOR UPDATE`, id, "get tank for update")
}

func (r *TankRepo) get(ctx context.Context, query, id, op string) (*entity.Tank, error) {
	t, err := scanTank(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError(op, err)
	}
	return t, nil
}

// UpdateQuantity fija la cantidad agregada. El CHECK de la tabla garantiza 0 <= cantidad <= capacidad.
func (r *TankRepo) UpdateQuantity(ctx context.Context, id string, quantity decimal.Decimal) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE tanks SET current_quantity = $2, updated_at = now() WHERE id = $1`, id, quantity)
	if err != nil {
		return dbError("update tank quantity", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.PersistenceError{Op: "update tank quantity", Err: fmt.Errorf("tanque %s: %w", id, domain.ErrNotFound)}
	}
	return nil
}

// UpdateStatus cambia el estado operativo.
func (r *TankRepo) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE tanks SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return dbError("update tank status", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.PersistenceError{Op: "update tank status", Err: fmt.Errorf("tanque %s: %w", id, domain.ErrNotFound)}
	}
	return nil
}

// List todos los tanques por fecha de alta.
func (r *TankRepo) List(ctx context.Context) ([]*entity.Tank, error) {
	rows, err := r.q.Query(ctx, `SELECT `+tankColumns+` FROM tanks ORDER BY created_at, id`)
	if err != nil {
		return nil, dbError("list tanks", err)
	}
	defer rows.Close()

	var list []*entity.Tank
	for rows.Next() {
		t, err := scanTank(rows)
		if err != nil {
			return nil, dbError("scan tank", err)
		}
		list = append(list, t)
	}
	return list, dbError("list tanks", rows.Err())
}

func scanTank(row pgx.Row) (*entity.Tank, error) {
	var t entity.Tank
	err := row.Scan(&t.ID, &t.Name, &t.Kind, &t.FuelType, &t.Capacity, &t.CurrentQuantity, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
