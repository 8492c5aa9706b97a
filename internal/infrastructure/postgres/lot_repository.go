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

var _ repository.LotRepository = (*LotRepo)(nil)

const lotColumns = `id, tank_id, declaration_number, original_quantity, remaining_quantity, date_added, updated_at`

// LotRepo implementación de LotRepository sobre PostgreSQL. El orden FIFO es (date_added, seq).
type LotRepo struct {
	q Querier
}

// NewLotRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewLotRepository(q Querier) *LotRepo {
	return &LotRepo{q: q}
}

// Create inserta un lote; (tank_id, declaration_number) es único.
func (r *LotRepo) Create(ctx context.Context, l *entity.Lot) error {
	query := `
		INSERT INTO fuel_lots (` + lotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		l.ID, l.TankID, l.DeclarationNumber, l.OriginalQuantity, l.RemainingQuantity, l.DateAdded, l.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return &domain.PersistenceError{Op: "create lot", Err: fmt.Errorf("lote (%s, %s) duplicado: %w", l.TankID, l.DeclarationNumber, err)}
	}
	return dbError("create lot", err)
}

// UpdateQuantities persiste original y saldo del lote.
func (r *LotRepo) UpdateQuantities(ctx context.Context, l *entity.Lot) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE fuel_lots
		SET original_quantity = $2, remaining_quantity = $3, updated_at = $4
		WHERE id = $1`,
		l.ID, l.OriginalQuantity, l.RemainingQuantity, l.UpdatedAt,
	)
	if err != nil {
		return dbError("update lot", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.PersistenceError{Op: "update lot", Err: fmt.Errorf("lote %s: %w", l.ID, domain.ErrNotFound)}
	}
	return nil
}

// ListAvailableFIFO lotes con saldo > 0 en orden FIFO.
func (r *LotRepo) ListAvailableFIFO(ctx context.Context, tankID string) ([]*entity.Lot, error) {
	return r.list(ctx, `
		SELECT `+lotColumns+` FROM fuel_lots
		WHERE tank_id = $1 AND remaining_quantity > 0
		ORDER BY date_added, seq`, tankID)
}

// ListByTank todos los lotes del tanque en orden FIFO.
func (r *LotRepo) ListByTank(ctx context.Context, tankID string) ([]*entity.Lot, error) {
	return r.list(ctx, `
		SELECT `+lotColumns+` FROM fuel_lots
		WHERE tank_id = $1
		ORDER BY date_added, seq`, tankID)
}

// GetByDeclaration devuelve nil, nil si no existe.
func (r *LotRepo) GetByDeclaration(ctx context.Context, tankID, declarationNumber string) (*entity.Lot, error) {
	return r.one(ctx, `
		SELECT `+lotColumns+` FROM fuel_lots
		WHERE tank_id = $1 AND declaration_number = $2`, tankID, declarationNumber)
}

// GetLatest el lote más reciente del tanque (nil, nil si no tiene).
func (r *LotRepo) GetLatest(ctx context.Context, tankID string) (*entity.Lot, error) {
	return r.one(ctx, `
		SELECT `+lotColumns+` FROM fuel_lots
		WHERE tank_id = $1
		ORDER BY date_added DESC, seq DESC
		LIMIT 1`, tankID)
}

// SumRemaining suma de saldos del tanque.
func (r *LotRepo) SumRemaining(ctx context.Context, tankID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(remaining_quantity), 0) FROM fuel_lots WHERE tank_id = $1`, tankID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, dbError("sum lots", err)
	}
	return total, nil
}

func (r *LotRepo) one(ctx context.Context, query string, args ...any) (*entity.Lot, error) {
	l, err := scanLot(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError("get lot", err)
	}
	return l, nil
}

func (r *LotRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Lot, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("list lots", err)
	}
	defer rows.Close()

	var list []*entity.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, dbError("scan lot", err)
		}
		list = append(list, l)
	}
	return list, dbError("list lots", rows.Err())
}

func scanLot(row pgx.Row) (*entity.Lot, error) {
	var l entity.Lot
	err := row.Scan(&l.ID, &l.TankID, &l.DeclarationNumber, &l.OriginalQuantity, &l.RemainingQuantity, &l.DateAdded, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
