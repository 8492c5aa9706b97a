package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.FuelMovementRepository = (*FuelMovementRepo)(nil)

const movementColumns = `id, transaction_id, kind, tank_id, destination_tank_id, related_drain_id, quantity, shortfall,
	lot_breakdown, destination_description, buyer_name, notes, actor_id, status, created_at`

// FuelMovementRepo registros de movimiento (append-only).
type FuelMovementRepo struct {
	q Querier
}

// NewFuelMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFuelMovementRepository(q Querier) *FuelMovementRepo {
	return &FuelMovementRepo{q: q}
}

// Create inserta el movimiento con su desglose por MRN en JSONB.
func (r *FuelMovementRepo) Create(ctx context.Context, m *entity.FuelMovement) error {
	breakdown, err := json.Marshal(nonNilBreakdown(m.LotBreakdown))
	if err != nil {
		return fmt.Errorf("marshal lot breakdown: %w", err)
	}
	query := `
		INSERT INTO fuel_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = r.q.Exec(ctx, query,
		m.ID, m.TransactionID, m.Kind, nullIfEmpty(m.TankID), nullIfEmpty(m.DestinationTankID), nullIfEmpty(m.RelatedDrainID),
		m.Quantity, m.Shortfall, breakdown, m.DestinationDescription, m.BuyerName, m.Notes, m.ActorID, m.Status, m.CreatedAt,
	)
	return dbError("create fuel movement", err)
}

// GetByID devuelve nil, nil si no existe.
func (r *FuelMovementRepo) GetByID(ctx context.Context, id string) (*entity.FuelMovement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM fuel_movements WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError("get fuel movement", err)
	}
	return m, nil
}

// SumSettledAgainstDrain total devuelto o vendido contra un drenaje, por referencia explícita.
func (r *FuelMovementRepo) SumSettledAgainstDrain(ctx context.Context, drainID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(ABS(quantity)), 0)
		FROM fuel_movements
		WHERE related_drain_id = $1 AND kind IN ($2, $3)`,
		drainID, entity.MovementKindDrainReversal, entity.MovementKindDrainSale,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, dbError("sum settled against drain", err)
	}
	return total, nil
}

// ListByTank movimientos donde el tanque es origen o destino, más recientes primero.
func (r *FuelMovementRepo) ListByTank(ctx context.Context, tankID string, from, to *time.Time, limit, offset int) ([]*entity.FuelMovement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+movementColumns+` FROM fuel_movements
		WHERE (tank_id = $1 OR destination_tank_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at DESC, id
		LIMIT $4 OFFSET $5`,
		tankID, from, to, limit, offset,
	)
	if err != nil {
		return nil, dbError("list fuel movements", err)
	}
	defer rows.Close()

	var list []*entity.FuelMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, dbError("scan fuel movement", err)
		}
		list = append(list, m)
	}
	return list, dbError("list fuel movements", rows.Err())
}

func scanMovement(row pgx.Row) (*entity.FuelMovement, error) {
	var m entity.FuelMovement
	var tankID, destID, relatedID *string
	var breakdown []byte
	err := row.Scan(&m.ID, &m.TransactionID, &m.Kind, &tankID, &destID, &relatedID, &m.Quantity, &m.Shortfall,
		&breakdown, &m.DestinationDescription, &m.BuyerName, &m.Notes, &m.ActorID, &m.Status, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.TankID, m.DestinationTankID, m.RelatedDrainID = deref(tankID), deref(destID), deref(relatedID)
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &m.LotBreakdown); err != nil {
			return nil, fmt.Errorf("unmarshal lot breakdown: %w", err)
		}
	}
	return &m, nil
}

func nonNilBreakdown(b []entity.LotAllocation) []entity.LotAllocation {
	if b == nil {
		return []entity.LotAllocation{}
	}
	return b
}
