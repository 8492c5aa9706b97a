package ledger

import (
	"context"
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/fuel"
	"github.com/shopspring/decimal"
)

// ConsistencyChecker compara la cantidad agregada de cada tanque contra la suma de sus lotes.
// Solo lectura.
type ConsistencyChecker struct {
	tx        TxRunner
	tolerance decimal.Decimal
	now       func() time.Time
}

// NewConsistencyChecker construye el verificador.
func NewConsistencyChecker(tx TxRunner, cfg Config) *ConsistencyChecker {
	cfg = cfg.withDefaults()
	return &ConsistencyChecker{tx: tx, tolerance: cfg.Tolerance, now: cfg.Now}
}

// Tolerance tolerancia configurada en litros.
func (c *ConsistencyChecker) Tolerance() decimal.Decimal { return c.tolerance }

// Check verifica un tanque con la tolerancia configurada.
func (c *ConsistencyChecker) Check(ctx context.Context, tankID string) (entity.ConsistencyReport, error) {
	return c.CheckWithTolerance(ctx, tankID, c.tolerance)
}

// CheckWithTolerance verifica un tanque con una tolerancia explícita.
func (c *ConsistencyChecker) CheckWithTolerance(ctx context.Context, tankID string, tolerance decimal.Decimal) (entity.ConsistencyReport, error) {
	if tolerance.IsNegative() || !fuel.FitsScale(tolerance) {
		return entity.ConsistencyReport{}, domain.Invalid(domain.ErrInvalidInput, "tolerancia inválida (%s)", tolerance)
	}
	return InTx(ctx, c.tx, ReadOnlyTxOptions(), func(ctx context.Context, repos Repositories) (entity.ConsistencyReport, error) {
		_, _, rep, err := c.inspect(ctx, repos, tankID, tolerance)
		return rep, err
	})
}

// CheckBatch particiona los tanques indicados en consistentes e inconsistentes.
func (c *ConsistencyChecker) CheckBatch(ctx context.Context, tankIDs []string) (*entity.BatchConsistencyReport, error) {
	return InTx(ctx, c.tx, ReadOnlyTxOptions(), func(ctx context.Context, repos Repositories) (*entity.BatchConsistencyReport, error) {
		out := &entity.BatchConsistencyReport{}
		for _, id := range tankIDs {
			_, _, rep, err := c.inspect(ctx, repos, id, c.tolerance)
			if err != nil {
				return nil, err
			}
			if rep.IsConsistent {
				out.Consistent = append(out.Consistent, rep)
			} else {
				out.Inconsistent = append(out.Inconsistent, rep)
			}
		}
		return out, nil
	})
}

// CheckAll verifica todos los tanques registrados.
func (c *ConsistencyChecker) CheckAll(ctx context.Context) ([]entity.ConsistencyReport, error) {
	return InTx(ctx, c.tx, ReadOnlyTxOptions(), func(ctx context.Context, repos Repositories) ([]entity.ConsistencyReport, error) {
		tanks, err := repos.Tanks.List(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]entity.ConsistencyReport, 0, len(tanks))
		for _, t := range tanks {
			lots, err := repos.Lots.ListByTank(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, fuel.Compare(t, lots, c.tolerance, c.now()))
		}
		return out, nil
	})
}

// inspect lee tanque y lotes dentro de la transacción del caller.
func (c *ConsistencyChecker) inspect(ctx context.Context, repos Repositories, tankID string, tolerance decimal.Decimal) (*entity.Tank, []*entity.Lot, entity.ConsistencyReport, error) {
	tank, err := repos.Tanks.GetByID(ctx, tankID)
	if err != nil {
		return nil, nil, entity.ConsistencyReport{}, err
	}
	if tank == nil {
		return nil, nil, entity.ConsistencyReport{}, domain.Invalid(domain.ErrNotFound, "tanque %s", tankID)
	}
	lots, err := repos.Lots.ListByTank(ctx, tankID)
	if err != nil {
		return nil, nil, entity.ConsistencyReport{}, err
	}
	return tank, lots, fuel.Compare(tank, lots, tolerance, c.now()), nil
}

// violation convierte un reporte inconsistente en el error del pre-chequeo.
func violation(rep entity.ConsistencyReport) error {
	return &domain.ConsistencyViolationError{
		TankID:        rep.TankID,
		TankQuantity:  rep.TankQuantity,
		LotSum:        rep.LotSum,
		Difference:    rep.Difference,
		ToleranceUsed: rep.Tolerance,
	}
}
