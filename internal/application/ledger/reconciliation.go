package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/fuel"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SchedulerActor actor registrado en auditoría para las pasadas automáticas.
const SchedulerActor = "scheduler"

// ReconciliationEngine corrige la deriva entre la cantidad agregada y la suma de lotes.
type ReconciliationEngine struct {
	tx        TxRunner
	checker   *ConsistencyChecker
	audit     *AuditLog
	tolerance decimal.Decimal
	now       func() time.Time
	log       zerolog.Logger
}

// NewReconciliationEngine construye el motor de reconciliación.
func NewReconciliationEngine(tx TxRunner, checker *ConsistencyChecker, audit *AuditLog, cfg Config, log zerolog.Logger) *ReconciliationEngine {
	cfg = cfg.withDefaults()
	return &ReconciliationEngine{
		tx:        tx,
		checker:   checker,
		audit:     audit,
		tolerance: cfg.Tolerance,
		now:       cfg.Now,
		log:       log,
	}
}

// Reconcile aplica strategy sobre un tanque. Solo modifica datos si el tanque está fuera de
// tolerancia; el estado posterior siempre se vuelve a verificar.
func (r *ReconciliationEngine) Reconcile(ctx context.Context, tankID, strategy, actorID string) (*entity.SyncResult, error) {
	if !entity.ValidStrategy(strategy) {
		return nil, domain.Invalid(domain.ErrInvalidInput, "estrategia desconocida %q", strategy)
	}
	if strategy == entity.StrategyReportOnly {
		rep, err := r.checker.Check(ctx, tankID)
		if err != nil {
			return nil, err
		}
		r.logReport(rep)
		return &entity.SyncResult{TankID: tankID, Strategy: strategy, Before: rep, After: rep, Unresolved: decimal.Zero}, nil
	}

	txID := uuid.New().String()
	res, err := InTx(ctx, r.tx, DefaultTxOptions(), func(ctx context.Context, repos Repositories) (*entity.SyncResult, error) {
		return r.apply(ctx, repos, tankID, strategy, actorID, txID)
	})
	if err != nil {
		r.log.Error().Err(err).
			Str("tank_id", tankID).
			Str("operation", entity.AuditOpReconcile).
			Str("strategy", strategy).
			Msg("reconciliación fallida")
		return nil, err
	}

	ev := r.log.Info()
	if !res.After.IsConsistent {
		ev = r.log.Warn().Str("unresolved", res.Unresolved.String())
	}
	ev.Str("tank_id", tankID).
		Str("operation", entity.AuditOpReconcile).
		Str("strategy", strategy).
		Str("transaction_id", txID).
		Bool("applied", res.Applied).
		Str("difference", res.Before.Difference.String()).
		Msg("reconciliación terminada")
	return res, nil
}

func (r *ReconciliationEngine) apply(ctx context.Context, repos Repositories, tankID, strategy, actorID, txID string) (*entity.SyncResult, error) {
	tank, err := loadTank(ctx, repos, tankID, true)
	if err != nil {
		return nil, err
	}
	lots, err := repos.Lots.ListByTank(ctx, tank.ID)
	if err != nil {
		return nil, err
	}
	before := fuel.Compare(tank, lots, r.tolerance, r.now())
	res := &entity.SyncResult{TankID: tank.ID, Strategy: strategy, Before: before, After: before, Unresolved: decimal.Zero}
	if before.IsConsistent {
		return res, nil
	}
	snapBefore := fuel.Snapshot(tank, lots)

	switch strategy {
	case entity.StrategyAdjustTankQuantity:
		if before.LotSum.GreaterThan(tank.Capacity) {
			return nil, domain.Invalid(domain.ErrCapacityExceeded, "suma de lotes %s supera capacidad %s del tanque %s",
				before.LotSum, tank.Capacity, tank.ID)
		}
		if err := repos.Tanks.UpdateQuantity(ctx, tank.ID, before.LotSum); err != nil {
			return nil, err
		}
		tank.CurrentQuantity = before.LotSum
	case entity.StrategyAdjustMRNRecords:
		dist := fuel.DistributeDelta(lots, before.Difference)
		now := r.now()
		for _, l := range dist.Touched {
			l.UpdatedAt = now
			if err := repos.Lots.UpdateQuantities(ctx, l); err != nil {
				return nil, err
			}
		}
		res.Adjustments = dist.Adjustments
		res.Unresolved = dist.Unresolved
	}
	res.Applied = true

	lots, err = repos.Lots.ListByTank(ctx, tank.ID)
	if err != nil {
		return nil, err
	}
	res.After = fuel.Compare(tank, lots, r.tolerance, r.now())

	warning := ""
	if !res.Unresolved.IsZero() {
		warning = "diferencia sin resolver " + res.Unresolved.String() + " L"
	}
	err = r.audit.Record(ctx, repos, &entity.AuditEntry{
		OperationType: entity.AuditOpReconcile,
		Source:        entity.EntityRef{Type: entity.EntityTypeTank, ID: tank.ID},
		Quantity:      before.Difference,
		FuelType:      tank.FuelType,
		ActorID:       actorID,
		TransactionID: txID,
		StateBefore:   snapBefore,
		StateAfter:    fuel.Snapshot(tank, lots),
		Warning:       warning,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReconcileAll reconcilia todos los tanques, cada uno en su propia transacción. Un fallo en un
// tanque no detiene a los demás; los errores se devuelven unidos.
func (r *ReconciliationEngine) ReconcileAll(ctx context.Context, strategy, actorID string) ([]*entity.SyncResult, error) {
	tanks, err := InTx(ctx, r.tx, ReadOnlyTxOptions(), func(ctx context.Context, repos Repositories) ([]*entity.Tank, error) {
		return repos.Tanks.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	var (
		out  []*entity.SyncResult
		errs []error
	)
	for _, t := range tanks {
		res, err := r.Reconcile(ctx, t.ID, strategy, actorID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, res)
	}
	return out, errors.Join(errs...)
}

// RunDailyCheck pasada diaria de solo reporte sobre todos los tanques.
func (r *ReconciliationEngine) RunDailyCheck(ctx context.Context) ([]entity.ConsistencyReport, error) {
	reports, err := r.checker.CheckAll(ctx)
	if err != nil {
		return nil, err
	}
	bad := 0
	for _, rep := range reports {
		r.logReport(rep)
		if !rep.IsConsistent {
			bad++
		}
	}
	r.log.Info().Int("tanks", len(reports)).Int("inconsistent", bad).Msg("chequeo diario de consistencia")
	return reports, nil
}

// RunWeeklyReconcile pasada semanal ADJUST_MRN_RECORDS sobre todos los tanques.
func (r *ReconciliationEngine) RunWeeklyReconcile(ctx context.Context) ([]*entity.SyncResult, error) {
	return r.ReconcileAll(ctx, entity.StrategyAdjustMRNRecords, SchedulerActor)
}

func (r *ReconciliationEngine) logReport(rep entity.ConsistencyReport) {
	if rep.IsConsistent {
		r.log.Debug().Str("tank_id", rep.TankID).Msg("tanque consistente")
		return
	}
	r.log.Warn().
		Str("tank_id", rep.TankID).
		Str("tank_quantity", rep.TankQuantity.String()).
		Str("lot_sum", rep.LotSum.String()).
		Str("difference", rep.Difference.String()).
		Msg("deriva de consistencia detectada")
}
