package ledger_test

import (
	"context"
	"testing"

	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliacion_SoloReporteNoModifica(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "5000", "JET-A1")
	e.intake(t, tk.ID, "1000", "MRN1")
	e.drift(t, tk.ID, "1100")

	res, err := e.svc.Reconciler.Reconcile(ctx, tk.ID, entity.StrategyReportOnly, "sup-1")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.False(t, res.After.IsConsistent)
	assert.True(t, res.Before.Difference.Equal(dec("100")))
	assert.True(t, e.current(t, tk.ID).Equal(dec("1100")))

	entries, err := e.svc.Audit.List(ctx, repository.AuditFilter{OperationType: entity.AuditOpReconcile}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReconciliacion_AjustarCantidadDelTanqueEsIdempotente(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "5000", "JET-A1")
	e.intake(t, tk.ID, "1000", "MRN1")
	e.drift(t, tk.ID, "1100")

	res, err := e.svc.Reconciler.Reconcile(ctx, tk.ID, entity.StrategyAdjustTankQuantity, "sup-1")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.After.IsConsistent)
	assert.True(t, e.current(t, tk.ID).Equal(dec("1000")))

	again, err := e.svc.Reconciler.Reconcile(ctx, tk.ID, entity.StrategyAdjustTankQuantity, "sup-1")
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.True(t, e.current(t, tk.ID).Equal(dec("1000")))

	entries, err := e.svc.Audit.List(ctx, repository.AuditFilter{OperationType: entity.AuditOpReconcile}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].StateBefore.Quantity.Equal(dec("1100")))
	assert.True(t, entries[0].StateAfter.Quantity.Equal(dec("1000")))
}

func TestReconciliacion_AjustarLotes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "5000", "JET-A1")
	e.intake(t, tk.ID, "1000", "MRN1")
	e.intake(t, tk.ID, "500", "MRN2")
	e.drift(t, tk.ID, "900")

	res, err := e.svc.Reconciler.Reconcile(ctx, tk.ID, entity.StrategyAdjustMRNRecords, "sup-1")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.After.IsConsistent)
	assert.True(t, res.Unresolved.IsZero())
	require.Len(t, res.Adjustments, 2, "se descuenta desde el lote más reciente")

	lots := e.lots(t, tk.ID)
	assert.True(t, lots["MRN2"].RemainingQuantity.IsZero())
	assert.True(t, lots["MRN1"].RemainingQuantity.Equal(dec("900")))
	assert.True(t, e.current(t, tk.ID).Equal(dec("900")))
}

func TestReconciliacion_AjustarLotesSinLotesDejaResiduo(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "5000", "JET-A1")
	e.drift(t, tk.ID, "50")

	res, err := e.svc.Reconciler.Reconcile(ctx, tk.ID, entity.StrategyAdjustMRNRecords, "sup-1")
	require.NoError(t, err)
	assert.True(t, res.Unresolved.Equal(dec("50")))
	assert.False(t, res.After.IsConsistent)

	entries, err := e.svc.Audit.List(ctx, repository.AuditFilter{OperationType: entity.AuditOpReconcile}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].Warning)
}

func TestReconciliacion_SumaDeLotesSobreCapacidad(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "1000", "JET-A1")
	e.intake(t, tk.ID, "1000", "MRN1")
	e.drift(t, tk.ID, "900")
	_, err := e.svc.Movements.Intake(ctx, ledger.IntakeInput{TankID: tk.ID, Quantity: dec("100"), DeclarationNumber: "MRN2"}, operator)
	require.NoError(t, err)

	// lotes 1100 > capacidad 1000
	_, err = e.svc.Reconciler.Reconcile(ctx, tk.ID, entity.StrategyAdjustTankQuantity, "sup-1")
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.True(t, e.current(t, tk.ID).Equal(dec("1000")))
}

func TestReconciliacion_EstrategiaDesconocida(t *testing.T) {
	e := newEnv(t)
	tk := e.tank(t, "1000", "JET-A1")
	_, err := e.svc.Reconciler.Reconcile(context.Background(), tk.ID, "BORRAR_TODO", "sup-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReconciliacion_PasadasProgramadas(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ok := e.tank(t, "5000", "JET-A1")
	bad := e.tank(t, "5000", "JET-A1")
	e.intake(t, ok.ID, "1000", "MRN1")
	e.intake(t, bad.ID, "1000", "MRN2")
	e.drift(t, bad.ID, "1200")

	reports, err := e.svc.Reconciler.RunDailyCheck(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	inconsistent := 0
	for _, r := range reports {
		if !r.IsConsistent {
			inconsistent++
			assert.Equal(t, bad.ID, r.TankID)
		}
	}
	assert.Equal(t, 1, inconsistent)
	assert.True(t, e.current(t, bad.ID).Equal(dec("1200")), "el chequeo diario no corrige")

	results, err := e.svc.Reconciler.RunWeeklyReconcile(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.True(t, e.consistent(t, bad.ID))
	assert.True(t, e.lots(t, bad.ID)["MRN2"].RemainingQuantity.Equal(dec("1200")))

	entries, err := e.svc.Audit.List(ctx, repository.AuditFilter{ActorID: ledger.SchedulerActor}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, bad.ID, entries[0].Source.ID)
}

func TestConsistencia_LoteYTolerancia(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.tank(t, "5000", "JET-A1")
	b := e.tank(t, "5000", "JET-A1")
	e.intake(t, a.ID, "1000", "MRN1")
	e.intake(t, b.ID, "1000", "MRN1")
	e.drift(t, b.ID, "1000.005")

	batch, err := e.svc.Checker.CheckBatch(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Len(t, batch.Consistent, 2, "0.005 está dentro de la tolerancia por defecto")

	rep, err := e.svc.Checker.CheckWithTolerance(ctx, b.ID, dec("0.001"))
	require.NoError(t, err)
	assert.False(t, rep.IsConsistent)

	_, err = e.svc.Checker.CheckWithTolerance(ctx, b.ID, dec("-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.svc.Checker.CheckWithTolerance(ctx, b.ID, dec("0.0001"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.svc.Checker.Check(ctx, "inexistente")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
