package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var operator = ledger.OperationOptions{ActorID: "op-1"}

func TestMovimientos_EscenarioA_DespachoFIFO(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "10000", "JET-A1")

	e.intake(t, tk.ID, "6000", "MRN1")
	e.intake(t, tk.ID, "3000", "MRN2")
	mov, err := e.svc.Movements.Dispense(ctx, ledger.DispenseInput{
		TankID: tk.ID, Quantity: dec("7000"), DestinationDescription: "9A-CTK",
	}, operator)
	require.NoError(t, err)

	lots := e.lots(t, tk.ID)
	assert.True(t, lots["MRN1"].RemainingQuantity.IsZero())
	assert.True(t, lots["MRN2"].RemainingQuantity.Equal(dec("2000")))
	assert.True(t, e.current(t, tk.ID).Equal(dec("2000")))

	assert.Equal(t, entity.MovementKindDispense, mov.Kind)
	assert.Equal(t, entity.MovementStatusCommitted, mov.Status)
	assert.True(t, mov.Quantity.Equal(dec("-7000")))
	require.Len(t, mov.LotBreakdown, 2)
	assert.Equal(t, "MRN1", mov.LotBreakdown[0].DeclarationNumber)
	assert.True(t, mov.LotBreakdown[0].Quantity.Equal(dec("6000")))
	assert.Equal(t, "MRN2", mov.LotBreakdown[1].DeclarationNumber)
	assert.True(t, mov.LotBreakdown[1].Quantity.Equal(dec("1000")))
	assert.False(t, mov.HasShortfall())
	assert.True(t, e.consistent(t, tk.ID))
}

func TestMovimientos_EscenarioB_TrasladoHeredaMRN(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := e.tank(t, "10000", "JET-A1")
	dst := e.tank(t, "10000", "JET-A1")
	e.intake(t, src.ID, "5000", "MRN1")

	mov, err := e.svc.Movements.Transfer(ctx, ledger.TransferInput{
		SourceTankID: src.ID, DestinationTankID: dst.ID, Quantity: dec("3000"),
	}, operator)
	require.NoError(t, err)

	srcLots, dstLots := e.lots(t, src.ID), e.lots(t, dst.ID)
	assert.True(t, srcLots["MRN1"].RemainingQuantity.Equal(dec("2000")))
	require.Contains(t, dstLots, "MRN1")
	assert.True(t, dstLots["MRN1"].RemainingQuantity.Equal(dec("3000")))
	assert.True(t, dstLots["MRN1"].DateAdded.Equal(srcLots["MRN1"].DateAdded), "el lote destino conserva la posición FIFO")
	assert.True(t, e.current(t, src.ID).Equal(dec("2000")))
	assert.True(t, e.current(t, dst.ID).Equal(dec("3000")))

	assert.Equal(t, dst.ID, mov.DestinationTankID)
	assert.True(t, mov.Quantity.Equal(dec("-3000")))

	entries, err := e.svc.Audit.List(ctx, repository.AuditFilter{TransactionID: mov.TransactionID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2, "una entrada por tanque afectado")
	for _, a := range entries {
		assert.True(t, a.Success)
		assert.Equal(t, entity.MovementKindTransfer, a.OperationType)
		require.NotNil(t, a.StateBefore)
		require.NotNil(t, a.StateAfter)
	}

	assert.True(t, e.consistent(t, src.ID))
	assert.True(t, e.consistent(t, dst.ID))
}

func TestMovimientos_EscenarioC_DrenajeYRetornoConsistente(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "10000", "JET-A1")
	e.intake(t, tk.ID, "2000", "MRN1")

	drain, err := e.svc.Movements.Drain(ctx, ledger.DrainInput{TankID: tk.ID, Quantity: dec("500")}, operator)
	require.NoError(t, err)
	ret, err := e.svc.Movements.ReverseDrain(ctx, ledger.DrainReversalInput{
		DestinationTankID: tk.ID, Quantity: dec("500"), OriginalDrainID: drain.ID,
	}, operator)
	require.NoError(t, err)

	assert.Equal(t, drain.ID, ret.RelatedDrainID)
	assert.True(t, e.current(t, tk.ID).Equal(dec("2000")))
	assert.True(t, e.lots(t, tk.ID)["MRN1"].RemainingQuantity.Equal(dec("2000")))
	assert.True(t, e.consistent(t, tk.ID))
}

func TestMovimientos_EscenarioD_TipoDeCombustibleDistinto(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := e.tank(t, "10000", "JET-A1")
	dst := e.tank(t, "10000", "AVGAS-100LL")
	e.intake(t, src.ID, "1000", "MRN1")

	_, err := e.svc.Movements.Transfer(ctx, ledger.TransferInput{
		SourceTankID: src.ID, DestinationTankID: dst.ID, Quantity: dec("500"),
	}, operator)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrFuelTypeMismatch)

	assert.True(t, e.current(t, src.ID).Equal(dec("1000")))
	assert.True(t, e.current(t, dst.ID).IsZero())
	assert.Empty(t, e.lots(t, dst.ID))
}

func TestMovimientos_RetornoADistintoCombustibleSeRechaza(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	jet := e.tank(t, "10000", "JET-A1")
	avgas := e.tank(t, "10000", "AVGAS-100LL")
	e.intake(t, jet.ID, "1000", "MRN1")
	e.intake(t, avgas.ID, "1000", "MRN9")
	drain, err := e.svc.Movements.Drain(ctx, ledger.DrainInput{TankID: jet.ID, Quantity: dec("100")}, operator)
	require.NoError(t, err)

	_, err = e.svc.Movements.ReverseDrain(ctx, ledger.DrainReversalInput{
		DestinationTankID: avgas.ID, Quantity: dec("100"), OriginalDrainID: drain.ID,
	}, operator)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrFuelTypeMismatch)

	lots := e.lots(t, avgas.ID)
	require.Len(t, lots, 1)
	assert.True(t, lots["MRN9"].RemainingQuantity.Equal(dec("1000")))
	assert.True(t, e.current(t, avgas.ID).Equal(dec("1000")))
	assert.True(t, e.consistent(t, avgas.ID))

	// el drenaje sigue disponible para retornarlo a un tanque compatible
	_, err = e.svc.Movements.ReverseDrain(ctx, ledger.DrainReversalInput{
		DestinationTankID: jet.ID, Quantity: dec("100"), OriginalDrainID: drain.ID,
	}, operator)
	require.NoError(t, err)
	assert.True(t, e.current(t, jet.ID).Equal(dec("1000")))
}

func TestMovimientos_RetornoSinLotesCreaDeclaracionSintetica(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := e.tank(t, "10000", "JET-A1")
	dst := e.tank(t, "10000", "JET-A1")
	e.intake(t, src.ID, "1000", "MRN1")
	drain, err := e.svc.Movements.Drain(ctx, ledger.DrainInput{TankID: src.ID, Quantity: dec("400")}, operator)
	require.NoError(t, err)

	_, err = e.svc.Movements.ReverseDrain(ctx, ledger.DrainReversalInput{
		DestinationTankID: dst.ID, Quantity: dec("400"), OriginalDrainID: drain.ID,
	}, operator)
	require.NoError(t, err)

	lots := e.lots(t, dst.ID)
	require.Contains(t, lots, entity.DrainReturnDeclaration(drain.ID))
	assert.True(t, e.consistent(t, dst.ID))
}

func TestMovimientos_EntradaSinMRNUsaLoteSintetico(t *testing.T) {
	e := newEnv(t)
	tk := e.tank(t, "1000", "JET-A1")
	mov := e.intake(t, tk.ID, "100", "")

	lots := e.lots(t, tk.ID)
	require.Contains(t, lots, entity.UntrackedIntakeDeclaration(mov.ID))
	assert.Equal(t, entity.UntrackedIntakeDeclaration(mov.ID), mov.LotBreakdown[0].DeclarationNumber)
}

func TestMovimientos_EntradaMismoMRNAcumulaEnElLote(t *testing.T) {
	e := newEnv(t)
	tk := e.tank(t, "1000", "JET-A1")
	e.intake(t, tk.ID, "100", "MRN1")
	e.intake(t, tk.ID, "150", "MRN1")

	lots := e.lots(t, tk.ID)
	require.Len(t, lots, 1)
	assert.True(t, lots["MRN1"].RemainingQuantity.Equal(dec("250")))
	assert.True(t, lots["MRN1"].OriginalQuantity.Equal(dec("250")))
}

func TestMovimientos_Rechazos(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "1000", "JET-A1")
	e.intake(t, tk.ID, "800", "MRN1")

	t.Run("capacidad excedida", func(t *testing.T) {
		_, err := e.svc.Movements.Intake(ctx, ledger.IntakeInput{TankID: tk.ID, Quantity: dec("201"), DeclarationNumber: "MRN2"}, operator)
		assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	})
	t.Run("stock insuficiente", func(t *testing.T) {
		_, err := e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: tk.ID, Quantity: dec("801"), DestinationDescription: "X"}, operator)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	})
	t.Run("cantidad no positiva", func(t *testing.T) {
		_, err := e.svc.Movements.Drain(ctx, ledger.DrainInput{TankID: tk.ID, Quantity: dec("0")}, operator)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
	t.Run("más de tres decimales", func(t *testing.T) {
		_, err := e.svc.Movements.Intake(ctx, ledger.IntakeInput{TankID: tk.ID, Quantity: dec("0.0004"), DeclarationNumber: "MRN2"}, operator)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: tk.ID, Quantity: dec("1.2345"), DestinationDescription: "X"}, operator)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.NotContains(t, e.lots(t, tk.ID), "MRN2")
	})
	t.Run("tres decimales se aceptan", func(t *testing.T) {
		_, err := e.svc.Movements.Intake(ctx, ledger.IntakeInput{TankID: tk.ID, Quantity: dec("0.125"), DeclarationNumber: "MRN1"}, operator)
		require.NoError(t, err)
		_, err = e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: tk.ID, Quantity: dec("0.1250"), DestinationDescription: "X"}, operator)
		require.NoError(t, err)
	})
	t.Run("tanque inexistente", func(t *testing.T) {
		_, err := e.svc.Movements.Intake(ctx, ledger.IntakeInput{TankID: "nope", Quantity: dec("1")}, operator)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
	t.Run("traslado al mismo tanque", func(t *testing.T) {
		_, err := e.svc.Movements.Transfer(ctx, ledger.TransferInput{SourceTankID: tk.ID, DestinationTankID: tk.ID, Quantity: dec("1")}, operator)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	assert.True(t, e.current(t, tk.ID).Equal(dec("800")))
	assert.True(t, e.consistent(t, tk.ID))
}

func TestMovimientos_EstadoDelTanque(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "1000", "JET-A1")
	e.intake(t, tk.ID, "500", "MRN1")
	_, err := e.svc.Tanks.SetStatus(ctx, tk.ID, entity.TankStatusMaintenance, "sup-1")
	require.NoError(t, err)

	_, err = e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: tk.ID, Quantity: dec("10"), DestinationDescription: "X"}, operator)
	assert.ErrorIs(t, err, domain.ErrTankNotActive)

	_, err = e.svc.Movements.Drain(ctx, ledger.DrainInput{TankID: tk.ID, Quantity: dec("10")}, operator)
	assert.NoError(t, err, "el drenaje se admite en mantenimiento")
}

func TestMovimientos_VentaDeDrenaje(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "1000", "JET-A1")
	e.intake(t, tk.ID, "1000", "MRN1")
	drain, err := e.svc.Movements.Drain(ctx, ledger.DrainInput{TankID: tk.ID, Quantity: dec("300")}, operator)
	require.NoError(t, err)

	sale, err := e.svc.Movements.SellDrained(ctx, ledger.DrainSaleInput{
		OriginalDrainID: drain.ID, Quantity: dec("200"), BuyerName: "Reciclados SA",
	}, operator)
	require.NoError(t, err)
	assert.Empty(t, sale.TankID)
	assert.True(t, sale.Quantity.Equal(dec("-200")))
	assert.Equal(t, drain.ID, sale.RelatedDrainID)
	assert.True(t, e.current(t, tk.ID).Equal(dec("700")), "la venta no afecta tanques")

	_, err = e.svc.Movements.ReverseDrain(ctx, ledger.DrainReversalInput{
		DestinationTankID: tk.ID, Quantity: dec("101"), OriginalDrainID: drain.ID,
	}, operator)
	assert.ErrorIs(t, err, domain.ErrDrainOverdrawn)

	_, err = e.svc.Movements.ReverseDrain(ctx, ledger.DrainReversalInput{
		DestinationTankID: tk.ID, Quantity: dec("100"), OriginalDrainID: drain.ID,
	}, operator)
	require.NoError(t, err)

	entries, err := e.svc.Audit.List(ctx, repository.AuditFilter{OperationType: entity.MovementKindDrainSale}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.EntityTypeMovement, entries[0].Source.Type)
	assert.Equal(t, entity.EntityTypeBuyer, entries[0].Target.Type)
	assert.Equal(t, "JET-A1", entries[0].FuelType)
}

func TestMovimientos_ReferenciaQueNoEsDrenaje(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "1000", "JET-A1")
	e.intake(t, tk.ID, "1000", "MRN1")
	disp, err := e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: tk.ID, Quantity: dec("100"), DestinationDescription: "X"}, operator)
	require.NoError(t, err)

	_, err = e.svc.Movements.ReverseDrain(ctx, ledger.DrainReversalInput{
		DestinationTankID: tk.ID, Quantity: dec("10"), OriginalDrainID: disp.ID,
	}, operator)
	assert.ErrorIs(t, err, domain.ErrNotADrain)

	_, err = e.svc.Movements.SellDrained(ctx, ledger.DrainSaleInput{
		OriginalDrainID: "inexistente", Quantity: dec("10"), BuyerName: "B",
	}, operator)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMovimientos_FallosQuedanAuditados(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "1000", "JET-A1")
	e.intake(t, tk.ID, "100", "MRN1")

	_, err := e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: tk.ID, Quantity: dec("500"), DestinationDescription: "X"}, operator)
	require.Error(t, err)

	failed := false
	entries, err := e.svc.Audit.List(ctx, repository.AuditFilter{Success: &failed, EntityID: tk.ID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.MovementKindDispense, entries[0].OperationType)
	assert.NotEmpty(t, entries[0].ErrorMessage)
	assert.Equal(t, "op-1", entries[0].ActorID)
	assert.NotEmpty(t, entries[0].TransactionID)

	movs, err := e.svc.Tanks.ListMovements(ctx, tk.ID, nil, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, movs, 1, "el despacho rechazado no deja movimiento")
}

func TestMovimientos_FaltanteFIFOSeRegistraComoAviso(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "2000", "JET-A1")
	e.intake(t, tk.ID, "1000", "MRN1")
	e.drift(t, tk.ID, "1100")

	mov, err := e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: tk.ID, Quantity: dec("1100"), DestinationDescription: "X"},
		ledger.OperationOptions{ActorID: "op-1", SkipConsistencyCheck: true})
	require.NoError(t, err)
	assert.True(t, mov.Shortfall.Equal(dec("100")))
	assert.Contains(t, mov.Notes, "faltante")
	assert.True(t, e.current(t, tk.ID).IsZero())

	entries, err := e.svc.Audit.List(ctx, repository.AuditFilter{TransactionID: mov.TransactionID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].Warning)
	assert.True(t, e.consistent(t, tk.ID))
}

func TestMovimientos_IdaYVueltaMantieneConsistencia(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.tank(t, "10000", "JET-A1")
	b := e.tank(t, "10000", "JET-A1")

	e.intake(t, a.ID, "4000", "MRN1")
	e.intake(t, a.ID, "2500", "MRN2")
	_, err := e.svc.Movements.Transfer(ctx, ledger.TransferInput{SourceTankID: a.ID, DestinationTankID: b.ID, Quantity: dec("5000")}, operator)
	require.NoError(t, err)
	_, err = e.svc.Movements.Transfer(ctx, ledger.TransferInput{SourceTankID: b.ID, DestinationTankID: a.ID, Quantity: dec("1200.5")}, operator)
	require.NoError(t, err)
	_, err = e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: a.ID, Quantity: dec("2000.25"), DestinationDescription: "X"}, operator)
	require.NoError(t, err)

	assert.True(t, e.consistent(t, a.ID))
	assert.True(t, e.consistent(t, b.ID))
	total := e.current(t, a.ID).Add(e.current(t, b.ID))
	assert.True(t, total.Equal(dec("4499.75")))
}

func TestMovimientos_DespachosConcurrentesSoloUnoConfirma(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.tank(t, "10000", "JET-A1")
	e.intake(t, tk.ID, "1000", "MRN1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: tk.ID, Quantity: dec("700"), DestinationDescription: "X"}, operator)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrTransactionConflict), err)
	}
	assert.Equal(t, 1, ok)
	assert.True(t, e.current(t, tk.ID).Equal(dec("300")))
	assert.True(t, e.consistent(t, tk.ID))
}
