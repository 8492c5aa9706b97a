//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/postgres"
	fuelredis "github.com/jhoicas/fuel-ledger/internal/infrastructure/redis"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/txretry"
	"github.com/jhoicas/fuel-ledger/pkg/config"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type env struct {
	svc    *ledger.Service
	runner *postgres.TxRunner
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fuel_ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	mig, err := postgres.NewMigrator(dsn, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, mig.Up())
	require.NoError(t, mig.Close())

	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: dsn, MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runner := postgres.NewTxRunner(pool, postgres.TxRunnerConfig{
		Retry: txretry.Policy{MaxRetries: 5, BaseDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond},
	}, zerolog.Nop())

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &env{
		svc:    ledger.New(runner, fuelredis.NewTokenStore(client, ""), ledger.Config{}, zerolog.Nop()),
		runner: runner,
	}
}

func (e *env) tank(t *testing.T, capacity string) *entity.Tank {
	t.Helper()
	tk, err := e.svc.Tanks.CreateTank(context.Background(), ledger.CreateTankInput{
		Name: "T", Kind: entity.TankKindFixed, FuelType: "JET-A1", Capacity: dec(capacity),
	}, "admin")
	require.NoError(t, err)
	return tk
}

func TestPostgres_EscenarioA(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tk := e.tank(t, "10000")
	opts := ledger.OperationOptions{ActorID: "op-1"}

	_, err := e.svc.Movements.Intake(ctx, ledger.IntakeInput{TankID: tk.ID, Quantity: dec("6000"), DeclarationNumber: "MRN1"}, opts)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = e.svc.Movements.Intake(ctx, ledger.IntakeInput{TankID: tk.ID, Quantity: dec("3000"), DeclarationNumber: "MRN2"}, opts)
	require.NoError(t, err)
	mov, err := e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: tk.ID, Quantity: dec("7000"), DestinationDescription: "LY-ABC"}, opts)
	require.NoError(t, err)
	require.Len(t, mov.LotBreakdown, 2)

	lots, err := e.svc.Tanks.ListLots(ctx, tk.ID, true)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.True(t, lots[0].RemainingQuantity.IsZero())
	assert.True(t, lots[1].RemainingQuantity.Equal(dec("2000")))

	got, err := e.svc.Tanks.GetTank(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentQuantity.Equal(dec("2000")))

	rep, err := e.svc.Checker.Check(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, rep.IsConsistent)

	stored, err := e.svc.Tanks.GetMovement(ctx, mov.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MovementStatusCommitted, stored.Status)
	assert.Len(t, stored.LotBreakdown, 2)
}

func TestPostgres_DrenajeRetornoYVenta(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tk := e.tank(t, "5000")
	opts := ledger.OperationOptions{ActorID: "op-1"}

	_, err := e.svc.Movements.Intake(ctx, ledger.IntakeInput{TankID: tk.ID, Quantity: dec("1000"), DeclarationNumber: "MRN1"}, opts)
	require.NoError(t, err)
	drain, err := e.svc.Movements.Drain(ctx, ledger.DrainInput{TankID: tk.ID, Quantity: dec("500")}, opts)
	require.NoError(t, err)

	_, err = e.svc.Movements.ReverseDrain(ctx, ledger.DrainReversalInput{DestinationTankID: tk.ID, Quantity: dec("300"), OriginalDrainID: drain.ID}, opts)
	require.NoError(t, err)
	_, err = e.svc.Movements.SellDrained(ctx, ledger.DrainSaleInput{OriginalDrainID: drain.ID, Quantity: dec("200"), BuyerName: "Reciclados SA"}, opts)
	require.NoError(t, err)

	_, err = e.svc.Movements.SellDrained(ctx, ledger.DrainSaleInput{OriginalDrainID: drain.ID, Quantity: dec("1"), BuyerName: "Otro"}, opts)
	assert.ErrorIs(t, err, domain.ErrDrainOverdrawn)

	rep, err := e.svc.Checker.Check(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, rep.IsConsistent)
	assert.True(t, rep.TankQuantity.Equal(dec("800")))
}

func TestPostgres_DespachosConcurrentes(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tk := e.tank(t, "10000")
	_, err := e.svc.Movements.Intake(ctx, ledger.IntakeInput{TankID: tk.ID, Quantity: dec("1000"), DeclarationNumber: "MRN1"}, ledger.OperationOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Movements.Dispense(ctx, ledger.DispenseInput{TankID: tk.ID, Quantity: dec("700"), DestinationDescription: "A"}, ledger.OperationOptions{})
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

	got, err := e.svc.Tanks.GetTank(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentQuantity.Equal(dec("300")))
}

func TestPostgres_RestriccionCheckEsPersistenceError(t *testing.T) {
	e := setup(t)
	tk := e.tank(t, "100")
	err := e.runner.Run(context.Background(), ledger.DefaultTxOptions(), func(ctx context.Context, repos ledger.Repositories) error {
		return repos.Tanks.UpdateQuantity(ctx, tk.ID, dec("101"))
	})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}
