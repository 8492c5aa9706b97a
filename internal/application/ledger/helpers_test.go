package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/memory"
	fuelredis "github.com/jhoicas/fuel-ledger/internal/infrastructure/redis"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/txretry"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// clock avanza un segundo por lectura: el orden FIFO queda determinado por el orden de llamadas.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type env struct {
	svc   *ledger.Service
	store *memory.Store
	redis *miniredis.Miniredis
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New(memory.Config{
		Retry: txretry.Policy{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}, zerolog.Nop())

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := &clock{now: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)}
	svc := ledger.New(store, fuelredis.NewTokenStore(client, ""), ledger.Config{Now: clk.Now}, zerolog.Nop())
	return &env{svc: svc, store: store, redis: mr}
}

func (e *env) tank(t *testing.T, capacity, fuelType string) *entity.Tank {
	t.Helper()
	tk, err := e.svc.Tanks.CreateTank(context.Background(), ledger.CreateTankInput{
		Name: "Tanque", Kind: entity.TankKindFixed, FuelType: fuelType, Capacity: dec(capacity),
	}, "admin")
	require.NoError(t, err)
	return tk
}

func (e *env) intake(t *testing.T, tankID, qty, mrn string) *entity.FuelMovement {
	t.Helper()
	mov, err := e.svc.Movements.Intake(context.Background(), ledger.IntakeInput{
		TankID: tankID, Quantity: dec(qty), DeclarationNumber: mrn,
	}, ledger.OperationOptions{ActorID: "op-1"})
	require.NoError(t, err)
	return mov
}

func (e *env) current(t *testing.T, tankID string) decimal.Decimal {
	t.Helper()
	tk, err := e.svc.Tanks.GetTank(context.Background(), tankID)
	require.NoError(t, err)
	return tk.CurrentQuantity
}

func (e *env) lots(t *testing.T, tankID string) map[string]*entity.Lot {
	t.Helper()
	list, err := e.svc.Tanks.ListLots(context.Background(), tankID, true)
	require.NoError(t, err)
	out := make(map[string]*entity.Lot, len(list))
	for _, l := range list {
		out[l.DeclarationNumber] = l
	}
	return out
}

// drift fuerza la cantidad agregada sin tocar lotes, simulando una deriva.
func (e *env) drift(t *testing.T, tankID, qty string) {
	t.Helper()
	err := e.store.Run(context.Background(), ledger.DefaultTxOptions(), func(ctx context.Context, repos ledger.Repositories) error {
		return repos.Tanks.UpdateQuantity(ctx, tankID, dec(qty))
	})
	require.NoError(t, err)
}

func (e *env) consistent(t *testing.T, tankID string) bool {
	t.Helper()
	rep, err := e.svc.Checker.Check(context.Background(), tankID)
	require.NoError(t, err)
	return rep.IsConsistent
}
