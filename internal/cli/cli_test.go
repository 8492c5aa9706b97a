package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jhoicas/fuel-ledger/internal/application/dto"
	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/cli"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/memory"
	fuelredis "github.com/jhoicas/fuel-ledger/internal/infrastructure/redis"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/txretry"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	ups, downs int
	closed     bool
	version    uint
}

func (m *fakeMigrator) Up() error                    { m.ups++; m.version = 1; return nil }
func (m *fakeMigrator) Down() error                  { m.downs++; m.version = 0; return nil }
func (m *fakeMigrator) Version() (uint, bool, error) { return m.version, false, nil }
func (m *fakeMigrator) Close() error                 { m.closed = true; return nil }

type harness struct {
	svc      *ledger.Service
	store    *memory.Store
	migrator *fakeMigrator
	opens    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New(memory.Config{
		Retry: txretry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}, zerolog.Nop())
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &harness{
		svc:      ledger.New(store, fuelredis.NewTokenStore(client, ""), ledger.Config{}, zerolog.Nop()),
		store:    store,
		migrator: &fakeMigrator{},
	}
}

// run ejecuta fuelctl con args y devuelve la salida estándar.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	opts := &cli.RootOptions{
		Open: func(ctx context.Context) (*ledger.Service, func(), error) {
			h.opens++
			return h.svc, func() {}, nil
		},
		OpenMigrator: func() (cli.Migrator, error) { return h.migrator, nil },
	}
	buf := &bytes.Buffer{}
	cmd := cli.NewRootCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func (h *harness) tankWithFuel(t *testing.T, qty string) *entity.Tank {
	t.Helper()
	ctx := context.Background()
	tk, err := h.svc.Tanks.CreateTank(ctx, ledger.CreateTankInput{
		Name: "T1", Kind: entity.TankKindFixed, FuelType: "JET_A1", Capacity: decimal.RequireFromString("10000"),
	}, "admin")
	require.NoError(t, err)
	_, err = h.svc.Movements.Intake(ctx, ledger.IntakeInput{
		TankID: tk.ID, Quantity: decimal.RequireFromString(qty), DeclarationNumber: "MRN-1",
	}, ledger.OperationOptions{ActorID: "op-1"})
	require.NoError(t, err)
	return tk
}

func (h *harness) drift(t *testing.T, tankID, qty string) {
	t.Helper()
	err := h.store.Run(context.Background(), ledger.DefaultTxOptions(), func(ctx context.Context, repos ledger.Repositories) error {
		return repos.Tanks.UpdateQuantity(ctx, tankID, decimal.RequireFromString(qty))
	})
	require.NoError(t, err)
}

func TestRootCommand_Subcomandos(t *testing.T) {
	cmd := cli.NewRootCommand(&cli.RootOptions{})
	assert.Equal(t, "fuelctl", cmd.Use)
	for _, name := range []string{"migrate", "check", "reconcile", "override"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRootCommand_FormatoInvalido(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "check", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "formato inválido")
	assert.Zero(t, h.opens)
}

func TestMigrate_UpYVersion(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "migrate up: ok")
	assert.Equal(t, 1, h.migrator.ups)
	assert.True(t, h.migrator.closed)

	out, err = h.run(t, "migrate", "version", "--format", "json")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.EqualValues(t, 1, body["version"])
	assert.Equal(t, false, body["dirty"])

	_, err = h.run(t, "migrate", "down")
	require.NoError(t, err)
	assert.Equal(t, 1, h.migrator.downs)
}

func TestCheck_UnTanqueYTodos(t *testing.T) {
	h := newHarness(t)
	ok := h.tankWithFuel(t, "1000")
	bad := h.tankWithFuel(t, "500")
	h.drift(t, bad.ID, "480")

	out, err := h.run(t, "check", ok.ID)
	require.NoError(t, err)
	assert.Contains(t, out, ok.ID)
	assert.Contains(t, out, "OK")
	assert.NotContains(t, out, bad.ID)

	out, err = h.run(t, "check", "--format", "json")
	require.NoError(t, err)
	var list dto.ConsistencyListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Items, 2)
	byID := map[string]dto.ConsistencyReportResponse{}
	for _, r := range list.Items {
		byID[r.TankID] = r
	}
	assert.True(t, byID[ok.ID].IsConsistent)
	assert.False(t, byID[bad.ID].IsConsistent)
	assert.True(t, byID[bad.ID].Difference.Equal(decimal.RequireFromString("-20")))
}

func TestCheck_FailOnDrift(t *testing.T) {
	h := newHarness(t)
	tk := h.tankWithFuel(t, "500")
	h.drift(t, tk.ID, "520")

	out, err := h.run(t, "check", tk.ID, "--fail-on-drift")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cli.ErrDrift))
	assert.Contains(t, out, "DERIVA")
}

func TestCheck_TanqueInexistente(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "check", "no-existe")
	require.Error(t, err)
}

func TestReconcile_AjustaCantidadDelTanque(t *testing.T) {
	h := newHarness(t)
	tk := h.tankWithFuel(t, "800")
	h.drift(t, tk.ID, "790")

	out, err := h.run(t, "reconcile", "--strategy", entity.StrategyAdjustTankQuantity, "--tank", tk.ID, "--format", "json")
	require.NoError(t, err)
	var body struct {
		Items []dto.SyncResultResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.Len(t, body.Items, 1)
	assert.True(t, body.Items[0].Applied)
	assert.True(t, body.Items[0].After.IsConsistent)

	got, err := h.svc.Tanks.GetTank(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentQuantity.Equal(decimal.RequireFromString("800")))
}

func TestReconcile_TodosConSoloReporte(t *testing.T) {
	h := newHarness(t)
	tk := h.tankWithFuel(t, "300")
	h.drift(t, tk.ID, "310")

	out, err := h.run(t, "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, entity.StrategyReportOnly)
	assert.Contains(t, out, "aplicado=false")

	got, err := h.svc.Tanks.GetTank(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentQuantity.Equal(decimal.RequireFromString("310")))
}

func TestReconcile_EstrategiaDesconocida(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "reconcile", "--strategy", "BORRAR_TODO")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "estrategia desconocida")
	assert.Zero(t, h.opens)
}

func TestOverride_EmiteToken(t *testing.T) {
	h := newHarness(t)
	tk := h.tankWithFuel(t, "100")

	out, err := h.run(t, "override", "--tank", tk.ID, "--op", entity.MovementKindDispense, "--actor", "sup-1", "--format", "json")
	require.NoError(t, err)
	var resp dto.OverrideResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, tk.ID, resp.TankID)
	assert.Equal(t, 300, resp.ExpiresInSeconds)

	ok, err := h.svc.Overrides.Validate(context.Background(), tk.ID, entity.MovementKindDispense, resp.Token)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOverride_FlagsObligatorios(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "override", "--tank", "t-1")
	require.Error(t, err)
	assert.Zero(t, h.opens)
}
