// Package bootstrap arma el ledger a partir de la configuración; lo comparten cmd/api y cmd/fuelctl.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/postgres"
	fuelredis "github.com/jhoicas/fuel-ledger/internal/infrastructure/redis"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/txretry"
	"github.com/jhoicas/fuel-ledger/pkg/config"
	"github.com/jhoicas/fuel-ledger/pkg/logger"
)

// Runtime ledger armado más la función que libera pool y cliente Redis.
type Runtime struct {
	Ledger  *ledger.Service
	closers []func()
}

// Close libera los recursos en orden inverso de creación.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Options controla pasos opcionales del arranque.
type Options struct {
	// Migrate aplica las migraciones pendientes antes de abrir el pool.
	Migrate bool
}

// Build conecta el almacén (postgres o memory), Redis y construye el servicio del ledger.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Runtime, error) {
	rt := &Runtime{}
	retry := txretry.Policy{
		MaxRetries: cfg.Ledger.MaxRetries,
		BaseDelay:  cfg.Ledger.BaseDelay,
		MaxDelay:   cfg.Ledger.MaxDelay,
	}

	var runner ledger.TxRunner
	switch cfg.App.Store {
	case "memory":
		runner = memory.New(memory.Config{
			Retry:          retry,
			MaxConcurrent:  cfg.DB.MaxConns,
			AttemptTimeout: cfg.Ledger.AttemptTimeout,
			AcquireTimeout: cfg.Ledger.AcquireTimeout,
		}, log.Component("memory"))
		log.Warn().Msg("almacén en memoria: los datos se pierden al reiniciar")
	default:
		dsn := cfg.DB.ConnectionString()
		if opts.Migrate {
			m, err := postgres.NewMigrator(dsn, log.Component("migrate"))
			if err != nil {
				return nil, err
			}
			upErr := m.Up()
			_ = m.Close()
			if upErr != nil {
				return nil, upErr
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		runner = postgres.NewTxRunner(pool, postgres.TxRunnerConfig{
			Retry:          retry,
			AttemptTimeout: cfg.Ledger.AttemptTimeout,
			AcquireTimeout: cfg.Ledger.AcquireTimeout,
		}, log.Component("tx"))
	}

	client, err := fuelredis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("conexión a Redis: %w", err)
	}
	rt.closers = append(rt.closers, func() { _ = client.Close() })

	rt.Ledger = ledger.New(runner, fuelredis.NewTokenStore(client, ""), ledger.Config{
		Tolerance:   cfg.Ledger.Tolerance,
		OverrideTTL: cfg.Ledger.OverrideTTL,
	}, log.Component("ledger"))
	return rt, nil
}
