package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/bootstrap"
	"github.com/jhoicas/fuel-ledger/internal/cli"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/fuel-ledger/pkg/config"
	"github.com/jhoicas/fuel-ledger/pkg/logger"
)

func main() {
	opts := &cli.RootOptions{
		Open:         openLedger,
		OpenMigrator: openMigrator,
	}
	if err := cli.NewRootCommand(opts).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, cli.ErrDrift) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// load configuración y logger a stderr, para no mezclar con la salida del comando.
func load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("cargar configuración: %w", err)
	}
	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: "fuelctl",
		Out:     os.Stderr,
	})
	return cfg, log, nil
}

func openLedger(ctx context.Context) (*ledger.Service, func(), error) {
	cfg, log, err := load()
	if err != nil {
		return nil, nil, err
	}
	rt, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		return nil, nil, err
	}
	return rt.Ledger, rt.Close, nil
}

func openMigrator() (cli.Migrator, error) {
	cfg, log, err := load()
	if err != nil {
		return nil, err
	}
	m, err := postgres.NewMigrator(cfg.DB.ConnectionString(), log.Component("migrate"))
	if err != nil {
		return nil, err
	}
	return m, nil
}
