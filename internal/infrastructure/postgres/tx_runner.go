package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/txretry"
	"github.com/rs/zerolog"
)

var _ ledger.TxRunner = (*TxRunner)(nil)

// TxRunnerConfig reintentos y límites de tiempo del runner.
type TxRunnerConfig struct {
	Retry          txretry.Policy
	AttemptTimeout time.Duration
	AcquireTimeout time.Duration
}

// TxRunner ejecuta unidades de trabajo dentro de una transacción PostgreSQL serializable.
type TxRunner struct {
	pool *pgxpool.Pool
	cfg  TxRunnerConfig
	log  zerolog.Logger
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool, cfg TxRunnerConfig, log zerolog.Logger) *TxRunner {
	if cfg.Retry == (txretry.Policy{}) {
		cfg.Retry = txretry.DefaultPolicy()
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 10 * time.Second
	}
	return &TxRunner{pool: pool, cfg: cfg, log: log}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Conflictos de serialización y deadlocks se reintentan con backoff.
func (r *TxRunner) Run(ctx context.Context, opts ledger.TxOptions, fn ledger.UnitOfWork) error {
	maxRetries := -1
	if opts.NoRetry {
		maxRetries = 0
	} else if opts.MaxRetries > 0 {
		maxRetries = opts.MaxRetries
	}
	return txretry.Do(ctx, r.cfg.Retry, maxRetries, r.log, func(ctx context.Context, attempt int) error {
		return r.attempt(ctx, opts, fn)
	})
}

func (r *TxRunner) attempt(ctx context.Context, opts ledger.TxOptions, fn ledger.UnitOfWork) error {
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, r.cfg.AcquireTimeout)
	conn, err := r.pool.Acquire(acquireCtx)
	cancelAcquire()
	if err != nil {
		return attemptError(ctx, "adquirir conexión", err)
	}
	defer conn.Release()

	actx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()

	tx, err := conn.BeginTx(actx, txOptions(opts))
	if err != nil {
		return attemptError(ctx, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	repos := ledger.Repositories{
		Tanks:     NewTankRepository(tx),
		Lots:      NewLotRepository(tx),
		Movements: NewFuelMovementRepository(tx),
		Audit:     NewAuditRepository(tx),
	}
	if err := fn(actx, repos); err != nil {
		return attemptError(ctx, "unit of work", err)
	}
	if err := tx.Commit(actx); err != nil {
		return attemptError(ctx, "commit transaction", err)
	}
	return nil
}

func txOptions(opts ledger.TxOptions) pgx.TxOptions {
	out := pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}
	switch opts.Isolation {
	case ledger.IsolationRepeatableRead:
		out.IsoLevel = pgx.RepeatableRead
	case ledger.IsolationReadCommitted:
		out.IsoLevel = pgx.ReadCommitted
	}
	if opts.ReadOnly {
		out.AccessMode = pgx.ReadOnly
	}
	return out
}
