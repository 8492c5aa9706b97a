// Package memory implementa el ledger sobre un almacén en memoria con validación optimista
// serializable: cada transacción registra la versión de lo que leyó y al confirmar falla con
// conflicto si alguna de esas versiones cambió (gana el primero en confirmar).
// Se usa en pruebas y en modo APP_STORE=memory.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/txretry"
	"github.com/rs/zerolog"
)

var _ ledger.TxRunner = (*Store)(nil)

// Config parámetros del almacén.
type Config struct {
	Retry          txretry.Policy
	MaxConcurrent  int           // transacciones simultáneas (equivalente al pool)
	AttemptTimeout time.Duration // por intento
	AcquireTimeout time.Duration // espera por un cupo de transacción
}

func (c Config) withDefaults() Config {
	if c.Retry == (txretry.Policy{}) {
		c.Retry = txretry.DefaultPolicy()
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 16
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 10 * time.Second
	}
	return c
}

type lotRow struct {
	lot *entity.Lot
	seq int64
}

// Store estado confirmado más las versiones por clave usadas en la validación.
type Store struct {
	mu sync.RWMutex

	tanks     map[string]*entity.Tank
	lots      map[string]*lotRow
	movements map[string]*entity.FuelMovement
	movOrder  []string
	audit     []*entity.AuditEntry
	versions  map[string]uint64

	seq   atomic.Int64
	slots chan struct{}
	cfg   Config
	log   zerolog.Logger
}

// New crea un almacén vacío.
func New(cfg Config, log zerolog.Logger) *Store {
	cfg = cfg.withDefaults()
	return &Store{
		tanks:     make(map[string]*entity.Tank),
		lots:      make(map[string]*lotRow),
		movements: make(map[string]*entity.FuelMovement),
		versions:  make(map[string]uint64),
		slots:     make(chan struct{}, cfg.MaxConcurrent),
		cfg:       cfg,
		log:       log,
	}
}

// Run ejecuta fn en una transacción optimista, reintentando conflictos según la política.
func (s *Store) Run(ctx context.Context, opts ledger.TxOptions, fn ledger.UnitOfWork) error {
	maxRetries := -1
	if opts.NoRetry {
		maxRetries = 0
	} else if opts.MaxRetries > 0 {
		maxRetries = opts.MaxRetries
	}
	return txretry.Do(ctx, s.cfg.Retry, maxRetries, s.log, func(ctx context.Context, attempt int) error {
		return s.attempt(ctx, opts, fn)
	})
}

func (s *Store) attempt(ctx context.Context, opts ledger.TxOptions, fn ledger.UnitOfWork) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-s.slots }()

	actx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	t := newTxn(s, opts.ReadOnly)
	err := fn(actx, t.repositories())
	if err == nil {
		err = actx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: intento excedió %s", domain.ErrTransactionConflict, s.cfg.AttemptTimeout)
		}
		return err
	}
	return t.commit()
}

func (s *Store) acquire(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.AcquireTimeout)
	defer timer.Stop()
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: sin cupo de transacción tras %s", domain.ErrTransactionConflict, s.cfg.AcquireTimeout)
	}
}

// version debe llamarse con s.mu tomado.
func (s *Store) version(key string) uint64 {
	return s.versions[key]
}

func (s *Store) bump(key string) {
	s.versions[key]++
}

func tankKey(id string) string     { return "tank:" + id }
func lotsKey(tankID string) string { return "lots:" + tankID }
func drainKey(id string) string    { return "drain:" + id }
func movsKey(tankID string) string { return "movements:" + tankID }
func movKey(id string) string      { return "movement:" + id }

const tanksKey = "tanks"
