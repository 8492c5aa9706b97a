// Package txretry contiene el único ciclo de reintento que comparten los TxRunner:
// backoff exponencial con jitter ante conflictos de serialización o deadlock.
package txretry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// Policy parámetros de reintento.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy 3 reintentos, 50ms inicial, 2s máximo.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p Policy) backOff(ctx context.Context, maxRetries int) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.MaxInterval = p.MaxDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.5
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx)
}

// Do ejecuta fn hasta que tenga éxito, devuelva un error no reintentable o se agoten los
// reintentos. maxRetries < 0 usa el de la política. attempt empieza en 1.
// Agotados los reintentos devuelve *domain.TransactionConflictError.
func Do(ctx context.Context, p Policy, maxRetries int, log zerolog.Logger, fn func(ctx context.Context, attempt int) error) error {
	if maxRetries < 0 {
		maxRetries = p.MaxRetries
	}
	attempt := 0
	retryable := false

	op := func() error {
		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		retryable = domain.IsRetryable(err)
		if !retryable {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("conflicto de transacción, reintentando")
	}

	err := backoff.RetryNotify(op, p.backOff(ctx, maxRetries), notify)
	if err == nil {
		return nil
	}
	if retryable && ctx.Err() == nil {
		log.Error().Err(err).Int("attempt", attempt).Msg("reintentos de transacción agotados")
		return &domain.TransactionConflictError{Attempts: attempt, Err: err}
	}
	return err
}
