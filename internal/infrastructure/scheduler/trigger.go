package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/rs/zerolog"
)

// Reconciler pasadas periódicas que expone el ledger.
type Reconciler interface {
	RunDailyCheck(ctx context.Context) ([]entity.ConsistencyReport, error)
	RunWeeklyReconcile(ctx context.Context) ([]*entity.SyncResult, error)
}

// Config horarios del trigger. El chequeo diario corre a partir de DailyHour y la
// reconciliación semanal el día WeeklyDay a partir de la misma hora.
type Config struct {
	DailyHour     int
	WeeklyDay     time.Weekday
	CheckInterval time.Duration
	Now           func() time.Time
}

// DefaultConfig 2am, domingo, revisión cada minuto.
func DefaultConfig() Config {
	return Config{DailyHour: 2, WeeklyDay: time.Sunday, CheckInterval: time.Minute}
}

// Trigger dispara el chequeo diario (solo reporte) y la reconciliación semanal ADJUST_MRN_RECORDS.
type Trigger struct {
	cfg        Config
	reconciler Reconciler
	log        zerolog.Logger

	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	lastDaily  string
	lastWeekly string
}

// NewTrigger construye el trigger.
func NewTrigger(cfg Config, reconciler Reconciler, log zerolog.Logger) *Trigger {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Trigger{cfg: cfg, reconciler: reconciler, log: log}
}

// Start inicia el ciclo en segundo plano.
func (t *Trigger) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	t.wg.Add(1)
	go t.loop(ctx)

	t.log.Info().
		Int("daily_hour", t.cfg.DailyHour).
		Str("weekly_day", t.cfg.WeeklyDay.String()).
		Dur("check_interval", t.cfg.CheckInterval).
		Msg("scheduler de consistencia iniciado")
}

// Stop detiene el ciclo y espera a que termine la pasada en curso o a que venza ctx.
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	cancel := t.cancel
	t.mu.Unlock()
	cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.log.Info().Msg("scheduler de consistencia detenido")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Trigger) loop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick evalúa la hora actual y dispara lo que corresponda. Cada pasada se completa como máximo
// una vez por fecha; una pasada fallida se reintenta en el siguiente tick.
func (t *Trigger) Tick(ctx context.Context) {
	now := t.cfg.Now()
	if now.Hour() < t.cfg.DailyHour {
		return
	}
	date := now.Format("2006-01-02")

	if t.claim(&t.lastDaily, date) {
		if _, err := t.reconciler.RunDailyCheck(ctx); err != nil {
			t.release(&t.lastDaily, date)
			t.log.Error().Err(err).Msg("chequeo diario de consistencia fallido")
		}
	}
	if now.Weekday() == t.cfg.WeeklyDay && t.claim(&t.lastWeekly, date) {
		results, err := t.reconciler.RunWeeklyReconcile(ctx)
		if err != nil {
			t.release(&t.lastWeekly, date)
			t.log.Error().Err(err).Int("tanks", len(results)).Msg("reconciliación semanal con errores")
			return
		}
		t.log.Info().Int("tanks", len(results)).Msg("reconciliación semanal terminada")
	}
}

// claim reserva la pasada de date; false si ya está hecha o en curso.
func (t *Trigger) claim(last *string, date string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if *last == date {
		return false
	}
	*last = date
	return true
}

func (t *Trigger) release(last *string, date string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if *last == date {
		*last = ""
	}
}
