package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/fuel-ledger/internal/bootstrap"
	"github.com/jhoicas/fuel-ledger/internal/infrastructure/scheduler"
	httpRouter "github.com/jhoicas/fuel-ledger/internal/interfaces/http"
	"github.com/jhoicas/fuel-ledger/pkg/config"
	"github.com/jhoicas/fuel-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("store", cfg.App.Store).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{Migrate: true})
	if err != nil {
		log.Fatal().Err(err).Msg("arranque del ledger")
	}
	defer rt.Close()

	var trigger *scheduler.Trigger
	if cfg.Scheduler.Enabled {
		trigger = scheduler.NewTrigger(scheduler.Config{
			DailyHour:     cfg.Scheduler.DailyHour,
			WeeklyDay:     cfg.Scheduler.WeeklyDay,
			CheckInterval: cfg.Scheduler.CheckInterval,
		}, rt.Ledger.Reconciler, log.Component("scheduler"))
		trigger.Start(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Ledger:    rt.Ledger,
		JWTSecret: cfg.JWT.Secret,
		Log:       log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("detener scheduler")
		}
	}
	stop()

	log.Info().Msg("aplicación detenida")
}
