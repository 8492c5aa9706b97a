package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/pkg/jwt"
	"github.com/rs/zerolog"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger    *ledger.Service
	JWTSecret string
	Log       zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	supervisors := RequireRole(jwt.RoleSupervisor, jwt.RoleAdmin)
	admins := RequireRole(jwt.RoleAdmin)

	// Tanques
	tanks := api.Group("/tanks")
	tankHandler := NewTankHandler(deps.Ledger.Tanks, deps.Log)
	tanks.Get("/", tankHandler.List)
	tanks.Post("/", admins, tankHandler.Create)
	tanks.Get("/:id", tankHandler.GetByID)
	tanks.Patch("/:id/status", supervisors, tankHandler.SetStatus)
	tanks.Get("/:id/lots", tankHandler.Lots)
	tanks.Get("/:id/movements", tankHandler.Movements)

	// Movimientos
	movements := api.Group("/movements")
	movementHandler := NewMovementHandler(deps.Ledger.Movements, deps.Ledger.Tanks, deps.Log)
	movements.Post("/intake", movementHandler.Intake)
	movements.Post("/transfer", movementHandler.Transfer)
	movements.Post("/dispense", movementHandler.Dispense)
	movements.Post("/drain", movementHandler.Drain)
	movements.Post("/drain-reversal", movementHandler.ReverseDrain)
	movements.Post("/drain-sale", movementHandler.SellDrained)
	movements.Get("/:id", movementHandler.GetByID)

	// Consistencia y reconciliación
	control := NewControlHandler(deps.Ledger, deps.Log)
	consistency := api.Group("/consistency")
	consistency.Get("/", control.CheckAll)
	consistency.Post("/batch", control.CheckBatch)
	consistency.Post("/reconcile", supervisors, control.ReconcileAll)
	consistency.Get("/:id", control.CheckTank)
	consistency.Post("/:id/reconcile", supervisors, control.Reconcile)

	// Overrides (solo supervisores)
	api.Post("/overrides", supervisors, control.IssueOverride)

	// Auditoría
	api.Get("/audit", supervisors, control.AuditLog)
}
