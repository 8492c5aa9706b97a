package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/fuel-ledger/internal/application/dto"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// writeError traduce errores de dominio a respuestas HTTP.
func writeError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	var cv *domain.ConsistencyViolationError
	switch {
	case errors.As(err, &cv):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "CONSISTENCY_VIOLATION",
			Message: err.Error(),
			Drift: &dto.DriftDTO{
				TankID:       cv.TankID,
				TankQuantity: cv.TankQuantity.String(),
				LotSum:       cv.LotSum.String(),
				Difference:   cv.Difference.String(),
				Tolerance:    cv.ToleranceUsed.String(),
			},
		})
	case errors.Is(err, domain.ErrValidation):
		status, code := validationStatus(err)
		return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
	case errors.Is(err, domain.ErrTransactionConflict):
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "TRANSACTION_CONFLICT", Message: "conflicto de concurrencia, reintente"})
	case errors.Is(err, domain.ErrPersistence):
		log.Error().Err(err).Str("path", c.Path()).Msg("error de persistencia")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "PERSISTENCE", Message: "error de persistencia"})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
	}
}

func validationStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return fiber.StatusConflict, "CAPACITY_EXCEEDED"
	case errors.Is(err, domain.ErrDrainOverdrawn):
		return fiber.StatusConflict, "DRAIN_OVERDRAWN"
	case errors.Is(err, domain.ErrTankNotActive):
		return fiber.StatusConflict, "TANK_NOT_ACTIVE"
	case errors.Is(err, domain.ErrFuelTypeMismatch):
		return fiber.StatusBadRequest, "FUEL_TYPE_MISMATCH"
	case errors.Is(err, domain.ErrNotADrain):
		return fiber.StatusBadRequest, "NOT_A_DRAIN"
	default:
		return fiber.StatusBadRequest, "VALIDATION"
	}
}
