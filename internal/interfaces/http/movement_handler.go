package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/fuel-ledger/internal/application/dto"
	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/rs/zerolog"
)

// HeaderOverrideToken cabecera con el token de override emitido por un supervisor.
const HeaderOverrideToken = "X-Override-Token"

// MovementHandler expone las seis operaciones de movimiento.
type MovementHandler struct {
	movements *ledger.MovementService
	tanks     *ledger.TankService
	log       zerolog.Logger
}

// NewMovementHandler construye el handler.
func NewMovementHandler(movements *ledger.MovementService, tanks *ledger.TankService, log zerolog.Logger) *MovementHandler {
	return &MovementHandler{movements: movements, tanks: tanks, log: log}
}

// Intake godoc
// @Summary      Registrar entrada de combustible
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.IntakeRequest  true  "Entrada"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements/intake [post]
func (h *MovementHandler) Intake(c *fiber.Ctx) error {
	var in dto.IntakeRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	mov, err := h.movements.Intake(c.UserContext(), ledger.IntakeInput{
		TankID:            in.TankID,
		Quantity:          in.Quantity,
		DeclarationNumber: in.DeclarationNumber,
		Notes:             in.Notes,
	}, h.options(c, false))
	return h.respond(c, mov, err)
}

// Transfer godoc
// @Summary      Trasladar combustible entre tanques
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferRequest  true  "Traslado"
// @Param        X-Override-Token  header  string  false  "Token de override"
// @Success      201   {object}  dto.MovementResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements/transfer [post]
func (h *MovementHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	if in.SkipCheck && !canSkipCheck(c) {
		return forbiddenSkip(c)
	}
	mov, err := h.movements.Transfer(c.UserContext(), ledger.TransferInput{
		SourceTankID:      in.SourceTankID,
		DestinationTankID: in.DestinationTankID,
		Quantity:          in.Quantity,
		Notes:             in.Notes,
	}, h.options(c, in.SkipCheck))
	return h.respond(c, mov, err)
}

// Dispense despacho a aeronave.
func (h *MovementHandler) Dispense(c *fiber.Ctx) error {
	var in dto.DispenseRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	if in.SkipCheck && !canSkipCheck(c) {
		return forbiddenSkip(c)
	}
	mov, err := h.movements.Dispense(c.UserContext(), ledger.DispenseInput{
		TankID:                 in.TankID,
		Quantity:               in.Quantity,
		DestinationDescription: in.DestinationDescription,
		Notes:                  in.Notes,
	}, h.options(c, in.SkipCheck))
	return h.respond(c, mov, err)
}

// Drain drenaje de prueba o filtrado.
func (h *MovementHandler) Drain(c *fiber.Ctx) error {
	var in dto.DrainRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	if in.SkipCheck && !canSkipCheck(c) {
		return forbiddenSkip(c)
	}
	mov, err := h.movements.Drain(c.UserContext(), ledger.DrainInput{
		TankID:   in.TankID,
		Quantity: in.Quantity,
		Notes:    in.Notes,
	}, h.options(c, in.SkipCheck))
	return h.respond(c, mov, err)
}

// ReverseDrain retorno de combustible drenado.
func (h *MovementHandler) ReverseDrain(c *fiber.Ctx) error {
	var in dto.DrainReversalRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	mov, err := h.movements.ReverseDrain(c.UserContext(), ledger.DrainReversalInput{
		DestinationTankID: in.DestinationTankID,
		Quantity:          in.Quantity,
		OriginalDrainID:   in.OriginalDrainID,
		Notes:             in.Notes,
	}, h.options(c, false))
	return h.respond(c, mov, err)
}

// SellDrained venta de combustible drenado.
func (h *MovementHandler) SellDrained(c *fiber.Ctx) error {
	var in dto.DrainSaleRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	mov, err := h.movements.SellDrained(c.UserContext(), ledger.DrainSaleInput{
		OriginalDrainID: in.OriginalDrainID,
		Quantity:        in.Quantity,
		BuyerName:       in.BuyerName,
		Notes:           in.Notes,
	}, h.options(c, false))
	return h.respond(c, mov, err)
}

// GetByID godoc
// @Summary      Obtener movimiento por ID
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del movimiento"
// @Success      200  {object}  dto.MovementResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/movements/{id} [get]
func (h *MovementHandler) GetByID(c *fiber.Ctx) error {
	mov, err := h.tanks.GetMovement(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewMovementResponse(mov))
}

func (h *MovementHandler) options(c *fiber.Ctx, skip bool) ledger.OperationOptions {
	return ledger.OperationOptions{
		ActorID:              GetUserID(c),
		SkipConsistencyCheck: skip,
		OverrideToken:        c.Get(HeaderOverrideToken),
	}
}

func (h *MovementHandler) respond(c *fiber.Ctx, mov *entity.FuelMovement, err error) error {
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewMovementResponse(mov))
}

func forbiddenSkip(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "solo un supervisor puede omitir el chequeo de consistencia"})
}
