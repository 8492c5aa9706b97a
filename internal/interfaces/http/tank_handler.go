package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/fuel-ledger/internal/application/dto"
	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/rs/zerolog"
)

// TankHandler registro de tanques y consultas de lotes y movimientos.
type TankHandler struct {
	tanks *ledger.TankService
	log   zerolog.Logger
}

// NewTankHandler construye el handler.
func NewTankHandler(tanks *ledger.TankService, log zerolog.Logger) *TankHandler {
	return &TankHandler{tanks: tanks, log: log}
}

// Create godoc
// @Summary      Registrar tanque
// @Tags         tanks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateTankRequest  true  "Datos del tanque"
// @Success      201   {object}  dto.TankResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/tanks [post]
func (h *TankHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateTankRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	tank, err := h.tanks.CreateTank(c.UserContext(), ledger.CreateTankInput{
		Name:     in.Name,
		Kind:     in.Kind,
		FuelType: in.FuelType,
		Capacity: in.Capacity,
		Status:   in.Status,
	}, GetUserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewTankResponse(tank))
}

// List godoc
// @Summary      Listar tanques
// @Tags         tanks
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.TankListResponse
// @Router       /api/tanks [get]
func (h *TankHandler) List(c *fiber.Ctx) error {
	tanks, err := h.tanks.ListTanks(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.TankListResponse{Items: make([]dto.TankResponse, 0, len(tanks))}
	for _, t := range tanks {
		out.Items = append(out.Items, dto.NewTankResponse(t))
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener tanque por ID
// @Tags         tanks
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del tanque"
// @Success      200  {object}  dto.TankResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/tanks/{id} [get]
func (h *TankHandler) GetByID(c *fiber.Ctx) error {
	tank, err := h.tanks.GetTank(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewTankResponse(tank))
}

// SetStatus cambia el estado operativo del tanque.
func (h *TankHandler) SetStatus(c *fiber.Ctx) error {
	var in dto.UpdateTankStatusRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	tank, err := h.tanks.SetStatus(c.UserContext(), c.Params("id"), in.Status, GetUserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewTankResponse(tank))
}

// Lots desglose por MRN en orden FIFO. ?all=true incluye lotes agotados.
func (h *TankHandler) Lots(c *fiber.Ctx) error {
	id := c.Params("id")
	lots, err := h.tanks.ListLots(c.UserContext(), id, c.QueryBool("all", false))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewLotListResponse(id, lots))
}

// Movements movimientos del tanque, más recientes primero.
func (h *TankHandler) Movements(c *fiber.Ctx) error {
	var q dto.MovementQuery
	if ok, err := bindQuery(c, &q); !ok {
		return err
	}
	q.DefaultPage()
	from, to := parseTime(q.From), parseTime(q.To)
	movs, err := h.tanks.ListMovements(c.UserContext(), c.Params("id"), from, to, q.Limit, q.Offset)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.MovementListResponse{
		Items: make([]dto.MovementResponse, 0, len(movs)),
		Page:  dto.PageResponse{Limit: q.Limit, Offset: q.Offset},
	}
	for _, m := range movs {
		out.Items = append(out.Items, dto.NewMovementResponse(m))
	}
	return c.JSON(out)
}

// parseTime ya validado como RFC3339; vacío es sin filtro.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
