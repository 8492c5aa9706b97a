package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/fuel-ledger/internal/application/dto"
	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain/repository"
	"github.com/rs/zerolog"
)

// ControlHandler consistencia, reconciliación, overrides y auditoría.
type ControlHandler struct {
	svc *ledger.Service
	log zerolog.Logger
}

// NewControlHandler construye el handler.
func NewControlHandler(svc *ledger.Service, log zerolog.Logger) *ControlHandler {
	return &ControlHandler{svc: svc, log: log}
}

// CheckTank godoc
// @Summary      Chequear consistencia de un tanque
// @Tags         consistency
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del tanque"
// @Success      200  {object}  dto.ConsistencyReportResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/consistency/{id} [get]
func (h *ControlHandler) CheckTank(c *fiber.Ctx) error {
	rep, err := h.svc.Checker.Check(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewConsistencyReportResponse(rep))
}

// CheckAll chequea todos los tanques.
func (h *ControlHandler) CheckAll(c *fiber.Ctx) error {
	reports, err := h.svc.Checker.CheckAll(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ConsistencyListResponse{Items: dto.NewConsistencyReports(reports)})
}

// CheckBatch particiona los tanques indicados.
func (h *ControlHandler) CheckBatch(c *fiber.Ctx) error {
	var in dto.BatchCheckRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	batch, err := h.svc.Checker.CheckBatch(c.UserContext(), in.TankIDs)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.BatchConsistencyResponse{
		Consistent:   dto.NewConsistencyReports(batch.Consistent),
		Inconsistent: dto.NewConsistencyReports(batch.Inconsistent),
	})
}

// Reconcile godoc
// @Summary      Reconciliar un tanque
// @Tags         consistency
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID del tanque"
// @Param        body  body  dto.ReconcileRequest   true  "Estrategia"
// @Success      200   {object}  dto.SyncResultResponse
// @Router       /api/consistency/{id}/reconcile [post]
func (h *ControlHandler) Reconcile(c *fiber.Ctx) error {
	var in dto.ReconcileRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	res, err := h.svc.Reconciler.Reconcile(c.UserContext(), c.Params("id"), in.Strategy, GetUserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewSyncResultResponse(res))
}

// ReconcileAll reconcilia todos los tanques; los fallos parciales se informan con 207.
func (h *ControlHandler) ReconcileAll(c *fiber.Ctx) error {
	var in dto.ReconcileRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	results, err := h.svc.Reconciler.ReconcileAll(c.UserContext(), in.Strategy, GetUserID(c))
	items := make([]dto.SyncResultResponse, 0, len(results))
	for _, r := range results {
		items = append(items, dto.NewSyncResultResponse(r))
	}
	if err != nil {
		if len(results) == 0 {
			return writeError(c, h.log, err)
		}
		h.log.Warn().Err(err).Str("strategy", in.Strategy).Msg("reconciliación parcial")
		return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{"items": items, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"items": items})
}

// IssueOverride godoc
// @Summary      Emitir token de override (supervisor)
// @Tags         consistency
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.OverrideRequest  true  "Tanque y operación"
// @Success      201   {object}  dto.OverrideResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/overrides [post]
func (h *ControlHandler) IssueOverride(c *fiber.Ctx) error {
	var in dto.OverrideRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	ttl := time.Duration(in.TTLSeconds) * time.Second
	tok, err := h.svc.Overrides.IssueToken(c.UserContext(), in.TankID, in.OperationType, GetUserID(c), ttl)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OverrideResponse{
		Token:            tok.Token,
		TankID:           tok.TankID,
		OperationType:    tok.OperationType,
		ExpiresAt:        tok.ExpiresAt,
		ExpiresInSeconds: tok.ExpiresIn(tok.IssuedAt),
	})
}

// AuditLog consulta paginada del log de auditoría.
func (h *ControlHandler) AuditLog(c *fiber.Ctx) error {
	var q dto.AuditQuery
	if ok, err := bindQuery(c, &q); !ok {
		return err
	}
	q.DefaultPage()
	filter := repository.AuditFilter{
		OperationType: q.OperationType,
		EntityID:      q.EntityID,
		ActorID:       q.ActorID,
		TransactionID: q.TransactionID,
		From:          parseTime(q.From),
		To:            parseTime(q.To),
	}
	if q.Success != "" {
		ok := q.Success == "true"
		filter.Success = &ok
	}
	entries, err := h.svc.Audit.List(c.UserContext(), filter, q.Limit, q.Offset)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.AuditListResponse{
		Items: make([]dto.AuditEntryResponse, 0, len(entries)),
		Page:  dto.PageResponse{Limit: q.Limit, Offset: q.Offset},
	}
	for _, e := range entries {
		out.Items = append(out.Items, dto.NewAuditEntryResponse(e))
	}
	return c.JSON(out)
}
