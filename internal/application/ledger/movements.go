package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/fuel"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OperationOptions datos del actor y control del pre-chequeo de consistencia.
type OperationOptions struct {
	ActorID              string
	SkipConsistencyCheck bool
	OverrideToken        string
}

// IntakeInput entrada de combustible a un tanque. DeclarationNumber vacío genera un lote sintético.
type IntakeInput struct {
	TankID            string
	Quantity          decimal.Decimal
	DeclarationNumber string
	Notes             string
}

// TransferInput traslado entre tanques del mismo tipo de combustible.
type TransferInput struct {
	SourceTankID      string
	DestinationTankID string
	Quantity          decimal.Decimal
	Notes             string
}

// DispenseInput despacho a aeronave; el combustible sale del ledger.
type DispenseInput struct {
	TankID                 string
	Quantity               decimal.Decimal
	DestinationDescription string
	Notes                  string
}

// DrainInput drenaje (pruebas/filtrado); mecánicamente igual a un despacho.
type DrainInput struct {
	TankID   string
	Quantity decimal.Decimal
	Notes    string
}

// DrainReversalInput retorno de combustible drenado a un tanque.
type DrainReversalInput struct {
	DestinationTankID string
	Quantity          decimal.Decimal
	OriginalDrainID   string
	Notes             string
}

// DrainSaleInput venta de combustible drenado a un comprador externo.
type DrainSaleInput struct {
	OriginalDrainID string
	Quantity        decimal.Decimal
	BuyerName       string
	Notes           string
}

// MovementService ejecuta los movimientos de combustible. Cada operación es una única
// transacción serializable que actualiza agregado, lotes, registro de movimiento y auditoría.
type MovementService struct {
	tx        TxRunner
	alloc     *AllocationEngine
	checker   *ConsistencyChecker
	overrides *OverrideAuthority
	audit     *AuditLog
	now       func() time.Time
	log       zerolog.Logger
}

// NewMovementService construye el servicio de movimientos.
func NewMovementService(
	tx TxRunner,
	alloc *AllocationEngine,
	checker *ConsistencyChecker,
	overrides *OverrideAuthority,
	audit *AuditLog,
	cfg Config,
	log zerolog.Logger,
) *MovementService {
	cfg = cfg.withDefaults()
	return &MovementService{
		tx:        tx,
		alloc:     alloc,
		checker:   checker,
		overrides: overrides,
		audit:     audit,
		now:       cfg.Now,
		log:       log,
	}
}

// Intake registra una entrada de combustible.
func (s *MovementService) Intake(ctx context.Context, in IntakeInput, opts OperationOptions) (*entity.FuelMovement, error) {
	failure := s.failureEntry(entity.MovementKindIntake, tankRef(in.TankID), nil, in.Quantity, opts)
	if err := requirePositive(in.Quantity); err != nil {
		return s.fail(ctx, failure, err)
	}
	if in.TankID == "" {
		return s.fail(ctx, failure, domain.Invalid(domain.ErrInvalidInput, "tanque obligatorio"))
	}

	return s.execute(ctx, failure, func(ctx context.Context, repos Repositories, txID string) (*entity.FuelMovement, error) {
		tank, err := loadTank(ctx, repos, in.TankID, true)
		if err != nil {
			return nil, err
		}
		if !tank.IsActive() {
			return nil, domain.Invalid(domain.ErrTankNotActive, "tanque %s en estado %s", tank.ID, tank.Status)
		}
		newQty := tank.CurrentQuantity.Add(in.Quantity)
		if newQty.GreaterThan(tank.Capacity) {
			return nil, domain.Invalid(domain.ErrCapacityExceeded, "tanque %s: %s + %s > %s",
				tank.ID, tank.CurrentQuantity, in.Quantity, tank.Capacity)
		}
		before, err := snapshot(ctx, repos, tank)
		if err != nil {
			return nil, err
		}

		now := s.now()
		mov := s.newMovement(entity.MovementKindIntake, txID, tank.ID, in.Quantity, in.Notes, opts, now)
		decl := in.DeclarationNumber
		if decl == "" {
			decl = entity.UntrackedIntakeDeclaration(mov.ID)
		}
		lot, err := s.alloc.Produce(ctx, repos.Lots, tank.ID, in.Quantity, decl, now)
		if err != nil {
			return nil, err
		}
		if err := repos.Tanks.UpdateQuantity(ctx, tank.ID, newQty); err != nil {
			return nil, err
		}
		tank.CurrentQuantity = newQty
		mov.LotBreakdown = []entity.LotAllocation{{DeclarationNumber: decl, Quantity: in.Quantity, DateAdded: lot.DateAdded}}

		if err := s.persist(ctx, repos, mov); err != nil {
			return nil, err
		}
		after, err := snapshot(ctx, repos, tank)
		if err != nil {
			return nil, err
		}
		return mov, s.audit.Record(ctx, repos, &entity.AuditEntry{
			OperationType: entity.MovementKindIntake,
			Source:        entity.EntityRef{Type: entity.EntityTypeTank, ID: tank.ID},
			Target:        &entity.EntityRef{Type: entity.EntityTypeMovement, ID: mov.ID},
			Quantity:      in.Quantity,
			FuelType:      tank.FuelType,
			ActorID:       opts.ActorID,
			TransactionID: txID,
			StateBefore:   before,
			StateAfter:    after,
		})
	})
}

// Transfer traslada combustible entre dos tanques activos del mismo tipo. El lote destino
// hereda la declaración (y la fecha FIFO) del lote origen.
func (s *MovementService) Transfer(ctx context.Context, in TransferInput, opts OperationOptions) (*entity.FuelMovement, error) {
	failure := s.failureEntry(entity.MovementKindTransfer, tankRef(in.SourceTankID), tankRefPtr(in.DestinationTankID), in.Quantity, opts)
	if err := requirePositive(in.Quantity); err != nil {
		return s.fail(ctx, failure, err)
	}
	if in.SourceTankID == "" || in.DestinationTankID == "" || in.SourceTankID == in.DestinationTankID {
		return s.fail(ctx, failure, domain.Invalid(domain.ErrInvalidInput, "origen y destino deben ser tanques distintos"))
	}
	claim, err := s.claimOverride(ctx, in.SourceTankID, entity.MovementKindTransfer, opts)
	if err != nil {
		return s.fail(ctx, failure, err)
	}

	mov, err := s.execute(ctx, failure, func(ctx context.Context, repos Repositories, txID string) (*entity.FuelMovement, error) {
		locked, err := lockTanks(ctx, repos, in.SourceTankID, in.DestinationTankID)
		if err != nil {
			return nil, err
		}
		src, dst := locked[in.SourceTankID], locked[in.DestinationTankID]
		if src.FuelType != dst.FuelType {
			return nil, domain.Invalid(domain.ErrFuelTypeMismatch, "%s (%s) -> %s (%s)", src.ID, src.FuelType, dst.ID, dst.FuelType)
		}
		if !src.IsActive() || !dst.IsActive() {
			return nil, domain.Invalid(domain.ErrTankNotActive, "origen %s, destino %s", src.Status, dst.Status)
		}
		if src.CurrentQuantity.LessThan(in.Quantity) {
			return nil, domain.Invalid(domain.ErrInsufficientStock, "tanque %s tiene %s", src.ID, src.CurrentQuantity)
		}
		if dst.CurrentQuantity.Add(in.Quantity).GreaterThan(dst.Capacity) {
			return nil, domain.Invalid(domain.ErrCapacityExceeded, "tanque %s libre %s", dst.ID, dst.FreeCapacity())
		}
		if err := s.precheck(ctx, repos, src.ID, entity.MovementKindTransfer, opts, claim); err != nil {
			return nil, err
		}
		srcBefore, err := snapshot(ctx, repos, src)
		if err != nil {
			return nil, err
		}
		dstBefore, err := snapshot(ctx, repos, dst)
		if err != nil {
			return nil, err
		}

		res, err := s.alloc.Consume(ctx, repos.Lots, src.ID, in.Quantity)
		if err != nil {
			return nil, err
		}
		for _, b := range res.Breakdown {
			if _, err := s.alloc.Produce(ctx, repos.Lots, dst.ID, b.Quantity, b.DeclarationNumber, b.DateAdded); err != nil {
				return nil, err
			}
		}
		src.CurrentQuantity = src.CurrentQuantity.Sub(in.Quantity)
		dst.CurrentQuantity = dst.CurrentQuantity.Add(in.Quantity)
		if err := repos.Tanks.UpdateQuantity(ctx, src.ID, src.CurrentQuantity); err != nil {
			return nil, err
		}
		if err := repos.Tanks.UpdateQuantity(ctx, dst.ID, dst.CurrentQuantity); err != nil {
			return nil, err
		}

		mov := s.newMovement(entity.MovementKindTransfer, txID, src.ID, in.Quantity.Neg(), in.Notes, opts, s.now())
		mov.DestinationTankID = dst.ID
		mov.LotBreakdown = res.Breakdown
		mov.Shortfall = res.Shortfall
		warning := s.shortfallWarning(mov)
		if err := s.persist(ctx, repos, mov); err != nil {
			return nil, err
		}

		srcAfter, err := snapshot(ctx, repos, src)
		if err != nil {
			return nil, err
		}
		dstAfter, err := snapshot(ctx, repos, dst)
		if err != nil {
			return nil, err
		}
		if err := s.audit.Record(ctx, repos, &entity.AuditEntry{
			OperationType: entity.MovementKindTransfer,
			Source:        entity.EntityRef{Type: entity.EntityTypeTank, ID: src.ID},
			Target:        &entity.EntityRef{Type: entity.EntityTypeTank, ID: dst.ID},
			Quantity:      in.Quantity.Neg(),
			FuelType:      src.FuelType,
			ActorID:       opts.ActorID,
			TransactionID: txID,
			StateBefore:   srcBefore,
			StateAfter:    srcAfter,
			Warning:       warning,
		}); err != nil {
			return nil, err
		}
		return mov, s.audit.Record(ctx, repos, &entity.AuditEntry{
			OperationType: entity.MovementKindTransfer,
			Source:        entity.EntityRef{Type: entity.EntityTypeTank, ID: dst.ID},
			Target:        &entity.EntityRef{Type: entity.EntityTypeTank, ID: src.ID},
			Quantity:      in.Quantity,
			FuelType:      dst.FuelType,
			ActorID:       opts.ActorID,
			TransactionID: txID,
			StateBefore:   dstBefore,
			StateAfter:    dstAfter,
			Warning:       warning,
		})
	})
	s.settleOverride(ctx, claim, err)
	return mov, err
}

// Dispense despacha combustible a una aeronave.
func (s *MovementService) Dispense(ctx context.Context, in DispenseInput, opts OperationOptions) (*entity.FuelMovement, error) {
	target := &entity.EntityRef{Type: entity.EntityTypeExternal, ID: in.DestinationDescription}
	return s.withdraw(ctx, entity.MovementKindDispense, in.TankID, in.Quantity, in.Notes, target, opts, func(mov *entity.FuelMovement) {
		mov.DestinationDescription = in.DestinationDescription
	})
}

// Drain retira combustible para pruebas o filtrado. Se admite también en tanques en mantenimiento.
func (s *MovementService) Drain(ctx context.Context, in DrainInput, opts OperationOptions) (*entity.FuelMovement, error) {
	return s.withdraw(ctx, entity.MovementKindDrain, in.TankID, in.Quantity, in.Notes, nil, opts, nil)
}

// withdraw implementación común de Dispense y Drain: consumo FIFO + decremento del agregado.
func (s *MovementService) withdraw(
	ctx context.Context,
	kind, tankID string,
	quantity decimal.Decimal,
	notes string,
	target *entity.EntityRef,
	opts OperationOptions,
	decorate func(*entity.FuelMovement),
) (*entity.FuelMovement, error) {
	failure := s.failureEntry(kind, tankRef(tankID), target, quantity.Neg(), opts)
	if err := requirePositive(quantity); err != nil {
		return s.fail(ctx, failure, err)
	}
	if tankID == "" {
		return s.fail(ctx, failure, domain.Invalid(domain.ErrInvalidInput, "tanque obligatorio"))
	}
	claim, err := s.claimOverride(ctx, tankID, kind, opts)
	if err != nil {
		return s.fail(ctx, failure, err)
	}

	mov, err := s.execute(ctx, failure, func(ctx context.Context, repos Repositories, txID string) (*entity.FuelMovement, error) {
		tank, err := loadTank(ctx, repos, tankID, true)
		if err != nil {
			return nil, err
		}
		if !tank.IsActive() && !(kind == entity.MovementKindDrain && tank.Status == entity.TankStatusMaintenance) {
			return nil, domain.Invalid(domain.ErrTankNotActive, "tanque %s en estado %s", tank.ID, tank.Status)
		}
		if tank.CurrentQuantity.LessThan(quantity) {
			return nil, domain.Invalid(domain.ErrInsufficientStock, "tanque %s tiene %s, se piden %s", tank.ID, tank.CurrentQuantity, quantity)
		}
		if err := s.precheck(ctx, repos, tank.ID, kind, opts, claim); err != nil {
			return nil, err
		}
		before, err := snapshot(ctx, repos, tank)
		if err != nil {
			return nil, err
		}

		res, err := s.alloc.Consume(ctx, repos.Lots, tank.ID, quantity)
		if err != nil {
			return nil, err
		}
		tank.CurrentQuantity = tank.CurrentQuantity.Sub(quantity)
		if err := repos.Tanks.UpdateQuantity(ctx, tank.ID, tank.CurrentQuantity); err != nil {
			return nil, err
		}

		mov := s.newMovement(kind, txID, tank.ID, quantity.Neg(), notes, opts, s.now())
		mov.LotBreakdown = res.Breakdown
		mov.Shortfall = res.Shortfall
		if decorate != nil {
			decorate(mov)
		}
		warning := s.shortfallWarning(mov)
		if err := s.persist(ctx, repos, mov); err != nil {
			return nil, err
		}
		after, err := snapshot(ctx, repos, tank)
		if err != nil {
			return nil, err
		}
		auditTarget := target
		if auditTarget == nil {
			auditTarget = &entity.EntityRef{Type: entity.EntityTypeMovement, ID: mov.ID}
		}
		return mov, s.audit.Record(ctx, repos, &entity.AuditEntry{
			OperationType: kind,
			Source:        entity.EntityRef{Type: entity.EntityTypeTank, ID: tank.ID},
			Target:        auditTarget,
			Quantity:      quantity.Neg(),
			FuelType:      tank.FuelType,
			ActorID:       opts.ActorID,
			TransactionID: txID,
			StateBefore:   before,
			StateAfter:    after,
			Warning:       warning,
		})
	})
	s.settleOverride(ctx, claim, err)
	return mov, err
}

// ReverseDrain devuelve combustible drenado a un tanque. La cantidad no puede superar lo drenado
// menos lo ya devuelto o vendido contra el mismo drenaje.
func (s *MovementService) ReverseDrain(ctx context.Context, in DrainReversalInput, opts OperationOptions) (*entity.FuelMovement, error) {
	failure := s.failureEntry(entity.MovementKindDrainReversal, tankRef(in.DestinationTankID),
		&entity.EntityRef{Type: entity.EntityTypeMovement, ID: in.OriginalDrainID}, in.Quantity, opts)
	if err := requirePositive(in.Quantity); err != nil {
		return s.fail(ctx, failure, err)
	}
	if in.DestinationTankID == "" || in.OriginalDrainID == "" {
		return s.fail(ctx, failure, domain.Invalid(domain.ErrInvalidInput, "tanque destino y drenaje son obligatorios"))
	}

	return s.execute(ctx, failure, func(ctx context.Context, repos Repositories, txID string) (*entity.FuelMovement, error) {
		drain, err := s.drainWithBalance(ctx, repos, in.OriginalDrainID, in.Quantity)
		if err != nil {
			return nil, err
		}
		tank, err := loadTank(ctx, repos, in.DestinationTankID, true)
		if err != nil {
			return nil, err
		}
		drained, err := loadTank(ctx, repos, drain.TankID, false)
		if err != nil {
			return nil, err
		}
		if drained.FuelType != tank.FuelType {
			return nil, domain.Invalid(domain.ErrFuelTypeMismatch, "drenaje %s de %s (%s) -> %s (%s)",
				drain.ID, drained.ID, drained.FuelType, tank.ID, tank.FuelType)
		}
		if !tank.IsActive() {
			return nil, domain.Invalid(domain.ErrTankNotActive, "tanque %s en estado %s", tank.ID, tank.Status)
		}
		newQty := tank.CurrentQuantity.Add(in.Quantity)
		if newQty.GreaterThan(tank.Capacity) {
			return nil, domain.Invalid(domain.ErrCapacityExceeded, "tanque %s libre %s", tank.ID, tank.FreeCapacity())
		}
		before, err := snapshot(ctx, repos, tank)
		if err != nil {
			return nil, err
		}

		lot, err := s.alloc.ProduceIntoLatest(ctx, repos.Lots, tank.ID, in.Quantity, entity.DrainReturnDeclaration(drain.ID))
		if err != nil {
			return nil, err
		}
		if err := repos.Tanks.UpdateQuantity(ctx, tank.ID, newQty); err != nil {
			return nil, err
		}
		tank.CurrentQuantity = newQty

		mov := s.newMovement(entity.MovementKindDrainReversal, txID, tank.ID, in.Quantity, in.Notes, opts, s.now())
		mov.RelatedDrainID = drain.ID
		mov.LotBreakdown = []entity.LotAllocation{{DeclarationNumber: lot.DeclarationNumber, Quantity: in.Quantity, DateAdded: lot.DateAdded}}
		if err := s.persist(ctx, repos, mov); err != nil {
			return nil, err
		}
		after, err := snapshot(ctx, repos, tank)
		if err != nil {
			return nil, err
		}
		return mov, s.audit.Record(ctx, repos, &entity.AuditEntry{
			OperationType: entity.MovementKindDrainReversal,
			Source:        entity.EntityRef{Type: entity.EntityTypeTank, ID: tank.ID},
			Target:        &entity.EntityRef{Type: entity.EntityTypeMovement, ID: drain.ID},
			Quantity:      in.Quantity,
			FuelType:      tank.FuelType,
			ActorID:       opts.ActorID,
			TransactionID: txID,
			StateBefore:   before,
			StateAfter:    after,
		})
	})
}

// SellDrained registra la venta de combustible drenado. No afecta ningún tanque; queda
// registrada solo para trazabilidad.
func (s *MovementService) SellDrained(ctx context.Context, in DrainSaleInput, opts OperationOptions) (*entity.FuelMovement, error) {
	buyer := &entity.EntityRef{Type: entity.EntityTypeBuyer, ID: in.BuyerName}
	failure := s.failureEntry(entity.MovementKindDrainSale,
		entity.EntityRef{Type: entity.EntityTypeMovement, ID: in.OriginalDrainID}, buyer, in.Quantity.Neg(), opts)
	if err := requirePositive(in.Quantity); err != nil {
		return s.fail(ctx, failure, err)
	}
	if in.OriginalDrainID == "" || in.BuyerName == "" {
		return s.fail(ctx, failure, domain.Invalid(domain.ErrInvalidInput, "drenaje y comprador son obligatorios"))
	}

	return s.execute(ctx, failure, func(ctx context.Context, repos Repositories, txID string) (*entity.FuelMovement, error) {
		drain, err := s.drainWithBalance(ctx, repos, in.OriginalDrainID, in.Quantity)
		if err != nil {
			return nil, err
		}
		fuelType := ""
		if tank, err := repos.Tanks.GetByID(ctx, drain.TankID); err != nil {
			return nil, err
		} else if tank != nil {
			fuelType = tank.FuelType
		}

		mov := s.newMovement(entity.MovementKindDrainSale, txID, "", in.Quantity.Neg(), in.Notes, opts, s.now())
		mov.RelatedDrainID = drain.ID
		mov.BuyerName = in.BuyerName
		if err := s.persist(ctx, repos, mov); err != nil {
			return nil, err
		}
		return mov, s.audit.Record(ctx, repos, &entity.AuditEntry{
			OperationType: entity.MovementKindDrainSale,
			Source:        entity.EntityRef{Type: entity.EntityTypeMovement, ID: drain.ID},
			Target:        buyer,
			Quantity:      in.Quantity.Neg(),
			FuelType:      fuelType,
			ActorID:       opts.ActorID,
			TransactionID: txID,
		})
	})
}

// drainWithBalance carga el drenaje original y verifica que quantity no supere su saldo pendiente
// (drenado - devuelto - vendido), calculado por referencia explícita al drenaje.
func (s *MovementService) drainWithBalance(ctx context.Context, repos Repositories, drainID string, quantity decimal.Decimal) (*entity.FuelMovement, error) {
	drain, err := repos.Movements.GetByID(ctx, drainID)
	if err != nil {
		return nil, err
	}
	if drain == nil {
		return nil, domain.Invalid(domain.ErrNotFound, "drenaje %s", drainID)
	}
	if drain.Kind != entity.MovementKindDrain {
		return nil, domain.Invalid(domain.ErrNotADrain, "movimiento %s es %s", drain.ID, drain.Kind)
	}
	settled, err := repos.Movements.SumSettledAgainstDrain(ctx, drain.ID)
	if err != nil {
		return nil, err
	}
	available := drain.Quantity.Abs().Sub(settled)
	if quantity.GreaterThan(available) {
		return nil, domain.Invalid(domain.ErrDrainOverdrawn, "drenaje %s: disponible %s, solicitado %s", drain.ID, available, quantity)
	}
	return drain, nil
}

// execute corre la unidad de trabajo en el TxRunner y registra auditoría de fallo si termina en error.
func (s *MovementService) execute(
	ctx context.Context,
	failure *entity.AuditEntry,
	fn func(ctx context.Context, repos Repositories, txID string) (*entity.FuelMovement, error),
) (*entity.FuelMovement, error) {
	txID := uuid.New().String()
	mov, err := InTx(ctx, s.tx, DefaultTxOptions(), func(ctx context.Context, repos Repositories) (*entity.FuelMovement, error) {
		return fn(ctx, repos, txID)
	})
	if err != nil {
		failure.TransactionID = txID
		return s.fail(ctx, failure, err)
	}
	ev := s.log.Info()
	if mov.HasShortfall() {
		ev = s.log.Warn().Str("shortfall", mov.Shortfall.String())
	}
	ev.Str("operation", mov.Kind).
		Str("movement_id", mov.ID).
		Str("tank_id", mov.TankID).
		Str("transaction_id", txID).
		Str("quantity", mov.Quantity.String()).
		Msg("movimiento registrado")
	return mov, nil
}

func (s *MovementService) fail(ctx context.Context, failure *entity.AuditEntry, err error) (*entity.FuelMovement, error) {
	if failure.TransactionID == "" {
		failure.TransactionID = uuid.New().String()
	}
	s.log.Warn().Err(err).
		Str("operation", failure.OperationType).
		Str("tank_id", failure.Source.ID).
		Str("transaction_id", failure.TransactionID).
		Msg("movimiento rechazado")
	s.audit.RecordFailure(context.WithoutCancel(ctx), failure, err)
	return nil, err
}

// overrideClaim token reclamado para una operación y si el pre-chequeo llegó a necesitarlo.
type overrideClaim struct {
	token *entity.OverrideToken
	used  bool
}

// claimOverride reclama el token fuera de la transacción. settleOverride lo devuelve si no se usó.
func (s *MovementService) claimOverride(ctx context.Context, tankID, kind string, opts OperationOptions) (*overrideClaim, error) {
	claim := &overrideClaim{}
	if opts.OverrideToken == "" || opts.SkipConsistencyCheck {
		return claim, nil
	}
	tok, err := s.overrides.Claim(ctx, tankID, kind, opts.OverrideToken)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		s.log.Warn().Str("tank_id", tankID).Str("operation", kind).Msg("token de override rechazado")
	}
	claim.token = tok
	return claim, nil
}

// settleOverride devuelve el token si la operación falló o si el tanque estaba consistente y
// el override no hizo falta.
func (s *MovementService) settleOverride(ctx context.Context, claim *overrideClaim, err error) {
	if claim == nil || claim.token == nil || (err == nil && claim.used) {
		return
	}
	if rerr := s.overrides.Release(context.WithoutCancel(ctx), claim.token); rerr != nil {
		s.log.Error().Err(rerr).
			Str("tank_id", claim.token.TankID).
			Str("operation", claim.token.OperationType).
			Msg("no se pudo restaurar el token de override")
	}
}

// precheck verifica consistencia del tanque antes de consumir lotes.
func (s *MovementService) precheck(ctx context.Context, repos Repositories, tankID, kind string, opts OperationOptions, claim *overrideClaim) error {
	// cada intento decide de nuevo; vale el del intento que confirma
	claim.used = false
	if opts.SkipConsistencyCheck {
		return nil
	}
	_, _, rep, err := s.checker.inspect(ctx, repos, tankID, s.checker.Tolerance())
	if err != nil {
		return err
	}
	if rep.IsConsistent {
		return nil
	}
	if claim.token != nil {
		claim.used = true
		s.log.Warn().
			Str("tank_id", tankID).
			Str("operation", kind).
			Str("difference", rep.Difference.String()).
			Msg("pre-chequeo de consistencia forzado con override")
		return nil
	}
	return violation(rep)
}

func (s *MovementService) newMovement(kind, txID, tankID string, quantity decimal.Decimal, notes string, opts OperationOptions, now time.Time) *entity.FuelMovement {
	return &entity.FuelMovement{
		ID:            uuid.New().String(),
		TransactionID: txID,
		Kind:          kind,
		TankID:        tankID,
		Quantity:      quantity,
		Shortfall:     decimal.Zero,
		Notes:         notes,
		ActorID:       opts.ActorID,
		Status:        entity.MovementStatusCreated,
		CreatedAt:     now,
	}
}

func (s *MovementService) persist(ctx context.Context, repos Repositories, mov *entity.FuelMovement) error {
	mov.Commit()
	return repos.Movements.Create(ctx, mov)
}

// shortfallWarning deja constancia del faltante FIFO en el movimiento y devuelve el aviso para auditoría.
func (s *MovementService) shortfallWarning(mov *entity.FuelMovement) string {
	if !mov.HasShortfall() {
		return ""
	}
	w := "faltante FIFO de " + mov.Shortfall.String() + " L: los lotes no cubren el movimiento"
	if mov.Notes == "" {
		mov.Notes = w
	} else {
		mov.Notes = mov.Notes + "; " + w
	}
	return w
}

func (s *MovementService) failureEntry(kind string, source entity.EntityRef, target *entity.EntityRef, quantity decimal.Decimal, opts OperationOptions) *entity.AuditEntry {
	return &entity.AuditEntry{
		OperationType: kind,
		Source:        source,
		Target:        target,
		Quantity:      quantity,
		ActorID:       opts.ActorID,
	}
}

func requirePositive(q decimal.Decimal) error {
	if !q.IsPositive() {
		return domain.Invalid(domain.ErrInvalidInput, "la cantidad debe ser positiva (%s)", q)
	}
	if !fuel.FitsScale(q) {
		return domain.Invalid(domain.ErrInvalidInput, "la cantidad admite como máximo %d decimales (%s)", fuel.QuantityScale, q)
	}
	return nil
}

func tankRef(id string) entity.EntityRef {
	return entity.EntityRef{Type: entity.EntityTypeTank, ID: id}
}

func tankRefPtr(id string) *entity.EntityRef {
	r := tankRef(id)
	return &r
}

// loadTank obtiene el tanque (bloqueado si forUpdate) o un ValidationError si no existe.
func loadTank(ctx context.Context, repos Repositories, id string, forUpdate bool) (*entity.Tank, error) {
	var (
		tank *entity.Tank
		err  error
	)
	if forUpdate {
		tank, err = repos.Tanks.GetForUpdate(ctx, id)
	} else {
		tank, err = repos.Tanks.GetByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if tank == nil {
		return nil, domain.Invalid(domain.ErrNotFound, "tanque %s", id)
	}
	return tank, nil
}

// lockTanks bloquea los tanques en orden de ID para evitar deadlocks entre traslados cruzados.
func lockTanks(ctx context.Context, repos Repositories, ids ...string) (map[string]*entity.Tank, error) {
	ordered := append([]string(nil), ids...)
	sort.Strings(ordered)
	out := make(map[string]*entity.Tank, len(ordered))
	for _, id := range ordered {
		t, err := loadTank(ctx, repos, id, true)
		if err != nil {
			return nil, err
		}
		out[id] = t
	}
	return out, nil
}

func snapshot(ctx context.Context, repos Repositories, tank *entity.Tank) (*entity.TankSnapshot, error) {
	lots, err := repos.Lots.ListByTank(ctx, tank.ID)
	if err != nil {
		return nil, err
	}
	return fuel.Snapshot(tank, lots), nil
}
