package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/fuel"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CreateTankInput alta de tanque. La cantidad inicial siempre es 0; el combustible entra por Intake.
type CreateTankInput struct {
	Name     string
	Kind     string
	FuelType string
	Capacity decimal.Decimal
	Status   string // vacío = ACTIVE
}

// TankService registro de tanques y consultas de lotes y movimientos.
type TankService struct {
	tx    TxRunner
	audit *AuditLog
	now   func() time.Time
	log   zerolog.Logger
}

// NewTankService construye el servicio de tanques.
func NewTankService(tx TxRunner, audit *AuditLog, cfg Config, log zerolog.Logger) *TankService {
	cfg = cfg.withDefaults()
	return &TankService{tx: tx, audit: audit, now: cfg.Now, log: log}
}

// CreateTank registra un tanque vacío.
func (s *TankService) CreateTank(ctx context.Context, in CreateTankInput, actorID string) (*entity.Tank, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.FuelType = strings.TrimSpace(in.FuelType)
	if in.Name == "" || in.FuelType == "" {
		return nil, domain.Invalid(domain.ErrInvalidInput, "nombre y tipo de combustible son obligatorios")
	}
	if !entity.ValidTankKind(in.Kind) {
		return nil, domain.Invalid(domain.ErrInvalidInput, "tipo de tanque %q", in.Kind)
	}
	if !in.Capacity.IsPositive() {
		return nil, domain.Invalid(domain.ErrInvalidInput, "capacidad debe ser positiva")
	}
	if !fuel.FitsScale(in.Capacity) {
		return nil, domain.Invalid(domain.ErrInvalidInput, "capacidad admite como máximo %d decimales", fuel.QuantityScale)
	}
	if in.Status == "" {
		in.Status = entity.TankStatusActive
	}
	if !entity.ValidTankStatus(in.Status) {
		return nil, domain.Invalid(domain.ErrInvalidInput, "estado %q", in.Status)
	}

	now := s.now()
	tank := &entity.Tank{
		ID:              uuid.New().String(),
		Name:            in.Name,
		Kind:            in.Kind,
		FuelType:        in.FuelType,
		Capacity:        in.Capacity,
		CurrentQuantity: decimal.Zero,
		Status:          in.Status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := s.tx.Run(ctx, DefaultTxOptions(), func(ctx context.Context, repos Repositories) error {
		if err := repos.Tanks.Create(ctx, tank); err != nil {
			return err
		}
		return s.audit.Record(ctx, repos, &entity.AuditEntry{
			OperationType: entity.AuditOpTankCreated,
			Source:        entity.EntityRef{Type: entity.EntityTypeTank, ID: tank.ID},
			Quantity:      decimal.Zero,
			FuelType:      tank.FuelType,
			ActorID:       actorID,
			TransactionID: uuid.New().String(),
			StateAfter:    &entity.TankSnapshot{TankID: tank.ID, Quantity: decimal.Zero, Status: tank.Status, LotSum: decimal.Zero},
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tank_id", tank.ID).Str("fuel_type", tank.FuelType).Msg("tanque creado")
	return tank, nil
}

// GetTank devuelve el tanque o ErrNotFound.
func (s *TankService) GetTank(ctx context.Context, id string) (*entity.Tank, error) {
	return InTx(ctx, s.tx, ReadOnlyTxOptions(), func(ctx context.Context, repos Repositories) (*entity.Tank, error) {
		return loadTank(ctx, repos, id, false)
	})
}

// ListTanks todos los tanques.
func (s *TankService) ListTanks(ctx context.Context) ([]*entity.Tank, error) {
	return InTx(ctx, s.tx, ReadOnlyTxOptions(), func(ctx context.Context, repos Repositories) ([]*entity.Tank, error) {
		return repos.Tanks.List(ctx)
	})
}

// SetStatus cambia el estado operativo del tanque.
func (s *TankService) SetStatus(ctx context.Context, id, status, actorID string) (*entity.Tank, error) {
	if !entity.ValidTankStatus(status) {
		return nil, domain.Invalid(domain.ErrInvalidInput, "estado %q", status)
	}
	return InTx(ctx, s.tx, DefaultTxOptions(), func(ctx context.Context, repos Repositories) (*entity.Tank, error) {
		tank, err := loadTank(ctx, repos, id, true)
		if err != nil {
			return nil, err
		}
		if tank.Status == status {
			return tank, nil
		}
		previous := tank.Status
		if err := repos.Tanks.UpdateStatus(ctx, id, status); err != nil {
			return nil, err
		}
		tank.Status = status
		err = s.audit.Record(ctx, repos, &entity.AuditEntry{
			OperationType: entity.AuditOpTankStatus,
			Source:        entity.EntityRef{Type: entity.EntityTypeTank, ID: tank.ID},
			Quantity:      decimal.Zero,
			FuelType:      tank.FuelType,
			ActorID:       actorID,
			TransactionID: uuid.New().String(),
			StateBefore:   &entity.TankSnapshot{TankID: tank.ID, Quantity: tank.CurrentQuantity, Status: previous},
			StateAfter:    &entity.TankSnapshot{TankID: tank.ID, Quantity: tank.CurrentQuantity, Status: status},
		})
		if err != nil {
			return nil, err
		}
		return tank, nil
	})
}

// ListLots desglose por MRN del tanque en orden FIFO.
func (s *TankService) ListLots(ctx context.Context, tankID string, includeExhausted bool) ([]*entity.Lot, error) {
	return InTx(ctx, s.tx, ReadOnlyTxOptions(), func(ctx context.Context, repos Repositories) ([]*entity.Lot, error) {
		if _, err := loadTank(ctx, repos, tankID, false); err != nil {
			return nil, err
		}
		if includeExhausted {
			return repos.Lots.ListByTank(ctx, tankID)
		}
		return repos.Lots.ListAvailableFIFO(ctx, tankID)
	})
}

// GetMovement devuelve un movimiento o ErrNotFound.
func (s *TankService) GetMovement(ctx context.Context, id string) (*entity.FuelMovement, error) {
	return InTx(ctx, s.tx, ReadOnlyTxOptions(), func(ctx context.Context, repos Repositories) (*entity.FuelMovement, error) {
		mov, err := repos.Movements.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if mov == nil {
			return nil, domain.Invalid(domain.ErrNotFound, "movimiento %s", id)
		}
		return mov, nil
	})
}

// ListMovements movimientos del tanque (como origen o destino), más recientes primero.
func (s *TankService) ListMovements(ctx context.Context, tankID string, from, to *time.Time, limit, offset int) ([]*entity.FuelMovement, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return InTx(ctx, s.tx, ReadOnlyTxOptions(), func(ctx context.Context, repos Repositories) ([]*entity.FuelMovement, error) {
		return repos.Movements.ListByTank(ctx, tankID, from, to, limit, offset)
	})
}
