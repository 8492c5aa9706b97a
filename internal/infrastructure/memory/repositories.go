package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/jhoicas/fuel-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var (
	_ repository.TankRepository         = (*tankRepo)(nil)
	_ repository.LotRepository          = (*lotRepo)(nil)
	_ repository.FuelMovementRepository = (*movementRepo)(nil)
	_ repository.AuditRepository        = (*auditRepo)(nil)
)

type tankRepo struct{ t *txn }

func (r *tankRepo) Create(ctx context.Context, tank *entity.Tank) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.t.writable("crear tanque"); err != nil {
		return err
	}
	if r.t.tank(tank.ID) != nil {
		return &domain.PersistenceError{Op: "crear tanque", Err: fmt.Errorf("tanque %s duplicado", tank.ID)}
	}
	r.t.s.mu.RLock()
	r.t.observe(tanksKey)
	r.t.s.mu.RUnlock()
	r.t.stageTank(tank)
	r.t.newTanks[tank.ID] = true
	return nil
}

func (r *tankRepo) GetByID(ctx context.Context, id string) (*entity.Tank, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cloneTank(r.t.tank(id)), nil
}

// GetForUpdate en memoria equivale a GetByID: la lectura queda registrada y la validación al
// confirmar cumple el papel del bloqueo de fila.
func (r *tankRepo) GetForUpdate(ctx context.Context, id string) (*entity.Tank, error) {
	return r.GetByID(ctx, id)
}

func (r *tankRepo) UpdateQuantity(ctx context.Context, id string, quantity decimal.Decimal) error {
	return r.update(ctx, id, "actualizar cantidad", func(tk *entity.Tank) { tk.CurrentQuantity = quantity })
}

func (r *tankRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.update(ctx, id, "actualizar estado", func(tk *entity.Tank) { tk.Status = status })
}

func (r *tankRepo) update(ctx context.Context, id, op string, mutate func(*entity.Tank)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.t.writable(op); err != nil {
		return err
	}
	current := cloneTank(r.t.tank(id))
	if current == nil {
		return &domain.PersistenceError{Op: op, Err: fmt.Errorf("tanque %s: %w", id, domain.ErrNotFound)}
	}
	mutate(current)
	current.UpdatedAt = time.Now()
	r.t.stageTank(current)
	return nil
}

func (r *tankRepo) List(ctx context.Context) ([]*entity.Tank, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.t.allTanks(), nil
}

type lotRepo struct{ t *txn }

func (r *lotRepo) Create(ctx context.Context, lot *entity.Lot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.t.writable("crear lote"); err != nil {
		return err
	}
	for _, l := range r.t.tankLots(lot.TankID) {
		if l.DeclarationNumber == lot.DeclarationNumber {
			return &domain.PersistenceError{Op: "crear lote", Err: fmt.Errorf("lote (%s, %s) duplicado", lot.TankID, lot.DeclarationNumber)}
		}
	}
	r.t.lots[lot.ID] = &lotRow{lot: lot.Clone(), seq: r.t.s.seq.Add(1)}
	r.t.newLots[lot.ID] = true
	return nil
}

func (r *lotRepo) UpdateQuantities(ctx context.Context, lot *entity.Lot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.t.writable("actualizar lote"); err != nil {
		return err
	}
	seq, ok := r.t.lotSeq(lot.ID)
	if !ok {
		return &domain.PersistenceError{Op: "actualizar lote", Err: fmt.Errorf("lote %s: %w", lot.ID, domain.ErrNotFound)}
	}
	r.t.s.mu.RLock()
	r.t.observe(lotsKey(lot.TankID))
	r.t.s.mu.RUnlock()
	r.t.lots[lot.ID] = &lotRow{lot: lot.Clone(), seq: seq}
	return nil
}

func (r *lotRepo) ListAvailableFIFO(ctx context.Context, tankID string) ([]*entity.Lot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := r.t.tankLots(tankID)
	out := all[:0]
	for _, l := range all {
		if l.RemainingQuantity.IsPositive() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *lotRepo) ListByTank(ctx context.Context, tankID string) ([]*entity.Lot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.t.tankLots(tankID), nil
}

func (r *lotRepo) GetByDeclaration(ctx context.Context, tankID, declarationNumber string) (*entity.Lot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, l := range r.t.tankLots(tankID) {
		if l.DeclarationNumber == declarationNumber {
			return l, nil
		}
	}
	return nil, nil
}

func (r *lotRepo) GetLatest(ctx context.Context, tankID string) (*entity.Lot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lots := r.t.tankLots(tankID)
	if len(lots) == 0 {
		return nil, nil
	}
	return lots[len(lots)-1], nil
}

func (r *lotRepo) SumRemaining(ctx context.Context, tankID string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range r.t.tankLots(tankID) {
		total = total.Add(l.RemainingQuantity)
	}
	return total, nil
}

type movementRepo struct{ t *txn }

func (r *movementRepo) Create(ctx context.Context, m *entity.FuelMovement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.t.writable("crear movimiento"); err != nil {
		return err
	}
	r.t.movements = append(r.t.movements, m.Clone())
	return nil
}

func (r *movementRepo) GetByID(ctx context.Context, id string) (*entity.FuelMovement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, m := range r.t.allMovements() {
		if m.ID == id {
			return m.Clone(), nil
		}
	}
	return nil, nil
}

func (r *movementRepo) SumSettledAgainstDrain(ctx context.Context, drainID string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	r.t.s.mu.RLock()
	r.t.observe(drainKey(drainID))
	r.t.s.mu.RUnlock()
	return absSum(r.t.allMovements(), func(m *entity.FuelMovement) bool {
		return m.RelatedDrainID == drainID &&
			(m.Kind == entity.MovementKindDrainReversal || m.Kind == entity.MovementKindDrainSale)
	}), nil
}

func (r *movementRepo) ListByTank(ctx context.Context, tankID string, from, to *time.Time, limit, offset int) ([]*entity.FuelMovement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.t.s.mu.RLock()
	r.t.observe(movsKey(tankID))
	r.t.s.mu.RUnlock()

	var out []*entity.FuelMovement
	for _, m := range r.t.allMovements() {
		if m.TankID != tankID && m.DestinationTankID != tankID {
			continue
		}
		if from != nil && m.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && m.CreatedAt.After(*to) {
			continue
		}
		out = append(out, m.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

type auditRepo struct{ t *txn }

func (r *auditRepo) Create(ctx context.Context, entry *entity.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.t.writable("crear auditoría"); err != nil {
		return err
	}
	r.t.audit = append(r.t.audit, entry.Clone())
	return nil
}

func (r *auditRepo) List(ctx context.Context, f repository.AuditFilter, limit, offset int) ([]*entity.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.t.s.mu.RLock()
	all := make([]*entity.AuditEntry, 0, len(r.t.s.audit)+len(r.t.audit))
	all = append(all, r.t.s.audit...)
	r.t.s.mu.RUnlock()
	all = append(all, r.t.audit...)

	var out []*entity.AuditEntry
	for i := len(all) - 1; i >= 0; i-- {
		if e := all[i]; matchAudit(e, f) {
			out = append(out, e.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return page(out, limit, offset), nil
}

func matchAudit(e *entity.AuditEntry, f repository.AuditFilter) bool {
	if f.OperationType != "" && e.OperationType != f.OperationType {
		return false
	}
	if f.EntityID != "" && e.Source.ID != f.EntityID && (e.Target == nil || e.Target.ID != f.EntityID) {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.TransactionID != "" && e.TransactionID != f.TransactionID {
		return false
	}
	if f.Success != nil && e.Success != *f.Success {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
