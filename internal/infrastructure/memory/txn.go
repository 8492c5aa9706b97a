package memory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

var errReadOnly = errors.New("transacción de solo lectura")

// txn escrituras pendientes y versiones leídas de una transacción. Una unidad de trabajo
// se ejecuta en una sola goroutine, así que txn no necesita su propio lock.
type txn struct {
	s        *Store
	readOnly bool

	reads     map[string]uint64
	tanks     map[string]*entity.Tank
	newTanks  map[string]bool
	lots      map[string]*lotRow
	newLots   map[string]bool
	movements []*entity.FuelMovement
	audit     []*entity.AuditEntry
}

func newTxn(s *Store, readOnly bool) *txn {
	return &txn{
		s:        s,
		readOnly: readOnly,
		reads:    make(map[string]uint64),
		tanks:    make(map[string]*entity.Tank),
		newTanks: make(map[string]bool),
		lots:     make(map[string]*lotRow),
		newLots:  make(map[string]bool),
	}
}

func (t *txn) repositories() ledger.Repositories {
	return ledger.Repositories{
		Tanks:     &tankRepo{t: t},
		Lots:      &lotRepo{t: t},
		Movements: &movementRepo{t: t},
		Audit:     &auditRepo{t: t},
	}
}

// observe registra la primera versión vista de key. Requiere s.mu tomado.
func (t *txn) observe(key string) {
	if _, ok := t.reads[key]; !ok {
		t.reads[key] = t.s.version(key)
	}
}

func (t *txn) writable(op string) error {
	if t.readOnly {
		return &domain.PersistenceError{Op: op, Err: errReadOnly}
	}
	return nil
}

func (t *txn) tank(id string) *entity.Tank {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	t.observe(tankKey(id))
	if tk, ok := t.tanks[id]; ok {
		return tk
	}
	return t.s.tanks[id]
}

func (t *txn) allTanks() []*entity.Tank {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	t.observe(tanksKey)
	out := make([]*entity.Tank, 0, len(t.s.tanks)+len(t.newTanks))
	seen := make(map[string]bool, len(t.s.tanks))
	for id, tk := range t.s.tanks {
		t.observe(tankKey(id))
		if staged, ok := t.tanks[id]; ok {
			tk = staged
		}
		seen[id] = true
		out = append(out, cloneTank(tk))
	}
	for id := range t.newTanks {
		if !seen[id] {
			out = append(out, cloneTank(t.tanks[id]))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (t *txn) stageTank(tk *entity.Tank) {
	t.tanks[tk.ID] = cloneTank(tk)
}

// tankLots lotes del tanque (confirmados + pendientes) en orden FIFO, como copias.
func (t *txn) tankLots(tankID string) []*entity.Lot {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	t.observe(lotsKey(tankID))

	rows := make([]*lotRow, 0)
	for id, row := range t.s.lots {
		if row.lot.TankID != tankID {
			continue
		}
		if staged, ok := t.lots[id]; ok {
			row = staged
		}
		rows = append(rows, row)
	}
	for id := range t.newLots {
		if row := t.lots[id]; row.lot.TankID == tankID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.lot.DateAdded.Equal(b.lot.DateAdded) {
			return a.seq < b.seq
		}
		return a.lot.DateAdded.Before(b.lot.DateAdded)
	})
	out := make([]*entity.Lot, len(rows))
	for i, r := range rows {
		out[i] = r.lot.Clone()
	}
	return out
}

func (t *txn) lotSeq(id string) (int64, bool) {
	if row, ok := t.lots[id]; ok {
		return row.seq, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	row, ok := t.s.lots[id]
	if !ok {
		return 0, false
	}
	return row.seq, true
}

func (t *txn) allMovements() []*entity.FuelMovement {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	out := make([]*entity.FuelMovement, 0, len(t.s.movOrder)+len(t.movements))
	for _, id := range t.s.movOrder {
		out = append(out, t.s.movements[id])
	}
	return append(out, t.movements...)
}

func (t *txn) empty() bool {
	return len(t.tanks) == 0 && len(t.lots) == 0 && len(t.movements) == 0 && len(t.audit) == 0
}

// commit valida las versiones leídas y aplica las escrituras de forma atómica.
func (t *txn) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, v := range t.reads {
		if s.versions[key] != v {
			return fmt.Errorf("%w: %s modificado por otra transacción", domain.ErrTransactionConflict, key)
		}
	}
	if t.empty() {
		return nil
	}
	if err := t.checkConstraints(); err != nil {
		return err
	}

	for id, tk := range t.tanks {
		s.tanks[id] = tk
		s.bump(tankKey(id))
		if t.newTanks[id] {
			s.bump(tanksKey)
		}
	}
	for id, row := range t.lots {
		s.lots[id] = row
		s.bump(lotsKey(row.lot.TankID))
	}
	for _, m := range t.movements {
		s.movements[m.ID] = m
		s.movOrder = append(s.movOrder, m.ID)
		s.bump(movKey(m.ID))
		if m.TankID != "" {
			s.bump(movsKey(m.TankID))
		}
		if m.DestinationTankID != "" {
			s.bump(movsKey(m.DestinationTankID))
		}
		if m.RelatedDrainID != "" {
			s.bump(drainKey(m.RelatedDrainID))
		}
	}
	s.audit = append(s.audit, t.audit...)
	return nil
}

// checkConstraints equivalentes a los CHECK/UNIQUE del esquema SQL. Requiere s.mu tomado.
func (t *txn) checkConstraints() error {
	s := t.s
	for id, tk := range t.tanks {
		if t.newTanks[id] {
			if _, exists := s.tanks[id]; exists {
				return &domain.PersistenceError{Op: "crear tanque", Err: fmt.Errorf("tanque %s duplicado", id)}
			}
		}
		if tk.CurrentQuantity.IsNegative() || tk.CurrentQuantity.GreaterThan(tk.Capacity) {
			return &domain.PersistenceError{Op: "actualizar tanque", Err: fmt.Errorf("tanque %s: cantidad %s fuera de [0, %s]", id, tk.CurrentQuantity, tk.Capacity)}
		}
	}
	for id, row := range t.lots {
		l := row.lot
		if l.RemainingQuantity.IsNegative() || l.RemainingQuantity.GreaterThan(l.OriginalQuantity) {
			return &domain.PersistenceError{Op: "actualizar lote", Err: fmt.Errorf("lote %s: saldo %s fuera de [0, %s]", id, l.RemainingQuantity, l.OriginalQuantity)}
		}
		if !t.newLots[id] {
			continue
		}
		for otherID, other := range s.lots {
			if otherID != id && other.lot.TankID == l.TankID && other.lot.DeclarationNumber == l.DeclarationNumber {
				return &domain.PersistenceError{Op: "crear lote", Err: fmt.Errorf("lote (%s, %s) duplicado", l.TankID, l.DeclarationNumber)}
			}
		}
	}
	return nil
}

func cloneTank(tk *entity.Tank) *entity.Tank {
	if tk == nil {
		return nil
	}
	c := *tk
	return &c
}

func absSum(ms []*entity.FuelMovement, match func(*entity.FuelMovement) bool) decimal.Decimal {
	total := decimal.Zero
	for _, m := range ms {
		if match(m) {
			total = total.Add(m.Quantity.Abs())
		}
	}
	return total
}
