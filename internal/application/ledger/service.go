package ledger

import (
	"github.com/rs/zerolog"
)

// Service agrupa los casos de uso del ledger sobre un mismo TxRunner.
type Service struct {
	Tanks      *TankService
	Movements  *MovementService
	Checker    *ConsistencyChecker
	Reconciler *ReconciliationEngine
	Overrides  *OverrideAuthority
	Audit      *AuditLog
}

// New arma los casos de uso. tokens es el almacén compartido de tokens de override.
func New(tx TxRunner, tokens TokenStore, cfg Config, log zerolog.Logger) *Service {
	cfg = cfg.withDefaults()
	audit := NewAuditLog(tx, cfg, log)
	checker := NewConsistencyChecker(tx, cfg)
	overrides := NewOverrideAuthority(tx, tokens, audit, cfg, log)
	return &Service{
		Tanks:      NewTankService(tx, audit, cfg, log),
		Movements:  NewMovementService(tx, NewAllocationEngine(cfg.Now), checker, overrides, audit, cfg, log),
		Checker:    checker,
		Reconciler: NewReconciliationEngine(tx, checker, audit, cfg, log),
		Overrides:  overrides,
		Audit:      audit,
	}
}
