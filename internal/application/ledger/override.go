package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/fuel-ledger/internal/domain"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/rs/zerolog"
)

// OverrideAuthority emite tokens de corta duración que permiten forzar una operación
// cuyo pre-chequeo de consistencia falló.
type OverrideAuthority struct {
	tx    TxRunner
	store TokenStore
	audit *AuditLog
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// NewOverrideAuthority construye la autoridad de override.
func NewOverrideAuthority(tx TxRunner, store TokenStore, audit *AuditLog, cfg Config, log zerolog.Logger) *OverrideAuthority {
	cfg = cfg.withDefaults()
	return &OverrideAuthority{tx: tx, store: store, audit: audit, ttl: cfg.OverrideTTL, now: cfg.Now, log: log}
}

// overridableOperations operaciones que ejecutan pre-chequeo de consistencia.
var overridableOperations = map[string]bool{
	entity.MovementKindTransfer: true,
	entity.MovementKindDispense: true,
	entity.MovementKindDrain:    true,
}

// IssueToken emite un token para (tankID, operationType). ttl <= 0 usa el TTL configurado.
func (o *OverrideAuthority) IssueToken(ctx context.Context, tankID, operationType, actorID string, ttl time.Duration) (*entity.OverrideToken, error) {
	if tankID == "" || actorID == "" {
		return nil, domain.Invalid(domain.ErrInvalidInput, "tanque y actor son obligatorios")
	}
	if !overridableOperations[operationType] {
		return nil, domain.Invalid(domain.ErrInvalidInput, "operación %q no admite override", operationType)
	}
	if ttl <= 0 {
		ttl = o.ttl
	}
	now := o.now()
	tok := &entity.OverrideToken{
		Token:          uuid.New().String(),
		TankID:         tankID,
		OperationType:  operationType,
		IssuedAt:       now,
		ExpiresAt:      now.Add(ttl),
		IssuingActorID: actorID,
	}

	err := o.tx.Run(ctx, DefaultTxOptions(), func(ctx context.Context, repos Repositories) error {
		tank, err := repos.Tanks.GetByID(ctx, tankID)
		if err != nil {
			return err
		}
		if tank == nil {
			return domain.Invalid(domain.ErrNotFound, "tanque %s", tankID)
		}
		return o.audit.Record(ctx, repos, &entity.AuditEntry{
			OperationType: entity.AuditOpOverride,
			Source:        entity.EntityRef{Type: entity.EntityTypeTank, ID: tankID},
			FuelType:      tank.FuelType,
			ActorID:       actorID,
			TransactionID: uuid.New().String(),
			Timestamp:     now,
			Warning:       "override para " + operationType,
		})
	})
	if err != nil {
		return nil, err
	}
	if err := o.store.Save(ctx, tok, ttl); err != nil {
		return nil, err
	}
	o.log.Warn().
		Str("tank_id", tankID).
		Str("operation", operationType).
		Str("actor_id", actorID).
		Time("expires_at", tok.ExpiresAt).
		Msg("token de override emitido")
	return tok, nil
}

// Validate consume el token: true solo si coincide con tanque y operación, no expiró y no fue usado.
func (o *OverrideAuthority) Validate(ctx context.Context, tankID, operationType, token string) (bool, error) {
	tok, err := o.Claim(ctx, tankID, operationType, token)
	return tok != nil, err
}

// Claim consume el token y lo devuelve; nil si no es válido para (tankID, operationType).
func (o *OverrideAuthority) Claim(ctx context.Context, tankID, operationType, token string) (*entity.OverrideToken, error) {
	if token == "" {
		return nil, nil
	}
	return o.store.Consume(ctx, token, tankID, operationType)
}

// Release vuelve a dejar disponible un token reclamado que no llegó a usarse, con la vigencia
// que le quedaba. Un token ya vencido no se restaura.
func (o *OverrideAuthority) Release(ctx context.Context, tok *entity.OverrideToken) error {
	ttl := tok.ExpiresAt.Sub(o.now())
	if ttl < time.Second {
		return nil
	}
	return o.store.Save(ctx, tok, ttl)
}
