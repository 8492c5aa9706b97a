package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	goredis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "fuel:override:"

// consumeScript borra el token solo si pertenece a (tanque, operación) y devuelve su valor.
var consumeScript = goredis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  return false
end
if string.sub(v, 1, string.len(ARGV[1])) ~= ARGV[1] then
  return false
end
redis.call("DEL", KEYS[1])
return v
`)

// TokenStore guarda los tokens de override en Redis con TTL, compartidos entre instancias.
type TokenStore struct {
	client    goredis.UniversalClient
	keyPrefix string
}

var _ ledger.TokenStore = (*TokenStore)(nil)

// NewTokenStore construye el store con un cliente existente.
func NewTokenStore(client goredis.UniversalClient, keyPrefix string) *TokenStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &TokenStore{client: client, keyPrefix: keyPrefix}
}

// Save registra el token; Redis lo elimina al vencer ttl.
func (s *TokenStore) Save(ctx context.Context, tok *entity.OverrideToken, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl inválido: %s", ttl)
	}
	value := strings.Join([]string{
		tok.TankID,
		tok.OperationType,
		tok.IssuingActorID,
		strconv.FormatInt(tok.ExpiresAt.Unix(), 10),
	}, "|")
	if err := s.client.Set(ctx, s.keyPrefix+tok.Token, value, ttl).Err(); err != nil {
		return fmt.Errorf("guardar token de override: %w", err)
	}
	return nil
}

// Consume valida y elimina el token de forma atómica. Un token usado, vencido o emitido para
// otro tanque u operación devuelve nil.
func (s *TokenStore) Consume(ctx context.Context, token, tankID, operationType string) (*entity.OverrideToken, error) {
	v, err := consumeScript.Run(ctx, s.client, []string{s.keyPrefix + token}, tankID+"|"+operationType+"|").Text()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consumir token de override: %w", err)
	}
	return parseToken(token, v)
}

// parseToken reconstruye el token desde "tanque|operación|actor|vencimiento".
func parseToken(token, value string) (*entity.OverrideToken, error) {
	parts := strings.Split(value, "|")
	if len(parts) != 4 {
		return nil, fmt.Errorf("token de override %s con formato inválido", token)
	}
	exp, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("token de override %s: vencimiento inválido: %w", token, err)
	}
	return &entity.OverrideToken{
		Token:          token,
		TankID:         parts[0],
		OperationType:  parts[1],
		IssuingActorID: parts[2],
		ExpiresAt:      time.Unix(exp, 0).UTC(),
	}, nil
}

// NewClient crea el cliente y verifica la conexión.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("conectar a redis: %w", err)
	}
	return client, nil
}
