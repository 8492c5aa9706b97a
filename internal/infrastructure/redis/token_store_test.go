package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	fuelredis "github.com/jhoicas/fuel-ledger/internal/infrastructure/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*fuelredis.TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return fuelredis.NewTokenStore(client, ""), mr
}

func token(id string) *entity.OverrideToken {
	now := time.Now()
	return &entity.OverrideToken{
		Token:          id,
		TankID:         "T1",
		OperationType:  entity.MovementKindDispense,
		IssuedAt:       now,
		ExpiresAt:      now.Add(5 * time.Minute),
		IssuingActorID: "sup-1",
	}
}

func TestTokenStore_UnSoloUso(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, token("tok-1"), 5*time.Minute))
	assert.True(t, mr.Exists("fuel:override:tok-1"))
	assert.Equal(t, 5*time.Minute, mr.TTL("fuel:override:tok-1"))

	tok, err := store.Consume(ctx, "tok-1", "T1", entity.MovementKindDispense)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "tok-1", tok.Token)
	assert.Equal(t, "T1", tok.TankID)
	assert.Equal(t, entity.MovementKindDispense, tok.OperationType)
	assert.Equal(t, "sup-1", tok.IssuingActorID)
	assert.False(t, tok.ExpiresAt.IsZero())

	tok, err = store.Consume(ctx, "tok-1", "T1", entity.MovementKindDispense)
	require.NoError(t, err)
	assert.Nil(t, tok, "el token ya fue consumido")
}

func TestTokenStore_LigadoATanqueYOperacion(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, token("tok-2"), time.Minute))

	tok, err := store.Consume(ctx, "tok-2", "T2", entity.MovementKindDispense)
	require.NoError(t, err)
	assert.Nil(t, tok)

	tok, err = store.Consume(ctx, "tok-2", "T1", entity.MovementKindDrain)
	require.NoError(t, err)
	assert.Nil(t, tok)

	// un intento con datos equivocados no quema el token
	assert.True(t, mr.Exists("fuel:override:tok-2"))
	tok, err = store.Consume(ctx, "tok-2", "T1", entity.MovementKindDispense)
	require.NoError(t, err)
	assert.NotNil(t, tok)
}

func TestTokenStore_Expirado(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, token("tok-3"), time.Minute))

	mr.FastForward(2 * time.Minute)

	tok, err := store.Consume(ctx, "tok-3", "T1", entity.MovementKindDispense)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestTokenStore_Inexistente(t *testing.T) {
	store, _ := newStore(t)
	tok, err := store.Consume(context.Background(), "nope", "T1", entity.MovementKindDispense)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestTokenStore_TTLInvalido(t *testing.T) {
	store, _ := newStore(t)
	assert.Error(t, store.Save(context.Background(), token("tok-4"), 0))
}

func TestTokenStore_RedisCaido(t *testing.T) {
	store, mr := newStore(t)
	mr.Close()
	_, err := store.Consume(context.Background(), "tok", "T1", entity.MovementKindDispense)
	assert.Error(t, err)
}
