package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memClient simula o Redis com um mapa.
type memClient struct {
	items map[string]string
	ttls  map[string]time.Duration
	err   error
}

func newMemClient() *memClient {
	return &memClient{items: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memClient) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.items[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memClient) Set(ctx context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	m.items[key] = string(value.([]byte))
	m.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func TestRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("Chave ausente", func(t *testing.T) {
		_, ok, err := NewRedis(newMemClient()).Get(ctx, "nada")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Grava e lê com TTL", func(t *testing.T) {
		client := newMemClient()
		c := NewRedis(client)

		in := domain.Result{Status: 200, Data: map[string]interface{}{"ok": true}}
		require.NoError(t, c.Set(ctx, "k", in, time.Minute))
		assert.Equal(t, time.Minute, client.ttls["k"])

		out, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, in, out)
	})

	t.Run("Resposta em texto", func(t *testing.T) {
		c := NewRedis(newMemClient())
		require.NoError(t, c.Set(ctx, "k", domain.Result{Status: 200, Data: "PDF"}, time.Minute))

		out, _, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "PDF", out.Data)
	})

	t.Run("Entrada corrompida", func(t *testing.T) {
		client := newMemClient()
		client.items["k"] = "{"
		_, ok, err := NewRedis(client).Get(ctx, "k")
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("Redis fora do ar", func(t *testing.T) {
		client := newMemClient()
		client.err = errors.New("connection refused")
		c := NewRedis(client)

		_, _, err := c.Get(ctx, "k")
		assert.Error(t, err)
		assert.Error(t, c.Set(ctx, "k", domain.Result{}, time.Minute))
	})
}
