// Package cache guarda resultados recentes de consultas no Redis para
// evitar repetir chamadas idênticas ao gateway dentro do TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/redis/go-redis/v9"
)

// Client é o subconjunto do cliente Redis usado aqui (permite Mocking).
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type entry struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"dados"`
}

// Redis implementa o cache de consultas.
type Redis struct {
	client Client
}

// NewRedisClient cria o cliente a partir de endereço e senha.
func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

func NewRedis(client Client) *Redis {
	return &Redis{client: client}
}

// Get devolve ok=false quando a chave não existe.
func (r *Redis) Get(ctx context.Context, key string) (domain.Result, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Result{}, false, nil
	} else if err != nil {
		return domain.Result{}, false, err
	}

	var e entry
	if err := json.Unmarshal(val, &e); err != nil {
		return domain.Result{}, false, fmt.Errorf("entrada de cache inválida em %s: %w", key, err)
	}

	var data interface{}
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return domain.Result{}, false, fmt.Errorf("entrada de cache inválida em %s: %w", key, err)
		}
	}
	return domain.Result{Status: e.Status, Data: data}, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, res domain.Result, ttl time.Duration) error {
	data, err := json.Marshal(res.Data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(entry{Status: res.Status, Data: data})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, payload, ttl).Err()
}
