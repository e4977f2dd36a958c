// Package store implementa el almacén efímero (Redis) de verificaciones de
// email, resets de contraseña y sesiones vivas. Los tres tipos de registro
// comparten un mismo keyspace diferenciado por prefijo y el mismo mecanismo
// de hash con TTL.
package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("record not found or expired")

const scanBatch = 100

// KV es un mapa de campos con expiración por clave. Los stores de registros
// solo dependen de esta interfaz.
type KV interface {
	SetFields(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error
	GetFields(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	KeysByPrefix(ctx context.Context, prefix string) ([]string, error)
	// Run ejecuta un script Lua sobre las claves dadas.
	Run(ctx context.Context, script *redis.Script, keys []string, args ...any) *redis.Cmd
}

// RedisKV implementa KV sobre hashes de Redis.
type RedisKV struct {
	client redis.UniversalClient
}

var _ KV = (*RedisKV)(nil)

func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

// SetFields escribe los campos y fija el TTL en una sola transacción.
func (s *RedisKV) SetFields(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// GetFields devuelve ErrNotFound si la clave no existe o ya expiró.
func (s *RedisKV) GetFields(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fields, nil
}

// Expire reinicia el TTL; devuelve false si la clave ya no existe.
func (s *RedisKV) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.Expire(ctx, key, ttl).Result()
}

func (s *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// KeysByPrefix recorre el keyspace con SCAN; es O(n) en claves existentes.
func (s *RedisKV) KeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *RedisKV) Run(ctx context.Context, script *redis.Script, keys []string, args ...any) *redis.Cmd {
	return script.Run(ctx, s.client, keys, args...)
}

// Ping verifica conectividad con Redis.
func (s *RedisKV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// atoi convierte contadores guardados como string; ausente equivale a 0.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func seconds(ttl time.Duration) int {
	s := int(ttl / time.Second)
	if s <= 0 {
		return 1
	}
	return s
}
