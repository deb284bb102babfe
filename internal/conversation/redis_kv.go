package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vbastos/chat-infinite/internal/errs"
)

// RedisKV implements KV on a go-redis client. Every transport failure is
// wrapped as errs.ErrStoreUnavailable so callers can match it.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV verifies connectivity before returning the adapter.
func NewRedisKV(ctx context.Context, client *redis.Client) (*RedisKV, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w: %v", errs.ErrStoreUnavailable, err)
	}
	return &RedisKV{client: client}, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, errs.ErrStoreUnavailable, err)
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("get", err)
	}
	return val, true, nil
}

func (r *RedisKV) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return storeErr("setex", err)
	}
	return nil
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return storeErr("del", err)
	}
	return nil
}

func (r *RedisKV) LPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := r.client.LPush(ctx, key, args...).Err(); err != nil {
		return storeErr("lpush", err)
	}
	return nil
}

func (r *RedisKV) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := r.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, storeErr("lrange", err)
	}
	return vals, nil
}

func (r *RedisKV) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.client.SAdd(ctx, key, args...).Err(); err != nil {
		return storeErr("sadd", err)
	}
	return nil
}

func (r *RedisKV) SMembers(ctx context.Context, key string) ([]string, error) {
	vals, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, storeErr("smembers", err)
	}
	return vals, nil
}

func (r *RedisKV) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.client.SRem(ctx, key, args...).Err(); err != nil {
		return storeErr("srem", err)
	}
	return nil
}

func (r *RedisKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return storeErr("expire", err)
	}
	return nil
}
