package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"shopmate/backend/internal/domain"
)

const (
	cartKeyPrefix  = "shopmate:cart:"
	salesKeyPrefix = "shopmate:sales:"
)

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func (c *RedisCartStore) Load(ctx context.Context, owner string) (*domain.CartSession, bool, error) {
	val, err := c.client.Get(ctx, cartKeyPrefix+owner).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var session domain.CartSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, false, err
	}
	return &session, true, nil
}

// Save refreshes the TTL on every write.
func (c *RedisCartStore) Save(ctx context.Context, session domain.CartSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cartKeyPrefix+session.Owner, payload, c.ttl).Err()
}

func (c *RedisCartStore) Delete(ctx context.Context, owner string) error {
	return c.client.Del(ctx, cartKeyPrefix+owner).Err()
}

type RedisSalesCache struct {
	client *redis.Client
}

func NewRedisSalesCache(client *redis.Client) *RedisSalesCache {
	return &RedisSalesCache{client: client}
}

func (c *RedisSalesCache) Get(ctx context.Context, owner string) ([]domain.SaleRecord, bool, error) {
	val, err := c.client.Get(ctx, salesKeyPrefix+owner).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var records []domain.SaleRecord
	if err := json.Unmarshal([]byte(val), &records); err != nil {
		return nil, false, err
	}
	return records, true, nil
}

func (c *RedisSalesCache) Set(ctx context.Context, owner string, records []domain.SaleRecord, ttl time.Duration) error {
	if records == nil || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, salesKeyPrefix+owner, payload, ttl).Err()
}

func (c *RedisSalesCache) Invalidate(ctx context.Context, owner string) error {
	return c.client.Del(ctx, salesKeyPrefix+owner).Err()
}
