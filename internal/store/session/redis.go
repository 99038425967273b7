package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ocap:session:"

// RedisStore keeps sessions in redis with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, data *Data) error {
	now := time.Now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	val, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(data.ID), val, s.ttl).Err()
}

// Get implements Store. Reading refreshes the TTL.
func (s *RedisStore) Get(ctx context.Context, id string) (*Data, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data Data
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, err
	}

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		log.Printf("[session] failed to refresh ttl for %s: %v", id, err)
	}
	return &data, nil
}

// Update implements Store using WATCH/MULTI/EXEC.
func (s *RedisStore) Update(ctx context.Context, data *Data) error {
	key := s.key(data.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored Data
		if err := json.Unmarshal(val, &stored); err != nil {
			return err
		}
		if stored.Version != data.Version {
			return ErrVersionConflict
		}

		next := *data
		next.Version++
		next.UpdatedAt = time.Now()

		encoded, err := json.Marshal(&next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		data.Version = next.Version
		data.UpdatedAt = next.UpdatedAt
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return redisKeyPrefix + id
}
