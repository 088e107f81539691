package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"barbershop/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const changesChannel = "changes"

// RedisStore keeps the persistence record in Redis and announces writes over pub/sub.
type RedisStore struct {
	client *redis.Client
	prefix string
	origin string
}

// NewRedisClient creates a Redis client from config
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		origin: uuid.NewString(),
	}
}

func (r *RedisStore) Origin() string {
	return r.origin
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if r.client == nil {
		return "", false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.SetMany(ctx, map[string]string{key: value})
}

func (r *RedisStore) SetMany(ctx context.Context, entries map[string]string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range entries {
			pipe.Set(ctx, r.prefix+key, value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write to redis: %w", err)
	}

	// Announcements are best effort; the data is already committed.
	for key := range entries {
		r.client.Publish(ctx, r.prefix+changesChannel, r.origin+"|"+key)
	}
	return nil
}

// Subscribe listens for writes made by other RedisStore handles sharing the prefix.
func (r *RedisStore) Subscribe(ctx context.Context) (<-chan string, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	pubsub := r.client.Subscribe(ctx, r.prefix+changesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to redis changes: %w", err)
	}

	out := make(chan string, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				origin, key, found := strings.Cut(msg.Payload, "|")
				if !found || origin == r.origin {
					continue
				}
				select {
				case out <- key:
				default:
				}
			}
		}
	}()

	return out, nil
}

// Ping checks the Redis connection
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
