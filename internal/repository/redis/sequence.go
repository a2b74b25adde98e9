// Package redis shares the inventory identifier sequence between server replicas.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultSequenceKey holds the count of identifiers issued so far.
const DefaultSequenceKey = "stockbook:inventory:issued"

// Config describes the connection to the Redis server.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Sequence is a ledger id sequence backed by a Redis counter. INCR is atomic on
// the server, so replicas never hand out the same slot.
type Sequence struct {
	client *goredis.Client
	key    string
	logger *zap.Logger
}

// NewSequence builds a sequence on key, or DefaultSequenceKey when key is empty.
func NewSequence(client *goredis.Client, key string, logger *zap.Logger) *Sequence {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = DefaultSequenceKey
	}
	return &Sequence{client: client, key: key, logger: logger}
}

// Reserve seeds the counter from the store the first time it is used, then
// increments it and returns the value it held before.
func (s *Sequence) Reserve(ctx context.Context, seed func(context.Context) (int, error)) (int, error) {
	exists, err := s.client.Exists(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("check sequence %s: %w", s.key, err)
	}

	if exists == 0 {
		count, err := seed(ctx)
		if err != nil {
			return 0, fmt.Errorf("seed id sequence: %w", err)
		}
		set, err := s.client.SetNX(ctx, s.key, count, 0).Result()
		if err != nil {
			return 0, fmt.Errorf("seed sequence %s: %w", s.key, err)
		}
		if set {
			s.logger.Info("id sequence seeded", zap.String("key", s.key), zap.Int("issued", count))
		}
	}

	next, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", s.key, err)
	}
	return int(next - 1), nil
}
