package positionbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ducminhle1904/crypto-confluence-bot/internal/lifecycle"
	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces the hash positions are stored in.
const DefaultRedisPrefix = "confluence-bot"

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" json:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" json:"db" env:"REDIS_DB" validate:"gte=0"`
	Prefix   string `yaml:"prefix" json:"prefix" env-default:"confluence-bot"`
}

// Redis keeps positions in one hash, one JSON field per pair, so several
// processes can share a book.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client, key: hashKey(cfg.Prefix)}
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, pair string) (lifecycle.Position, bool, error) {
	raw, err := r.client.HGet(ctx, r.key, pair).Bytes()
	if errors.Is(err, redis.Nil) {
		return lifecycle.Position{}, false, nil
	}
	if err != nil {
		return lifecycle.Position{}, false, fmt.Errorf("redis get position %s: %w", pair, err)
	}
	p, err := decodePosition(raw)
	if err != nil {
		return lifecycle.Position{}, false, err
	}
	return p, true, nil
}

func (r *Redis) Put(ctx context.Context, p lifecycle.Position) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal position %s: %w", p.Pair, err)
	}
	if err := r.client.HSet(ctx, r.key, p.Pair, raw).Err(); err != nil {
		return fmt.Errorf("redis put position %s: %w", p.Pair, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, pair string) error {
	if err := r.client.HDel(ctx, r.key, pair).Err(); err != nil {
		return fmt.Errorf("redis delete position %s: %w", pair, err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context) ([]lifecycle.Position, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list positions: %w", err)
	}
	positions := make(map[string]lifecycle.Position, len(all))
	for pair, raw := range all {
		p, err := decodePosition([]byte(raw))
		if err != nil {
			return nil, err
		}
		positions[pair] = p
	}
	return sorted(positions), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func hashKey(prefix string) string {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return prefix + ":positions"
}

func decodePosition(raw []byte) (lifecycle.Position, error) {
	var p lifecycle.Position
	if err := json.Unmarshal(raw, &p); err != nil {
		return lifecycle.Position{}, fmt.Errorf("decode position: %w", err)
	}
	return p, nil
}
