package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jaminalder/tic-tac-toe-history/internal/store"
)

const keyPrefix = "tictactoe"

func gameKey(id string) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// Storage is a Redis-backed store.Store. Each game is one JSON document.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New connects to Redis and checks the connection.
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Storage{client: client, cfg: cfg}, nil
}

// NewWithClient wraps an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{client: client, cfg: cfg}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

var _ store.Store = (*Storage)(nil)

func (s *Storage) SaveGame(ctx context.Context, game *store.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, gameKey(game.ID), data, s.cfg.GameTTL).Err()
}

func (s *Storage) GetGame(ctx context.Context, id string) (*store.Game, error) {
	data, err := s.client.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var game store.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	return &game, nil
}

func (s *Storage) DeleteGame(ctx context.Context, id string) error {
	return s.client.Del(ctx, gameKey(id)).Err()
}
