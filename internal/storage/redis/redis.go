package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/drakos74/futures-bot/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Config defines the redis connection.
type Config struct {
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix" default:"futures-bot"`
	Timeout  time.Duration `yaml:"timeout" default:"5s"`
}

// Storage keeps the json encoded values in redis under <prefix>:<table>:<shard>:<key>.
type Storage struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewClient creates the redis client and checks the connection.
func NewClient(cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Shard creates redis storages for the table on the given client.
func Shard(client redis.UniversalClient, cfg Config, table string) storage.Shard {
	return func(shard string) (storage.Persistence, error) {
		return New(client, fmt.Sprintf("%s:%s:%s", cfg.Prefix, table, shard), cfg.Timeout), nil
	}
}

// New creates a redis storage with the given key prefix.
func New(client redis.UniversalClient, prefix string, timeout time.Duration) *Storage {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Storage{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
	}
}

func (s *Storage) key(k storage.Key) string {
	return fmt.Sprintf("%s:%s", s.prefix, k.Path())
}

func (s *Storage) Store(k storage.Key, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not marshal value: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, s.key(k), data, 0).Err(); err != nil {
		return fmt.Errorf("could not store '%s': %w", s.key(k), err)
	}
	return nil
}

func (s *Storage) Load(k storage.Key, value interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	data, err := s.client.Get(ctx, s.key(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("not found '%s': %w", s.key(k), storage.NotFoundErr)
		}
		return fmt.Errorf("could not load '%s': %w", s.key(k), err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("could not unmarshal '%s': %s: %w", s.key(k), err.Error(), storage.CouldNotLoadErr)
	}
	return nil
}
