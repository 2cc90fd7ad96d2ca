package config

import (
	"fmt"

	"github.com/drakos74/futures-bot/internal/storage"
	"github.com/drakos74/futures-bot/internal/storage/file/json"
	redisstore "github.com/drakos74/futures-bot/internal/storage/redis"
)

// Storage defines where the ledger and the market data cache are kept.
type Storage struct {
	Type  string            `yaml:"type" default:"json" validate:"oneof=json redis memory"`
	Dir   string            `yaml:"dir" default:"file-storage"`
	Redis redisstore.Config `yaml:"redis"`
}

// Shard creates the storage shards for the table.
func (s Storage) Shard(table string) (storage.Shard, error) {
	switch s.Type {
	case "redis":
		client, err := redisstore.NewClient(s.Redis)
		if err != nil {
			return nil, fmt.Errorf("could not connect to redis: %w", err)
		}
		return redisstore.Shard(client, s.Redis, table), nil
	case "memory":
		return storage.MemoryShard(), nil
	}
	storage.DefaultDir = s.Dir
	return json.BlobShard(table), nil
}
