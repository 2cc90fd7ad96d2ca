package storage

import (
	"errors"
	"fmt"
)

const (
	// LedgerDir is the table for the position ledgers.
	LedgerDir = "ledger"
	// HistoryDir is the table for the cached market data.
	HistoryDir = "history"
)

// DefaultDir is the root directory for the file storage.
var DefaultDir = "file-storage"

// Shard creates a new storage implementation for the given shard.
type Shard func(shard string) (Persistence, error)

var (
	NotFoundErr      = errors.New("not found")
	CouldNotLoadErr  = errors.New("could not load")
	UnrecoverableErr = errors.New("unrecoverable error")
)

// Key is the storage key for a general implementation
type Key struct {
	Hash  int64  `json:"hash"`
	Pair  string `json:"pair"`
	Label string `json:"label"`
}

// Path returns the flat representation of the key.
func (k Key) Path() string {
	return fmt.Sprintf("%s_%v_%s", k.Pair, k.Hash, k.Label)
}

// Persistence stores and loads values by key.
type Persistence interface {
	Store(k Key, value interface{}) error
	Load(k Key, value interface{}) error
}
