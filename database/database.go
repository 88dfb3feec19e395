package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"simple-ledger-go/blockchain"
	"strconv"
)

const (
	BOLT_BACKEND  = "bolt"
	LEVEL_BACKEND = "leveldb"

	BOLT_FILE = "%s_snapshot.db"
	LEVEL_DIR = "%s_snapshot"

	SNAPSHOT_BUCKET = "snapshot"
	LATEST_TAG      = "latest"
	LENGTH_TAG      = "length"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// Store keeps the latest wholesale snapshot of a chain.
type Store interface {
	Save(data *blockchain.ChainData) error
	// Load returns nil without error when nothing was saved yet.
	Load() (*blockchain.ChainData, error)
	// Length is the chain length recorded with the latest snapshot.
	Length() (int, error)
	Backend() string
	Path() string
	Close() error
}

func Open(backend string, dir string, id string) (Store, error) {
	switch backend {
	case BOLT_BACKEND:
		return OpenBolt(filepath.Join(dir, fmt.Sprintf(BOLT_FILE, id)))
	case LEVEL_BACKEND:
		return OpenLevel(filepath.Join(dir, fmt.Sprintf(LEVEL_DIR, id)))
	default:
		return nil, fmt.Errorf("%q: %w", backend, ErrUnknownBackend)
	}
}

func encodeLength(n int) []byte {
	return []byte(strconv.Itoa(n))
}

func decodeLength(bs []byte) (int, error) {
	if bs == nil {
		return 0, nil
	}
	return strconv.Atoi(string(bs))
}
