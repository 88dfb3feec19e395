package nodes

import (
	"log/slog"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/database"
	"time"
)

const (
	HEARTBEAT_INTERVAL = 30 * time.Second
	SYNC_INTERVAL      = 10 * time.Second
	MINE_INTERVAL      = 2 * time.Second
	PEER_TIMEOUT       = 5 * time.Second
)

type Config struct {
	// Address to listen on, host:port.
	Address string
	// Tracker address; empty disables the peer directory.
	Tracker string
	// Peers known at start, used alongside or instead of the tracker.
	Peers []string

	Params blockchain.Params

	// Miner mines pending transactions on its own every MineInterval.
	Miner            bool
	AllowUnsafeEdits bool

	HeartbeatInterval time.Duration
	SyncInterval      time.Duration
	MineInterval      time.Duration
	PeerTimeout       time.Duration

	// SnapshotDir enables loading and saving snapshots with StoreBackend.
	SnapshotDir  string
	StoreBackend string

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Address:           "localhost:3001",
		Params:            blockchain.DefaultParams(),
		HeartbeatInterval: HEARTBEAT_INTERVAL,
		SyncInterval:      SYNC_INTERVAL,
		MineInterval:      MINE_INTERVAL,
		PeerTimeout:       PEER_TIMEOUT,
		StoreBackend:      database.BOLT_BACKEND,
	}
}
