package tracker

import (
	"context"
	"log/slog"
	"simple-ledger-go/common"
	"simple-ledger-go/p2p"
	"time"
)

const (
	HEARTBEAT_TIMEOUT = 120 * time.Second
	CLEANUP_INTERVAL  = 60 * time.Second
)

type Config struct {
	Address          string
	HeartbeatTimeout time.Duration
	CleanupInterval  time.Duration
	Logger           *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Address:          p2p.DEFAULT_TRACKER,
		HeartbeatTimeout: HEARTBEAT_TIMEOUT,
		CleanupInterval:  CLEANUP_INTERVAL,
	}
}

// Tracker serves a Directory over the p2p transport.
type Tracker struct {
	*Directory
	config Config
	server *p2p.Server
	logger *slog.Logger
}

func NewTracker(config Config) *Tracker {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("role", "tracker")
	t := Tracker{
		Directory: NewDirectory(config.HeartbeatTimeout),
		config:    config,
		server:    p2p.NewServer(logger),
		logger:    logger,
	}
	t.server.Handle(p2p.REGISTER_MSG, t.handleRegister)
	t.server.Handle(p2p.HEARTBEAT_MSG, t.handleHeartbeat)
	t.server.Handle(p2p.UNREGISTER_MSG, t.handleUnregister)
	t.server.Handle(p2p.LIST_PEERS_MSG, t.handleList)
	return &t
}

func (t *Tracker) Listen() error {
	return t.server.Listen(t.config.Address)
}

func (t *Tracker) Addr() string {
	return t.server.Addr()
}

// Run serves requests and sweeps inactive peers until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	if t.server.Addr() == "" {
		err := t.Listen()
		if err != nil {
			return err
		}
	}
	go t.cleanupLoop(ctx)
	return t.server.Serve(ctx)
}

func (t *Tracker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(t.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := t.Sweep()
			if len(removed) > 0 {
				t.logger.Info("cleaned up inactive peers", "peers", removed)
			}
		}
	}
}

func (t *Tracker) handleRegister(ctx context.Context, body []byte) (interface{}, error) {
	msg, err := common.Decode[p2p.AddressMsg](body)
	if err != nil {
		return nil, err
	}
	peers, err := t.Register(msg.Address)
	if err != nil {
		return nil, err
	}
	t.logger.Info("new peer registered", "address", msg.Address)
	return p2p.PeerListMsg{Peers: peers}, nil
}

func (t *Tracker) handleHeartbeat(ctx context.Context, body []byte) (interface{}, error) {
	msg, err := common.Decode[p2p.AddressMsg](body)
	if err != nil {
		return nil, err
	}
	peers, err := t.Heartbeat(msg.Address)
	if err != nil {
		t.logger.Warn("heartbeat rejected", "address", msg.Address, "err", err)
		return nil, p2p.Reject("unknown_peer", err, nil)
	}
	return p2p.PeerListMsg{Peers: peers}, nil
}

func (t *Tracker) handleUnregister(ctx context.Context, body []byte) (interface{}, error) {
	msg, err := common.Decode[p2p.AddressMsg](body)
	if err != nil {
		return nil, err
	}
	peers, err := t.Unregister(msg.Address)
	if err != nil {
		return nil, err
	}
	t.logger.Info("peer unregistered", "address", msg.Address)
	return p2p.PeerListMsg{Peers: peers}, nil
}

func (t *Tracker) handleList(ctx context.Context, body []byte) (interface{}, error) {
	return p2p.PeerListMsg{Peers: t.List()}, nil
}
