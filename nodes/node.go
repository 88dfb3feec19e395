package nodes

import (
	"context"
	"errors"
	"log/slog"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/database"
	"simple-ledger-go/epoch"
	"simple-ledger-go/p2p"
	"simple-ledger-go/tracker"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnsafeDisabled = errors.New("unsafe edits are disabled on this node")
	ErrNoStore        = errors.New("snapshot storage is not configured")
)

// Node owns one chain and everything needed to serve it to peers.
type Node struct {
	KnownNodes
	config  Config
	chain   *blockchain.Blockchain
	server  *p2p.Server
	rpc     *p2p.Client
	tracker *tracker.Client
	store   database.Store
	logger  *slog.Logger

	mu   sync.Mutex
	self string
}

func NewNode(ctx context.Context, config Config) (*Node, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("node", p2p.ShortId(config.Address))

	n := Node{
		config: config,
		server: p2p.NewServer(logger),
		rpc:    p2p.NewClient(config.PeerTimeout),
		logger: logger,
		self:   config.Address,
	}

	if config.SnapshotDir != "" {
		store, err := database.Open(config.StoreBackend, config.SnapshotDir, storeId(config.Address))
		if err != nil {
			return nil, err
		}
		n.store = store
	}

	chain, err := n.loadOrCreate(ctx)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.chain = chain
	n.AppendPeer(config.Peers...)
	n.registerHandlers()
	return &n, nil
}

func storeId(address string) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(address)
}

func (n *Node) loadOrCreate(ctx context.Context) (*blockchain.Blockchain, error) {
	if n.store != nil {
		data, err := n.store.Load()
		if err != nil {
			return nil, err
		}
		if data != nil {
			chain, err := blockchain.FromChainData(data)
			if err != nil {
				return nil, err
			}
			if !chain.IsChainValid() {
				n.logger.Warn("loaded snapshot does not validate", "path", n.store.Path())
			}
			recorded, err := n.store.Length()
			if err != nil {
				return nil, err
			}
			if recorded != chain.Len() {
				n.logger.Warn("snapshot length record disagrees", "recorded", recorded, "length", chain.Len())
			}
			n.logger.Info("loaded snapshot", "path", n.store.Path(), "length", chain.Len())
			return chain, nil
		}
	}
	return blockchain.NewBlockchain(ctx, n.config.Params)
}

func (n *Node) Chain() *blockchain.Blockchain {
	return n.chain
}

// Addr is the address peers reach this node at.
func (n *Node) Addr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.self
}

func (n *Node) Listen() error {
	err := n.server.Listen(n.config.Address)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.self = n.server.Addr()
	n.mu.Unlock()
	if n.config.Tracker != "" {
		n.tracker = tracker.NewClient(n.config.Tracker, n.Addr(), n.rpc)
	}
	return nil
}

// Run serves requests and drives the background loops until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	if n.server.Addr() == "" {
		err := n.Listen()
		if err != nil {
			return err
		}
	}

	if n.tracker != nil {
		n.register(ctx)
	}

	var wg sync.WaitGroup
	loops := []struct {
		enabled  bool
		f        func(ctx context.Context)
		interval time.Duration
	}{
		{n.tracker != nil, n.heartbeat, n.config.HeartbeatInterval},
		{true, n.periodicSync, n.config.SyncInterval},
		{n.config.Miner, n.mineIfPending, n.config.MineInterval},
	}
	for _, l := range loops {
		if !l.enabled || l.interval <= 0 {
			continue
		}
		f := l.f
		e := epoch.NewEpoch(func() { f(ctx) })
		wg.Add(1)
		go func(interval time.Duration) {
			defer wg.Done()
			e.Drive(ctx, interval)
		}(l.interval)
	}

	err := n.server.Serve(ctx)
	wg.Wait()
	n.shutdown()
	return err
}

func (n *Node) shutdown() {
	if n.tracker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), n.config.PeerTimeout)
		defer cancel()
		_, err := n.tracker.Unregister(ctx)
		if err != nil {
			n.logger.Warn("failed to unregister", "err", err)
		}
	}
	if n.store != nil {
		_, err := n.SaveSnapshot()
		if err != nil {
			n.logger.Warn("failed to save snapshot", "err", err)
		}
	}
}

func (n *Node) Close() error {
	if n.store == nil {
		return nil
	}
	return n.store.Close()
}
