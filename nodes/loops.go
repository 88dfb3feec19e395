package nodes

import (
	"context"
	"errors"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/consensus"
	"simple-ledger-go/tracker"
)

func (n *Node) register(ctx context.Context) {
	peers, err := n.tracker.Register(ctx)
	if err != nil {
		n.logger.Warn("failed to register with tracker", "tracker", n.config.Tracker, "err", err)
		return
	}
	n.updatePeers(peers)
	n.logger.Info("registered with tracker", "tracker", n.config.Tracker, "peers", n.PeerLen())
}

func (n *Node) updatePeers(list []string) {
	list = append(list, n.config.Peers...)
	n.ReplacePeers(list, n.Addr())
}

func (n *Node) heartbeat(ctx context.Context) {
	peers, err := n.tracker.Heartbeat(ctx)
	if errors.Is(err, tracker.ErrUnknownPeer) {
		n.logger.Info("tracker forgot this node, registering again")
		n.register(ctx)
		return
	}
	if err != nil {
		n.logger.Warn("heartbeat failed", "err", err)
		return
	}
	n.updatePeers(peers)
}

func (n *Node) periodicSync(ctx context.Context) {
	if n.PeerLen() == 0 {
		return
	}
	_, err := consensus.Sync(ctx, n.chain, n)
	if err != nil && ctx.Err() == nil {
		n.logger.Warn("sync failed", "err", err)
	}
}

func (n *Node) mineIfPending(ctx context.Context) {
	if n.chain.PendingLen() == 0 {
		return
	}
	_, err := n.Mine(ctx)
	switch {
	case err == nil:
	case errors.Is(err, blockchain.ErrEmptyPendingSet), errors.Is(err, blockchain.ErrStaleTip):
		n.logger.Debug("mining round skipped", "err", err)
	case ctx.Err() != nil:
	default:
		n.logger.Warn("mining failed", "err", err)
	}
}
