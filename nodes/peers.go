package nodes

import (
	"context"
	"errors"
	"simple-ledger-go/blocks"
	"simple-ledger-go/consensus"
	"simple-ledger-go/p2p"
	"sync"
)

// FetchChains asks every known peer for its chain in parallel. Peers
// that fail are logged and left out.
func (n *Node) FetchChains(ctx context.Context) []consensus.Candidate {
	peers := n.Peers()
	results := make([]*consensus.Candidate, len(peers))

	var wg sync.WaitGroup
	for i, peer := range peers {
		wg.Add(1)
		go func(i int, peer string) {
			defer wg.Done()
			data, err := n.remote(peer).GetChain(ctx)
			if err != nil {
				n.logger.Warn("failed to fetch chain", "peer", peer, "err", err)
				n.dropUnreachable(ctx, peer, err)
				return
			}
			results[i] = &consensus.Candidate{Source: peer, Blocks: data.Chain}
		}(i, peer)
	}
	wg.Wait()

	candidates := []consensus.Candidate{}
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	return candidates
}

// dropUnreachable forgets a peer that could not be reached. Only nodes
// with a tracker do this, since the next heartbeat brings live peers back.
func (n *Node) dropUnreachable(ctx context.Context, peer string, err error) {
	if n.tracker == nil || ctx.Err() != nil || !errors.Is(err, p2p.ErrNetwork) {
		return
	}
	n.RemovePeer(peer)
	n.logger.Info("dropped unreachable peer", "peer", peer)
}

func (n *Node) remote(address string) *Remote {
	return NewRemote(address, n.rpc)
}

// broadcastBlock delivers block to every peer without waiting. Each
// delivery is bounded by the peer timeout and failures are only logged.
func (n *Node) broadcastBlock(block *blocks.Block) {
	raw, err := block.Serialize()
	if err != nil {
		n.logger.Error("failed to encode block for broadcast", "err", err)
		return
	}
	from := n.Addr()
	for _, peer := range n.Peers() {
		go func(peer string) {
			ctx, cancel := context.WithTimeout(context.Background(), n.config.PeerTimeout)
			defer cancel()
			decision, err := n.remote(peer).SendBlock(ctx, from, raw)
			if err != nil {
				n.logger.Warn("failed to broadcast block", "peer", peer, "err", err)
				return
			}
			n.logger.Debug(
				"block delivered",
				"peer", peer,
				"accepted", decision.Accepted,
				"reason", decision.Reason,
			)
		}(peer)
	}
}
