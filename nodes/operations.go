package nodes

import (
	"context"
	"errors"
	"fmt"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/blocks"
	"simple-ledger-go/consensus"
	"simple-ledger-go/p2p"
	"simple-ledger-go/transactions"
	"sync"
)

func (n *Node) SubmitTransaction(tx transactions.Transaction) error {
	err := n.chain.AddTransaction(tx)
	if err != nil {
		return err
	}
	n.logger.Info("transaction queued", "pending", n.chain.PendingLen())
	return nil
}

// Mine syncs with peers, mines every pending transaction and hands the
// new block to the peers in the background.
func (n *Node) Mine(ctx context.Context) (*blocks.Block, error) {
	if n.PeerLen() > 0 {
		_, err := consensus.Sync(ctx, n.chain, n)
		if err != nil {
			n.logger.Warn("pre-mining sync failed", "err", err)
		}
	}
	block, err := n.chain.MinePendingTransactions(ctx)
	if err != nil {
		return nil, err
	}
	n.broadcastBlock(block)
	return block, nil
}

func (n *Node) GetChain() *blockchain.ChainData {
	return n.chain.Snapshot()
}

func (n *Node) ReceiveBlock(ctx context.Context, raw []byte) (*consensus.Decision, error) {
	return consensus.ReceiveBlock(ctx, n.chain, raw, n)
}

func (n *Node) GetMiningParams() blockchain.Params {
	return n.chain.Params()
}

func (n *Node) SetMiningParams(update blockchain.ParamsUpdate) (blockchain.Params, error) {
	params := update.Apply(n.chain.Params())
	err := n.chain.SetParams(params)
	if err != nil {
		return n.chain.Params(), err
	}
	return params, nil
}

func (n *Node) unsafeAllowed() error {
	if !n.config.AllowUnsafeEdits {
		return ErrUnsafeDisabled
	}
	return nil
}

// EditBlock rewrites a transaction and keeps the block self consistent.
func (n *Node) EditBlock(blockIndex int, txIndex int, edit blocks.Edit) (*p2p.EditBlockResult, error) {
	err := n.unsafeAllowed()
	if err != nil {
		return nil, err
	}
	result := p2p.EditBlockResult{}
	err = n.chain.WithBlock(blockIndex, func(b *blocks.Block) error {
		original, previousRoot, err := blocks.UnsafeEditTransaction(b, txIndex, edit)
		if err != nil {
			return err
		}
		result.OriginalTransaction = original
		result.OriginalMerkleRoot = previousRoot
		result.Block, err = b.Copy()
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Warn("block edited", "block", blockIndex, "transaction", txIndex)
	return &result, nil
}

// TamperTransaction rewrites a transaction and leaves every digest stale.
func (n *Node) TamperTransaction(blockIndex int, txIndex int, edit blocks.Edit) (*p2p.EditBlockResult, error) {
	err := n.unsafeAllowed()
	if err != nil {
		return nil, err
	}
	result := p2p.EditBlockResult{}
	err = n.chain.WithBlock(blockIndex, func(b *blocks.Block) error {
		original, err := blocks.UnsafeTamperTransaction(b, txIndex, edit)
		if err != nil {
			return err
		}
		result.OriginalTransaction = original
		result.Block, err = b.Copy()
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Warn("transaction tampered", "block", blockIndex, "transaction", txIndex)
	return &result, nil
}

type PeerComparison struct {
	HashMatch         bool   `json:"hash_match"`
	PreviousHashMatch bool   `json:"previous_hash_match"`
	MerkleRootMatch   bool   `json:"merkle_root_match"`
	DifficultyMatch   bool   `json:"difficulty_match"`
	TransactionsMatch bool   `json:"transactions_match"`
	Error             string `json:"error,omitempty"`
}

type BlockVerification struct {
	BlockIndex int                        `json:"block_index"`
	Integrity  *blocks.IntegrityReport    `json:"local_verification"`
	ProofOK    bool                       `json:"proof_of_work_ok"`
	Linkage    *blockchain.LinkageReport  `json:"linkage"`
	Peers      map[string]*PeerComparison `json:"peer_verification"`
}

// VerifyBlock checks one block locally and compares it with the block at
// the same index on every peer. A nil index means the tip.
func (n *Node) VerifyBlock(ctx context.Context, index *int) (*BlockVerification, error) {
	blockIndex := n.chain.Len() - 1
	if index != nil {
		blockIndex = *index
	}

	var (
		integrity *blocks.IntegrityReport
		proofOK   bool
		local     *blocks.Block
	)
	err := n.chain.WithBlock(blockIndex, func(b *blocks.Block) error {
		var err error
		integrity, err = b.VerifyIntegrity()
		if err != nil {
			return err
		}
		proofOK = b.HasValidProof()
		local, err = b.Copy()
		return err
	})
	if err != nil {
		return nil, err
	}
	linkage, err := n.chain.VerifyLinkage(blockIndex)
	if err != nil {
		return nil, err
	}

	return &BlockVerification{
		BlockIndex: blockIndex,
		Integrity:  integrity,
		ProofOK:    proofOK,
		Linkage:    linkage,
		Peers:      n.compareWithPeers(ctx, local, blockIndex),
	}, nil
}

func (n *Node) compareWithPeers(ctx context.Context, local *blocks.Block, index int) map[string]*PeerComparison {
	localHashes, localErr := local.TxHashes()
	results := map[string]*PeerComparison{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, peer := range n.Peers() {
		wg.Add(1)
		go func(peer string) {
			defer wg.Done()
			cmp := n.compareWithPeer(ctx, peer, local, localHashes, localErr, index)
			mu.Lock()
			results[peer] = cmp
			mu.Unlock()
		}(peer)
	}
	wg.Wait()
	return results
}

func (n *Node) compareWithPeer(
	ctx context.Context,
	peer string,
	local *blocks.Block,
	localHashes []string,
	localErr error,
	index int,
) *PeerComparison {
	data, err := n.remote(peer).GetChain(ctx)
	if err != nil {
		return &PeerComparison{Error: err.Error()}
	}
	if index >= len(data.Chain) {
		return &PeerComparison{Error: "block not found on peer"}
	}
	theirs := data.Chain[index]
	cmp := PeerComparison{
		HashMatch:         local.Hash == theirs.Hash,
		PreviousHashMatch: local.PreviousHash == theirs.PreviousHash,
		MerkleRootMatch:   local.MerkleRoot == theirs.MerkleRoot,
		DifficultyMatch:   local.Difficulty == theirs.Difficulty,
	}
	theirHashes, err := theirs.TxHashes()
	if err == nil && localErr == nil {
		cmp.TransactionsMatch = equalStrings(localHashes, theirHashes)
	}
	return &cmp
}

func equalStrings(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type TxReport struct {
	BlockIndex   int                               `json:"block_index"`
	TxIndex      int                               `json:"tx_index"`
	Verification *blocks.TxVerification            `json:"verification"`
	Peers        map[string]*blocks.TxVerification `json:"peer_verification,omitempty"`
	PeerErrors   map[string]string                 `json:"peer_errors,omitempty"`
}

// VerifyTransaction checks one transaction against its block's stored
// tree, optionally asking every peer for their view of the same position.
func (n *Node) VerifyTransaction(
	ctx context.Context, blockIndex int, txIndex int, withPeers bool,
) (*TxReport, error) {
	report := TxReport{BlockIndex: blockIndex, TxIndex: txIndex}
	err := n.chain.WithBlock(blockIndex, func(b *blocks.Block) error {
		var err error
		report.Verification, err = b.VerifyTransaction(txIndex)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !withPeers {
		return &report, nil
	}

	report.Peers = map[string]*blocks.TxVerification{}
	report.PeerErrors = map[string]string{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, peer := range n.Peers() {
		wg.Add(1)
		go func(peer string) {
			defer wg.Done()
			theirs, err := n.remote(peer).VerifyTransaction(ctx, blockIndex, txIndex, false)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.PeerErrors[peer] = err.Error()
				return
			}
			report.Peers[peer] = theirs.Verification
		}(peer)
	}
	wg.Wait()
	return &report, nil
}

func (n *Node) SaveSnapshot() (*p2p.SnapshotResult, error) {
	if n.store == nil {
		return nil, ErrNoStore
	}
	data := n.chain.Snapshot()
	err := n.store.Save(data)
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	n.logger.Info("snapshot saved", "backend", n.store.Backend(), "path", n.store.Path(), "length", len(data.Chain))
	return &p2p.SnapshotResult{
		Backend: n.store.Backend(),
		Path:    n.store.Path(),
		Length:  len(data.Chain),
	}, nil
}

// rejection maps a consensus decision onto the transport's reject form.
func rejection(d *consensus.Decision) error {
	err := d.Err()
	if err == nil {
		return nil
	}
	var verr *consensus.ValidationError
	if errors.As(err, &verr) {
		return p2p.Reject(string(verr.Reason), err, d)
	}
	return err
}
