package blocks

import (
	"context"
	"errors"
	"fmt"
	"simple-ledger-go/common"
	"simple-ledger-go/pow"
	"simple-ledger-go/transactions"
	"time"
)

var (
	ErrFormat = errors.New("malformed block")
	ErrRange  = errors.New("index out of range")
)

type BlockInfo struct {
	Index        uint64 `json:"index"`
	Difficulty   int    `json:"difficulty"`
	PreviousHash string `json:"previous_hash"`
}

type Block struct {
	BlockInfo
	Timestamp    float64                    `json:"timestamp"`
	Transactions []transactions.Transaction `json:"transactions"`
	MerkleRoot   string                     `json:"merkle_root"`
	MerkleTree   [][]string                 `json:"merkle_tree"`
	Nonce        uint64                     `json:"nonce"`
	Hash         string                     `json:"hash"`
}

func Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// NewBlock computes the merkle root and the header hash for nonce 0.
// A non-positive timestamp is replaced with the current time.
func NewBlock(
	bundle transactions.TxBundle,
	info BlockInfo,
	timestamp float64,
) (*Block, error) {
	if timestamp <= 0 {
		timestamp = Now()
	}
	txs := bundle.Transactions
	if txs == nil {
		txs = []transactions.Transaction{}
	}
	block := Block{
		BlockInfo:    info,
		Timestamp:    timestamp,
		Transactions: txs,
		Nonce:        0,
	}
	err := block.refreshMerkle()
	if err != nil {
		return nil, err
	}
	block.Hash, err = block.CalculateHash()
	if err != nil {
		return nil, err
	}
	return &block, nil
}

func (b *Block) Bundle() transactions.TxBundle {
	return transactions.TxBundle{Transactions: b.Transactions}
}

func (b *Block) refreshMerkle() error {
	bundle := b.Bundle()
	tree, err := bundle.MerkleTree()
	if err != nil {
		return err
	}
	b.MerkleTree = tree.Levels
	b.MerkleRoot = tree.Root()
	return nil
}

func (b *Block) HashWithNonce(nonce uint64) (string, error) {
	header := map[string]interface{}{
		"index":         b.Index,
		"previous_hash": b.PreviousHash,
		"timestamp":     b.Timestamp,
		"nonce":         nonce,
		"merkle_root":   b.MerkleRoot,
	}
	return common.HashCanonical(header)
}

func (b *Block) CalculateHash() (string, error) {
	return b.HashWithNonce(b.Nonce)
}

// Mine searches for a nonce meeting the block's difficulty. Nothing is
// changed if ctx ends first.
func (b *Block) Mine(ctx context.Context) error {
	nonce, hash, err := pow.NewProofOfWork(b, b.Difficulty).Run(ctx)
	if err != nil {
		return err
	}
	b.Nonce = nonce
	b.Hash = hash
	return nil
}

func (b *Block) HasValidProof() bool {
	return pow.Validate(b.Hash, b.Difficulty)
}

func (b *Block) TxHashes() ([]string, error) {
	bundle := b.Bundle()
	return bundle.Hashes()
}

func (b *Block) checkTxIndex(txIndex int) error {
	if txIndex < 0 || txIndex >= len(b.Transactions) {
		return fmt.Errorf(
			"transaction %d of block %d (has %d): %w",
			txIndex, b.Index, len(b.Transactions), ErrRange,
		)
	}
	return nil
}

// CheckFormat validates the shape of a block received from elsewhere.
func (b *Block) CheckFormat() error {
	if !common.IsHexDigest(b.Hash) {
		return fmt.Errorf("hash %q: %w", b.Hash, ErrFormat)
	}
	if !common.IsHexDigest(b.PreviousHash) {
		return fmt.Errorf("previous hash %q: %w", b.PreviousHash, ErrFormat)
	}
	if !common.IsHexDigest(b.MerkleRoot) {
		return fmt.Errorf("merkle root %q: %w", b.MerkleRoot, ErrFormat)
	}
	if b.Difficulty < 1 {
		return fmt.Errorf("difficulty %d: %w", b.Difficulty, ErrFormat)
	}
	for i, tx := range b.Transactions {
		if tx == nil {
			return fmt.Errorf("transaction %d is null: %w", i, ErrFormat)
		}
	}
	return nil
}
