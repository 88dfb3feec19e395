package blockchain

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"simple-ledger-go/blocks"
	"simple-ledger-go/common"
	"simple-ledger-go/memory"
	"simple-ledger-go/transactions"
)

var ErrInvalidChain = errors.New("invalid chain")

func invalid(index int, reason string) error {
	return fmt.Errorf("block %d: %s: %w", index, reason, ErrInvalidChain)
}

// ValidateBlocks checks a whole sequence: a self-consistent genesis, then
// for every block a matching header hash, merkle root, link to its
// predecessor and proof of work against its own difficulty.
func ValidateBlocks(chain []*blocks.Block) error {
	if len(chain) == 0 {
		return fmt.Errorf("empty chain: %w", ErrInvalidChain)
	}
	genesis := chain[0]
	if genesis == nil {
		return invalid(0, "missing")
	}
	if genesis.PreviousHash != common.ZeroHash {
		return invalid(0, "genesis previous hash is not zero")
	}

	for i, block := range chain {
		if block == nil {
			return invalid(i, "missing")
		}
		report, err := block.VerifySelf()
		if err != nil {
			return invalid(i, err.Error())
		}
		if !report.HashOK {
			return invalid(i, "hash mismatch")
		}
		if !report.MerkleOK {
			return invalid(i, "merkle root mismatch")
		}
		if !block.HasValidProof() {
			return invalid(i, "proof of work")
		}
		if i > 0 && block.PreviousHash != chain[i-1].Hash {
			return invalid(i, "previous hash mismatch")
		}
	}
	return nil
}

// CalculateWork sums every block hash read as a base-16 integer.
// A malformed hash contributes nothing.
func CalculateWork(chain []*blocks.Block) *big.Int {
	total := new(big.Int)
	for _, block := range chain {
		n, ok := new(big.Int).SetString(block.Hash, 16)
		if ok {
			total.Add(total, n)
		}
	}
	return total
}

// CompareAndReplace swaps in candidate when better approves it against
// the current sequence. The check and the swap happen under one lock.
func (bc *Blockchain) CompareAndReplace(
	candidate []*blocks.Block,
	better func(candidate []*blocks.Block, local []*blocks.Block) bool,
) (bool, error) {
	bc.Lock()
	defer bc.Unlock()
	if !better(candidate, bc.blocks) {
		return false, nil
	}
	err := bc.replaceBlocks(candidate)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (bc *Blockchain) ReplaceBlocks(candidate []*blocks.Block) error {
	bc.Lock()
	defer bc.Unlock()
	return bc.replaceBlocks(candidate)
}

// replaceBlocks installs candidate wholesale. Transactions from the
// abandoned local suffix go back to the head of the pending queue;
// pending transactions the candidate already holds are dropped.
func (bc *Blockchain) replaceBlocks(candidate []*blocks.Block) error {
	err := ValidateBlocks(candidate)
	if err != nil {
		return err
	}

	fork := 0
	for fork < len(bc.blocks) && fork < len(candidate) &&
		bc.blocks[fork].Hash == candidate[fork].Hash {
		fork++
	}

	adopted := map[string]bool{}
	adoptedKeys := []string{}
	for _, block := range candidate[fork:] {
		keys, err := memory.GetTxKeys(block)
		if err != nil {
			return err
		}
		for _, k := range keys {
			adopted[k] = true
		}
		adoptedKeys = append(adoptedKeys, keys...)
	}

	requeue := []transactions.Transaction{}
	for _, block := range bc.blocks[fork:] {
		for _, tx := range block.Transactions {
			k, err := memory.TxKey(tx)
			if err != nil {
				return err
			}
			if !adopted[k] {
				requeue = append(requeue, tx)
			}
		}
	}
	err = bc.pending.Requeue(requeue...)
	if err != nil {
		return err
	}
	bc.pending.BatchRemove(adoptedKeys)

	slog.Info(
		"replaced chain",
		"from_length", len(bc.blocks),
		"to_length", len(candidate),
		"fork_index", fork,
		"requeued", len(requeue),
	)
	bc.blocks = make([]*blocks.Block, len(candidate))
	copy(bc.blocks, candidate)
	return nil
}
