package blocks

import (
	"errors"
	"fmt"
	"simple-ledger-go/transactions"
)

// The functions in this file rewrite history. They exist to exercise
// tamper detection and must stay out of normal block handling.

var ErrEmptyEdit = errors.New("no modification specified")

type Edit struct {
	Field       string                   `json:"field,omitempty"`
	Value       interface{}              `json:"new_value,omitempty"`
	Replacement transactions.Transaction `json:"new_transaction,omitempty"`
}

func (e *Edit) apply(tx transactions.Transaction) (transactions.Transaction, error) {
	if e.Field != "" && e.Value != nil {
		edited, err := tx.Clone()
		if err != nil {
			return nil, err
		}
		edited[e.Field] = e.Value
		return edited, nil
	}
	if e.Replacement != nil {
		return e.Replacement.Clone()
	}
	return nil, ErrEmptyEdit
}

func (b *Block) swapTransaction(txIndex int, edit Edit) (transactions.Transaction, error) {
	err := b.checkTxIndex(txIndex)
	if err != nil {
		return nil, err
	}
	original := b.Transactions[txIndex]
	edited, err := edit.apply(original)
	if err != nil {
		return nil, err
	}
	b.Transactions[txIndex] = edited
	return original, nil
}

// UnsafeEditTransaction rewrites one transaction and then recomputes the
// merkle tree and header hash so the block verifies against itself.
// The nonce is kept, so the proof of work usually breaks.
func UnsafeEditTransaction(
	b *Block, txIndex int, edit Edit,
) (transactions.Transaction, string, error) {
	previousRoot := b.MerkleRoot
	original, err := b.swapTransaction(txIndex, edit)
	if err != nil {
		return nil, "", err
	}

	err = b.refreshMerkle()
	if err != nil {
		return nil, "", fmt.Errorf("rebuild merkle tree: %w", err)
	}
	b.Hash, err = b.CalculateHash()
	if err != nil {
		return nil, "", err
	}
	return original, previousRoot, nil
}

// UnsafeTamperTransaction rewrites one transaction and leaves the merkle
// root, tree and hash stale.
func UnsafeTamperTransaction(
	b *Block, txIndex int, edit Edit,
) (transactions.Transaction, error) {
	return b.swapTransaction(txIndex, edit)
}
