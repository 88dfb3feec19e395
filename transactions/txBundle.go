package transactions

import (
	"simple-ledger-go/merkleTree"
)

type TxBundle struct {
	Transactions []Transaction
}

func (b *TxBundle) Hashes() ([]string, error) {
	hashes := make([]string, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		h, err := tx.Hash()
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

func (b *TxBundle) HashTransactions() (string, error) {
	hashes, err := b.Hashes()
	if err != nil {
		return "", err
	}
	return merkleTree.ComputeRoot(hashes), nil
}

func (b *TxBundle) MerkleTree() (*merkleTree.MerkleTree, error) {
	hashes, err := b.Hashes()
	if err != nil {
		return nil, err
	}
	return merkleTree.NewMerkleTree(hashes), nil
}
