package blocks

import (
	"encoding/json"
	"fmt"
	"simple-ledger-go/common"
	"simple-ledger-go/transactions"
)

func (b *Block) Serialize() ([]byte, error) {
	return common.Encode(b)
}

// Deserialize restores every field of a block. Hash and merkle root are
// taken as stored; use VerifySelf or VerifyIntegrity to check them.
func Deserialize(bs []byte) (*Block, error) {
	block, err := common.Decode[Block](bs)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrFormat)
	}
	return normalize(block)
}

// FromRaw is Deserialize for a block embedded in a larger message.
func FromRaw(raw json.RawMessage) (*Block, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("empty block: %w", ErrFormat)
	}
	return Deserialize(raw)
}

func normalize(block *Block) (*Block, error) {
	if block.Transactions == nil {
		block.Transactions = []transactions.Transaction{}
	}
	if block.MerkleTree == nil {
		block.MerkleTree = [][]string{}
	}
	err := block.CheckFormat()
	if err != nil {
		return nil, err
	}
	return block, nil
}

// Copy returns a deep copy of b.
func (b *Block) Copy() (*Block, error) {
	enc, err := b.Serialize()
	if err != nil {
		return nil, err
	}
	block, err := common.Decode[Block](enc)
	if err != nil {
		return nil, err
	}
	if block.Transactions == nil {
		block.Transactions = []transactions.Transaction{}
	}
	return block, nil
}
