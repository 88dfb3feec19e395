package blockchain

import (
	"fmt"
	"simple-ledger-go/blocks"
	"simple-ledger-go/common"
	"simple-ledger-go/memory"
	"simple-ledger-go/transactions"
)

// ChainData is the wire and snapshot form of a Blockchain.
type ChainData struct {
	Chain               []*blocks.Block            `json:"chain"`
	PendingTransactions []transactions.Transaction `json:"pending_transactions"`
	Difficulty          int                        `json:"difficulty"`
	TargetBlockTime     float64                    `json:"target_block_time"`
	AdjustmentInterval  int                        `json:"adjustment_interval"`
	TimeTolerance       float64                    `json:"time_tolerance"`
	BlockTimes          []float64                  `json:"block_times"`
}

func (d *ChainData) Params() Params {
	return Params{
		Difficulty:         d.Difficulty,
		TargetBlockTime:    d.TargetBlockTime,
		AdjustmentInterval: d.AdjustmentInterval,
		TimeTolerance:      d.TimeTolerance,
	}
}

func (bc *Blockchain) Snapshot() *ChainData {
	bc.Lock()
	defer bc.Unlock()
	chain := make([]*blocks.Block, len(bc.blocks))
	copy(chain, bc.blocks)
	times := make([]float64, len(bc.blockTimes))
	copy(times, bc.blockTimes)
	return &ChainData{
		Chain:               chain,
		PendingTransactions: bc.pending.GetAll(),
		Difficulty:          bc.params.Difficulty,
		TargetBlockTime:     bc.params.TargetBlockTime,
		AdjustmentInterval:  bc.params.AdjustmentInterval,
		TimeTolerance:       bc.params.TimeTolerance,
		BlockTimes:          times,
	}
}

func (bc *Blockchain) Serialize() ([]byte, error) {
	return common.Encode(bc.Snapshot())
}

func DecodeChainData(bs []byte) (*ChainData, error) {
	data, err := common.Decode[ChainData](bs)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, blocks.ErrFormat)
	}
	err = data.check()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (d *ChainData) check() error {
	if len(d.Chain) == 0 {
		return fmt.Errorf("chain has no blocks: %w", blocks.ErrFormat)
	}
	for i, block := range d.Chain {
		if block == nil {
			return fmt.Errorf("block %d is null: %w", i, blocks.ErrFormat)
		}
		if block.Transactions == nil {
			block.Transactions = []transactions.Transaction{}
		}
		err := block.CheckFormat()
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	if d.PendingTransactions == nil {
		d.PendingTransactions = []transactions.Transaction{}
	}
	if d.BlockTimes == nil {
		d.BlockTimes = []float64{}
	}
	return nil
}

// FromChainData restores a Blockchain from a snapshot without
// re-validating its blocks.
func FromChainData(d *ChainData) (*Blockchain, error) {
	err := d.check()
	if err != nil {
		return nil, err
	}
	params := d.Params()
	err = params.Validate()
	if err != nil {
		return nil, err
	}
	pending := memory.NewTransactionPool()
	err = pending.Reset(d.PendingTransactions)
	if err != nil {
		return nil, err
	}
	chain := make([]*blocks.Block, len(d.Chain))
	copy(chain, d.Chain)
	times := make([]float64, len(d.BlockTimes))
	copy(times, d.BlockTimes)
	return &Blockchain{
		blocks:     chain,
		pending:    pending,
		params:     params,
		blockTimes: times,
	}, nil
}

func Deserialize(bs []byte) (*Blockchain, error) {
	data, err := DecodeChainData(bs)
	if err != nil {
		return nil, err
	}
	return FromChainData(data)
}
