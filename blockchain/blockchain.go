package blockchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"simple-ledger-go/blocks"
	"simple-ledger-go/common"
	"simple-ledger-go/memory"
	"simple-ledger-go/transactions"
	"sync"
	"time"
)

var (
	ErrEmptyPendingSet = errors.New("no pending transactions")
	ErrRange           = errors.New("block index out of range")
	ErrStaleTip        = errors.New("chain tip moved while mining")

	ErrNotLinked      = errors.New("previous hash does not match chain tip")
	ErrProofOfWork    = errors.New("hash misses required difficulty")
	ErrHashMismatch   = errors.New("hash does not match header")
	ErrMerkleMismatch = errors.New("merkle root does not match transactions")
)

// Blockchain owns the block sequence, the pending queue and the
// difficulty controller. Every exported method runs as one critical
// section.
type Blockchain struct {
	sync.Mutex
	blocks     []*blocks.Block
	pending    *memory.TxPool
	params     Params
	blockTimes []float64

	beforeCommit func()
}

func NewBlockchain(ctx context.Context, params Params) (*Blockchain, error) {
	err := params.Validate()
	if err != nil {
		return nil, err
	}
	genesis, err := MineGenesis(ctx, params.Difficulty)
	if err != nil {
		return nil, err
	}

	bc := Blockchain{
		blocks:     []*blocks.Block{genesis},
		pending:    memory.NewTransactionPool(),
		params:     params,
		blockTimes: []float64{},
	}
	slog.Info(
		"blockchain starts",
		"difficulty", params.Difficulty,
		"genesis", genesis.Hash,
	)
	return &bc, nil
}

func MineGenesis(ctx context.Context, difficulty int) (*blocks.Block, error) {
	genesis, err := blocks.NewBlock(
		transactions.TxBundle{},
		blocks.BlockInfo{
			Index:        0,
			Difficulty:   difficulty,
			PreviousHash: common.ZeroHash,
		},
		0,
	)
	if err != nil {
		return nil, err
	}
	err = genesis.Mine(ctx)
	if err != nil {
		return nil, err
	}
	return genesis, nil
}

func (bc *Blockchain) latest() *blocks.Block {
	return bc.blocks[len(bc.blocks)-1]
}

func (bc *Blockchain) Latest() *blocks.Block {
	bc.Lock()
	defer bc.Unlock()
	return bc.latest()
}

func (bc *Blockchain) Len() int {
	bc.Lock()
	defer bc.Unlock()
	return len(bc.blocks)
}

func (bc *Blockchain) Difficulty() int {
	bc.Lock()
	defer bc.Unlock()
	return bc.params.Difficulty
}

func (bc *Blockchain) Params() Params {
	bc.Lock()
	defer bc.Unlock()
	return bc.params
}

func (bc *Blockchain) SetParams(p Params) error {
	err := p.Validate()
	if err != nil {
		return err
	}
	bc.Lock()
	defer bc.Unlock()
	bc.params = p
	slog.Info("mining params updated",
		"difficulty", p.Difficulty,
		"target_block_time", p.TargetBlockTime,
		"adjustment_interval", p.AdjustmentInterval,
		"time_tolerance", p.TimeTolerance,
	)
	return nil
}

// Blocks returns the current sequence. The blocks themselves are shared
// and must not be modified.
func (bc *Blockchain) Blocks() []*blocks.Block {
	bc.Lock()
	defer bc.Unlock()
	out := make([]*blocks.Block, len(bc.blocks))
	copy(out, bc.blocks)
	return out
}

func (bc *Blockchain) GetBlock(index int) (*blocks.Block, error) {
	bc.Lock()
	defer bc.Unlock()
	return bc.getBlock(index)
}

func (bc *Blockchain) getBlock(index int) (*blocks.Block, error) {
	if index < 0 || index >= len(bc.blocks) {
		return nil, fmt.Errorf(
			"block %d (chain length %d): %w", index, len(bc.blocks), ErrRange,
		)
	}
	return bc.blocks[index], nil
}

func (bc *Blockchain) AddTransaction(tx transactions.Transaction) error {
	bc.Lock()
	defer bc.Unlock()
	return bc.pending.Append(tx)
}

func (bc *Blockchain) PendingTransactions() []transactions.Transaction {
	bc.Lock()
	defer bc.Unlock()
	return bc.pending.GetAll()
}

func (bc *Blockchain) PendingLen() int {
	bc.Lock()
	defer bc.Unlock()
	return bc.pending.Len()
}

// MinePendingTransactions mines every pending transaction into a new
// block. The nonce search runs without holding the lock; the block is
// committed only if the tip is still the one it was built on.
func (bc *Blockchain) MinePendingTransactions(ctx context.Context) (*blocks.Block, error) {
	bc.Lock()
	if bc.pending.Len() == 0 {
		bc.Unlock()
		return nil, ErrEmptyPendingSet
	}
	tip := bc.latest()
	txs := bc.pending.GetAll()
	difficulty := bc.params.Difficulty
	bc.Unlock()

	block, err := blocks.NewBlock(
		transactions.TxBundle{Transactions: txs},
		blocks.BlockInfo{
			Index:        tip.Index + 1,
			Difficulty:   difficulty,
			PreviousHash: tip.Hash,
		},
		blocks.Now(),
	)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = block.Mine(ctx)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start).Seconds()
	if bc.beforeCommit != nil {
		bc.beforeCommit()
	}

	bc.Lock()
	defer bc.Unlock()
	if bc.latest().Hash != tip.Hash {
		return nil, ErrStaleTip
	}
	keys, err := memory.GetTxKeys(block)
	if err != nil {
		return nil, err
	}
	bc.blocks = append(bc.blocks, block)
	bc.pending.BatchRemove(keys)
	bc.recordBlockTime(elapsed)

	slog.Info(
		"mined block",
		"index", block.Index,
		"transactions", len(block.Transactions),
		"nonce", block.Nonce,
		"seconds", elapsed,
	)
	return block, nil
}

// AppendBlock attaches a block built on the current tip. The block's hash
// must satisfy both the chain's current difficulty and the difficulty the
// block records, and must match its header, whose merkle root must match
// its transactions. A rejected block leaves the chain untouched.
func (bc *Blockchain) AppendBlock(block *blocks.Block) error {
	bc.Lock()
	defer bc.Unlock()
	return bc.appendBlock(block)
}

func (bc *Blockchain) appendBlock(block *blocks.Block) error {
	tip := bc.latest()
	if block.PreviousHash != tip.Hash {
		return ErrNotLinked
	}
	if !common.HasLeadingZeros(block.Hash, bc.params.Difficulty) {
		return ErrProofOfWork
	}
	if !block.HasValidProof() {
		return fmt.Errorf("recorded difficulty %d: %w", block.Difficulty, ErrProofOfWork)
	}
	report, err := block.VerifySelf()
	if err != nil {
		return err
	}
	if !report.HashOK {
		return ErrHashMismatch
	}
	if !report.MerkleOK {
		return ErrMerkleMismatch
	}

	keys, err := memory.GetTxKeys(block)
	if err != nil {
		return err
	}
	bc.blocks = append(bc.blocks, block)
	bc.pending.BatchRemove(keys)
	slog.Info("appended block", "index", block.Index, "hash", block.Hash)
	return nil
}

// AddBlockTime records one mining-time sample and runs the difficulty
// controller.
func (bc *Blockchain) AddBlockTime(seconds float64) {
	bc.Lock()
	defer bc.Unlock()
	bc.recordBlockTime(seconds)
}

func (bc *Blockchain) recordBlockTime(seconds float64) {
	bc.blockTimes = append(bc.blockTimes, seconds)
	bc.adjustDifficulty()
}

func (bc *Blockchain) adjustDifficulty() {
	interval := bc.params.AdjustmentInterval
	if len(bc.blockTimes) < interval {
		return
	}

	recent := bc.blockTimes[len(bc.blockTimes)-interval:]
	var sum float64
	for _, s := range recent {
		sum += s
	}
	avg := sum / float64(interval)
	target := bc.params.TargetBlockTime
	tolerance := bc.params.TimeTolerance

	before := bc.params.Difficulty
	if avg > target*(1+tolerance) && bc.params.Difficulty > MIN_DIFFICULTY {
		bc.params.Difficulty--
	} else if avg < target*(1-tolerance) && bc.params.Difficulty < MAX_DIFFICULTY {
		bc.params.Difficulty++
	}
	bc.blockTimes = []float64{}

	if before != bc.params.Difficulty {
		slog.Info(
			"difficulty adjusted",
			"from", before, "to", bc.params.Difficulty, "average", avg,
		)
	}
}

func (bc *Blockchain) BlockTimes() []float64 {
	bc.Lock()
	defer bc.Unlock()
	out := make([]float64, len(bc.blockTimes))
	copy(out, bc.blockTimes)
	return out
}

func (bc *Blockchain) IsChainValid() bool {
	bc.Lock()
	defer bc.Unlock()
	return ValidateBlocks(bc.blocks) == nil
}

func (bc *Blockchain) CalculateWork() *big.Int {
	bc.Lock()
	defer bc.Unlock()
	return CalculateWork(bc.blocks)
}

type LinkageReport struct {
	Index        int   `json:"index"`
	PreviousLink *bool `json:"previous_link"`
	NextLink     *bool `json:"next_link"`
}

// VerifyLinkage checks the links on both sides of one block. A side
// without a neighbour is reported as nil.
func (bc *Blockchain) VerifyLinkage(index int) (*LinkageReport, error) {
	bc.Lock()
	defer bc.Unlock()
	block, err := bc.getBlock(index)
	if err != nil {
		return nil, err
	}
	report := LinkageReport{Index: index}
	if index > 0 {
		ok := block.PreviousHash == bc.blocks[index-1].Hash
		report.PreviousLink = &ok
	}
	if index < len(bc.blocks)-1 {
		ok := bc.blocks[index+1].PreviousHash == block.Hash
		report.NextLink = &ok
	}
	return &report, nil
}

// WithBlock runs f on a copy of one block while holding the lock and
// installs the copy only if f succeeds. Blocks handed out earlier by
// Blocks or Snapshot are never modified.
func (bc *Blockchain) WithBlock(index int, f func(b *blocks.Block) error) error {
	bc.Lock()
	defer bc.Unlock()
	block, err := bc.getBlock(index)
	if err != nil {
		return err
	}
	edited, err := block.Copy()
	if err != nil {
		return err
	}
	err = f(edited)
	if err != nil {
		return err
	}
	bc.blocks[index] = edited
	return nil
}
