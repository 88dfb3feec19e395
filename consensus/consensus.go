package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/blocks"
)

type Reason string

const (
	REASON_INVALID_FORMAT        Reason = "invalid_format"
	REASON_PREVIOUS_HASH         Reason = "previous_hash_mismatch"
	REASON_INVALID_PROOF_OF_WORK Reason = "invalid_proof_of_work"
	REASON_HASH_MISMATCH         Reason = "hash_mismatch"
	REASON_MERKLE_MISMATCH       Reason = "merkle_mismatch"
)

var ErrValidation = errors.New("block rejected")

type ValidationError struct {
	Reason Reason
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("block rejected: %s", e.Reason)
	}
	return fmt.Sprintf("block rejected: %s: %v", e.Reason, e.Err)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	return "", false
}

// Candidate is a chain offered by a peer.
type Candidate struct {
	Source string
	Blocks []*blocks.Block
}

type ChainFetcher interface {
	// FetchChains returns the chains of every reachable peer. Unreachable
	// peers are left out.
	FetchChains(ctx context.Context) []Candidate
}

// Outranks is the chain order: longer wins, and at equal length the
// smaller cumulative work wins.
func Outranks(candidate []*blocks.Block, local []*blocks.Block) bool {
	if len(candidate) != len(local) {
		return len(candidate) > len(local)
	}
	return blockchain.CalculateWork(candidate).Cmp(blockchain.CalculateWork(local)) < 0
}

// SelectBest returns the highest ranked valid chain among local and the
// candidates, or nil when none of them is valid.
func SelectBest(local []*blocks.Block, candidates []Candidate) []*blocks.Block {
	var best []*blocks.Block
	if blockchain.ValidateBlocks(local) == nil {
		best = local
	}
	for _, c := range candidates {
		err := blockchain.ValidateBlocks(c.Blocks)
		if err != nil {
			slog.Debug("ignoring invalid chain", "peer", c.Source, "err", err)
			continue
		}
		if best == nil || Outranks(c.Blocks, best) {
			best = c.Blocks
		}
	}
	return best
}

// adopt installs best unless the local chain changed in the meantime
// into something that ranks at least as high.
func adopt(chain *blockchain.Blockchain, best []*blocks.Block) (bool, error) {
	return chain.CompareAndReplace(best, func(candidate, local []*blocks.Block) bool {
		return blockchain.ValidateBlocks(local) != nil || Outranks(candidate, local)
	})
}

// Sync pulls every peer chain and adopts the best valid one.
func Sync(ctx context.Context, chain *blockchain.Blockchain, fetcher ChainFetcher) (bool, error) {
	candidates := fetcher.FetchChains(ctx)
	if len(candidates) == 0 {
		return false, nil
	}
	local := chain.Blocks()
	best := SelectBest(local, candidates)
	if best == nil || sameTip(best, local) {
		return false, nil
	}
	replaced, err := adopt(chain, best)
	if err != nil {
		return false, err
	}
	if replaced {
		slog.Info("adopted peer chain", "length", len(best), "tip", best[len(best)-1].Hash)
	}
	return replaced, nil
}

func sameTip(a []*blocks.Block, b []*blocks.Block) bool {
	return len(a) == len(b) && a[len(a)-1].Hash == b[len(b)-1].Hash
}

type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason,omitempty"`
	// Adopted is set when a peer chain replaced the local one on the way.
	Adopted bool `json:"adopted,omitempty"`

	cause error
}

// Err is nil for an accepted block and a *ValidationError otherwise.
func (d *Decision) Err() error {
	if d.Accepted {
		return nil
	}
	return &ValidationError{Reason: d.Reason, Err: d.cause}
}

// ReceiveBlock decides whether a delivered block joins the local chain.
// A block that does not link to the tip triggers fork resolution against
// the peer chains before it is tried again. Rejections are reported in
// the Decision; the error is only for local failures.
func ReceiveBlock(
	ctx context.Context,
	chain *blockchain.Blockchain,
	raw []byte,
	fetcher ChainFetcher,
) (*Decision, error) {
	block, err := blocks.Deserialize(raw)
	if err != nil {
		return &Decision{Reason: REASON_INVALID_FORMAT, cause: err}, nil
	}

	err = chain.AppendBlock(block)
	if !errors.Is(err, blockchain.ErrNotLinked) {
		return decide(block, err, false)
	}

	slog.Warn(
		"received block does not link to tip",
		"index", block.Index,
		"previous_hash", block.PreviousHash,
		"tip", chain.Latest().Hash,
	)
	adopted, err := Sync(ctx, chain, fetcher)
	if err != nil {
		return nil, err
	}
	if !adopted {
		return &Decision{Reason: REASON_PREVIOUS_HASH, cause: blockchain.ErrNotLinked}, nil
	}
	if chain.Latest().Hash == block.Hash {
		return &Decision{Accepted: true, Adopted: true}, nil
	}
	return decide(block, chain.AppendBlock(block), true)
}

func decide(block *blocks.Block, err error, adopted bool) (*Decision, error) {
	var reason Reason
	switch {
	case err == nil:
		return &Decision{Accepted: true, Adopted: adopted}, nil
	case errors.Is(err, blockchain.ErrNotLinked):
		reason = REASON_PREVIOUS_HASH
	case errors.Is(err, blockchain.ErrProofOfWork):
		reason = REASON_INVALID_PROOF_OF_WORK
	case errors.Is(err, blockchain.ErrHashMismatch):
		reason = REASON_HASH_MISMATCH
	case errors.Is(err, blockchain.ErrMerkleMismatch):
		reason = REASON_MERKLE_MISMATCH
	default:
		return nil, err
	}
	slog.Warn("rejected block", "index", block.Index, "reason", reason)
	return &Decision{Reason: reason, Adopted: adopted, cause: err}, nil
}
