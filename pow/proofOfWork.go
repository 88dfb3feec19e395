package pow

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"simple-ledger-go/common"
)

const (
	MAX_NONCE = math.MaxUint64

	// nonces tried between context checks
	CHECK_INTERVAL = 1 << 12
)

var ErrNonceExhausted = errors.New("nonce space exhausted")

// Target is anything whose header can be hashed for a candidate nonce.
type Target interface {
	HashWithNonce(nonce uint64) (string, error)
}

type ProofOfWork struct {
	target     Target
	difficulty int
}

func NewProofOfWork(t Target, difficulty int) *ProofOfWork {
	return &ProofOfWork{
		target:     t,
		difficulty: difficulty,
	}
}

// Run searches nonces from zero upwards and returns the first one whose
// hash meets the difficulty. It gives up with ctx.Err() once ctx is done.
func (pow *ProofOfWork) Run(ctx context.Context) (uint64, string, error) {
	slog.Debug("mining a new block", "difficulty", pow.difficulty)
	var nonce uint64 = 0
	for {
		if nonce%CHECK_INTERVAL == 0 {
			if err := ctx.Err(); err != nil {
				return 0, "", err
			}
		}

		hash, err := pow.target.HashWithNonce(nonce)
		if err != nil {
			return 0, "", err
		}
		if Validate(hash, pow.difficulty) {
			slog.Debug("mined hash", "hash", hash, "nonce", nonce)
			return nonce, hash, nil
		}
		if nonce == MAX_NONCE {
			return 0, "", ErrNonceExhausted
		}
		nonce++
	}
}

// Validate reports whether hash carries at least difficulty leading
// zero hex digits.
func Validate(hash string, difficulty int) bool {
	return common.IsHexDigest(hash) && common.HasLeadingZeros(hash, difficulty)
}
