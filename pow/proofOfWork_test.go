package pow

import (
	"context"
	"errors"
	"fmt"
	"simple-ledger-go/common"
	"testing"
)

type fixedHeader struct {
	prefix string
}

func (h fixedHeader) HashWithNonce(nonce uint64) (string, error) {
	return common.HashBytes([]byte(fmt.Sprintf("%s:%d", h.prefix, nonce))), nil
}

func TestRunMeetsDifficulty(t *testing.T) {
	for _, difficulty := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("difficulty=%d", difficulty), func(t *testing.T) {
			header := fixedHeader{prefix: "header"}
			nonce, hash, err := NewProofOfWork(header, difficulty).Run(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if !Validate(hash, difficulty) {
				t.Fatalf("hash %s does not meet difficulty %d", hash, difficulty)
			}
			again, _ := header.HashWithNonce(nonce)
			if again != hash {
				t.Fatal("returned hash does not match nonce")
			}
		})
	}
}

func TestRunIsDeterministic(t *testing.T) {
	header := fixedHeader{prefix: "same"}
	n1, h1, err := NewProofOfWork(header, 2).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	n2, h2, err := NewProofOfWork(header, 2).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n1 != n2 || h1 != h2 {
		t.Fatal("mining is not deterministic")
	}
}

func TestRunAbandoned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewProofOfWork(fixedHeader{prefix: "x"}, 64).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		hash       string
		difficulty int
		want       bool
	}{
		{"zero difficulty", common.HashBytes([]byte("a")), 0, true},
		{"enough zeros", "000" + common.ZeroHash[3:], 3, true},
		{"too few zeros", "00f" + common.ZeroHash[3:], 3, false},
		{"not a digest", "000", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.hash, tt.difficulty); got != tt.want {
				t.Fatalf("Validate = %v, want %v", got, tt.want)
			}
		})
	}
}
