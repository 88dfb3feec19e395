package merkleTree

import (
	"errors"
	"simple-ledger-go/common"
)

var ErrOutOfRange = errors.New("leaf index out of range")

// MerkleTree keeps every level of the tree, leaves first and root last.
type MerkleTree struct {
	Levels [][]string
}

type ProofStep struct {
	Sibling string `json:"sibling"`
	IsRight bool   `json:"is_right"`
}

func nextLevel(level []string) []string {
	next := make([]string, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		left := level[i]
		right := left
		if i+1 < len(level) {
			right = level[i+1]
		}
		next = append(next, common.HashPair(left, right))
	}
	return next
}

func NewMerkleTree(hashes []string) *MerkleTree {
	if len(hashes) == 0 {
		return &MerkleTree{Levels: [][]string{}}
	}

	leaves := make([]string, len(hashes))
	copy(leaves, hashes)
	levels := [][]string{leaves}
	current := leaves
	for len(current) > 1 {
		current = nextLevel(current)
		levels = append(levels, current)
	}
	return &MerkleTree{Levels: levels}
}

func (t *MerkleTree) Root() string {
	if len(t.Levels) == 0 {
		return common.ZeroHash
	}
	top := t.Levels[len(t.Levels)-1]
	if len(top) == 0 {
		return common.ZeroHash
	}
	return top[0]
}

func (t *MerkleTree) Leaves() []string {
	if len(t.Levels) == 0 {
		return []string{}
	}
	return t.Levels[0]
}

func ComputeRoot(hashes []string) string {
	if len(hashes) == 0 {
		return common.ZeroHash
	}
	current := hashes
	for len(current) > 1 {
		current = nextLevel(current)
	}
	return current[0]
}

// GetProof walks from the leaf up to the root recording one sibling per
// level. An unpaired last node is combined with itself, so it becomes its
// own right sibling.
func GetProof(hashes []string, leafIndex int) ([]ProofStep, error) {
	if leafIndex < 0 || leafIndex >= len(hashes) {
		return nil, ErrOutOfRange
	}

	proof := []ProofStep{}
	current := hashes
	idx := leafIndex
	for len(current) > 1 {
		if idx%2 == 0 {
			sibling := current[idx]
			if idx+1 < len(current) {
				sibling = current[idx+1]
			}
			proof = append(proof, ProofStep{Sibling: sibling, IsRight: true})
		} else {
			proof = append(proof, ProofStep{Sibling: current[idx-1], IsRight: false})
		}
		current = nextLevel(current)
		idx /= 2
	}
	return proof, nil
}

func Fold(leaf string, proof []ProofStep) string {
	running := leaf
	for _, step := range proof {
		if step.IsRight {
			running = common.HashPair(running, step.Sibling)
		} else {
			running = common.HashPair(step.Sibling, running)
		}
	}
	return running
}

func VerifyProof(leaf string, proof []ProofStep, expectedRoot string) bool {
	return Fold(leaf, proof) == expectedRoot
}

// Path returns the node indices from the leaf to the root.
func Path(leafCount int, leafIndex int) []int {
	path := []int{}
	if leafIndex < 0 || leafIndex >= leafCount {
		return path
	}
	n := leafCount
	idx := leafIndex
	for {
		path = append(path, idx)
		if n <= 1 {
			break
		}
		n = (n + 1) / 2
		idx /= 2
	}
	return path
}
