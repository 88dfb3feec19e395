package blocks

import (
	"simple-ledger-go/merkleTree"

	"golang.org/x/exp/slices"
)

type SelfReport struct {
	MerkleOK           bool   `json:"merkle_ok"`
	HashOK             bool   `json:"hash_ok"`
	ExpectedMerkleRoot string `json:"expected_merkle_root"`
	ExpectedHash       string `json:"expected_hash"`
}

type IntegrityReport struct {
	HashOK          bool   `json:"hash_ok"`
	MerkleOK        bool   `json:"merkle_ok"`
	StoredRoot      string `json:"stored_root"`
	RecomputedRoot  string `json:"recomputed_root"`
	ModifiedIndices []int  `json:"modified_indices"`
}

type LevelMismatch struct {
	Level        int    `json:"level"`
	Index        int    `json:"index"`
	ComputedHash string `json:"computed_hash"`
	ExpectedHash string `json:"expected_hash"`
}

type TxVerification struct {
	TxIndex      int                    `json:"tx_index"`
	TxHash       string                 `json:"tx_hash"`
	Proof        []merkleTree.ProofStep `json:"proof"`
	ComputedRoot string                 `json:"computed_root"`
	MerkleRoot   string                 `json:"merkle_root"`
	Valid        bool                   `json:"is_valid"`
	Path         []int                  `json:"path_to_root"`
	ModifiedPath []LevelMismatch        `json:"modified_path"`
}

// VerifySelf recomputes the merkle root from the transactions and the
// header hash from the stored fields.
func (b *Block) VerifySelf() (*SelfReport, error) {
	bundle := b.Bundle()
	root, err := bundle.HashTransactions()
	if err != nil {
		return nil, err
	}
	hash, err := b.CalculateHash()
	if err != nil {
		return nil, err
	}
	return &SelfReport{
		MerkleOK:           root == b.MerkleRoot,
		HashOK:             hash == b.Hash,
		ExpectedMerkleRoot: root,
		ExpectedHash:       hash,
	}, nil
}

func (b *Block) storedTree() *merkleTree.MerkleTree {
	return &merkleTree.MerkleTree{Levels: b.MerkleTree}
}

// hasStoredTree reports whether merkle_tree has one leaf per transaction,
// a single root equal to merkle_root, and the level sizes the leaf count
// implies.
func (b *Block) hasStoredTree() bool {
	tree := b.storedTree()
	if len(b.Transactions) == 0 || len(tree.Leaves()) != len(b.Transactions) {
		return false
	}
	width := len(b.Transactions)
	for level, nodes := range tree.Levels {
		if len(nodes) != width {
			return false
		}
		if level < len(tree.Levels)-1 && width == 1 {
			return false
		}
		width = (width + 1) / 2
	}
	return len(tree.Levels[len(tree.Levels)-1]) == 1 && tree.Root() == b.MerkleRoot
}

// VerifyIntegrity reports which transactions no longer match the stored
// merkle root. With a stored tree every edited leaf is found. Without one
// each index is tested by exclusion: i is flagged when the root of the
// other transactions equals the stored root. That only catches a single
// transaction added to an intact list, and costs O(n^2) hashing.
func (b *Block) VerifyIntegrity() (*IntegrityReport, error) {
	self, err := b.VerifySelf()
	if err != nil {
		return nil, err
	}
	report := IntegrityReport{
		HashOK:          self.HashOK,
		MerkleOK:        self.MerkleOK,
		StoredRoot:      b.MerkleRoot,
		RecomputedRoot:  self.ExpectedMerkleRoot,
		ModifiedIndices: []int{},
	}
	if report.MerkleOK {
		return &report, nil
	}

	hashes, err := b.TxHashes()
	if err != nil {
		return nil, err
	}
	if b.hasStoredTree() {
		leaves := b.storedTree().Leaves()
		for i, h := range hashes {
			if h != leaves[i] {
				report.ModifiedIndices = append(report.ModifiedIndices, i)
			}
		}
		return &report, nil
	}

	for i := range hashes {
		rest := slices.Delete(slices.Clone(hashes), i, i+1)
		if merkleTree.ComputeRoot(rest) == b.MerkleRoot {
			report.ModifiedIndices = append(report.ModifiedIndices, i)
		}
	}
	return &report, nil
}

func (b *Block) GetMerkleProof(txIndex int) ([]merkleTree.ProofStep, error) {
	err := b.checkTxIndex(txIndex)
	if err != nil {
		return nil, err
	}
	hashes, err := b.TxHashes()
	if err != nil {
		return nil, err
	}
	return merkleTree.GetProof(hashes, txIndex)
}

// VerifyTransaction folds the current digest of one transaction up to the
// stored root. Siblings come from the stored tree when there is one, so
// edits to other transactions do not affect the result.
func (b *Block) VerifyTransaction(txIndex int) (*TxVerification, error) {
	err := b.checkTxIndex(txIndex)
	if err != nil {
		return nil, err
	}
	txHash, err := b.Transactions[txIndex].Hash()
	if err != nil {
		return nil, err
	}

	result := TxVerification{
		TxIndex:      txIndex,
		TxHash:       txHash,
		MerkleRoot:   b.MerkleRoot,
		Path:         merkleTree.Path(len(b.Transactions), txIndex),
		ModifiedPath: []LevelMismatch{},
	}

	if !b.hasStoredTree() {
		result.Proof, err = b.GetMerkleProof(txIndex)
		if err != nil {
			return nil, err
		}
		result.ComputedRoot = merkleTree.Fold(txHash, result.Proof)
		result.Valid = result.ComputedRoot == b.MerkleRoot
		return &result, nil
	}

	result.Proof, err = merkleTree.GetProof(b.storedTree().Leaves(), txIndex)
	if err != nil {
		return nil, err
	}
	current := txHash
	for level, step := range result.Proof {
		current = merkleTree.Fold(current, []merkleTree.ProofStep{step})
		expected := b.MerkleTree[level+1][result.Path[level+1]]
		if current != expected {
			result.ModifiedPath = append(result.ModifiedPath, LevelMismatch{
				Level:        level,
				Index:        result.Path[level],
				ComputedHash: current,
				ExpectedHash: expected,
			})
		}
	}
	result.ComputedRoot = current
	result.Valid = current == b.MerkleRoot
	return &result, nil
}
