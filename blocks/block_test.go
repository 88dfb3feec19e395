package blocks

import (
	"context"
	"errors"
	"simple-ledger-go/common"
	"simple-ledger-go/merkleTree"
	"simple-ledger-go/transactions"
	"testing"

	"golang.org/x/exp/slices"
)

func sampleBlock(t *testing.T, n int, difficulty int) *Block {
	t.Helper()
	txs := make([]transactions.Transaction, n)
	for i := 0; i < n; i++ {
		txs[i] = transactions.Transaction{"voter": i, "choice": "A"}
	}
	block, err := NewBlock(
		transactions.TxBundle{Transactions: txs},
		BlockInfo{Index: 1, Difficulty: difficulty, PreviousHash: common.ZeroHash},
		1700000000.25,
	)
	if err != nil {
		t.Fatal(err)
	}
	return block
}

func TestNewBlock(t *testing.T) {
	block := sampleBlock(t, 3, 1)
	if block.Nonce != 0 {
		t.Fatalf("nonce = %d", block.Nonce)
	}
	hashes, err := block.TxHashes()
	if err != nil {
		t.Fatal(err)
	}
	if block.MerkleRoot != merkleTree.ComputeRoot(hashes) {
		t.Fatal("merkle root does not match transactions")
	}
	hash, _ := block.CalculateHash()
	if block.Hash != hash {
		t.Fatal("hash does not match header")
	}
}

func TestEmptyBlockRoot(t *testing.T) {
	block, err := NewBlock(transactions.TxBundle{}, BlockInfo{Difficulty: 1, PreviousHash: common.ZeroHash}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if block.MerkleRoot != common.ZeroHash {
		t.Fatalf("empty merkle root = %s", block.MerkleRoot)
	}
	if block.Timestamp <= 0 {
		t.Fatal("timestamp was not filled in")
	}
}

func TestMine(t *testing.T) {
	for _, difficulty := range []int{1, 2, 3} {
		block := sampleBlock(t, 2, difficulty)
		err := block.Mine(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !block.HasValidProof() {
			t.Fatalf("hash %s misses difficulty %d", block.Hash, difficulty)
		}
		report, err := block.VerifySelf()
		if err != nil {
			t.Fatal(err)
		}
		if !report.HashOK || !report.MerkleOK {
			t.Fatalf("mined block fails self check: %+v", report)
		}
	}
}

func TestMineAbandoned(t *testing.T) {
	block := sampleBlock(t, 1, 60)
	before := block.Hash
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := block.Mine(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if block.Hash != before || block.Nonce != 0 {
		t.Fatal("abandoned mining changed the block")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	block := sampleBlock(t, 5, 1)
	block.Transactions[2]["nested"] = map[string]interface{}{"weight": 0.5, "ok": true}
	if _, _, err := UnsafeEditTransaction(block, 2, Edit{Field: "choice", Value: "B"}); err != nil {
		t.Fatal(err)
	}
	if err := block.Mine(context.Background()); err != nil {
		t.Fatal(err)
	}

	enc, err := block.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Deserialize(enc)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Hash != block.Hash || decoded.MerkleRoot != block.MerkleRoot {
		t.Fatal("round trip changed hash or merkle root")
	}
	report, err := decoded.VerifySelf()
	if err != nil {
		t.Fatal(err)
	}
	if !report.HashOK || !report.MerkleOK {
		t.Fatalf("decoded block fails self check: %+v", report)
	}
}

func TestDeserializeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{"},
		{"wrong type", `{"index": "one"}`},
		{"missing hash", `{"index": 1, "difficulty": 1, "previous_hash": "` + common.ZeroHash + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Deserialize([]byte(tt.raw)); !errors.Is(err, ErrFormat) {
				t.Fatalf("err = %v, want ErrFormat", err)
			}
		})
	}
}

func TestTamperDetected(t *testing.T) {
	block := sampleBlock(t, 4, 1)
	if err := block.Mine(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, err := UnsafeTamperTransaction(block, 2, Edit{Field: "choice", Value: "Z"})
	if err != nil {
		t.Fatal(err)
	}

	report, err := block.VerifyIntegrity()
	if err != nil {
		t.Fatal(err)
	}
	if report.MerkleOK {
		t.Fatal("tampered block reports a valid merkle root")
	}
	if !report.HashOK {
		t.Fatal("header hash should still match the stale root")
	}
	if len(report.ModifiedIndices) != 1 || report.ModifiedIndices[0] != 2 {
		t.Fatalf("modified indices = %v, want [2]", report.ModifiedIndices)
	}
}

func TestInsertionDetectedWithoutStoredTree(t *testing.T) {
	block := sampleBlock(t, 2, 1)
	block.MerkleTree = [][]string{}
	block.Transactions = append(block.Transactions, transactions.Transaction{"voter": 99})

	report, err := block.VerifyIntegrity()
	if err != nil {
		t.Fatal(err)
	}
	if report.MerkleOK {
		t.Fatal("altered block reports a valid merkle root")
	}
	if len(report.ModifiedIndices) != 1 || report.ModifiedIndices[0] != 2 {
		t.Fatalf("modified indices = %v, want [2]", report.ModifiedIndices)
	}
}

func TestUnsafeEditKeepsBlockConsistent(t *testing.T) {
	block := sampleBlock(t, 3, 1)
	oldRoot := block.MerkleRoot
	original, previousRoot, err := UnsafeEditTransaction(block, 1, Edit{Field: "choice", Value: "C"})
	if err != nil {
		t.Fatal(err)
	}
	if previousRoot != oldRoot {
		t.Fatal("previous root not returned")
	}
	if original["choice"] != "A" {
		t.Fatalf("original transaction = %v", original)
	}
	report, err := block.VerifyIntegrity()
	if err != nil {
		t.Fatal(err)
	}
	if !report.MerkleOK || !report.HashOK || len(report.ModifiedIndices) != 0 {
		t.Fatalf("edited block is not self consistent: %+v", report)
	}
}

func TestUnsafeEditErrors(t *testing.T) {
	block := sampleBlock(t, 2, 1)
	if _, _, err := UnsafeEditTransaction(block, 5, Edit{Field: "a", Value: 1}); !errors.Is(err, ErrRange) {
		t.Fatalf("err = %v, want ErrRange", err)
	}
	if _, err := UnsafeTamperTransaction(block, 0, Edit{}); !errors.Is(err, ErrEmptyEdit) {
		t.Fatalf("err = %v, want ErrEmptyEdit", err)
	}
}

func TestMerkleProofs(t *testing.T) {
	block := sampleBlock(t, 5, 1)
	for i := range block.Transactions {
		proof, err := block.GetMerkleProof(i)
		if err != nil {
			t.Fatal(err)
		}
		h, _ := block.Transactions[i].Hash()
		if !merkleTree.VerifyProof(h, proof, block.MerkleRoot) {
			t.Fatalf("proof for transaction %d fails", i)
		}
		result, err := block.VerifyTransaction(i)
		if err != nil {
			t.Fatal(err)
		}
		if !result.Valid || len(result.ModifiedPath) != 0 {
			t.Fatalf("transaction %d: %+v", i, result)
		}
	}
	if _, err := block.GetMerkleProof(5); !errors.Is(err, ErrRange) {
		t.Fatalf("err = %v, want ErrRange", err)
	}
}

func TestVerifyTransactionAfterTamper(t *testing.T) {
	block := sampleBlock(t, 4, 1)
	_, err := UnsafeTamperTransaction(block, 3, Edit{Field: "choice", Value: "B"})
	if err != nil {
		t.Fatal(err)
	}

	tampered, err := block.VerifyTransaction(3)
	if err != nil {
		t.Fatal(err)
	}
	if tampered.Valid {
		t.Fatal("tampered transaction verifies")
	}
	if len(tampered.ModifiedPath) != 2 {
		t.Fatalf("modified path = %+v, want one entry per level", tampered.ModifiedPath)
	}
	if want := []int{3, 1, 0}; !slices.Equal(tampered.Path, want) {
		t.Fatalf("path = %v, want %v", tampered.Path, want)
	}
	if tampered.ModifiedPath[0].Index != 3 || tampered.ModifiedPath[1].Index != 1 {
		t.Fatalf("modified path = %+v", tampered.ModifiedPath)
	}

	untouched, err := block.VerifyTransaction(0)
	if err != nil {
		t.Fatal(err)
	}
	if !untouched.Valid {
		t.Fatal("untouched transaction fails against the stored tree")
	}
}

func TestMalformedStoredTreeFallsBack(t *testing.T) {
	block := sampleBlock(t, 4, 1)
	block.MerkleTree = [][]string{block.MerkleTree[0], {block.MerkleRoot}}
	if block.hasStoredTree() {
		t.Fatal("tree with a missing level accepted")
	}
	result, err := block.VerifyTransaction(2)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Fatalf("transaction 2: %+v", result)
	}
}
