package transactions

import (
	"simple-ledger-go/common"
	"simple-ledger-go/merkleTree"
	"testing"
)

func TestHashIgnoresKeyOrder(t *testing.T) {
	a := Transaction{"sender": "alice", "amount": 5, "meta": map[string]interface{}{"x": 1, "a": 2}}
	b := Transaction{"meta": map[string]interface{}{"a": 2, "x": 1}, "amount": 5, "sender": "alice"}
	ha, err := a.Hash()
	if err != nil {
		t.Fatal(err)
	}
	hb, err := b.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Fatalf("hash depends on key order: %s != %s", ha, hb)
	}
	if !common.IsHexDigest(ha) {
		t.Fatalf("hash is not a hex digest: %s", ha)
	}
}

func TestHashChangesWithContent(t *testing.T) {
	a := Transaction{"vote": "yes"}
	b := Transaction{"vote": "no"}
	ha, _ := a.Hash()
	hb, _ := b.Hash()
	if ha == hb {
		t.Fatal("different transactions share a hash")
	}
}

func TestNilTransaction(t *testing.T) {
	var tx Transaction
	if _, err := tx.Hash(); err != ErrNilTransaction {
		t.Fatalf("err = %v", err)
	}
}

func TestCloneKeepsHash(t *testing.T) {
	tx := Transaction{"amount": 1.25, "to": "bob", "tags": []interface{}{"a", "b"}}
	cloned, err := tx.Clone()
	if err != nil {
		t.Fatal(err)
	}
	cloned["to"] = "carol"
	if tx["to"] != "bob" {
		t.Fatal("clone shares storage with the original")
	}
	cloned["to"] = "bob"
	h1, _ := tx.Hash()
	h2, _ := cloned.Hash()
	if h1 != h2 {
		t.Fatalf("clone hash %s != %s", h2, h1)
	}
}

func TestBundleRoot(t *testing.T) {
	bundle := TxBundle{Transactions: []Transaction{{"n": 1}, {"n": 2}, {"n": 3}}}
	hashes, err := bundle.Hashes()
	if err != nil {
		t.Fatal(err)
	}
	root, err := bundle.HashTransactions()
	if err != nil {
		t.Fatal(err)
	}
	if root != merkleTree.ComputeRoot(hashes) {
		t.Fatal("bundle root differs from merkle root of hashes")
	}

	tree, err := bundle.MerkleTree()
	if err != nil {
		t.Fatal(err)
	}
	if tree.Root() != root || len(tree.Levels) != 3 {
		t.Fatalf("tree has %d levels, root %s", len(tree.Levels), tree.Root())
	}
}
