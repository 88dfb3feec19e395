package nodes

import (
	"context"
	"errors"
	"net"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/blocks"
	"simple-ledger-go/consensus"
	"simple-ledger-go/database"
	"simple-ledger-go/p2p"
	"simple-ledger-go/tracker"
	"simple-ledger-go/transactions"
	"testing"
	"time"

	"golang.org/x/exp/slices"
)

func testConfig() Config {
	config := DefaultConfig()
	config.Address = "127.0.0.1:0"
	config.Params.Difficulty = 1
	config.HeartbeatInterval = 0
	config.SyncInterval = 0
	config.MineInterval = 0
	config.PeerTimeout = 2 * time.Second
	return config
}

func newNode(t *testing.T, config Config) *Node {
	t.Helper()
	n, err := NewNode(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Listen(); err != nil {
		t.Fatal(err)
	}
	return n
}

func offline(t *testing.T, config Config) *Node {
	t.Helper()
	n, err := NewNode(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func run(t *testing.T, n *Node) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		n.Close()
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func hasPeer(n *Node, address string) bool {
	return slices.Contains(n.Peers(), address)
}

func remote(n *Node) *Remote {
	return NewRemote(n.Addr(), p2p.NewClient(5*time.Second))
}

func TestSubmitAndMineOverNetwork(t *testing.T) {
	n := newNode(t, testConfig())
	run(t, n)
	r := remote(n)
	ctx := context.Background()

	if _, err := r.Mine(ctx); err == nil {
		t.Fatal("mining with nothing pending succeeded")
	}
	for _, tx := range []transactions.Transaction{{"vote": "a"}, {"vote": "b"}} {
		if err := r.SubmitTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}
	block, err := r.Mine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if block.Index != 1 || len(block.Transactions) != 2 {
		t.Fatalf("mined block = %+v", block)
	}

	data, err := r.GetChain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Chain) != 2 || len(data.PendingTransactions) != 0 {
		t.Fatalf("chain length %d, pending %d", len(data.Chain), len(data.PendingTransactions))
	}
	if data.Chain[1].PreviousHash != data.Chain[0].Hash {
		t.Fatal("mined block does not link to genesis")
	}
	if err := blockchain.ValidateBlocks(data.Chain); err != nil {
		t.Fatal(err)
	}
}

func TestBroadcastResolvesDivergentGenesis(t *testing.T) {
	a := newNode(t, testConfig())
	b := newNode(t, testConfig())
	a.AppendPeer(b.Addr())
	b.AppendPeer(a.Addr())
	run(t, a)
	run(t, b)

	if err := a.SubmitTransaction(transactions.Transaction{"n": 1}); err != nil {
		t.Fatal(err)
	}
	block, err := a.Mine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "peer to adopt the mined chain", func() bool {
		return b.Chain().Latest().Hash == block.Hash
	})
	if !b.Chain().IsChainValid() {
		t.Fatal("adopted chain is invalid")
	}
}

func TestSendBlockReportsReason(t *testing.T) {
	n := newNode(t, testConfig())
	run(t, n)

	decision, err := remote(n).SendBlock(context.Background(), "test", []byte(`{"index": "x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if decision.Accepted || decision.Reason != consensus.REASON_INVALID_FORMAT {
		t.Fatalf("decision = %+v", decision)
	}
}

func TestUnsafeEditsDisabled(t *testing.T) {
	n := newNode(t, testConfig())
	run(t, n)
	n.SubmitTransaction(transactions.Transaction{"n": 1})
	if _, err := n.Mine(context.Background()); err != nil {
		t.Fatal(err)
	}

	edit := blocks.Edit{Field: "n", Value: 2}
	if _, err := n.EditBlock(1, 0, edit); !errors.Is(err, ErrUnsafeDisabled) {
		t.Fatalf("err = %v, want ErrUnsafeDisabled", err)
	}
	if _, err := n.TamperTransaction(1, 0, edit); !errors.Is(err, ErrUnsafeDisabled) {
		t.Fatalf("err = %v, want ErrUnsafeDisabled", err)
	}
	_, err := remote(n).EditBlock(context.Background(), p2p.EditBlockMsg{BlockIndex: 1, TxIndex: 0, Edit: edit})
	var remoteErr *p2p.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if !n.Chain().IsChainValid() {
		t.Fatal("chain changed")
	}
}

func TestTamperDetection(t *testing.T) {
	config := testConfig()
	config.AllowUnsafeEdits = true
	n := newNode(t, config)
	run(t, n)
	for i := 0; i < 3; i++ {
		n.SubmitTransaction(transactions.Transaction{"ballot": i})
	}
	if _, err := n.Mine(context.Background()); err != nil {
		t.Fatal(err)
	}

	r := remote(n)
	ctx := context.Background()
	tampered, err := r.TamperTransaction(ctx, p2p.EditBlockMsg{
		BlockIndex: 1, TxIndex: 2, Edit: blocks.Edit{Field: "ballot", Value: 7},
	})
	if err != nil {
		t.Fatal(err)
	}
	if tampered.OriginalTransaction["ballot"] == nil {
		t.Fatal("original transaction missing")
	}

	index := 1
	report, err := r.VerifyBlock(ctx, &index)
	if err != nil {
		t.Fatal(err)
	}
	if report.Integrity.MerkleOK {
		t.Fatal("tampering not detected")
	}
	if len(report.Integrity.ModifiedIndices) != 1 || report.Integrity.ModifiedIndices[0] != 2 {
		t.Fatalf("modified indices = %v", report.Integrity.ModifiedIndices)
	}

	txReport, err := r.VerifyTransaction(ctx, 1, 2, true)
	if err != nil {
		t.Fatal(err)
	}
	if txReport.Verification.Valid {
		t.Fatal("tampered transaction verifies")
	}
	txReport, err = r.VerifyTransaction(ctx, 1, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if !txReport.Verification.Valid {
		t.Fatal("untouched transaction fails")
	}
	if n.Chain().IsChainValid() {
		t.Fatal("tampered chain still validates")
	}
}

func TestEditBlockStaysSelfConsistent(t *testing.T) {
	config := testConfig()
	config.AllowUnsafeEdits = true
	n := offline(t, config)
	n.SubmitTransaction(transactions.Transaction{"amount": 1})
	if _, err := n.Mine(context.Background()); err != nil {
		t.Fatal(err)
	}
	result, err := n.EditBlock(1, 0, blocks.Edit{Field: "amount", Value: 100})
	if err != nil {
		t.Fatal(err)
	}
	if result.OriginalMerkleRoot == result.Block.MerkleRoot {
		t.Fatal("merkle root not recomputed")
	}
	report, err := n.VerifyBlock(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Integrity.MerkleOK || !report.Integrity.HashOK {
		t.Fatalf("edited block is not self consistent: %+v", report.Integrity)
	}
	if _, err := n.EditBlock(5, 0, blocks.Edit{Field: "a", Value: 1}); !errors.Is(err, blockchain.ErrRange) {
		t.Fatalf("err = %v, want ErrRange", err)
	}
}

func TestVerifyBlockComparesPeers(t *testing.T) {
	a := newNode(t, testConfig())
	b := newNode(t, testConfig())
	a.AppendPeer(b.Addr())
	b.AppendPeer(a.Addr())
	run(t, a)
	run(t, b)

	a.SubmitTransaction(transactions.Transaction{"n": 1})
	block, err := a.Mine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "peer to catch up", func() bool {
		return b.Chain().Latest().Hash == block.Hash
	})

	report, err := a.VerifyBlock(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	cmp := report.Peers[b.Addr()]
	if cmp == nil || cmp.Error != "" {
		t.Fatalf("comparison = %+v", cmp)
	}
	if !cmp.HashMatch || !cmp.MerkleRootMatch || !cmp.TransactionsMatch {
		t.Fatalf("comparison = %+v", cmp)
	}
}

func TestMiningParams(t *testing.T) {
	n := newNode(t, testConfig())
	run(t, n)
	r := remote(n)
	ctx := context.Background()

	bad := 0.9
	if _, err := r.SetMiningParams(ctx, blockchain.ParamsUpdate{TimeTolerance: &bad}); err == nil {
		t.Fatal("out of range tolerance accepted")
	}
	d := 2
	target := 5.0
	params, err := r.SetMiningParams(ctx, blockchain.ParamsUpdate{Difficulty: &d, TargetBlockTime: &target})
	if err != nil {
		t.Fatal(err)
	}
	if params.Difficulty != 2 || params.TargetBlockTime != 5 {
		t.Fatalf("params = %+v", params)
	}
	got, err := r.GetMiningParams(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *params {
		t.Fatalf("params = %+v, want %+v", got, params)
	}
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	for _, backend := range []string{database.BOLT_BACKEND, database.LEVEL_BACKEND} {
		t.Run(backend, func(t *testing.T) {
			config := testConfig()
			config.SnapshotDir = t.TempDir()
			config.StoreBackend = backend

			n, err := NewNode(context.Background(), config)
			if err != nil {
				t.Fatal(err)
			}
			n.SubmitTransaction(transactions.Transaction{"n": 1})
			block, err := n.Mine(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			result, err := n.SaveSnapshot()
			if err != nil {
				t.Fatal(err)
			}
			if result.Length != 2 || result.Backend != backend {
				t.Fatalf("snapshot result = %+v", result)
			}
			n.Close()

			restarted, err := NewNode(context.Background(), config)
			if err != nil {
				t.Fatal(err)
			}
			defer restarted.Close()
			if restarted.Chain().Len() != 2 {
				t.Fatalf("restarted length = %d", restarted.Chain().Len())
			}
			if restarted.Chain().Latest().Hash != block.Hash {
				t.Fatal("snapshot not loaded on start")
			}
		})
	}
}

func TestSaveSnapshotWithoutStore(t *testing.T) {
	n := offline(t, testConfig())
	if _, err := n.SaveSnapshot(); !errors.Is(err, ErrNoStore) {
		t.Fatalf("err = %v, want ErrNoStore", err)
	}
}

func TestPeersFromTracker(t *testing.T) {
	trackerConfig := tracker.DefaultConfig()
	trackerConfig.Address = "127.0.0.1:0"
	tr := tracker.NewTracker(trackerConfig)
	if err := tr.Listen(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	config := testConfig()
	config.Tracker = tr.Addr()
	config.HeartbeatInterval = 50 * time.Millisecond
	a := newNode(t, config)
	b := newNode(t, config)
	run(t, a)
	run(t, b)

	waitFor(t, "nodes to discover each other", func() bool {
		return hasPeer(a, b.Addr()) && hasPeer(b, a.Addr())
	})
	if hasPeer(a, a.Addr()) {
		t.Fatal("node lists itself as a peer")
	}
	peers, err := remote(a).Peers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 1 {
		t.Fatalf("peers = %v", peers)
	}
}

func TestStandingMiner(t *testing.T) {
	config := testConfig()
	config.Miner = true
	config.MineInterval = 20 * time.Millisecond
	n := newNode(t, config)
	run(t, n)

	n.SubmitTransaction(transactions.Transaction{"n": 1})
	waitFor(t, "miner to mine the pending transaction", func() bool {
		return n.Chain().Len() == 2 && n.Chain().PendingLen() == 0
	})
}

func TestKnownNodes(t *testing.T) {
	var kn KnownNodes
	kn.AppendPeer("a:1", "b:1", "a:1", "")
	if kn.PeerLen() != 2 {
		t.Fatalf("peers = %v", kn.Peers())
	}
	kn.RemovePeer("a:1")
	if peers := kn.Peers(); len(peers) != 1 || peers[0] != "b:1" {
		t.Fatalf("peers = %v", peers)
	}
	kn.ReplacePeers([]string{"self:1", "c:1", "c:1"}, "self:1")
	if peers := kn.Peers(); len(peers) != 1 || peers[0] != "c:1" {
		t.Fatalf("peers = %v", peers)
	}
}

func closedAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen(p2p.TCP, "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	address := l.Addr().String()
	l.Close()
	return address
}

func TestUnreachablePeerDropped(t *testing.T) {
	live := newNode(t, testConfig())
	run(t, live)
	dead := closedAddress(t)

	config := testConfig()
	config.Tracker = closedAddress(t)
	n := newNode(t, config)
	n.AppendPeer(live.Addr(), dead)

	candidates := n.FetchChains(context.Background())
	if len(candidates) != 1 || candidates[0].Source != live.Addr() {
		t.Fatalf("candidates = %+v", candidates)
	}
	if hasPeer(n, dead) || !hasPeer(n, live.Addr()) {
		t.Fatalf("peers = %v", n.Peers())
	}
}

func TestUnreachableStaticPeerKept(t *testing.T) {
	dead := closedAddress(t)
	n := newNode(t, testConfig())
	n.AppendPeer(dead)
	if got := n.FetchChains(context.Background()); len(got) != 0 {
		t.Fatalf("candidates = %+v", got)
	}
	if !hasPeer(n, dead) {
		t.Fatal("static peer dropped without a tracker")
	}
}
