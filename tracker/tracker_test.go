package tracker

import (
	"context"
	"errors"
	"simple-ledger-go/p2p"
	"testing"
	"time"
)

func TestDirectory(t *testing.T) {
	d := NewDirectory(time.Minute)
	peers, err := d.Register("b:1")
	if err != nil {
		t.Fatal(err)
	}
	d.Register("a:1")
	peers = d.List()
	if len(peers) != 2 || peers[0] != "a:1" || peers[1] != "b:1" {
		t.Fatalf("peers = %v", peers)
	}

	if _, err := d.Heartbeat("c:1"); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("err = %v, want ErrUnknownPeer", err)
	}
	if _, err := d.Register(" "); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("err = %v, want ErrAddressRequired", err)
	}

	peers, err = d.Unregister("a:1")
	if err != nil || len(peers) != 1 {
		t.Fatalf("peers = %v, err = %v", peers, err)
	}
}

func TestSweepExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	d := NewDirectory(HEARTBEAT_TIMEOUT)
	d.now = func() time.Time { return now }

	d.Register("old:1")
	now = now.Add(100 * time.Second)
	d.Register("fresh:1")
	now = now.Add(30 * time.Second)

	if _, err := d.Heartbeat("fresh:1"); err != nil {
		t.Fatal(err)
	}
	removed := d.Sweep()
	if len(removed) != 1 || removed[0] != "old:1" {
		t.Fatalf("removed = %v", removed)
	}
	if peers := d.List(); len(peers) != 1 || peers[0] != "fresh:1" {
		t.Fatalf("peers = %v", peers)
	}
	if _, err := d.Heartbeat("old:1"); !errors.Is(err, ErrUnknownPeer) {
		t.Fatal("expired peer accepted a heartbeat")
	}
}

func TestTrackerOverNetwork(t *testing.T) {
	config := DefaultConfig()
	config.Address = "127.0.0.1:0"
	tr := NewTracker(config)
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

	rpc := p2p.NewClient(time.Second)
	a := NewClient(tr.Addr(), "node-a:1", rpc)
	b := NewClient(tr.Addr(), "node-b:1", rpc)

	if _, err := a.Heartbeat(ctx); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("err = %v, want ErrUnknownPeer", err)
	}
	if _, err := a.Register(ctx); err != nil {
		t.Fatal(err)
	}
	peers, err := b.Register(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 2 {
		t.Fatalf("peers = %v", peers)
	}
	if _, err := a.Heartbeat(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Unregister(ctx); err != nil {
		t.Fatal(err)
	}
	peers, err = a.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 1 || peers[0] != "node-a:1" {
		t.Fatalf("peers = %v", peers)
	}
}
