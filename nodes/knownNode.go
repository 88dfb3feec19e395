package nodes

import (
	"simple-ledger-go/p2p"
	"sync"

	"golang.org/x/exp/slices"
)

type KnownNodes struct {
	sync.Mutex
	peers []string
}

func (kn *KnownNodes) AppendPeer(addresses ...string) {
	kn.Lock()
	defer kn.Unlock()
	for _, a := range addresses {
		if a != "" && kn.peerIndex(a) < 0 {
			kn.peers = append(kn.peers, a)
		}
	}
}

func (kn *KnownNodes) RemovePeer(address string) {
	kn.Lock()
	defer kn.Unlock()
	idx := kn.peerIndex(address)
	if idx < 0 {
		return
	}
	kn.peers = slices.Delete(kn.peers, idx, idx+1)
}

// ReplacePeers installs list as the full peer set, leaving out self.
func (kn *KnownNodes) ReplacePeers(list []string, self string) {
	kn.Lock()
	defer kn.Unlock()
	peers := []string{}
	for _, a := range list {
		if a == "" || p2p.IsSameAddress(a, self) || slices.Contains(peers, a) {
			continue
		}
		peers = append(peers, a)
	}
	kn.peers = peers
}

func (kn *KnownNodes) Peers() []string {
	kn.Lock()
	defer kn.Unlock()
	return slices.Clone(kn.peers)
}

func (kn *KnownNodes) PeerLen() int {
	kn.Lock()
	defer kn.Unlock()
	return len(kn.peers)
}

func (kn *KnownNodes) peerIndex(address string) int {
	return slices.IndexFunc(kn.peers, func(p string) bool {
		return p2p.IsSameAddress(p, address)
	})
}
