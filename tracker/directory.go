package tracker

import (
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	ErrUnknownPeer     = errors.New("address not registered")
	ErrAddressRequired = errors.New("address is required")
)

// Directory maps peer addresses to the time they were last heard from.
type Directory struct {
	sync.Mutex
	lastSeen map[string]time.Time
	timeout  time.Duration
	now      func() time.Time
}

func NewDirectory(timeout time.Duration) *Directory {
	return &Directory{
		lastSeen: map[string]time.Time{},
		timeout:  timeout,
		now:      time.Now,
	}
}

func (d *Directory) list() []string {
	peers := maps.Keys(d.lastSeen)
	slices.Sort(peers)
	return peers
}

func (d *Directory) List() []string {
	d.Lock()
	defer d.Unlock()
	return d.list()
}

func (d *Directory) Register(address string) ([]string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrAddressRequired
	}
	d.Lock()
	defer d.Unlock()
	d.lastSeen[address] = d.now()
	return d.list(), nil
}

func (d *Directory) Heartbeat(address string) ([]string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrAddressRequired
	}
	d.Lock()
	defer d.Unlock()
	if _, ok := d.lastSeen[address]; !ok {
		return nil, ErrUnknownPeer
	}
	d.lastSeen[address] = d.now()
	return d.list(), nil
}

func (d *Directory) Unregister(address string) ([]string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrAddressRequired
	}
	d.Lock()
	defer d.Unlock()
	delete(d.lastSeen, address)
	return d.list(), nil
}

// Sweep drops every peer silent for longer than the timeout and returns
// the removed addresses.
func (d *Directory) Sweep() []string {
	d.Lock()
	defer d.Unlock()
	now := d.now()
	removed := []string{}
	for address, seen := range d.lastSeen {
		if now.Sub(seen) > d.timeout {
			delete(d.lastSeen, address)
			removed = append(removed, address)
		}
	}
	slices.Sort(removed)
	return removed
}
