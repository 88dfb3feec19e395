package tracker

import (
	"context"
	"errors"
	"fmt"
	"simple-ledger-go/p2p"
)

// Client talks to a tracker on behalf of one node address.
type Client struct {
	tracker string
	self    string
	rpc     *p2p.Client
}

func NewClient(trackerAddress string, self string, rpc *p2p.Client) *Client {
	return &Client{
		tracker: trackerAddress,
		self:    self,
		rpc:     rpc,
	}
}

func (c *Client) call(ctx context.Context, kind p2p.MessageKind) ([]string, error) {
	var out p2p.PeerListMsg
	err := c.rpc.Request(ctx, c.tracker, kind, p2p.AddressMsg{Address: c.self}, &out)
	if err != nil {
		var remote *p2p.RemoteError
		if errors.As(err, &remote) && remote.Reason == "unknown_peer" {
			return nil, fmt.Errorf("%s: %w", c.self, ErrUnknownPeer)
		}
		return nil, err
	}
	return out.Peers, nil
}

func (c *Client) Register(ctx context.Context) ([]string, error) {
	return c.call(ctx, p2p.REGISTER_MSG)
}

func (c *Client) Heartbeat(ctx context.Context) ([]string, error) {
	return c.call(ctx, p2p.HEARTBEAT_MSG)
}

func (c *Client) Unregister(ctx context.Context) ([]string, error) {
	return c.call(ctx, p2p.UNREGISTER_MSG)
}

func (c *Client) List(ctx context.Context) ([]string, error) {
	var out p2p.PeerListMsg
	err := c.rpc.Request(ctx, c.tracker, p2p.LIST_PEERS_MSG, nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Peers, nil
}
