package p2p

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"simple-ledger-go/common"
	"time"
)

const (
	DEFAULT_TIMEOUT = 5 * time.Second
)

var ErrNetwork = errors.New("peer unreachable")

// RemoteError is a request the peer answered with ok=false.
type RemoteError struct {
	Kind    MessageKind
	Reason  string
	Message string
	Data    json.RawMessage
}

func (e *RemoteError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s rejected (%s): %s", e.Kind.ToString(), e.Reason, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Kind.ToString(), e.Message)
}

type Client struct {
	Timeout time.Duration
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}
	return &Client{Timeout: timeout}
}

// Request sends one message to address and decodes the response data
// into out, which may be nil. Transport failures wrap ErrNetwork.
func (c *Client) Request(
	ctx context.Context,
	address string,
	kind MessageKind,
	body interface{},
	out interface{},
) error {
	var payload []byte
	if body != nil {
		enc, err := common.Encode(body)
		if err != nil {
			return err
		}
		payload = enc
	}
	raw, err := c.roundTrip(ctx, address, kind.MakePayload(payload))
	if err != nil {
		return fmt.Errorf("%s to %s: %v: %w", kind.ToString(), address, err, ErrNetwork)
	}

	res, err := common.Decode[Response](raw)
	if err != nil {
		return fmt.Errorf("%s to %s: bad response: %v: %w", kind.ToString(), address, err, ErrNetwork)
	}
	if !res.Ok {
		return &RemoteError{Kind: kind, Reason: res.Reason, Message: res.Error, Data: res.Data}
	}
	if out == nil || len(res.Data) == 0 {
		return nil
	}
	return DecodeData(res.Data, out)
}

func DecodeData(data json.RawMessage, out interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(out)
}

func (c *Client) roundTrip(ctx context.Context, address string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, TCP, address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	conn.SetDeadline(deadline)

	_, err = io.Copy(conn, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		err = tcp.CloseWrite()
		if err != nil {
			return nil, err
		}
	}
	return io.ReadAll(conn)
}
