package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/blocks"
	"simple-ledger-go/consensus"
	"simple-ledger-go/p2p"
	"simple-ledger-go/transactions"
)

// Remote calls the operations of a node at another address.
type Remote struct {
	address string
	rpc     *p2p.Client
}

func NewRemote(address string, rpc *p2p.Client) *Remote {
	return &Remote{address: address, rpc: rpc}
}

func (r *Remote) call(ctx context.Context, kind p2p.MessageKind, body interface{}, out interface{}) error {
	return r.rpc.Request(ctx, r.address, kind, body, out)
}

func (r *Remote) SubmitTransaction(ctx context.Context, tx transactions.Transaction) error {
	return r.call(ctx, p2p.SUBMIT_TX_MSG, p2p.TransactionMsg{Transaction: tx}, nil)
}

func (r *Remote) Mine(ctx context.Context) (*blocks.Block, error) {
	var raw json.RawMessage
	err := r.call(ctx, p2p.MINE_MSG, nil, &raw)
	if err != nil {
		return nil, err
	}
	return blocks.FromRaw(raw)
}

func (r *Remote) GetChain(ctx context.Context) (*blockchain.ChainData, error) {
	var raw json.RawMessage
	err := r.call(ctx, p2p.GET_CHAIN_MSG, nil, &raw)
	if err != nil {
		return nil, err
	}
	return blockchain.DecodeChainData(raw)
}

// SendBlock delivers a serialized block. A rejection is returned as a
// Decision, not as an error.
func (r *Remote) SendBlock(ctx context.Context, from string, raw []byte) (*consensus.Decision, error) {
	var decision consensus.Decision
	err := r.call(ctx, p2p.RECEIVE_BLOCK_MSG, p2p.BlockMsg{From: from, Block: raw}, &decision)
	var remote *p2p.RemoteError
	if errors.As(err, &remote) && remote.Reason != "" && len(remote.Data) > 0 {
		err = p2p.DecodeData(remote.Data, &decision)
	}
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

func (r *Remote) GetMiningParams(ctx context.Context) (*blockchain.Params, error) {
	var params blockchain.Params
	err := r.call(ctx, p2p.GET_PARAMS_MSG, nil, &params)
	if err != nil {
		return nil, err
	}
	return &params, nil
}

func (r *Remote) SetMiningParams(ctx context.Context, update blockchain.ParamsUpdate) (*blockchain.Params, error) {
	var params blockchain.Params
	err := r.call(ctx, p2p.SET_PARAMS_MSG, update, &params)
	if err != nil {
		return nil, err
	}
	return &params, nil
}

func (r *Remote) EditBlock(ctx context.Context, msg p2p.EditBlockMsg) (*p2p.EditBlockResult, error) {
	var result p2p.EditBlockResult
	err := r.call(ctx, p2p.EDIT_BLOCK_MSG, msg, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *Remote) TamperTransaction(ctx context.Context, msg p2p.EditBlockMsg) (*p2p.EditBlockResult, error) {
	var result p2p.EditBlockResult
	err := r.call(ctx, p2p.TAMPER_TX_MSG, msg, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *Remote) VerifyBlock(ctx context.Context, index *int) (*BlockVerification, error) {
	var report BlockVerification
	err := r.call(ctx, p2p.VERIFY_BLOCK_MSG, p2p.VerifyBlockMsg{BlockIndex: index}, &report)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *Remote) VerifyTransaction(
	ctx context.Context, blockIndex int, txIndex int, withPeers bool,
) (*TxReport, error) {
	var report TxReport
	msg := p2p.VerifyTxMsg{BlockIndex: blockIndex, TxIndex: txIndex, WithPeers: withPeers}
	err := r.call(ctx, p2p.VERIFY_TX_MSG, msg, &report)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *Remote) Peers(ctx context.Context) ([]string, error) {
	var out p2p.PeerListMsg
	err := r.call(ctx, p2p.PEERS_MSG, nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Peers, nil
}

func (r *Remote) SaveSnapshot(ctx context.Context) (*p2p.SnapshotResult, error) {
	var result p2p.SnapshotResult
	err := r.call(ctx, p2p.SAVE_SNAPSHOT_MSG, nil, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
