package nodes

import (
	"context"
	"fmt"
	"simple-ledger-go/common"
	"simple-ledger-go/p2p"
)

func (n *Node) registerHandlers() {
	n.server.Handle(p2p.SUBMIT_TX_MSG, n.handleSubmitTransaction)
	n.server.Handle(p2p.MINE_MSG, n.handleMine)
	n.server.Handle(p2p.GET_CHAIN_MSG, n.handleGetChain)
	n.server.Handle(p2p.RECEIVE_BLOCK_MSG, n.handleReceiveBlock)
	n.server.Handle(p2p.GET_PARAMS_MSG, n.handleGetParams)
	n.server.Handle(p2p.SET_PARAMS_MSG, n.handleSetParams)
	n.server.Handle(p2p.EDIT_BLOCK_MSG, n.handleEditBlock)
	n.server.Handle(p2p.TAMPER_TX_MSG, n.handleTamperTransaction)
	n.server.Handle(p2p.VERIFY_BLOCK_MSG, n.handleVerifyBlock)
	n.server.Handle(p2p.VERIFY_TX_MSG, n.handleVerifyTransaction)
	n.server.Handle(p2p.PEERS_MSG, n.handlePeers)
	n.server.Handle(p2p.SAVE_SNAPSHOT_MSG, n.handleSaveSnapshot)
}

func decode[T interface{}](body []byte) (*T, error) {
	if len(body) == 0 {
		return new(T), nil
	}
	msg, err := common.Decode[T](body)
	if err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return msg, nil
}

func (n *Node) handleSubmitTransaction(ctx context.Context, body []byte) (interface{}, error) {
	msg, err := decode[p2p.TransactionMsg](body)
	if err != nil {
		return nil, err
	}
	err = n.SubmitTransaction(msg.Transaction)
	if err != nil {
		return nil, err
	}
	return map[string]int{"pending": n.chain.PendingLen()}, nil
}

func (n *Node) handleMine(ctx context.Context, body []byte) (interface{}, error) {
	return n.Mine(ctx)
}

func (n *Node) handleGetChain(ctx context.Context, body []byte) (interface{}, error) {
	return n.GetChain(), nil
}

func (n *Node) handleReceiveBlock(ctx context.Context, body []byte) (interface{}, error) {
	msg, err := decode[p2p.BlockMsg](body)
	if err != nil {
		return nil, err
	}
	n.logger.Info("received new block from peer", "from", msg.From)
	decision, err := n.ReceiveBlock(ctx, msg.Block)
	if err != nil {
		return nil, err
	}
	return decision, rejection(decision)
}

func (n *Node) handleGetParams(ctx context.Context, body []byte) (interface{}, error) {
	return n.GetMiningParams(), nil
}

func (n *Node) handleSetParams(ctx context.Context, body []byte) (interface{}, error) {
	update, err := decode[p2p.SetParamsMsg](body)
	if err != nil {
		return nil, err
	}
	return n.SetMiningParams(*update)
}

func (n *Node) handleEditBlock(ctx context.Context, body []byte) (interface{}, error) {
	msg, err := decode[p2p.EditBlockMsg](body)
	if err != nil {
		return nil, err
	}
	return n.EditBlock(msg.BlockIndex, msg.TxIndex, msg.Edit)
}

func (n *Node) handleTamperTransaction(ctx context.Context, body []byte) (interface{}, error) {
	msg, err := decode[p2p.EditBlockMsg](body)
	if err != nil {
		return nil, err
	}
	return n.TamperTransaction(msg.BlockIndex, msg.TxIndex, msg.Edit)
}

func (n *Node) handleVerifyBlock(ctx context.Context, body []byte) (interface{}, error) {
	msg, err := decode[p2p.VerifyBlockMsg](body)
	if err != nil {
		return nil, err
	}
	return n.VerifyBlock(ctx, msg.BlockIndex)
}

func (n *Node) handleVerifyTransaction(ctx context.Context, body []byte) (interface{}, error) {
	msg, err := decode[p2p.VerifyTxMsg](body)
	if err != nil {
		return nil, err
	}
	return n.VerifyTransaction(ctx, msg.BlockIndex, msg.TxIndex, msg.WithPeers)
}

func (n *Node) handlePeers(ctx context.Context, body []byte) (interface{}, error) {
	return p2p.PeerListMsg{Peers: n.Peers()}, nil
}

func (n *Node) handleSaveSnapshot(ctx context.Context, body []byte) (interface{}, error) {
	return n.SaveSnapshot()
}
