package p2p

import (
	"encoding/json"
	"fmt"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/blocks"
	"simple-ledger-go/transactions"
)

type MessageKind byte

const (
	SUBMIT_TX_MSG MessageKind = iota + 1
	MINE_MSG
	GET_CHAIN_MSG
	RECEIVE_BLOCK_MSG
	GET_PARAMS_MSG
	SET_PARAMS_MSG
	EDIT_BLOCK_MSG
	TAMPER_TX_MSG
	VERIFY_BLOCK_MSG
	VERIFY_TX_MSG
	PEERS_MSG
	SAVE_SNAPSHOT_MSG

	REGISTER_MSG
	HEARTBEAT_MSG
	UNREGISTER_MSG
	LIST_PEERS_MSG
)

func (mk MessageKind) MakePayload(data []byte) []byte {
	bs := make([]byte, 0, len(data)+1)
	bs = append(bs, byte(mk))
	bs = append(bs, data...)
	return bs
}

func (mk MessageKind) ToString() string {
	switch mk {
	case SUBMIT_TX_MSG:
		return "submit transaction"
	case MINE_MSG:
		return "mine"
	case GET_CHAIN_MSG:
		return "get chain"
	case RECEIVE_BLOCK_MSG:
		return "receive block"
	case GET_PARAMS_MSG:
		return "get mining params"
	case SET_PARAMS_MSG:
		return "set mining params"
	case EDIT_BLOCK_MSG:
		return "edit block"
	case TAMPER_TX_MSG:
		return "tamper transaction"
	case VERIFY_BLOCK_MSG:
		return "verify block"
	case VERIFY_TX_MSG:
		return "verify transaction"
	case PEERS_MSG:
		return "peers"
	case SAVE_SNAPSHOT_MSG:
		return "save snapshot"
	case REGISTER_MSG:
		return "register"
	case HEARTBEAT_MSG:
		return "heartbeat"
	case UNREGISTER_MSG:
		return "unregister"
	case LIST_PEERS_MSG:
		return "list peers"
	default:
		return fmt.Sprintf("unknown message %d", mk)
	}
}

type TransactionMsg struct {
	Transaction transactions.Transaction `json:"transaction"`
}

type BlockMsg struct {
	From  string          `json:"from,omitempty"`
	Block json.RawMessage `json:"block"`
}

type EditBlockMsg struct {
	BlockIndex int `json:"block_index"`
	TxIndex    int `json:"transaction_index"`
	blocks.Edit
}

type EditBlockResult struct {
	Block               *blocks.Block            `json:"block"`
	OriginalTransaction transactions.Transaction `json:"original_transaction"`
	OriginalMerkleRoot  string                   `json:"original_merkle_root,omitempty"`
}

type VerifyBlockMsg struct {
	BlockIndex *int `json:"block_index,omitempty"`
}

type VerifyTxMsg struct {
	BlockIndex int  `json:"block_index"`
	TxIndex    int  `json:"transaction_index"`
	WithPeers  bool `json:"with_peers,omitempty"`
}

type SetParamsMsg = blockchain.ParamsUpdate

type AddressMsg struct {
	Address string `json:"address"`
}

type PeerListMsg struct {
	Peers []string `json:"peers"`
}

type SnapshotResult struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
	Length  int    `json:"length"`
}
