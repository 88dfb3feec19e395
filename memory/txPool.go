package memory

import (
	"encoding/hex"
	"simple-ledger-go/blocks"
	"simple-ledger-go/common"
	"simple-ledger-go/transactions"
	"sync"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/exp/slices"
)

type entry struct {
	key string
	tx  transactions.Transaction
}

// TxPool is the ordered queue of transactions waiting for a block.
// Identical transactions may be queued more than once.
type TxPool struct {
	sync.Mutex
	queue []entry
}

func NewTransactionPool() *TxPool {
	return &TxPool{
		queue: []entry{},
	}
}

func TxKey(tx transactions.Transaction) (string, error) {
	h, err := tx.Hash()
	if err != nil {
		return "", err
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}

func GetTxKeys(block *blocks.Block) ([]string, error) {
	keys := make([]string, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		k, err := TxKey(tx)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func toEntries(txs []transactions.Transaction) ([]entry, error) {
	entries := make([]entry, 0, len(txs))
	for _, tx := range txs {
		k, err := TxKey(tx)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: k, tx: tx})
	}
	return entries, nil
}

func (p *TxPool) Len() int {
	p.Lock()
	defer p.Unlock()
	return len(p.queue)
}

func (p *TxPool) Append(txs ...transactions.Transaction) error {
	entries, err := toEntries(txs)
	if err != nil {
		return err
	}
	p.Lock()
	defer p.Unlock()
	p.queue = append(p.queue, entries...)
	return nil
}

// Requeue puts txs back at the head of the queue, skipping any that
// are already waiting.
func (p *TxPool) Requeue(txs ...transactions.Transaction) error {
	entries, err := toEntries(txs)
	if err != nil {
		return err
	}
	p.Lock()
	defer p.Unlock()
	waiting := map[string]bool{}
	for _, e := range p.queue {
		waiting[e.key] = true
	}
	fresh := common.FindAll(entries, func(e entry) bool {
		return !waiting[e.key]
	})
	p.queue = append(fresh, p.queue...)
	return nil
}

func (p *TxPool) GetAll() []transactions.Transaction {
	p.Lock()
	defer p.Unlock()
	txs := make([]transactions.Transaction, 0, len(p.queue))
	for _, e := range p.queue {
		txs = append(txs, e.tx)
	}
	return txs
}

// BatchRemove drops one queued occurrence per key.
func (p *TxPool) BatchRemove(keys []string) {
	p.Lock()
	defer p.Unlock()
	for _, k := range keys {
		idx := slices.IndexFunc(p.queue, func(e entry) bool {
			return e.key == k
		})
		if idx >= 0 {
			p.queue = slices.Delete(p.queue, idx, idx+1)
		}
	}
}

func (p *TxPool) Reset(txs []transactions.Transaction) error {
	entries, err := toEntries(txs)
	if err != nil {
		return err
	}
	p.Lock()
	defer p.Unlock()
	p.queue = entries
	return nil
}
