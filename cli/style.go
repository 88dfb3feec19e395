package cli

import (
	"fmt"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/blocks"
	"simple-ledger-go/common"
	"simple-ledger-go/nodes"
	"sort"
	"strconv"
	"time"

	"github.com/pterm/pterm"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func boolMark(b bool) string {
	if b {
		return pterm.LightGreen("yes")
	}
	return pterm.LightRed("no")
}

func linkMark(b *bool) string {
	if b == nil {
		return "-"
	}
	return boolMark(*b)
}

func short(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16]
}

// parseValue reads a JSON value and falls back to the raw string.
func parseValue(s string) interface{} {
	v, err := common.Decode[interface{}]([]byte(s))
	if err != nil || *v == nil {
		return s
	}
	return *v
}

func printBlocks(chain []*blocks.Block) {
	data := pterm.TableData{
		{"index", "hash", "previous", "merkle root", "txs", "difficulty", "nonce", "time"},
	}
	for _, b := range chain {
		data = append(data, []string{
			strconv.FormatUint(b.Index, 10),
			short(b.Hash),
			short(b.PreviousHash),
			short(b.MerkleRoot),
			itoa(len(b.Transactions)),
			itoa(b.Difficulty),
			strconv.FormatUint(b.Nonce, 10),
			time.Unix(0, int64(b.Timestamp*float64(time.Second))).Format(time.DateTime),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printParams(p blockchain.Params) {
	pterm.DefaultTable.WithData(pterm.TableData{
		{"difficulty", itoa(p.Difficulty)},
		{"target block time", strconv.FormatFloat(p.TargetBlockTime, 'f', -1, 64) + "s"},
		{"adjustment interval", itoa(p.AdjustmentInterval)},
		{"time tolerance", strconv.FormatFloat(p.TimeTolerance, 'f', -1, 64)},
	}).Render()
}

func printBlockVerification(r *nodes.BlockVerification) {
	pterm.DefaultSection.Printfln("block %d", r.BlockIndex)
	modified := "-"
	if len(r.Integrity.ModifiedIndices) > 0 {
		modified = fmt.Sprint(r.Integrity.ModifiedIndices)
	}
	pterm.DefaultTable.WithData(pterm.TableData{
		{"hash", boolMark(r.Integrity.HashOK)},
		{"merkle root", boolMark(r.Integrity.MerkleOK)},
		{"proof of work", boolMark(r.ProofOK)},
		{"previous link", linkMark(r.Linkage.PreviousLink)},
		{"next link", linkMark(r.Linkage.NextLink)},
		{"modified transactions", modified},
	}).Render()

	if len(r.Peers) == 0 {
		return
	}
	peers := make([]string, 0, len(r.Peers))
	for p := range r.Peers {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	data := pterm.TableData{{"peer", "hash", "previous", "merkle root", "difficulty", "txs", "error"}}
	for _, p := range peers {
		c := r.Peers[p]
		data = append(data, []string{
			p,
			boolMark(c.HashMatch),
			boolMark(c.PreviousHashMatch),
			boolMark(c.MerkleRootMatch),
			boolMark(c.DifficultyMatch),
			boolMark(c.TransactionsMatch),
			orNone(c.Error),
		})
	}
	pterm.DefaultSection.Println("peers")
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printTxVerification(label string, v *blocks.TxVerification) {
	pterm.DefaultTable.WithData(pterm.TableData{
		{"source", label},
		{"valid", boolMark(v.Valid)},
		{"tx hash", v.TxHash},
		{"computed root", v.ComputedRoot},
		{"merkle root", v.MerkleRoot},
		{"proof steps", itoa(len(v.Proof))},
	}).Render()
	for _, m := range v.ModifiedPath {
		pterm.Warning.Printfln(
			"level %d index %d: computed %s expected %s",
			m.Level, m.Index, short(m.ComputedHash), short(m.ExpectedHash),
		)
	}
}

func printTxReport(r *nodes.TxReport) {
	pterm.DefaultSection.Printfln("block %d transaction %d", r.BlockIndex, r.TxIndex)
	printTxVerification("local", r.Verification)
	for peer, v := range r.Peers {
		printTxVerification(peer, v)
	}
	for peer, e := range r.PeerErrors {
		pterm.Error.Printfln("%s: %s", peer, e)
	}
}
