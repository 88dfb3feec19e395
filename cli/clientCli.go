package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/blocks"
	"simple-ledger-go/common"
	"simple-ledger-go/nodes"
	"simple-ledger-go/p2p"
	"simple-ledger-go/tracker"
	"simple-ledger-go/transactions"
	"time"

	"github.com/pterm/pterm"
)

type clientCommand func(ctx context.Context, args []string) error

var clientCommands = map[string]clientCommand{
	"tx":       submitTx,
	"mine":     mine,
	"chain":    showChain,
	"params":   miningParams,
	"verify":   verify,
	"edit":     editCommand("edit"),
	"tamper":   editCommand("tamper"),
	"peers":    showPeers,
	"snapshot": saveSnapshot,
}

const (
	CLIENT_TIMEOUT = 30 * time.Second
	// mining at high difficulty can take far longer than any other request
	MINE_TIMEOUT = 30 * time.Minute
)

var errUsage = errors.New("missing or invalid arguments")

// clientFlags adds the flags every client command shares.
func clientFlags(name string) (*flag.FlagSet, *string, *time.Duration) {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	node := cmd.String("node", p2p.NodeAddress("3001"), "node address")
	timeout := cmd.Duration("timeout", defaultTimeout(name), "request timeout")
	return cmd, node, timeout
}

func defaultTimeout(name string) time.Duration {
	if name == "mine" {
		return MINE_TIMEOUT
	}
	return CLIENT_TIMEOUT
}

func connect(node string, timeout time.Duration) *nodes.Remote {
	return nodes.NewRemote(node, p2p.NewClient(timeout))
}

func submitTx(ctx context.Context, args []string) error {
	cmd, node, timeout := clientFlags("tx")
	err := cmd.Parse(args)
	if err != nil {
		return err
	}
	if cmd.NArg() != 1 {
		return fmt.Errorf("tx needs one JSON object: %w", errUsage)
	}
	tx, err := common.Decode[transactions.Transaction]([]byte(cmd.Arg(0)))
	if err != nil {
		return fmt.Errorf("transaction is not a JSON object: %w", err)
	}
	r := connect(*node, *timeout)
	err = r.SubmitTransaction(ctx, *tx)
	if err != nil {
		return err
	}
	pterm.Success.Println("transaction queued")
	return nil
}

func mine(ctx context.Context, args []string) error {
	cmd, node, timeout := clientFlags("mine")
	err := cmd.Parse(args)
	if err != nil {
		return err
	}
	r := connect(*node, *timeout)
	block, err := r.Mine(ctx)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("mined block %d", block.Index)
	printBlocks([]*blocks.Block{block})
	return nil
}

func showChain(ctx context.Context, args []string) error {
	cmd, node, timeout := clientFlags("chain")
	err := cmd.Parse(args)
	if err != nil {
		return err
	}
	r := connect(*node, *timeout)
	data, err := r.GetChain(ctx)
	if err != nil {
		return err
	}
	printBlocks(data.Chain)
	printParams(data.Params())
	pterm.Info.Printfln("%d pending transactions", len(data.PendingTransactions))
	return nil
}

func miningParams(ctx context.Context, args []string) error {
	cmd, node, timeout := clientFlags("params")
	difficulty := cmd.Int("difficulty", 0, "difficulty")
	target := cmd.Float64("target", 0, "target block time in seconds")
	interval := cmd.Int("interval", 0, "adjustment interval in blocks")
	tolerance := cmd.Float64("tolerance", 0, "time tolerance")
	err := cmd.Parse(args)
	if err != nil {
		return err
	}
	r := connect(*node, *timeout)

	update := blockchain.ParamsUpdate{}
	cmd.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "difficulty":
			update.Difficulty = difficulty
		case "target":
			update.TargetBlockTime = target
		case "interval":
			update.AdjustmentInterval = interval
		case "tolerance":
			update.TimeTolerance = tolerance
		}
	})

	var params *blockchain.Params
	if update == (blockchain.ParamsUpdate{}) {
		params, err = r.GetMiningParams(ctx)
	} else {
		params, err = r.SetMiningParams(ctx, update)
	}
	if err != nil {
		return err
	}
	printParams(*params)
	return nil
}

func verify(ctx context.Context, args []string) error {
	cmd, node, timeout := clientFlags("verify")
	blockIndex := cmd.Int("block", -1, "block index, the tip when omitted")
	txIndex := cmd.Int("tx", -1, "transaction index")
	withPeers := cmd.Bool("peers", false, "ask peers to verify the same transaction")
	err := cmd.Parse(args)
	if err != nil {
		return err
	}
	r := connect(*node, *timeout)

	if *txIndex >= 0 {
		if *blockIndex < 0 {
			return fmt.Errorf("-tx needs -block: %w", errUsage)
		}
		report, err := r.VerifyTransaction(ctx, *blockIndex, *txIndex, *withPeers)
		if err != nil {
			return err
		}
		printTxReport(report)
		return nil
	}

	var index *int
	if *blockIndex >= 0 {
		index = blockIndex
	}
	report, err := r.VerifyBlock(ctx, index)
	if err != nil {
		return err
	}
	printBlockVerification(report)
	return nil
}

func editCommand(name string) clientCommand {
	return func(ctx context.Context, args []string) error {
		return runEdit(ctx, name, args)
	}
}

func runEdit(ctx context.Context, name string, args []string) error {
	cmd, node, timeout := clientFlags(name)
	blockIndex := cmd.Int("block", -1, "block index")
	txIndex := cmd.Int("tx", -1, "transaction index")
	field := cmd.String("field", "", "transaction field to change")
	value := cmd.String("value", "", "new value, parsed as JSON when possible")
	replace := cmd.String("replace", "", "replacement transaction as JSON")
	err := cmd.Parse(args)
	if err != nil {
		return err
	}
	if *blockIndex < 0 || *txIndex < 0 {
		return fmt.Errorf("%s needs -block and -tx: %w", name, errUsage)
	}

	msg := p2p.EditBlockMsg{BlockIndex: *blockIndex, TxIndex: *txIndex}
	if *replace != "" {
		tx, err := common.Decode[transactions.Transaction]([]byte(*replace))
		if err != nil {
			return fmt.Errorf("replacement is not a JSON object: %w", err)
		}
		msg.Replacement = *tx
	} else {
		msg.Field = *field
		msg.Value = parseValue(*value)
	}

	r := connect(*node, *timeout)
	var result *p2p.EditBlockResult
	if name == "tamper" {
		result, err = r.TamperTransaction(ctx, msg)
	} else {
		result, err = r.EditBlock(ctx, msg)
	}
	if err != nil {
		return err
	}
	pterm.Warning.Printfln("transaction %d of block %d rewritten", *txIndex, *blockIndex)
	printBlocks([]*blocks.Block{result.Block})
	if result.OriginalMerkleRoot != "" {
		pterm.Info.Printfln("previous merkle root %s", result.OriginalMerkleRoot)
	}
	return nil
}

func showPeers(ctx context.Context, args []string) error {
	cmd, node, timeout := clientFlags("peers")
	fromTracker := cmd.String("tracker", "", "list the registry of this tracker instead of a node's peers")
	err := cmd.Parse(args)
	if err != nil {
		return err
	}
	var peers []string
	if *fromTracker != "" {
		peers, err = tracker.NewClient(*fromTracker, "", p2p.NewClient(*timeout)).List(ctx)
	} else {
		peers, err = connect(*node, *timeout).Peers(ctx)
	}
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		pterm.Info.Println("no peers")
		return nil
	}
	items := make([]pterm.BulletListItem, 0, len(peers))
	for _, p := range peers {
		items = append(items, pterm.BulletListItem{Level: 0, Text: p})
	}
	return pterm.DefaultBulletList.WithItems(items).Render()
}

func saveSnapshot(ctx context.Context, args []string) error {
	cmd, node, timeout := clientFlags("snapshot")
	err := cmd.Parse(args)
	if err != nil {
		return err
	}
	r := connect(*node, *timeout)
	result, err := r.SaveSnapshot(ctx)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("saved %d blocks to %s (%s)", result.Length, result.Path, result.Backend)
	return nil
}
