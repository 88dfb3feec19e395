package cli

import (
	"context"
	"flag"
	"log/slog"
	"simple-ledger-go/database"
	"simple-ledger-go/nodes"
	"simple-ledger-go/p2p"
	"strings"

	"github.com/pterm/pterm"
)

func startNode(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("node", flag.ExitOnError)
	config := nodes.DefaultConfig()

	port := cmd.String("p", "3001", "port number to use")
	tracker := cmd.String("tracker", p2p.DEFAULT_TRACKER, "tracker address, empty to run without one")
	peers := cmd.String("peers", "", "comma separated peer addresses")
	cmd.BoolVar(&config.Miner, "miner", false, "mine pending transactions on a timer")
	cmd.BoolVar(&config.AllowUnsafeEdits, "unsafe", false, "allow edit and tamper requests")
	cmd.StringVar(&config.SnapshotDir, "snapshot", "", "directory for snapshots, empty to disable")
	cmd.StringVar(&config.StoreBackend, "store", database.BOLT_BACKEND, "snapshot backend, bolt or leveldb")
	cmd.IntVar(&config.Params.Difficulty, "difficulty", config.Params.Difficulty, "initial difficulty")
	cmd.DurationVar(&config.HeartbeatInterval, "heartbeat", config.HeartbeatInterval, "tracker heartbeat interval")
	cmd.DurationVar(&config.SyncInterval, "sync", config.SyncInterval, "chain sync interval, 0 to disable")
	cmd.DurationVar(&config.MineInterval, "mine-every", config.MineInterval, "miner interval")
	cmd.DurationVar(&config.PeerTimeout, "timeout", config.PeerTimeout, "per peer request timeout")
	err := cmd.Parse(args)
	if err != nil {
		return err
	}

	config.Address = p2p.NodeAddress(*port)
	config.Tracker = *tracker
	if *peers != "" {
		config.Peers = strings.Split(*peers, ",")
	}
	config.Logger = slog.Default()

	n, err := nodes.NewNode(ctx, config)
	if err != nil {
		return err
	}
	defer n.Close()
	err = n.Listen()
	if err != nil {
		return err
	}

	pterm.DefaultHeader.Println("simple-ledger node")
	pterm.DefaultTable.WithData(pterm.TableData{
		{"address", n.Addr()},
		{"tracker", orNone(config.Tracker)},
		{"miner", boolMark(config.Miner)},
		{"unsafe edits", boolMark(config.AllowUnsafeEdits)},
		{"snapshots", orNone(config.SnapshotDir)},
		{"chain length", itoa(n.Chain().Len())},
		{"difficulty", itoa(n.Chain().Difficulty())},
	}).Render()
	pterm.Println()

	return n.Run(ctx)
}
