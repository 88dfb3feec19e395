package cli

import (
	"context"
	"flag"
	"log/slog"
	"simple-ledger-go/p2p"
	"simple-ledger-go/tracker"

	"github.com/pterm/pterm"
)

func startTracker(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("tracker", flag.ExitOnError)
	config := tracker.DefaultConfig()
	port := cmd.String("p", "3000", "port number to use")
	cmd.DurationVar(&config.HeartbeatTimeout, "expire", config.HeartbeatTimeout, "drop peers silent for this long")
	cmd.DurationVar(&config.CleanupInterval, "sweep", config.CleanupInterval, "sweep interval")
	err := cmd.Parse(args)
	if err != nil {
		return err
	}
	config.Address = p2p.NodeAddress(*port)
	config.Logger = slog.Default()

	t := tracker.NewTracker(config)
	err = t.Listen()
	if err != nil {
		return err
	}
	pterm.DefaultHeader.Println("simple-ledger tracker")
	pterm.Info.Printfln("listening on %s", t.Addr())
	return t.Run(ctx)
}
