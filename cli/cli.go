package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
)

func printUsage() {
	fmt.Println()
	fmt.Println("usage:")
	fmt.Println(" node -p PORT [-tracker ADDR] [-peers A,B] [-miner] [-unsafe] [-snapshot DIR] (start a node on PORT)")
	fmt.Println(" tracker -p PORT (start the peer tracker on PORT)")
	fmt.Println()
	fmt.Println(" tx -node ADDR JSON (submit a transaction)")
	fmt.Println(" mine -node ADDR (mine pending transactions)")
	fmt.Println(" chain -node ADDR (show the chain)")
	fmt.Println(" params -node ADDR [-difficulty N] [-target SEC] [-interval N] [-tolerance F] (show or set mining params)")
	fmt.Println(" verify -node ADDR [-block N] [-tx N] [-peers] (verify a block or a transaction)")
	fmt.Println(" edit -node ADDR -block N -tx N (-field F -value V | -replace JSON) (rewrite a transaction, unsafe)")
	fmt.Println(" tamper -node ADDR -block N -tx N (-field F -value V | -replace JSON) (rewrite without rehashing, unsafe)")
	fmt.Println(" peers -node ADDR | -tracker ADDR (list the peers of a node or a tracker)")
	fmt.Println(" snapshot -node ADDR (save a snapshot on the node)")
	fmt.Println()
}

func validateArgs() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
}

func Run() error {
	validateArgs()
	slog.SetDefault(slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, args := os.Args[1], os.Args[2:]
	switch name {
	case "node":
		return startNode(ctx, args)
	case "tracker":
		return startTracker(ctx, args)
	}
	command, ok := clientCommands[name]
	if !ok {
		printUsage()
		os.Exit(1)
	}
	return command(ctx, args)
}
