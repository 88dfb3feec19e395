package main

import (
	"os"
	"simple-ledger-go/cli"

	"github.com/pterm/pterm"
)

func main() {
	err := cli.Run()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
