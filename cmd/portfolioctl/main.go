// Command portfolioctl replays trade CSV files through the portfolio engine
// without a server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&replayCmd{}, "ledger")
	commander.Register(&summaryCmd{}, "ledger")
	commander.Register(&columnsCmd{}, "ledger")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
