package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/atmx/portfolio-engine/internal/report"
)

type summaryCmd struct {
	runFlags
	asJSON bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "replays a trade CSV and prints the run summary" }
func (*summaryCmd) Usage() string {
	return `portfolioctl summary -in <trades.csv> [-cash <amount>] [-json]

  Prints final balances, P&L, return ratios and the dispersion of daily
  returns for the trade file.

`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.runFlags.register(f)
	f.BoolVar(&c.asJSON, "json", false, "print the summary as JSON")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cash, opts, err := c.parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	in, err := c.open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer in.Close()

	_, rows, err := replay(ctx, in, cash, opts, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	s := report.Build("", cash, rows)
	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(s)
	} else {
		err = s.WriteText(os.Stdout)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
