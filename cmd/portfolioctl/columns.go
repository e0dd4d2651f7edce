package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/atmx/portfolio-engine/internal/model"
)

type columnsCmd struct{}

func (*columnsCmd) Name() string     { return "columns" }
func (*columnsCmd) Synopsis() string { return "lists the ledger columns in export order" }
func (*columnsCmd) Usage() string {
	return `portfolioctl columns

`
}

func (*columnsCmd) SetFlags(*flag.FlagSet) {}

func (*columnsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	for i, name := range model.ColumnNames() {
		fmt.Printf("%3d  %s\n", i+1, name)
	}
	return subcommands.ExitSuccess
}
