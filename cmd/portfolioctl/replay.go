package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/csvio"
	"github.com/atmx/portfolio-engine/internal/engine"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/store"
)

// runFlags are shared by the commands that process a trade file.
type runFlags struct {
	cash   string
	input  string
	tp, sl float64
	rf     float64
}

func (r *runFlags) register(f *flag.FlagSet) {
	def := engine.DefaultOptions()
	f.StringVar(&r.cash, "cash", "200", "initial cash balance")
	f.StringVar(&r.input, "in", "", "trade CSV file (- for stdin)")
	f.Float64Var(&r.tp, "tp", def.TakeProfitPct, "default take-profit fraction")
	f.Float64Var(&r.sl, "sl", def.StopLossPct, "default stop-loss fraction")
	f.Float64Var(&r.rf, "rf", def.RiskFreeRate, "risk-free rate used by Sharpe and Sortino")
}

func (r *runFlags) parse() (decimal.Decimal, engine.Options, error) {
	cash, err := decimal.NewFromString(r.cash)
	if err != nil {
		return decimal.Zero, engine.Options{}, fmt.Errorf("invalid -cash %q", r.cash)
	}
	if cash.IsNegative() {
		return decimal.Zero, engine.Options{}, errors.New("-cash must not be negative")
	}
	if r.input == "" {
		return decimal.Zero, engine.Options{}, errors.New("-in is required")
	}
	return cash, engine.Options{TakeProfitPct: r.tp, StopLossPct: r.sl, RiskFreeRate: r.rf}, nil
}

func (r *runFlags) open() (io.ReadCloser, error) {
	if r.input == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(r.input)
}

// replay feeds every row of src through a fresh engine. When st is not nil
// the run, its events and its rows are saved under a new run id.
func replay(ctx context.Context, src io.Reader, cash decimal.Decimal, opts engine.Options, st store.Store) (string, []model.OutputRow, error) {
	cr, err := csvio.NewReader(src)
	if err != nil {
		return "", nil, err
	}
	eng := engine.New(opts)
	eng.Reset(cash)

	var runID string
	if st != nil {
		now := time.Now().UTC()
		run := &model.Run{ID: uuid.New().String(), InitialCash: cash, CreatedAt: now, ResetAt: now}
		if err := st.CreateRun(ctx, run); err != nil {
			return "", nil, err
		}
		runID = run.ID
	}

	for {
		ev, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return runID, eng.Ledger(), err
		}
		row, err := eng.Process(ev)
		if err != nil {
			return runID, eng.Ledger(), &csvio.RowError{Row: cr.Row(), Err: err}
		}
		if st == nil {
			continue
		}
		if err := st.Append(ctx, &model.StoredEvent{RunID: runID, Seq: row.Seq, Event: ev}, &row); err != nil {
			return runID, eng.Ledger(), err
		}
	}
	return runID, eng.Ledger(), nil
}

type replayCmd struct {
	runFlags
	output string
	format string
	db     string
}

func (*replayCmd) Name() string     { return "replay" }
func (*replayCmd) Synopsis() string { return "replays a trade CSV and writes the resulting ledger" }
func (*replayCmd) Usage() string {
	return `portfolioctl replay -in <trades.csv> [-cash <amount>] [-out <ledger>] [-format csv|json] [-db <file.sqlite>]

  Processes every row of the trade file in order and writes one ledger row per
  trade. With -db the run is also saved to a SQLite database, where the
  server can pick it up (SQLITE_PATH).

Usage Examples:
$ portfolioctl replay -cash 10000 -in trades.csv -out ledger.csv

`
}

func (c *replayCmd) SetFlags(f *flag.FlagSet) {
	c.runFlags.register(f)
	f.StringVar(&c.output, "out", "", "output file (stdout by default)")
	f.StringVar(&c.format, "format", "csv", "output format: csv or json")
	f.StringVar(&c.db, "db", "", "SQLite database to save the run in")
}

func (c *replayCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cash, opts, err := c.parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if c.format != "csv" && c.format != "json" {
		fmt.Fprintf(os.Stderr, "Error: -format must be csv or json, got %q\n", c.format)
		return subcommands.ExitUsageError
	}

	in, err := c.open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer in.Close()

	var st store.Store
	if c.db != "" {
		lite, err := store.OpenSQLite(ctx, c.db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not open database: %v\n", err)
			return subcommands.ExitFailure
		}
		defer lite.Close()
		st = lite
	}

	runID, rows, err := replay(ctx, in, cash, opts, st)
	if err != nil {
		// Rows before the failure are still written.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	var out io.Writer = os.Stdout
	if c.output != "" {
		fh, ferr := os.Create(c.output)
		if ferr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ferr)
			return subcommands.ExitFailure
		}
		defer fh.Close()
		out = fh
	}
	if werr := writeRows(out, c.format, rows); werr != nil {
		fmt.Fprintf(os.Stderr, "Error: could not write ledger: %v\n", werr)
		return subcommands.ExitFailure
	}

	if runID != "" {
		fmt.Fprintf(os.Stderr, "Saved run %s (%d rows) to %s\n", runID, len(rows), c.db)
	}
	if err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeRows(w io.Writer, format string, rows []model.OutputRow) error {
	if format == "json" {
		if rows == nil {
			rows = []model.OutputRow{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return csvio.WriteLedger(w, rows)
}
