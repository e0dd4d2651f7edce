package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/portfolio-engine/internal/csvio"
	"github.com/atmx/portfolio-engine/internal/engine"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/store"
)

const trades = "ticker,side,price,quantity,date\n" +
	"AAPL,buy,10,10,2024-01-02\n" +
	"AAPL,sell,11,16,2024-01-05\n" +
	"AAPL,buy,9,-(6),2024-01-09\n"

func TestReplay(t *testing.T) {
	_, rows, err := replay(context.Background(), strings.NewReader(trades), decimal.NewFromInt(200), engine.DefaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[2].AccountValue.Equal(decimal.NewFromInt(222)))
	assert.Equal(t, "Short - Buy - #2 Trade - 0 - Close", rows[2].TradeDescriptor)
}

func TestReplay_StopsAtBadRow(t *testing.T) {
	in := "ticker,side,price,quantity\nAAPL,buy,10,1\n,buy,10,1\nAAPL,sell,10,1\n"
	_, rows, err := replay(context.Background(), strings.NewReader(in), decimal.NewFromInt(200), engine.DefaultOptions(), nil)
	assert.ErrorIs(t, err, csvio.ErrInvalidRow)
	assert.ErrorIs(t, err, engine.ErrEmptyTicker)
	assert.Len(t, rows, 1)
}

func TestReplay_SavesToSQLite(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	runID, rows, err := replay(ctx, strings.NewReader(trades), decimal.NewFromInt(200), engine.DefaultOptions(), st)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := st.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 3, run.EventCount)

	saved, err := st.ListRows(ctx, runID, 0, 0)
	require.NoError(t, err)
	require.Len(t, saved, len(rows))
	assert.Equal(t, rows[2].TradeDescriptor, saved[2].TradeDescriptor)
}

func TestWriteRows(t *testing.T) {
	rows := []model.OutputRow{{Seq: 1, Ticker: "AAPL", Side: model.Buy}}

	var buf bytes.Buffer
	require.NoError(t, writeRows(&buf, "json", rows))
	var got []model.OutputRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "AAPL", got[0].Ticker)

	buf.Reset()
	require.NoError(t, writeRows(&buf, "csv", rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestRunFlags_Parse(t *testing.T) {
	r := runFlags{cash: "10000", input: "trades.csv", tp: 0.3}
	cash, opts, err := r.parse()
	require.NoError(t, err)
	assert.True(t, cash.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, 0.3, opts.TakeProfitPct)

	_, _, err = (&runFlags{cash: "lots", input: "x"}).parse()
	assert.Error(t, err)
	_, _, err = (&runFlags{cash: "1"}).parse()
	assert.Error(t, err)
	_, _, err = (&runFlags{cash: "-1", input: "x"}).parse()
	assert.Error(t, err)
}
