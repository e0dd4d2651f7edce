package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/normalize"
)

func TestReadAll_Aliases(t *testing.T) {
	in := "\ufeffSymbol, Action ,Fill Price,Shares,Trade Date,Sector\n" +
		"aapl,BUY,\"$1,250.50\",(10),1/2/2025,Technology\n" +
		"msft,s,99,-(3),,\n" +
		"\n" +
		"tsla,hold,200,,2025-01-03,\n"
	events, err := ReadAll(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "aapl", events[0].Ticker)
	assert.Equal(t, model.Buy, events[0].Side)
	assert.True(t, events[0].Price.Equal(decimal.RequireFromString("1250.50")))
	assert.True(t, events[0].Quantity.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "1/2/2025", events[0].Date)
	assert.Equal(t, "Technology", events[0].Class.Sector)

	assert.Equal(t, model.Sell, events[1].Side)
	assert.True(t, events[1].Quantity.Equal(decimal.NewFromInt(3)))

	assert.Equal(t, model.Hold, events[2].Side)
	assert.True(t, events[2].Quantity.IsZero())
}

func TestNewReader_MissingColumns(t *testing.T) {
	_, err := NewReader(strings.NewReader("ticker,side,date\nAAPL,buy,2024-01-01\n"))
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "price, quantity")

	_, err = NewReader(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestNext_RowErrors(t *testing.T) {
	in := "ticker,side,price,qty\n" +
		"AAPL,buy,10,5\n" +
		"AAPL,sideways,10,5\n" +
		"AAPL,buy,ten,5\n" +
		"AAPL,buy,10,five\n"
	r, err := NewReader(strings.NewReader(in))
	require.NoError(t, err)

	_, err = r.Next()
	require.NoError(t, err)

	tests := []struct {
		row  int
		want error
	}{
		{2, model.ErrInvalidSide},
		{3, ErrInvalidPrice},
		{4, normalize.ErrMalformedQuantity},
	}
	for _, tt := range tests {
		_, err := r.Next()
		require.ErrorIs(t, err, ErrInvalidRow)
		assert.ErrorIs(t, err, tt.want)

		var rowErr *RowError
		require.True(t, errors.As(err, &rowErr))
		assert.Equal(t, tt.row, rowErr.Row)
	}

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteLedger(t *testing.T) {
	rows := []model.OutputRow{
		{Ticker: "AAPL", Side: model.Buy, Direction: model.Long, Price: decimal.NewFromInt(10)},
		{Ticker: "AAPL", Side: model.Hold},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteLedger(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, model.ColumnNames(), records[0])
	for _, rec := range records {
		assert.Len(t, rec, len(model.Columns))
	}
	assert.Equal(t, "AAPL", records[1][1])
}
