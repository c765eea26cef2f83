package duckdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func minuteBar(minute int, open int64) dbn.OhlcvMsg {
	return dbn.OhlcvMsg{
		Hd:     dbn.NewHeader(dbn.RTypeOhlcv1M, 1, 7, dbn.UnixNanos(time.Duration(minute)*time.Minute)),
		Open:   open,
		High:   open + 250_000_000,
		Low:    open - 250_000_000,
		Close:  open + 125_000_000,
		Volume: uint64(100 + minute),
	}
}

func TestStore_InsertAndLoadBars(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.InsertBar(ctx, "ESZ5", minuteBar(3, 4_500_000_000_000)))
	require.NoError(t, s.InsertBar(ctx, "ESZ5", minuteBar(1, 4_499_500_000_000)))
	require.NoError(t, s.InsertBar(ctx, "ESZ5", minuteBar(2, 4_499_750_000_000)))
	require.NoError(t, s.InsertBar(ctx, "NQZ5", minuteBar(2, 1)))

	var bars []Bar
	err := s.LoadBars(ctx, "ESZ5", time.Unix(0, 0), time.Unix(0, int64(2*time.Minute)), func(bar Bar) error {
		bars = append(bars, bar)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, bars, 2)

	first := bars[0]
	assert.Equal(t, "ESZ5", first.Symbol)
	assert.Equal(t, uint32(7), first.InstrumentID)
	assert.Equal(t, dbn.RTypeOhlcv1M, first.RType)
	assert.Equal(t, time.Unix(0, int64(time.Minute)), first.TsEvent)
	assert.Equal(t, uint64(101), first.Volume)

	open, ok := first.Open.Price()
	require.True(t, ok)
	assert.Equal(t, int64(4_499_500_000_000), open)
	closePx, ok := first.Close.Price()
	require.True(t, ok)
	assert.Equal(t, int64(4_499_625_000_000), closePx)

	assert.Equal(t, time.Unix(0, int64(2*time.Minute)), bars[1].TsEvent)
}

func TestStore_LoadBarsHandlerError(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.InsertBar(ctx, "ESZ5", minuteBar(1, 1_000_000_000)))

	boom := errors.New("boom")
	err := s.LoadBars(ctx, "ESZ5", time.Unix(0, 0), time.Unix(0, int64(time.Hour)), func(Bar) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestStore_InsertTrade(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	trade := dbn.TradeMsg{Hd: dbn.NewHeader(dbn.RTypeMbp0, 1, 7, 1_000)}
	trade.Price = 4_500_250_000_000
	trade.Size = 3
	trade.Side = dbn.SideBid
	trade.TsRecv = 1_500
	trade.Sequence = 9
	require.NoError(t, s.InsertTrade(ctx, "ESZ5", trade))

	var price, side string
	var size uint32
	row := s.db.QueryRowContext(ctx, `SELECT CAST(price AS VARCHAR), size, side FROM trades WHERE symbol = 'ESZ5'`)
	require.NoError(t, row.Scan(&price, &size, &side))
	assert.Equal(t, "4500.250000000", price)
	assert.Equal(t, uint32(3), size)
	assert.Equal(t, "B", side)
}

func TestStore_RejectsOverflowingTimestamps(t *testing.T) {
	s := openMemory(t)
	bar := minuteBar(1, 1)
	bar.Hd.TsEvent = dbn.UndefTimestamp
	assert.Error(t, s.InsertBar(context.Background(), "ESZ5", bar))
}
