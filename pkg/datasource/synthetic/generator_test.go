package synthetic

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

var start = time.Date(2025, 10, 1, 13, 30, 0, 0, time.UTC)

func TestTradeGenerator_Trades(t *testing.T) {
	g := NewESTradeGenerator(42, rand.New(rand.NewSource(1)), start, 100*time.Second, 0.05, 0.2, zaptest.NewLogger(t))
	assert.Equal(t, dbn.SchemaTrades, g.Schema())

	quarter := dbn.FixedPriceScale / 4
	var last dbn.UnixNanos
	var n int
	for {
		rec, err := g.Next()
		if errors.Is(err, ErrEof) {
			break
		}
		require.NoError(t, err)
		n++

		trade, err := dbn.Get[dbn.TradeMsg](rec)
		require.NoError(t, err)
		assert.Equal(t, uint32(42), trade.Hd.InstrumentID)
		assert.Greater(t, trade.Hd.TsEvent, last)
		assert.Equal(t, trade.Hd.TsEvent, trade.TsRecv)
		assert.Zero(t, trade.Price%quarter)
		assert.Positive(t, trade.Size)
		assert.Equal(t, dbn.ActionTrade, trade.Action)
		assert.Contains(t, []dbn.Side{dbn.SideAsk, dbn.SideBid}, trade.Side)
		assert.Equal(t, uint32(n), trade.Sequence)
		last = trade.Hd.TsEvent
	}
	assert.Equal(t, 100, n)

	_, err := g.Next()
	assert.ErrorIs(t, err, ErrEof)
}

func TestTradeGenerator_Tbbo(t *testing.T) {
	g := NewTradeGenerator(7, rand.New(rand.NewSource(2)), start, 100, 0.02, 0, 0.3, 50)
	require.NoError(t, g.SetSchema(dbn.SchemaTbbo))

	for i := 0; i < 50; i++ {
		rec, err := g.Next()
		require.NoError(t, err)
		require.Equal(t, dbn.RTypeMbp1, rec.RType())

		m, err := dbn.Get[dbn.Mbp1Msg](rec)
		require.NoError(t, err)
		lvl := m.Book[0]
		assert.Less(t, lvl.BidPx, lvl.AskPx)
		if m.Side == dbn.SideBid {
			assert.Equal(t, lvl.AskPx, m.Price)
		} else {
			assert.Equal(t, lvl.BidPx, m.Price)
		}
	}
}

func TestTradeGenerator_Deterministic(t *testing.T) {
	a := NewTradeGenerator(1, rand.New(rand.NewSource(9)), start, 100, 0.02, 0, 0.3, 10)
	b := NewTradeGenerator(1, rand.New(rand.NewSource(9)), start, 100, 0.02, 0, 0.3, 10)

	for i := 0; i < 10; i++ {
		ra, err := a.Next()
		require.NoError(t, err)
		rb, err := b.Next()
		require.NoError(t, err)
		assert.Equal(t, ra.Bytes(), rb.Bytes())
	}
}

func TestTradeGenerator_SetSchema(t *testing.T) {
	g := NewTradeGenerator(1, rand.New(rand.NewSource(1)), start, 100, 0.02, 0, 0.3, 1)
	assert.ErrorIs(t, g.SetSchema(dbn.SchemaOhlcv1M), dbn.ErrUnsupportedSchema)
	assert.Equal(t, dbn.SchemaTrades, g.Schema())
}
