package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

func day(d int) time.Time {
	return time.Date(2025, 10, d, 0, 0, 0, 0, time.UTC)
}

func TestSymbolStore_InsertMetadata(t *testing.T) {
	md := dbn.Metadata{Mappings: []dbn.SymbolMapping{
		{RawSymbol: "ESZ5", Intervals: []dbn.MappingInterval{
			{StartDate: day(1), EndDate: day(2), Symbol: "100"},
			{StartDate: day(2), EndDate: day(3), Symbol: "101"},
		}},
		{RawSymbol: "NQZ5", Intervals: []dbn.MappingInterval{
			{StartDate: day(1), EndDate: day(3), Symbol: "200"},
		}},
		{RawSymbol: "UNKNOWN", Intervals: []dbn.MappingInterval{
			{StartDate: day(1), EndDate: day(3), Symbol: ""},
		}},
	}}

	tests := []struct {
		name     string
		date     time.Time
		inserted int
		present  []uint32
		absent   []uint32
	}{
		{"first day", day(1), 2, []uint32{100, 200}, []uint32{101}},
		{"end is exclusive", day(2), 2, []uint32{101, 200}, []uint32{100}},
		{"every interval", time.Time{}, 3, []uint32{100, 101, 200}, nil},
		{"outside", day(5), 0, nil, []uint32{100, 101, 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := CreateSymbolStore()
			assert.Equal(t, tt.inserted, s.InsertMetadata(md, tt.date))
			for _, id := range tt.present {
				assert.True(t, s.Contains(id), id)
			}
			for _, id := range tt.absent {
				assert.False(t, s.Contains(id), id)
			}
		})
	}
}

func TestSymbolStore_InsertRecord(t *testing.T) {
	s := CreateSymbolStore()

	mapping := &dbn.SymbolMappingMsg{Hd: dbn.NewHeader(dbn.RTypeSymbolMapping, 1, 7, 0)}
	require.NoError(t, dbn.PutCString(mapping.STypeOutSymbol[:], "7"))
	rec, err := dbn.RecordOf(mapping)
	require.NoError(t, err)
	ok, err := s.InsertRecord(rec)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", s.MustGet(7))

	require.NoError(t, dbn.PutCString(mapping.STypeInSymbol[:], "ESZ5"))
	rec, err = dbn.RecordOf(mapping)
	require.NoError(t, err)
	_, err = s.InsertRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "ESZ5", s.MustGet(7))

	def := &dbn.InstrumentDefMsg{Hd: dbn.NewHeader(dbn.RTypeInstrumentDef, 1, 8, 0)}
	require.NoError(t, dbn.PutCString(def.RawSymbol[:], "NQZ5"))
	rec, err = dbn.RecordOf(def)
	require.NoError(t, err)
	ok, err = s.InsertRecord(rec)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "NQZ5", s.MustGet(8))

	trade, err := dbn.RecordOf(&dbn.TradeMsg{Hd: dbn.NewHeader(dbn.RTypeMbp0, 1, 9, 0)})
	require.NoError(t, err)
	ok, err = s.InsertRecord(trade)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestSymbolStore_Get(t *testing.T) {
	s := CreateSymbolStore()
	s.Insert(1, "ESZ5")

	symbol, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "ESZ5", symbol)

	_, err = s.Get(2)
	assert.ErrorIs(t, err, ErrSymbolNotPresent)
	assert.Equal(t, "2", s.GetOrID(2))
	assert.Panics(t, func() { s.MustGet(2) })
}
