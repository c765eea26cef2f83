package datasource

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

var errDrained = errors.New("drained")

type sliceSource struct {
	records [][]byte
}

func (s *sliceSource) Next() (dbn.Record, error) {
	if len(s.records) == 0 {
		return dbn.Record{}, errDrained
	}
	b := s.records[0]
	s.records = s.records[1:]
	return dbn.NewRecord(b)
}

func tradeBytes(t *testing.T, id uint32) []byte {
	t.Helper()
	b, err := binary.Append(nil, binary.LittleEndian, &dbn.TradeMsg{Hd: dbn.NewHeader(dbn.RTypeMbp0, 1, id, 0)})
	require.NoError(t, err)
	return b
}

func TestCreateRecordDispatcher(t *testing.T) {
	src := &sliceSource{records: [][]byte{tradeBytes(t, 1), tradeBytes(t, 2)}}

	var ids []uint32
	dispatch := CreateRecordDispatcher(src, func(rec dbn.Record) error {
		ids = append(ids, rec.Header().InstrumentID)
		return nil
	})

	require.NoError(t, dispatch())
	require.NoError(t, dispatch())
	assert.ErrorIs(t, dispatch(), errDrained)
	assert.Equal(t, []uint32{1, 2}, ids)
}

func TestCreateRecordDispatcher_HandlerError(t *testing.T) {
	src := &sliceSource{records: [][]byte{tradeBytes(t, 1)}}
	boom := errors.New("boom")

	dispatch := CreateRecordDispatcher(src, func(dbn.Record) error { return boom })
	assert.ErrorIs(t, dispatch(), boom)
}
