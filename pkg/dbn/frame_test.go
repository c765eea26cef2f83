package dbn

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tradeStream(t *testing.T, n int) []byte {
	t.Helper()
	var buf []byte
	for i := range n {
		m := &TradeMsg{Hd: NewHeader(RTypeMbp0, 1, uint32(i+1), UnixNanos(i)), BookEvent: sampleBookEvent()}
		buf = append(buf, encode(t, m)...)
	}
	return buf
}

// oneByteReader returns at most one byte per Read.
type oneByteReader struct {
	r io.Reader
}

func (o *oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestFrameReader_Sequence(t *testing.T) {
	tests := []struct {
		name   string
		reader func([]byte) io.Reader
	}{
		{"whole reads", func(b []byte) io.Reader { return bytes.NewReader(b) }},
		{"partial reads", func(b []byte) io.Reader { return &oneByteReader{r: bytes.NewReader(b)} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := NewFrameReader(tt.reader(tradeStream(t, 3)))
			for i := range 3 {
				rec, err := fr.NextRecord()
				require.NoError(t, err)
				assert.Equal(t, TradeMsgSize, rec.Size())
				assert.Equal(t, uint32(i+1), rec.Header().InstrumentID)
			}
			_, err := fr.NextRecord()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestFrameReader_NeverReadsPastRecord(t *testing.T) {
	stream := tradeStream(t, 2)
	r := bytes.NewReader(stream)
	fr := NewFrameReader(r)

	_, err := fr.NextRecord()
	require.NoError(t, err)
	assert.Equal(t, TradeMsgSize, r.Len())
}

func TestFrameReader_Truncated(t *testing.T) {
	stream := tradeStream(t, 2)
	tests := []struct {
		name string
		cut  int
	}{
		{"inside header", TradeMsgSize + 5},
		{"inside body", TradeMsgSize + HeaderSize + 3},
		{"after header", TradeMsgSize + HeaderSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := NewFrameReader(bytes.NewReader(stream[:tt.cut]))
			_, err := fr.NextRecord()
			require.NoError(t, err)

			_, err = fr.NextRecord()
			assert.ErrorIs(t, err, ErrTruncated)
			assert.ErrorIs(t, err, ErrFraming)
			assert.False(t, errors.Is(err, io.EOF))
		})
	}
}

func TestFrameReader_FramingErrors(t *testing.T) {
	valid := tradeStream(t, 1)
	tests := []struct {
		name    string
		mutate  func([]byte)
		opts    []FrameOption
		wantErr bool
	}{
		{"length below header", func(b []byte) { b[0] = 2 }, nil, true},
		{"length below header lenient", func(b []byte) { b[0] = 2 }, []FrameOption{WithLenientSizes()}, true},
		{"unknown rtype", func(b []byte) { b[1] = byte(RTypeStatus) }, nil, true},
		{"unknown rtype lenient", func(b []byte) { b[1] = byte(RTypeStatus) }, []FrameOption{WithLenientSizes()}, false},
		{"size mismatch", func(b []byte) { b[1] = byte(RTypeMbo) }, nil, true},
		{"size mismatch lenient", func(b []byte) { b[1] = byte(RTypeMbo) }, []FrameOption{WithLenientSizes()}, false},
		{"missing ts_out", func([]byte) {}, []FrameOption{WithTsOut(true)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), valid...)
			tt.mutate(b)
			_, err := NewFrameReader(bytes.NewReader(b), tt.opts...).NextRecord()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrFraming)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFrameReader_TsOut(t *testing.T) {
	var stream []byte
	for i := range 2 {
		m := &Mbp10Msg{Hd: NewHeader(RTypeMbp10, 1, 1, UnixNanos(i))}
		m.Hd.Length += TsOutSize / LengthMultiplier
		stream = binary.LittleEndian.AppendUint64(append(stream, encode(t, m)...), uint64(100+i))
	}

	fr := NewFrameReader(bytes.NewReader(stream), WithTsOut(true))
	for i := range 2 {
		rec, err := fr.NextRecord()
		require.NoError(t, err)
		ts, err := rec.TsOut()
		require.NoError(t, err)
		assert.Equal(t, UnixNanos(100+i), ts)
	}
	_, err := fr.NextRecord()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReader_GrowsForLongRecords(t *testing.T) {
	// 1020 bytes is the largest length a header can express.
	b := make([]byte, 255*LengthMultiplier)
	b[0] = 255
	b[1] = byte(RTypeSystem)
	b[len(b)-1] = 0x7F

	rec, err := NewFrameReader(bytes.NewReader(b), WithLenientSizes()).NextRecord()
	require.NoError(t, err)
	assert.Equal(t, len(b), rec.Size())
	assert.Equal(t, byte(0x7F), rec.Bytes()[len(b)-1])
}

func TestFrameReader_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	fr := NewFrameReader(io.MultiReader(bytes.NewReader(tradeStream(t, 1)[:20]), &errReader{err: boom}))
	_, err := fr.NextRecord()
	assert.ErrorIs(t, err, boom)
}

type errReader struct {
	err error
}

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }
