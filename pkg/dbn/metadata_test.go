package dbn

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMetadata() Metadata {
	return Metadata{
		Version:     MetadataVersion,
		Dataset:     "GLBX.MDP3",
		Schema:      SchemaTrades,
		Start:       1_700_000_000_000_000_000,
		End:         UndefTimestamp,
		Limit:       0,
		RecordCount: 3,
		STypeIn:     STypeRawSymbol,
		STypeOut:    STypeInstrumentID,
		TsOut:       true,
		Compression: CompressionNone,
		Symbols:     []string{"ESZ5", "NQZ5"},
		Partial:     []string{},
		NotFound:    []string{"XXZ9"},
		Mappings: []SymbolMapping{
			{
				RawSymbol: "ESZ5",
				Intervals: []MappingInterval{
					{
						StartDate: time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
						EndDate:   time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC),
						Symbol:    "5482",
					},
				},
			},
			{RawSymbol: "NQZ5", Intervals: []MappingInterval{}},
		},
	}
}

func TestMetadata_RoundTrip(t *testing.T) {
	want := sampleMetadata()

	var buf bytes.Buffer
	require.NoError(t, EncodeMetadata(&buf, want))
	assert.Equal(t, "DBN", buf.String()[:3])
	assert.Zero(t, buf.Len()%8)

	got, err := DecodeMetadata(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Zero(t, buf.Len())
}

func TestMetadata_DecodeStopsAtBoundary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeMetadata(&buf, Metadata{Dataset: "XNAS.ITCH", Schema: SchemaTrades}))
	buf.Write(tradeStream(t, 1))

	md, err := DecodeMetadata(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(MetadataVersion), md.Version)
	assert.Equal(t, "XNAS.ITCH", md.Dataset)

	rec, err := NewFrameReader(&buf).NextRecord()
	require.NoError(t, err)
	assert.Equal(t, RTypeMbp0, rec.RType())
}

func TestMetadata_DecodeErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeMetadata(&buf, sampleMetadata()))
	valid := buf.Bytes()

	tests := []struct {
		name    string
		input   func() []byte
		wantErr error
	}{
		{"empty", func() []byte { return nil }, ErrTruncated},
		{"short prelude", func() []byte { return valid[:5] }, ErrTruncated},
		{"short body", func() []byte { return valid[:len(valid)-9] }, ErrTruncated},
		{"bad magic", func() []byte {
			b := bytes.Clone(valid)
			b[0] = 'X'
			return b
		}, ErrInvalidMetadata},
		{"future version", func() []byte {
			b := bytes.Clone(valid)
			b[3] = MetadataVersion + 1
			return b
		}, ErrInvalidMetadata},
		{"length below fixed fields", func() []byte {
			b := bytes.Clone(valid[:metadataPreludeSize])
			b[4] = 8
			b[5], b[6], b[7] = 0, 0, 0
			return append(b, make([]byte, 8)...)
		}, ErrInvalidMetadata},
		{"length above maximum", func() []byte {
			b := bytes.Clone(valid[:metadataPreludeSize])
			binary.LittleEndian.PutUint32(b[4:], 0xFFFFFFF0)
			return b
		}, ErrInvalidMetadata},
		{"maximum length with short body", func() []byte {
			b := bytes.Clone(valid[:metadataPreludeSize])
			binary.LittleEndian.PutUint32(b[4:], MaxMetadataLength)
			return append(b, valid[metadataPreludeSize:]...)
		}, ErrTruncated},
		{"symbol count overrun", func() []byte {
			b := bytes.Clone(valid)
			b[metadataPreludeSize+metadataFixedSize] = 0xFF
			return b
		}, ErrInvalidMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMetadata(bytes.NewReader(tt.input()))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMetadata_EncodeRejectsLongFields(t *testing.T) {
	md := sampleMetadata()
	md.Dataset = "A.DATASET.NAME.TOO.LONG"
	assert.ErrorIs(t, EncodeMetadata(&bytes.Buffer{}, md), ErrInvalidMetadata)

	md = sampleMetadata()
	md.Symbols = []string{"SYMBOL.THAT.IS.WAY.TOO.LONG"}
	assert.ErrorIs(t, EncodeMetadata(&bytes.Buffer{}, md), ErrInvalidMetadata)
}

func TestMetadata_DecodeAllocatesWhatArrives(t *testing.T) {
	prelude := []byte("DBN\x01\x00\x00\x00\x00")
	binary.LittleEndian.PutUint32(prelude[4:], MaxMetadataLength)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := DecodeMetadata(bytes.NewReader(prelude))
	runtime.ReadMemStats(&after)

	assert.ErrorIs(t, err, ErrTruncated)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}
