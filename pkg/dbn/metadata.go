package dbn

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/peter-kozarec/dbnfeed/pkg/utility"
)

const (
	MetadataVersion = 1
	// MaxMetadataLength bounds the metadata body length DecodeMetadata
	// accepts.
	MaxMetadataLength = 64 << 20

	metadataMagic       = "DBN"
	metadataPreludeSize = 8
	metadataFixedSize   = 104
	metadataReserved    = 46
)

// Metadata describes the stream that follows it. It is written once at the
// start of every DBN file and live session.
type Metadata struct {
	Version     uint8
	Dataset     string
	Schema      Schema
	Start       UnixNanos
	End         UnixNanos
	Limit       uint64
	RecordCount uint64
	STypeIn     SType
	STypeOut    SType
	// TsOut is set when every record carries a ts_out trailer.
	TsOut       bool
	Compression Compression
	Symbols     []string
	Partial     []string
	NotFound    []string
	Mappings    []SymbolMapping
}

// SymbolMapping resolves one requested symbol over a set of date intervals.
type SymbolMapping struct {
	RawSymbol string
	Intervals []MappingInterval
}

// MappingInterval is a half-open date range [StartDate, EndDate) in UTC.
type MappingInterval struct {
	StartDate time.Time
	EndDate   time.Time
	Symbol    string
}

type metadataFixed struct {
	Dataset             [DatasetCStrLen]byte
	Schema              Schema
	Start               UnixNanos
	End                 UnixNanos
	Limit               uint64
	RecordCount         uint64
	STypeIn             SType
	STypeOut            SType
	TsOut               uint8
	Compression         Compression
	_                   [metadataReserved]byte
	SchemaDefinitionLen uint32
}

// EncodeMetadata writes md to w, computing the length field first.
func EncodeMetadata(w io.Writer, md Metadata) error {
	fixed := metadataFixed{
		Schema:      md.Schema,
		Start:       md.Start,
		End:         md.End,
		Limit:       md.Limit,
		RecordCount: md.RecordCount,
		STypeIn:     md.STypeIn,
		STypeOut:    md.STypeOut,
		Compression: md.Compression,
	}
	if md.TsOut {
		fixed.TsOut = 1
	}
	if err := PutCString(fixed.Dataset[:], md.Dataset); err != nil {
		return fmt.Errorf("%w: dataset: %w", ErrInvalidMetadata, err)
	}

	body, err := binary.Append(make([]byte, 0, metadataFixedSize+64), binary.LittleEndian, &fixed)
	if err != nil {
		return fmt.Errorf("unable to encode metadata: %w", err)
	}
	for _, list := range [][]string{md.Symbols, md.Partial, md.NotFound} {
		if body, err = appendSymbols(body, list); err != nil {
			return err
		}
	}
	if body, err = appendMappings(body, md.Mappings); err != nil {
		return err
	}
	if pad := len(body) % 8; pad != 0 {
		body = append(body, make([]byte, 8-pad)...)
	}

	version := md.Version
	if version == 0 {
		version = MetadataVersion
	}
	prelude := make([]byte, 0, metadataPreludeSize+len(body))
	prelude = append(prelude, metadataMagic...)
	prelude = append(prelude, version)
	prelude = binary.LittleEndian.AppendUint32(prelude, uint32(len(body))) // #nosec G115
	if _, err := w.Write(append(prelude, body...)); err != nil {
		return fmt.Errorf("unable to write metadata: %w", err)
	}
	return nil
}

func appendSymbol(b []byte, s string) ([]byte, error) {
	var field [SymbolCStrLen]byte
	if err := PutCString(field[:], s); err != nil {
		return nil, fmt.Errorf("%w: symbol: %w", ErrInvalidMetadata, err)
	}
	return append(b, field[:]...), nil
}

func appendCount(b []byte, n int) ([]byte, error) {
	v, err := utility.IntToU32(n)
	if err != nil {
		return nil, fmt.Errorf("%w: count %d: %w", ErrInvalidMetadata, n, err)
	}
	return binary.LittleEndian.AppendUint32(b, v), nil
}

func appendSymbols(b []byte, symbols []string) ([]byte, error) {
	b, err := appendCount(b, len(symbols))
	if err != nil {
		return nil, err
	}
	for _, s := range symbols {
		if b, err = appendSymbol(b, s); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func appendMappings(b []byte, mappings []SymbolMapping) ([]byte, error) {
	b, err := appendCount(b, len(mappings))
	if err != nil {
		return nil, err
	}
	for _, m := range mappings {
		if b, err = appendSymbol(b, m.RawSymbol); err != nil {
			return nil, err
		}
		if b, err = appendCount(b, len(m.Intervals)); err != nil {
			return nil, err
		}
		for _, iv := range m.Intervals {
			b = binary.LittleEndian.AppendUint32(b, dateToYMD(iv.StartDate))
			b = binary.LittleEndian.AppendUint32(b, dateToYMD(iv.EndDate))
			if b, err = appendSymbol(b, iv.Symbol); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

// DecodeMetadata reads exactly one metadata block from r.
func DecodeMetadata(r io.Reader) (Metadata, error) {
	var prelude [metadataPreludeSize]byte
	if _, err := io.ReadFull(r, prelude[:]); err != nil {
		return Metadata{}, metadataReadErr(err)
	}
	if string(prelude[:3]) != metadataMagic {
		return Metadata{}, fmt.Errorf("%w: bad magic %q", ErrInvalidMetadata, prelude[:3])
	}
	md := Metadata{Version: prelude[3]}
	if md.Version == 0 || md.Version > MetadataVersion {
		return Metadata{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidMetadata, md.Version)
	}
	length := binary.LittleEndian.Uint32(prelude[4:])
	if length < metadataFixedSize {
		return Metadata{}, fmt.Errorf("%w: length %d is shorter than the fixed fields", ErrInvalidMetadata, length)
	}
	if length > MaxMetadataLength {
		return Metadata{}, fmt.Errorf("%w: length %d exceeds %d", ErrInvalidMetadata, length, MaxMetadataLength)
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(length)); err != nil {
		return Metadata{}, metadataReadErr(err)
	}
	body := buf.Bytes()

	var fixed metadataFixed
	if _, err := binary.Decode(body[:metadataFixedSize], binary.LittleEndian, &fixed); err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	md.Dataset = CString(fixed.Dataset[:])
	md.Schema = fixed.Schema
	md.Start = fixed.Start
	md.End = fixed.End
	md.Limit = fixed.Limit
	md.RecordCount = fixed.RecordCount
	md.STypeIn = fixed.STypeIn
	md.STypeOut = fixed.STypeOut
	md.TsOut = fixed.TsOut != 0
	md.Compression = fixed.Compression

	c := cursor{buf: body[metadataFixedSize:]}
	c.skip(int(fixed.SchemaDefinitionLen))
	md.Symbols = c.symbols()
	md.Partial = c.symbols()
	md.NotFound = c.symbols()
	md.Mappings = c.mappings()
	if c.err != nil {
		return Metadata{}, c.err
	}
	return md, nil
}

func metadataReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: metadata", ErrTruncated)
	}
	return fmt.Errorf("unable to read metadata: %w", err)
}

// cursor walks the variable part of the metadata body. The first failure
// sticks and turns every later read into a no-op.
type cursor struct {
	buf []byte
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > len(c.buf) {
		c.err = fmt.Errorf("%w: variable section overruns the declared length", ErrInvalidMetadata)
		return nil
	}
	b := c.buf[:n]
	c.buf = c.buf[n:]
	return b
}

func (c *cursor) skip(n int) { c.take(n) }

func (c *cursor) u32() uint32 {
	if b := c.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (c *cursor) symbol() string {
	if b := c.take(SymbolCStrLen); b != nil {
		return CString(b)
	}
	return ""
}

// count reads a list length and bounds it by the bytes left, each entry
// being at least minEntry bytes.
func (c *cursor) count(minEntry int) int {
	n := int(c.u32())
	if c.err == nil && n > len(c.buf)/minEntry {
		c.err = fmt.Errorf("%w: count %d overruns the declared length", ErrInvalidMetadata, n)
	}
	if c.err != nil {
		return 0
	}
	return n
}

func (c *cursor) symbols() []string {
	n := c.count(SymbolCStrLen)
	out := make([]string, 0, n)
	for range n {
		out = append(out, c.symbol())
	}
	return out
}

func (c *cursor) mappings() []SymbolMapping {
	n := c.count(SymbolCStrLen + 4)
	out := make([]SymbolMapping, 0, n)
	for range n {
		m := SymbolMapping{RawSymbol: c.symbol()}
		k := c.count(8 + SymbolCStrLen)
		m.Intervals = make([]MappingInterval, 0, k)
		for range k {
			start := ymdToDate(c.u32())
			end := ymdToDate(c.u32())
			m.Intervals = append(m.Intervals, MappingInterval{StartDate: start, EndDate: end, Symbol: c.symbol()})
		}
		out = append(out, m)
	}
	return out
}

func dateToYMD(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	y, m, d := t.UTC().Date()
	return uint32(y*10_000 + int(m)*100 + d) // #nosec G115
}

func ymdToDate(v uint32) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Date(int(v/10_000), time.Month(v/100%100), int(v%100), 0, 0, 0, 0, time.UTC)
}

// String renders the fields that identify the stream.
func (md Metadata) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Metadata{version=%d dataset=%s schema=%s stype_in=%s stype_out=%s ts_out=%t",
		md.Version, md.Dataset, md.Schema, md.STypeIn, md.STypeOut, md.TsOut)
	fmt.Fprintf(&b, " symbols=%d mappings=%d}", len(md.Symbols), len(md.Mappings))
	return b.String()
}
