package dbn

import (
	"encoding/binary"
	"fmt"
)

// Record is a non-owning view over the bytes of one record. Views handed
// out by a FrameReader are only valid until its next call; use Clone to
// retain one.
type Record struct {
	buf []byte
}

// NewRecord validates that buf starts with a header and holds the full
// record it announces. Bytes past the record are not part of the view.
func NewRecord(buf []byte) (Record, error) {
	if len(buf) < HeaderSize {
		return Record{}, fmt.Errorf("%w: %d bytes cannot hold a record header", ErrFraming, len(buf))
	}
	size := int(buf[0]) * LengthMultiplier
	if size < HeaderSize {
		return Record{}, fmt.Errorf("%w: record length %d is shorter than its header", ErrFraming, size)
	}
	if size > len(buf) {
		return Record{}, fmt.Errorf("%w: record length %d exceeds %d available bytes", ErrFraming, size, len(buf))
	}
	return Record{buf: buf[:size]}, nil
}

func (r Record) Header() RecordHeader { return decodeHeader(r.buf) }
func (r Record) RType() RType         { return RType(r.buf[1]) }
func (r Record) Bytes() []byte        { return r.buf }

// Size returns the record size in bytes, Length * 4.
func (r Record) Size() int {
	return int(r.buf[0]) * LengthMultiplier
}

func (r Record) Clone() Record {
	return Record{buf: append([]byte(nil), r.buf...)}
}

func (r Record) Holds(m Msg) bool {
	return m.HasRType(r.RType())
}

// Decode copies the record into m after checking the tag and that the view
// holds every byte of the variant.
func (r Record) Decode(m Msg) error {
	if !m.HasRType(r.RType()) {
		return fmt.Errorf("%w: cannot decode %s record into %T", ErrRTypeMismatch, r.RType(), m)
	}
	size := binary.Size(m)
	if size <= 0 || size > len(r.buf) {
		return fmt.Errorf("%w: %s record of %d bytes is shorter than %T (%d bytes)", ErrFraming, r.RType(), len(r.buf), m, size)
	}
	if _, err := binary.Decode(r.buf[:size], binary.LittleEndian, m); err != nil {
		return fmt.Errorf("unable to decode %T: %w", m, err)
	}
	return nil
}

// Msg decodes the record into the variant matching its tag.
func (r Record) Msg() (Msg, error) {
	var m Msg
	switch r.RType() {
	case RTypeMbo:
		m = new(MboMsg)
	case RTypeMbp0:
		m = new(TradeMsg)
	case RTypeMbp1:
		m = new(Mbp1Msg)
	case RTypeMbp10:
		m = new(Mbp10Msg)
	case RTypeOhlcvDeprecated, RTypeOhlcv1S, RTypeOhlcv1M, RTypeOhlcv1H, RTypeOhlcv1D:
		m = new(OhlcvMsg)
	case RTypeInstrumentDef:
		m = new(InstrumentDefMsg)
	case RTypeImbalance:
		m = new(ImbalanceMsg)
	case RTypeStatistics:
		m = new(StatMsg)
	case RTypeError:
		m = new(ErrorMsg)
	case RTypeSymbolMapping:
		m = new(SymbolMappingMsg)
	case RTypeSystem:
		m = new(SystemMsg)
	default:
		return nil, fmt.Errorf("%w: unknown %s", ErrFraming, r.RType())
	}
	if err := r.Decode(m); err != nil {
		return nil, err
	}
	return m, nil
}

// TsOut returns the send timestamp appended by the live gateway when the
// session negotiated ts_out.
func (r Record) TsOut() (UnixNanos, error) {
	base, ok := r.RType().Size()
	if !ok {
		return 0, fmt.Errorf("%w: unknown %s", ErrFraming, r.RType())
	}
	if len(r.buf) < base+TsOutSize {
		return 0, fmt.Errorf("%s record of %d bytes carries no ts_out", r.RType(), len(r.buf))
	}
	return UnixNanos(binary.LittleEndian.Uint64(r.buf[base : base+TsOutSize])), nil
}

type msgPtr[T any] interface {
	*T
	Msg
}

// Get decodes r into a value of variant T.
//
//	trade, err := dbn.Get[dbn.TradeMsg](rec)
func Get[T any, P msgPtr[T]](r Record) (T, error) {
	var v T
	err := r.Decode(P(&v))
	return v, err
}
