package dbn

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Encoder writes a DBN stream. Records are written exactly as stored with
// no validation and no buffering beyond a single record.
type Encoder struct {
	w       io.Writer
	scratch []byte
}

// NewEncoder writes md to w and returns an Encoder for the records that
// follow it.
func NewEncoder(w io.Writer, md Metadata) (*Encoder, error) {
	if err := EncodeMetadata(w, md); err != nil {
		return nil, err
	}
	return &Encoder{w: w, scratch: make([]byte, 0, Mbp10MsgSize+TsOutSize)}, nil
}

// EncodeRecord writes the fixed layout of m.
func (e *Encoder) EncodeRecord(m Msg) error {
	buf, err := AppendMsg(e.scratch[:0], m)
	if err != nil {
		return err
	}
	e.scratch = buf
	return e.write(buf)
}

// EncodeRecordTsOut writes m followed by a ts_out trailer. The header
// Length of m must already account for the trailer.
func (e *Encoder) EncodeRecordTsOut(m Msg, tsOut UnixNanos) error {
	buf, err := AppendMsg(e.scratch[:0], m)
	if err != nil {
		return err
	}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(tsOut))
	e.scratch = buf
	return e.write(buf)
}

// EncodeRecordView writes the bytes of an already framed record.
func (e *Encoder) EncodeRecordView(r Record) error {
	return e.write(r.Bytes())
}

func (e *Encoder) write(b []byte) error {
	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("unable to write record: %w", err)
	}
	return nil
}

// AppendMsg appends the fixed layout of m to dst.
func AppendMsg(dst []byte, m Msg) ([]byte, error) {
	buf, err := binary.Append(dst, binary.LittleEndian, m)
	if err != nil {
		return dst, fmt.Errorf("unable to encode %T: %w", m, err)
	}
	return buf, nil
}

// RecordOf encodes m into an owning record view.
func RecordOf(m Msg) (Record, error) {
	buf, err := AppendMsg(nil, m)
	if err != nil {
		return Record{}, err
	}
	return NewRecord(buf)
}
