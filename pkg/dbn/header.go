package dbn

import (
	"encoding/binary"
	"fmt"
)

// RecordHeader is the prefix common to every record.
type RecordHeader struct {
	// Length of the record in 4-byte words.
	Length       uint8
	RType        RType
	PublisherID  uint16
	InstrumentID uint32
	TsEvent      UnixNanos
}

// Size returns the record size in bytes.
func (h RecordHeader) Size() int {
	return int(h.Length) * LengthMultiplier
}

// NewHeader builds a header whose Length matches the fixed size of rtype.
// Length is left zero for tags without a known layout.
func NewHeader(rtype RType, publisherID uint16, instrumentID uint32, tsEvent UnixNanos) RecordHeader {
	size, _ := rtype.Size()
	return RecordHeader{
		Length:       uint8(size / LengthMultiplier), // #nosec G115
		RType:        rtype,
		PublisherID:  publisherID,
		InstrumentID: instrumentID,
		TsEvent:      tsEvent,
	}
}

func decodeHeader(b []byte) RecordHeader {
	_ = b[HeaderSize-1]
	return RecordHeader{
		Length:       b[0],
		RType:        RType(b[1]),
		PublisherID:  binary.LittleEndian.Uint16(b[2:4]),
		InstrumentID: binary.LittleEndian.Uint32(b[4:8]),
		TsEvent:      UnixNanos(binary.LittleEndian.Uint64(b[8:16])),
	}
}

func (h RecordHeader) String() string {
	return fmt.Sprintf("RecordHeader{length=%d rtype=%s publisher_id=%d instrument_id=%d ts_event=%d}",
		h.Length, h.RType, h.PublisherID, h.InstrumentID, h.TsEvent)
}
