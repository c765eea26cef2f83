package dbn

import "math"

// FixedPriceScale is the number of units per 1.0 of a fixed-point price.
const FixedPriceScale int64 = 1_000_000_000

// Sentinels for null or undefined values.
const (
	UndefPrice     int64     = math.MaxInt64
	UndefOrderSize uint32    = math.MaxUint32
	UndefTimestamp UnixNanos = math.MaxUint64
)

const (
	// LengthMultiplier converts RecordHeader.Length into bytes.
	LengthMultiplier = 4
	HeaderSize       = 16
	TsOutSize        = 8

	// SymbolCStrLen is the width of fixed symbol fields in records and metadata.
	SymbolCStrLen  = 22
	DatasetCStrLen = 16

	// AllSymbols requests every symbol of a dataset.
	AllSymbols = "ALL_SYMBOLS"
)

// Variant sizes in bytes.
const (
	MboMsgSize           = 56
	BidAskPairSize       = 32
	TradeMsgSize         = 48
	Mbp1MsgSize          = TradeMsgSize + BidAskPairSize
	Mbp10MsgSize         = TradeMsgSize + 10*BidAskPairSize
	OhlcvMsgSize         = 56
	InstrumentDefMsgSize = 360
	ImbalanceMsgSize     = 112
	StatMsgSize          = 64
	ErrorMsgSize         = 80
	SystemMsgSize        = 80
	SymbolMappingMsgSize = 80
)
