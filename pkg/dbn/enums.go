package dbn

import (
	"fmt"
	"strings"
	"time"
)

// UnixNanos is a timestamp in nanoseconds since the UNIX epoch.
type UnixNanos uint64

func (t UnixNanos) Time() time.Time {
	return time.Unix(0, int64(t)) // #nosec G115
}

func (t UnixNanos) IsUndef() bool { return t == UndefTimestamp }

func UnixNanosFromTime(t time.Time) UnixNanos {
	return UnixNanos(t.UnixNano()) // #nosec G115
}

// TimeDeltaNanos is a signed nanosecond delta relative to another timestamp.
type TimeDeltaNanos int32

type RType uint8

const (
	RTypeMbp0            RType = 0x00
	RTypeMbp1            RType = 0x01
	RTypeMbp10           RType = 0x0A
	RTypeOhlcvDeprecated RType = 0x11
	RTypeStatus          RType = 0x12
	RTypeInstrumentDef   RType = 0x13
	RTypeImbalance       RType = 0x14
	RTypeError           RType = 0x15
	RTypeSymbolMapping   RType = 0x16
	RTypeSystem          RType = 0x17
	RTypeStatistics      RType = 0x18
	RTypeOhlcv1S         RType = 0x20
	RTypeOhlcv1M         RType = 0x21
	RTypeOhlcv1H         RType = 0x22
	RTypeOhlcv1D         RType = 0x23
	RTypeMbo             RType = 0xA0
)

var rtypeSizes = map[RType]int{
	RTypeMbp0:            TradeMsgSize,
	RTypeMbp1:            Mbp1MsgSize,
	RTypeMbp10:           Mbp10MsgSize,
	RTypeOhlcvDeprecated: OhlcvMsgSize,
	RTypeOhlcv1S:         OhlcvMsgSize,
	RTypeOhlcv1M:         OhlcvMsgSize,
	RTypeOhlcv1H:         OhlcvMsgSize,
	RTypeOhlcv1D:         OhlcvMsgSize,
	RTypeInstrumentDef:   InstrumentDefMsgSize,
	RTypeImbalance:       ImbalanceMsgSize,
	RTypeError:           ErrorMsgSize,
	RTypeSymbolMapping:   SymbolMappingMsgSize,
	RTypeSystem:          SystemMsgSize,
	RTypeStatistics:      StatMsgSize,
	RTypeMbo:             MboMsgSize,
}

// Size returns the encoded size of the variant tagged by r, excluding any
// ts_out trailer. ok is false for tags without a known layout.
func (r RType) Size() (size int, ok bool) {
	size, ok = rtypeSizes[r]
	return
}

func (r RType) String() string {
	switch r {
	case RTypeMbp0:
		return "mbp-0"
	case RTypeMbp1:
		return "mbp-1"
	case RTypeMbp10:
		return "mbp-10"
	case RTypeOhlcvDeprecated:
		return "ohlcv-deprecated"
	case RTypeStatus:
		return "status"
	case RTypeInstrumentDef:
		return "instrument-def"
	case RTypeImbalance:
		return "imbalance"
	case RTypeError:
		return "error"
	case RTypeSymbolMapping:
		return "symbol-mapping"
	case RTypeSystem:
		return "system"
	case RTypeStatistics:
		return "statistics"
	case RTypeOhlcv1S:
		return "ohlcv-1s"
	case RTypeOhlcv1M:
		return "ohlcv-1m"
	case RTypeOhlcv1H:
		return "ohlcv-1h"
	case RTypeOhlcv1D:
		return "ohlcv-1d"
	case RTypeMbo:
		return "mbo"
	default:
		return fmt.Sprintf("rtype(0x%02X)", uint8(r))
	}
}

type Schema uint16

const (
	SchemaMbo Schema = iota
	SchemaMbp1
	SchemaMbp10
	SchemaTbbo
	SchemaTrades
	SchemaOhlcv1S
	SchemaOhlcv1M
	SchemaOhlcv1H
	SchemaOhlcv1D
	SchemaDefinition
	SchemaStatistics
	SchemaStatus
	SchemaImbalance
)

// SchemaMixed is stored in metadata when a stream mixes several schemas.
const SchemaMixed Schema = 0xFFFF

var schemaNames = map[Schema]string{
	SchemaMbo:        "mbo",
	SchemaMbp1:       "mbp-1",
	SchemaMbp10:      "mbp-10",
	SchemaTbbo:       "tbbo",
	SchemaTrades:     "trades",
	SchemaOhlcv1S:    "ohlcv-1s",
	SchemaOhlcv1M:    "ohlcv-1m",
	SchemaOhlcv1H:    "ohlcv-1h",
	SchemaOhlcv1D:    "ohlcv-1d",
	SchemaDefinition: "definition",
	SchemaStatistics: "statistics",
	SchemaStatus:     "status",
	SchemaImbalance:  "imbalance",
}

func (s Schema) String() string {
	if s == SchemaMixed {
		return "mixed"
	}
	if name, ok := schemaNames[s]; ok {
		return name
	}
	return fmt.Sprintf("schema(%d)", uint16(s))
}

func ParseSchema(s string) (Schema, error) {
	for schema, name := range schemaNames {
		if strings.EqualFold(name, s) {
			return schema, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedSchema, s)
}

func (s Schema) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Schema) UnmarshalText(text []byte) error {
	v, err := ParseSchema(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// SType is the symbology namespace a symbol is interpreted in.
type SType uint8

const (
	STypeInstrumentID SType = iota
	STypeRawSymbol
	STypeSmart
	STypeContinuous
	STypeParent
)

var stypeNames = map[SType]string{
	STypeInstrumentID: "instrument_id",
	STypeRawSymbol:    "raw_symbol",
	STypeSmart:        "smart",
	STypeContinuous:   "continuous",
	STypeParent:       "parent",
}

func (s SType) String() string {
	if name, ok := stypeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stype(%d)", uint8(s))
}

func ParseSType(s string) (SType, error) {
	for stype, name := range stypeNames {
		if strings.EqualFold(name, s) {
			return stype, nil
		}
	}
	return 0, fmt.Errorf("unknown symbology type %q", s)
}

func (s SType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SType) UnmarshalText(text []byte) error {
	v, err := ParseSType(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// Action is the event action of an order book record.
type Action byte

const (
	ActionAdd    Action = 'A'
	ActionCancel Action = 'C'
	ActionModify Action = 'M'
	ActionClear  Action = 'R'
	ActionTrade  Action = 'T'
	ActionFill   Action = 'F'
)

func (a Action) String() string { return string(rune(a)) }

// Side is the aggressing or resting side of an event.
type Side byte

const (
	SideAsk  Side = 'A'
	SideBid  Side = 'B'
	SideNone Side = 'N'
)

func (s Side) String() string { return string(rune(s)) }

type InstrumentClass byte

const (
	InstrumentClassBond         InstrumentClass = 'B'
	InstrumentClassCall         InstrumentClass = 'C'
	InstrumentClassFuture       InstrumentClass = 'F'
	InstrumentClassStock        InstrumentClass = 'K'
	InstrumentClassMixedSpread  InstrumentClass = 'M'
	InstrumentClassPut          InstrumentClass = 'P'
	InstrumentClassFutureSpread InstrumentClass = 'S'
	InstrumentClassOptionSpread InstrumentClass = 'T'
	InstrumentClassFxSpot       InstrumentClass = 'X'
)

type SecurityUpdateAction byte

const (
	SecurityUpdateActionAdd     SecurityUpdateAction = 'A'
	SecurityUpdateActionModify  SecurityUpdateAction = 'M'
	SecurityUpdateActionDelete  SecurityUpdateAction = 'D'
	SecurityUpdateActionInvalid SecurityUpdateAction = '~'
)

type MatchAlgorithm byte

const (
	MatchAlgorithmFifo                MatchAlgorithm = 'F'
	MatchAlgorithmConfigurable        MatchAlgorithm = 'K'
	MatchAlgorithmProRata             MatchAlgorithm = 'C'
	MatchAlgorithmFifoLmm             MatchAlgorithm = 'T'
	MatchAlgorithmThresholdProRata    MatchAlgorithm = 'O'
	MatchAlgorithmFifoTopLmm          MatchAlgorithm = 'S'
	MatchAlgorithmThresholdProRataLmm MatchAlgorithm = 'Q'
	MatchAlgorithmEurodollarOptions   MatchAlgorithm = 'Y'
)

type UserDefinedInstrument byte

const (
	UserDefinedInstrumentNo  UserDefinedInstrument = 'N'
	UserDefinedInstrumentYes UserDefinedInstrument = 'Y'
)

type StatType uint16

const (
	StatTypeOpeningPrice StatType = iota + 1
	StatTypeIndicativeOpeningPrice
	StatTypeSettlementPrice
	StatTypeTradingSessionLowPrice
	StatTypeTradingSessionHighPrice
	StatTypeClearedVolume
	StatTypeLowestOffer
	StatTypeHighestBid
	StatTypeOpenInterest
	StatTypeFixingPrice
	StatTypeClosePrice
	StatTypeNetChange
)

type StatUpdateAction uint8

const (
	StatUpdateActionNew    StatUpdateAction = 1
	StatUpdateActionDelete StatUpdateAction = 2
)

// FlagSet is the bit set carried by order book records.
type FlagSet uint8

const (
	FlagLast         FlagSet = 1 << 7
	FlagTob          FlagSet = 1 << 6
	FlagSnapshot     FlagSet = 1 << 5
	FlagMbp          FlagSet = 1 << 4
	FlagBadTsRecv    FlagSet = 1 << 3
	FlagMaybeBadBook FlagSet = 1 << 2
)

func (f FlagSet) Has(flag FlagSet) bool { return f&flag != 0 }
