package dbn

import "strings"

// Msg is implemented by pointers to every fixed-layout record variant.
type Msg interface {
	Header() *RecordHeader
	// HasRType reports whether records tagged rtype decode into this variant.
	HasRType(rtype RType) bool
}

// MboMsg is a market-by-order event.
type MboMsg struct {
	Hd        RecordHeader
	OrderID   uint64
	Price     int64
	Size      uint32
	Flags     FlagSet
	ChannelID uint8
	Action    Action
	Side      Side
	TsRecv    UnixNanos
	TsInDelta TimeDeltaNanos
	Sequence  uint32
}

func (m *MboMsg) Header() *RecordHeader   { return &m.Hd }
func (*MboMsg) HasRType(rtype RType) bool { return rtype == RTypeMbo }

type BidAskPair struct {
	BidPx int64
	AskPx int64
	BidSz uint32
	AskSz uint32
	BidCt uint32
	AskCt uint32
}

// BookEvent is the body shared by the market-by-price variants.
type BookEvent struct {
	Price     int64
	Size      uint32
	Action    Action
	Side      Side
	Flags     FlagSet
	// Depth of the actual book change.
	Depth     uint8
	TsRecv    UnixNanos
	TsInDelta TimeDeltaNanos
	Sequence  uint32
}

// MbpMsg is the closed family TradeMsg, Mbp1Msg and Mbp10Msg.
type MbpMsg interface {
	Msg
	Event() *BookEvent
	Levels() []BidAskPair
}

// TradeMsg is the market-by-price variant without book levels.
type TradeMsg struct {
	Hd RecordHeader
	BookEvent
}

func (m *TradeMsg) Header() *RecordHeader   { return &m.Hd }
func (*TradeMsg) HasRType(rtype RType) bool { return rtype == RTypeMbp0 }
func (m *TradeMsg) Event() *BookEvent       { return &m.BookEvent }
func (m *TradeMsg) Levels() []BidAskPair    { return nil }

// Mbp1Msg carries the top of book. TBBO records use the same layout.
type Mbp1Msg struct {
	Hd RecordHeader
	BookEvent
	Book [1]BidAskPair
}

func (m *Mbp1Msg) Header() *RecordHeader   { return &m.Hd }
func (*Mbp1Msg) HasRType(rtype RType) bool { return rtype == RTypeMbp1 }
func (m *Mbp1Msg) Event() *BookEvent       { return &m.BookEvent }
func (m *Mbp1Msg) Levels() []BidAskPair    { return m.Book[:] }

type Mbp10Msg struct {
	Hd RecordHeader
	BookEvent
	Book [10]BidAskPair
}

func (m *Mbp10Msg) Header() *RecordHeader   { return &m.Hd }
func (*Mbp10Msg) HasRType(rtype RType) bool { return rtype == RTypeMbp10 }
func (m *Mbp10Msg) Event() *BookEvent       { return &m.BookEvent }
func (m *Mbp10Msg) Levels() []BidAskPair    { return m.Book[:] }

// OhlcvMsg is an open, high, low, close and volume bar. The interval is
// carried by the rtype only.
type OhlcvMsg struct {
	Hd     RecordHeader
	Open   int64
	High   int64
	Low    int64
	Close  int64
	Volume uint64
}

func (m *OhlcvMsg) Header() *RecordHeader { return &m.Hd }

func (*OhlcvMsg) HasRType(rtype RType) bool {
	switch rtype {
	case RTypeOhlcvDeprecated, RTypeOhlcv1S, RTypeOhlcv1M, RTypeOhlcv1H, RTypeOhlcv1D:
		return true
	default:
		return false
	}
}

// InstrumentDefMsg describes a tradable instrument.
type InstrumentDefMsg struct {
	Hd                      RecordHeader
	TsRecv                  UnixNanos
	MinPriceIncrement       int64
	DisplayFactor           int64
	Expiration              UnixNanos
	Activation              UnixNanos
	HighLimitPrice          int64
	LowLimitPrice           int64
	MaxPriceVariation       int64
	TradingReferencePrice   int64
	UnitOfMeasureQty        int64
	MinPriceIncrementAmount int64
	PriceRatio              int64
	InstAttribValue         int32
	UnderlyingID            uint32
	_                       [4]byte
	MarketDepthImplied      int32
	MarketDepth             int32
	MarketSegmentID         uint32
	MaxTradeVol             uint32
	MinLotSize              int32
	MinLotSizeBlock         int32
	MinLotSizeRoundLot      int32
	MinTradeVol             uint32
	_                       [4]byte
	ContractMultiplier      int32
	DecayQuantity           int32
	OriginalContractSize    int32
	_                       [4]byte
	TradingReferenceDate    uint16
	ApplID                  int16
	MaturityYear            uint16
	DecayStartDate          uint16
	ChannelID               uint16
	Currency                [4]byte
	SettlCurrency           [4]byte
	Secsubtype              [6]byte
	RawSymbol               [SymbolCStrLen]byte
	Group                   [21]byte
	Exchange                [5]byte
	Asset                   [7]byte
	Cfi                     [7]byte
	SecurityType            [7]byte
	UnitOfMeasure           [31]byte
	Underlying              [21]byte
	StrikePriceCurrency     [4]byte
	InstrumentClass         InstrumentClass
	_                       [2]byte
	StrikePrice             int64
	_                       [6]byte
	MatchAlgorithm          MatchAlgorithm
	MdSecurityTradingStatus uint8
	MainFraction            uint8
	PriceDisplayFormat      uint8
	SettlPriceType          uint8
	SubFraction             uint8
	UnderlyingProduct       uint8
	SecurityUpdateAction    SecurityUpdateAction
	MaturityMonth           uint8
	MaturityDay             uint8
	MaturityWeek            uint8
	UserDefinedInstrument   UserDefinedInstrument
	ContractMultiplierUnit  int8
	FlowScheduleType        int8
	TickRule                uint8
	_                       [3]byte
}

func (m *InstrumentDefMsg) Header() *RecordHeader   { return &m.Hd }
func (*InstrumentDefMsg) HasRType(rtype RType) bool { return rtype == RTypeInstrumentDef }

func (m *InstrumentDefMsg) Symbol() string       { return CString(m.RawSymbol[:]) }
func (m *InstrumentDefMsg) ExchangeCode() string { return CString(m.Exchange[:]) }
func (m *InstrumentDefMsg) AssetCode() string    { return CString(m.Asset[:]) }
func (m *InstrumentDefMsg) CurrencyCode() string { return CString(m.Currency[:]) }

// ImbalanceMsg is an auction order imbalance.
type ImbalanceMsg struct {
	Hd                   RecordHeader
	TsRecv               UnixNanos
	RefPrice             int64
	AuctionTime          UnixNanos
	ContBookClrPrice     int64
	AuctInterestClrPrice int64
	SsrFillingPrice      int64
	IndMatchPrice        int64
	UpperCollar          int64
	LowerCollar          int64
	PairedQty            uint32
	TotalImbalanceQty    uint32
	MarketImbalanceQty   uint32
	UnpairedQty          uint32
	AuctionType          byte
	Side                 Side
	AuctionStatus        uint8
	FreezeStatus         uint8
	NumExtensions        uint8
	UnpairedSide         Side
	SignificantImbalance byte
	_                    [1]byte
}

func (m *ImbalanceMsg) Header() *RecordHeader   { return &m.Hd }
func (*ImbalanceMsg) HasRType(rtype RType) bool { return rtype == RTypeImbalance }

// StatMsg carries one publisher statistic identified by StatType.
type StatMsg struct {
	Hd           RecordHeader
	TsRecv       UnixNanos
	TsRef        UnixNanos
	Price        int64
	Quantity     int32
	Sequence     uint32
	TsInDelta    TimeDeltaNanos
	StatType     StatType
	ChannelID    uint16
	UpdateAction StatUpdateAction
	StatFlags    uint8
	_            [6]byte
}

func (m *StatMsg) Header() *RecordHeader   { return &m.Hd }
func (*StatMsg) HasRType(rtype RType) bool { return rtype == RTypeStatistics }

// ErrorMsg is sent by the live gateway only.
type ErrorMsg struct {
	Hd  RecordHeader
	Err [64]byte
}

func (m *ErrorMsg) Header() *RecordHeader   { return &m.Hd }
func (*ErrorMsg) HasRType(rtype RType) bool { return rtype == RTypeError }
func (m *ErrorMsg) Text() string            { return CString(m.Err[:]) }

type SymbolMappingMsg struct {
	Hd             RecordHeader
	STypeInSymbol  [SymbolCStrLen]byte
	STypeOutSymbol [SymbolCStrLen]byte
	_              [4]byte
	StartTs        UnixNanos
	EndTs          UnixNanos
}

func (m *SymbolMappingMsg) Header() *RecordHeader   { return &m.Hd }
func (*SymbolMappingMsg) HasRType(rtype RType) bool { return rtype == RTypeSymbolMapping }
func (m *SymbolMappingMsg) InSymbol() string        { return CString(m.STypeInSymbol[:]) }
func (m *SymbolMappingMsg) OutSymbol() string       { return CString(m.STypeOutSymbol[:]) }

const heartbeatPrefix = "Heartbeat"

// SystemMsg is a gateway notice. Heartbeats are keep-alives, not events.
type SystemMsg struct {
	Hd  RecordHeader
	Msg [64]byte
}

func (m *SystemMsg) Header() *RecordHeader   { return &m.Hd }
func (*SystemMsg) HasRType(rtype RType) bool { return rtype == RTypeSystem }
func (m *SystemMsg) Text() string            { return CString(m.Msg[:]) }

func (m *SystemMsg) IsHeartbeat() bool {
	return strings.HasPrefix(m.Text(), heartbeatPrefix)
}
