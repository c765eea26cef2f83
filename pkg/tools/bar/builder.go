package bar

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
	"github.com/peter-kozarec/dbnfeed/pkg/middleware"
)

var ErrUnsupportedPeriod = errors.New("bar: unsupported period")

type Option func(*Builder)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// Builder aggregates trades into OHLCV bars of one interval, keyed by
// instrument. A bar is emitted once a trade at or past the end of its
// interval arrives, or on Flush.
type Builder struct {
	logger *zap.Logger
	rtype  dbn.RType
	period dbn.UnixNanos

	next           middleware.RecordHandler
	inConstruction map[uint32]*dbn.OhlcvMsg
}

// NewBuilder returns a builder for schema, which must be one of the OHLCV
// schemas.
func NewBuilder(schema dbn.Schema, options ...Option) (*Builder, error) {
	rtype, period, err := periodOf(schema)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		logger:         zap.NewNop(),
		rtype:          rtype,
		period:         period,
		next:           middleware.NoopRecordHdl,
		inConstruction: make(map[uint32]*dbn.OhlcvMsg),
	}
	for _, option := range options {
		option(b)
	}
	return b, nil
}

func periodOf(schema dbn.Schema) (dbn.RType, dbn.UnixNanos, error) {
	switch schema {
	case dbn.SchemaOhlcv1S:
		return dbn.RTypeOhlcv1S, dbn.UnixNanos(time.Second), nil
	case dbn.SchemaOhlcv1M:
		return dbn.RTypeOhlcv1M, dbn.UnixNanos(time.Minute), nil
	case dbn.SchemaOhlcv1H:
		return dbn.RTypeOhlcv1H, dbn.UnixNanos(time.Hour), nil
	case dbn.SchemaOhlcv1D:
		return dbn.RTypeOhlcv1D, dbn.UnixNanos(24 * time.Hour), nil
	default:
		return 0, 0, fmt.Errorf("%w: %s", ErrUnsupportedPeriod, schema)
	}
}

// WithRecord replaces trades with the bars built from them. Other records
// pass through unchanged.
func (b *Builder) WithRecord(handler middleware.RecordHandler) middleware.RecordHandler {
	b.next = handler
	return func(rec dbn.Record) (live.KeepGoing, error) {
		ev, ok, err := tradeOf(rec)
		if err != nil {
			return live.Stop, err
		}
		if !ok {
			return handler(rec)
		}
		return b.construct(rec.Header(), ev)
	}
}

// tradeOf extracts the trade carried by rec, if any. Trades records are
// trades by definition; book records only when their action is a trade.
func tradeOf(rec dbn.Record) (dbn.BookEvent, bool, error) {
	switch rec.RType() {
	case dbn.RTypeMbp0:
		m, err := dbn.Get[dbn.TradeMsg](rec)
		return m.BookEvent, err == nil, err
	case dbn.RTypeMbp1:
		m, err := dbn.Get[dbn.Mbp1Msg](rec)
		return m.BookEvent, err == nil && m.Action == dbn.ActionTrade, err
	case dbn.RTypeMbp10:
		m, err := dbn.Get[dbn.Mbp10Msg](rec)
		return m.BookEvent, err == nil && m.Action == dbn.ActionTrade, err
	default:
		return dbn.BookEvent{}, false, nil
	}
}

func (b *Builder) construct(hd dbn.RecordHeader, ev dbn.BookEvent) (live.KeepGoing, error) {
	if ev.Price == dbn.UndefPrice {
		return live.Continue, nil
	}

	openTime := hd.TsEvent - hd.TsEvent%b.period

	// A trade in a later interval closes the bar in construction.
	if bar, ok := b.inConstruction[hd.InstrumentID]; ok {
		if openTime <= bar.Hd.TsEvent {
			if ev.Price > bar.High {
				bar.High = ev.Price
			}
			if ev.Price < bar.Low {
				bar.Low = ev.Price
			}
			bar.Close = ev.Price
			bar.Volume += uint64(ev.Size)
			return live.Continue, nil
		}

		delete(b.inConstruction, hd.InstrumentID)
		if keepGoing, err := b.emit(bar); err != nil || keepGoing == live.Stop {
			return keepGoing, err
		}
	}

	b.inConstruction[hd.InstrumentID] = &dbn.OhlcvMsg{
		Hd:     dbn.NewHeader(b.rtype, hd.PublisherID, hd.InstrumentID, openTime),
		Open:   ev.Price,
		High:   ev.Price,
		Low:    ev.Price,
		Close:  ev.Price,
		Volume: uint64(ev.Size),
	}
	return live.Continue, nil
}

func (b *Builder) emit(bar *dbn.OhlcvMsg) (live.KeepGoing, error) {
	rec, err := dbn.RecordOf(bar)
	if err != nil {
		return live.Stop, err
	}
	b.logger.Debug("bar closed",
		zap.Uint32("instrument_id", bar.Hd.InstrumentID),
		zap.Time("open_time", bar.Hd.TsEvent.Time()))
	return b.next(rec)
}

// Pending returns the number of bars still in construction.
func (b *Builder) Pending() int {
	return len(b.inConstruction)
}

// Flush emits every bar in construction in open time order, ties broken by
// instrument.
func (b *Builder) Flush() error {
	bars := make([]*dbn.OhlcvMsg, 0, len(b.inConstruction))
	for _, bar := range b.inConstruction {
		bars = append(bars, bar)
	}
	slices.SortFunc(bars, func(x, y *dbn.OhlcvMsg) int {
		if x.Hd.TsEvent != y.Hd.TsEvent {
			if x.Hd.TsEvent < y.Hd.TsEvent {
				return -1
			}
			return 1
		}
		return int(x.Hd.InstrumentID) - int(y.Hd.InstrumentID)
	})

	clear(b.inConstruction)
	for _, bar := range bars {
		keepGoing, err := b.emit(bar)
		if err != nil {
			return err
		}
		if keepGoing == live.Stop {
			return nil
		}
	}
	return nil
}
