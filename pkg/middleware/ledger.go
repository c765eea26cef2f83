package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
	"github.com/peter-kozarec/dbnfeed/pkg/tools/store"
)

// RecordStore persists decoded records.
type RecordStore interface {
	InsertBar(ctx context.Context, symbol string, bar dbn.OhlcvMsg) error
	InsertTrade(ctx context.Context, symbol string, trade dbn.TradeMsg) error
}

// Ledger writes bars and trades to a store, naming instruments by the
// symbol mappings seen so far. Store failures are logged and do not stop
// the stream.
type Ledger struct {
	ctx     context.Context
	logger  *zap.Logger
	store   RecordStore
	symbols *store.SymbolStore
}

func NewLedger(ctx context.Context, logger *zap.Logger, recordStore RecordStore) *Ledger {
	return &Ledger{
		ctx:     ctx,
		logger:  logger,
		store:   recordStore,
		symbols: store.CreateSymbolStore(),
	}
}

// Symbol returns the mapped symbol of instrumentID, or the id itself.
func (l *Ledger) Symbol(instrumentID uint32) string {
	return l.symbols.GetOrID(instrumentID)
}

// WithMetadata learns the instrument mappings carried by the metadata.
func (l *Ledger) WithMetadata(handler func(dbn.Metadata) error) func(dbn.Metadata) error {
	return func(md dbn.Metadata) error {
		l.symbols.InsertMetadata(md, time.Time{})
		return handler(md)
	}
}

func (l *Ledger) WithRecord(handler RecordHandler) RecordHandler {
	return func(rec dbn.Record) (live.KeepGoing, error) {
		if err := l.persist(rec); err != nil {
			l.logger.Warn("unable to persist record", zap.Error(err), zap.Stringer("rtype", rec.RType()))
		}
		return handler(rec)
	}
}

func (l *Ledger) persist(rec dbn.Record) error {
	switch rec.RType() {
	case dbn.RTypeSymbolMapping, dbn.RTypeInstrumentDef:
		_, err := l.symbols.InsertRecord(rec)
		return err
	case dbn.RTypeOhlcvDeprecated, dbn.RTypeOhlcv1S, dbn.RTypeOhlcv1M, dbn.RTypeOhlcv1H, dbn.RTypeOhlcv1D:
		m, err := dbn.Get[dbn.OhlcvMsg](rec)
		if err != nil {
			return err
		}
		return l.store.InsertBar(l.ctx, l.Symbol(m.Hd.InstrumentID), m)
	case dbn.RTypeMbp0:
		m, err := dbn.Get[dbn.TradeMsg](rec)
		if err != nil {
			return err
		}
		return l.store.InsertTrade(l.ctx, l.Symbol(m.Hd.InstrumentID), m)
	}
	return nil
}
