package middleware

import (
	"go.uber.org/zap"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorBooks
	MonitorTrades
	MonitorBars
	MonitorDefinitions
	MonitorImbalances
	MonitorStatistics
	MonitorGateway
)

// monitorClass maps a record tag onto the flag that selects it.
func monitorClass(rtype dbn.RType) MonitorFlags {
	switch rtype {
	case dbn.RTypeMbo, dbn.RTypeMbp1, dbn.RTypeMbp10:
		return MonitorBooks
	case dbn.RTypeMbp0:
		return MonitorTrades
	case dbn.RTypeOhlcvDeprecated, dbn.RTypeOhlcv1S, dbn.RTypeOhlcv1M, dbn.RTypeOhlcv1H, dbn.RTypeOhlcv1D:
		return MonitorBars
	case dbn.RTypeInstrumentDef:
		return MonitorDefinitions
	case dbn.RTypeImbalance:
		return MonitorImbalances
	case dbn.RTypeStatistics:
		return MonitorStatistics
	default:
		return MonitorGateway
	}
}

type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(rtype dbn.RType) bool {
	return m.flags&MonitorAll != 0 || m.flags&monitorClass(rtype) != 0
}

func (m *Monitor) WithRecord(handler RecordHandler) RecordHandler {
	return func(rec dbn.Record) (live.KeepGoing, error) {
		if m.enabled(rec.RType()) {
			m.logger.Info("record", zap.Stringer("header", rec.Header()), zap.Int("size", rec.Size()))
		}
		return handler(rec)
	}
}

func (m *Monitor) WithMetadata(handler func(dbn.Metadata) error) func(dbn.Metadata) error {
	return func(md dbn.Metadata) error {
		m.logger.Info("metadata",
			zap.String("dataset", md.Dataset),
			zap.Stringer("schema", md.Schema),
			zap.Stringer("stype_in", md.STypeIn),
			zap.Stringer("stype_out", md.STypeOut),
			zap.Bool("ts_out", md.TsOut))
		return handler(md)
	}
}

func (m *Monitor) WithFault(handler func(error) live.FaultAction) func(error) live.FaultAction {
	return func(err error) live.FaultAction {
		action := handler(err)
		m.logger.Warn("session fault", zap.Error(err), zap.Stringer("action", action))
		return action
	}
}
