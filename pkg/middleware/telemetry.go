package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
)

// Telemetry counts records per rtype. Handlers run on a single goroutine,
// so the counters are not synchronized.
type Telemetry struct {
	logger *zap.Logger

	records *prometheus.CounterVec
	errors  prometheus.Counter

	recordCounter map[dbn.RType]int64
	errorCounter  int64
	stopCounter   int64
}

// NewTelemetry registers its collectors with reg unless reg is nil.
func NewTelemetry(logger *zap.Logger, reg prometheus.Registerer) *Telemetry {
	factory := promauto.With(reg)
	return &Telemetry{
		logger: logger,
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbn", Subsystem: "handler", Name: "records_total",
			Help: "Records passed to the record handler.",
		}, []string{"rtype"}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dbn", Subsystem: "handler", Name: "errors_total",
			Help: "Record handler calls that returned an error.",
		}),
		recordCounter: make(map[dbn.RType]int64),
	}
}

func (t *Telemetry) WithRecord(handler RecordHandler) RecordHandler {
	return func(rec dbn.Record) (live.KeepGoing, error) {
		rtype := rec.RType()
		t.recordCounter[rtype]++
		t.records.WithLabelValues(rtype.String()).Inc()

		keepGoing, err := handler(rec)
		if err != nil {
			t.errorCounter++
			t.errors.Inc()
		}
		if keepGoing == live.Stop {
			t.stopCounter++
		}
		return keepGoing, err
	}
}

func (t *Telemetry) Count(rtype dbn.RType) int64 {
	return t.recordCounter[rtype]
}

func (t *Telemetry) Total() int64 {
	var total int64
	for _, n := range t.recordCounter {
		total += n
	}
	return total
}

func (t *Telemetry) PrintStatistics() {
	fields := []zap.Field{
		zap.Int64("records", t.Total()),
		zap.Int64("errors", t.errorCounter),
		zap.Int64("stops", t.stopCounter),
	}
	for rtype, n := range t.recordCounter {
		fields = append(fields, zap.Int64(rtype.String()+"_records", n))
	}
	t.logger.Info("record statistics", fields...)
}
