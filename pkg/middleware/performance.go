package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
)

type Performance struct {
	logger *zap.Logger

	latency *prometheus.HistogramVec

	totalRecordHandlerDur   time.Duration
	totalMetadataHandlerDur time.Duration
	metadataCalls           int64
}

func NewPerformance(logger *zap.Logger, reg prometheus.Registerer) *Performance {
	return &Performance{
		logger: logger,
		latency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dbn", Subsystem: "handler", Name: "duration_seconds",
			Help:    "Time spent in the record handler.",
			Buckets: prometheus.ExponentialBuckets(1e-7, 4, 12),
		}, []string{"rtype"}),
	}
}

func (p *Performance) WithRecord(handler RecordHandler) RecordHandler {
	return func(rec dbn.Record) (live.KeepGoing, error) {
		rtype := rec.RType()
		startTime := time.Now()
		keepGoing, err := handler(rec)
		elapsed := time.Since(startTime)

		p.totalRecordHandlerDur += elapsed
		p.latency.WithLabelValues(rtype.String()).Observe(elapsed.Seconds())
		return keepGoing, err
	}
}

func (p *Performance) WithMetadata(handler func(dbn.Metadata) error) func(dbn.Metadata) error {
	return func(md dbn.Metadata) error {
		startTime := time.Now()
		err := handler(md)
		p.totalMetadataHandlerDur += time.Since(startTime)
		p.metadataCalls++
		return err
	}
}

func (p *Performance) PrintStatistics(t *Telemetry) {
	if t == nil {
		p.logger.Warn("Telemetry is nil; cannot compute performance statistics")
		return
	}

	var fields []zap.Field

	if records := t.Total(); records > 0 {
		avg := p.totalRecordHandlerDur / time.Duration(records)
		fields = append(fields,
			zap.Duration("record_avg_duration", avg),
			zap.Duration("record_total_duration", p.totalRecordHandlerDur),
		)
	}

	if p.metadataCalls > 0 {
		fields = append(fields,
			zap.Duration("metadata_avg_duration", p.totalMetadataHandlerDur/time.Duration(p.metadataCalls)),
			zap.Int64("metadata_calls", p.metadataCalls),
		)
	}

	p.logger.Info("performance statistics", fields...)
}
