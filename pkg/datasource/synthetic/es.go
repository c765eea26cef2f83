package synthetic

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/dbnfeed/pkg/utility/fixed"
)

// NewESTradeGenerator returns a generator shaped like an E-mini S&P 500
// future: quarter point ticks, one tick spread and roughly one trade per
// second over duration.
func NewESTradeGenerator(instrumentID uint32, rng *rand.Rand, startTime time.Time, duration time.Duration, mu, sigma float64, logger *zap.Logger) *TradeGenerator {

	const (
		esStartPrice = 4500.0
		esTickSize   = 0.25

		avgTickIntervalSeconds = 1
		tickTimingVariability  = 0.45

		avgTradeSize      = 3
		tradeSizeVariance = 0.8
	)

	avgTickInterval := time.Duration(avgTickIntervalSeconds * float64(time.Second))
	estimatedTicks := int64(duration / avgTickInterval)

	g := NewTradeGenerator(instrumentID, rng, startTime, esStartPrice, esTickSize, mu, sigma, estimatedTicks)
	g.SetTickSize(fixed.FromInt64(25, 2))
	g.SetTickParameters(avgTickInterval, tickTimingVariability, avgTradeSize, tradeSizeVariance, mu, sigma)

	if logger != nil {
		logger.Debug("ES synthetic trade generator configuration",
			zap.Duration("duration", duration),
			zap.Float64("mu_annual", mu),
			zap.Float64("sigma_annual", sigma),
			zap.Float64("start_price", esStartPrice),
			zap.Int64("estimated_ticks", estimatedTicks),
			zap.Time("start_time", startTime))
	}

	return g
}
