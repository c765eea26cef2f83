package synthetic

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/utility/fixed"
)

var ErrEof = errors.New("EOF")

const secondsPerYear = 365.25 * 24 * 3600

// TradeGenerator produces a geometric Brownian motion trade stream as DBN
// records. Records returned by Next alias an internal buffer and are valid
// until the following call.
type TradeGenerator struct {
	publisherID  uint16
	instrumentID uint32
	schema       dbn.Schema
	rng          *rand.Rand

	drift     float64
	diffusion float64
	steps     int64
	t         int64
	sequence  uint32

	tickSize        fixed.Point
	fullSpread      float64
	avgTickInterval time.Duration
	tickVariability float64
	avgSize         float64
	sizeVariance    float64

	lastTime  time.Time
	lastPrice float64

	buf []byte
}

// NewTradeGenerator returns a generator of steps trades starting at
// startPrice. mu and sigma are annualised and scaled to the average tick
// interval.
func NewTradeGenerator(
	instrumentID uint32,
	rng *rand.Rand,
	startTime time.Time,
	startPrice, fullSpread, mu, sigma float64,
	steps int64) *TradeGenerator {

	g := &TradeGenerator{
		publisherID:  1,
		instrumentID: instrumentID,
		schema:       dbn.SchemaTrades,
		rng:          rng,
		steps:        steps,

		tickSize:        fixed.FromInt64(1, 2),
		fullSpread:      fullSpread,
		avgTickInterval: 333 * time.Millisecond,
		tickVariability: 0.3,
		avgSize:         5,
		sizeVariance:    0.5,

		lastTime:  startTime,
		lastPrice: startPrice,

		buf: make([]byte, 0, dbn.Mbp1MsgSize),
	}
	g.setDynamics(mu, sigma)
	return g
}

func (g *TradeGenerator) setDynamics(mu, sigma float64) {
	dt := g.avgTickInterval.Seconds() / secondsPerYear
	g.drift = (mu - sigma*sigma/2) * dt
	g.diffusion = sigma * math.Sqrt(dt)
}

// SetSchema selects trades or tbbo records.
func (g *TradeGenerator) SetSchema(schema dbn.Schema) error {
	switch schema {
	case dbn.SchemaTrades, dbn.SchemaTbbo:
		g.schema = schema
		return nil
	default:
		return fmt.Errorf("%w: %s", dbn.ErrUnsupportedSchema, schema)
	}
}

func (g *TradeGenerator) Schema() dbn.Schema { return g.schema }

func (g *TradeGenerator) SetPublisherID(publisherID uint16) {
	g.publisherID = publisherID
}

func (g *TradeGenerator) SetTickParameters(avgInterval time.Duration, intervalVariability, avgSize, sizeVariance float64, mu, sigma float64) {
	g.avgTickInterval = avgInterval
	g.tickVariability = intervalVariability
	g.avgSize = avgSize
	g.sizeVariance = sizeVariance
	g.setDynamics(mu, sigma)
}

// SetTickSize sets the minimum price increment every price is rounded to.
func (g *TradeGenerator) SetTickSize(tickSize fixed.Point) {
	g.tickSize = tickSize
}

func (g *TradeGenerator) Next() (dbn.Record, error) {
	if g.t >= g.steps {
		return dbn.Record{}, ErrEof
	}

	z := g.rng.NormFloat64()
	g.lastPrice *= math.Exp(g.drift + g.diffusion*z)
	g.lastTime = g.lastTime.Add(g.generateTickInterval())
	g.t++
	g.sequence++

	bid, err := g.round(g.lastPrice - g.fullSpread/2)
	if err != nil {
		return dbn.Record{}, err
	}
	ask, err := g.round(g.lastPrice + g.fullSpread/2)
	if err != nil {
		return dbn.Record{}, err
	}
	if ask <= bid {
		tick, _ := g.tickSize.Price()
		ask = bid + tick
	}

	// Buyers lift the offer, sellers hit the bid.
	side, price := dbn.SideBid, ask
	if g.rng.Intn(2) == 0 {
		side, price = dbn.SideAsk, bid
	}

	ts := dbn.UnixNanosFromTime(g.lastTime)
	ev := dbn.BookEvent{
		Price:    price,
		Size:     g.generateSize(),
		Action:   dbn.ActionTrade,
		Side:     side,
		Flags:    dbn.FlagLast,
		TsRecv:   ts,
		Sequence: g.sequence,
	}

	var msg dbn.Msg
	if g.schema == dbn.SchemaTbbo {
		m := &dbn.Mbp1Msg{Hd: dbn.NewHeader(dbn.RTypeMbp1, g.publisherID, g.instrumentID, ts), BookEvent: ev}
		m.Book[0] = dbn.BidAskPair{
			BidPx: bid, AskPx: ask,
			BidSz: g.generateSize(), AskSz: g.generateSize(),
			BidCt: 1, AskCt: 1,
		}
		msg = m
	} else {
		msg = &dbn.TradeMsg{Hd: dbn.NewHeader(dbn.RTypeMbp0, g.publisherID, g.instrumentID, ts), BookEvent: ev}
	}

	if g.buf, err = dbn.AppendMsg(g.buf[:0], msg); err != nil {
		return dbn.Record{}, err
	}
	return dbn.NewRecord(g.buf)
}

func (g *TradeGenerator) round(v float64) (int64, error) {
	tick, _ := g.tickSize.Float64()
	ticks := math.Max(1, math.Round(v/tick))
	px, ok := g.tickSize.Mul(fixed.FromInt64(int64(ticks), 0)).Price()
	if !ok {
		return 0, fmt.Errorf("price %f overflows a wire price", v)
	}
	return px, nil
}

func (g *TradeGenerator) generateTickInterval() time.Duration {
	if g.tickVariability <= 0 {
		return g.avgTickInterval
	}

	mean := float64(g.avgTickInterval.Nanoseconds())
	interval := g.rng.ExpFloat64() * mean

	minInterval := mean * (1.0 - g.tickVariability)
	maxInterval := mean * (1.0 + g.tickVariability*3)

	if interval < minInterval {
		interval = minInterval
	} else if interval > maxInterval {
		interval = maxInterval
	}

	return time.Duration(int64(interval))
}

func (g *TradeGenerator) generateSize() uint32 {
	size := math.Round(g.avgSize * math.Exp(g.rng.NormFloat64()*g.sizeVariance))
	if size < 1 {
		return 1
	}
	if size > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(size)
}
