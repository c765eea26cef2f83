package live

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

// KeepGoing is returned by the record callback after every record.
type KeepGoing int

const (
	Continue KeepGoing = iota
	Stop
)

// FaultAction is the fault handler's decision.
type FaultAction int

const (
	FaultStop FaultAction = iota
	FaultRestart
)

func (a FaultAction) String() string {
	if a == FaultRestart {
		return "restart"
	}
	return "stop"
}

// Handlers are invoked on the session goroutine, one at a time.
type Handlers struct {
	// OnMetadata runs once per successful connection, before any record.
	OnMetadata func(md dbn.Metadata) error
	// OnRecord receives a view valid only for the duration of the call.
	OnRecord func(rec dbn.Record) (KeepGoing, error)
	// OnFault decides how the session continues after an error. Without
	// it every fault fails the session.
	OnFault func(err error) FaultAction
}

// ReconnectPolicy bounds the restarts requested by the fault handler.
// Consecutive restarts that never reach streaming count as one run of
// attempts; the count resets once a connection starts streaming.
type ReconnectPolicy struct {
	// MaxAttempts is the number of restarts allowed in a row. Zero selects
	// the default and a negative value removes the limit.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

var DefaultReconnectPolicy = ReconnectPolicy{
	MaxAttempts:     5,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     30 * time.Second,
	Multiplier:      2,
}

func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultReconnectPolicy.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultReconnectPolicy.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultReconnectPolicy.MaxInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultReconnectPolicy.Multiplier
	}
	return p
}

func (p ReconnectPolicy) newBackOff() backoff.BackOff {
	p = p.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = p.Multiplier
	bo.MaxElapsedTime = 0
	bo.Reset()

	if p.MaxAttempts < 0 {
		return bo
	}
	return backoff.WithMaxRetries(bo, uint64(p.MaxAttempts))
}
