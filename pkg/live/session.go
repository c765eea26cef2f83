package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/transport"
	"github.com/peter-kozarec/dbnfeed/pkg/utility"
)

const clientName = "dbnfeed"

type Config struct {
	Key     string
	Dataset string
	Dialer  transport.Dialer
	// TsOut asks the gateway to append its send timestamp to every record.
	TsOut     bool
	Reconnect ReconnectPolicy
}

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRegisterer registers the session metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Session) {
		s.registerer = reg
	}
}

// Session is a live gateway session. Subscribe and Start are called from
// the owning goroutine; all callbacks run on a single background goroutine.
type Session struct {
	cfg        Config
	id         utility.SessionID
	logger     *zap.Logger
	registerer prometheus.Registerer
	metrics    *metrics
	subs       SubscriptionSet

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once

	mu        sync.Mutex
	state     State
	err       error
	started   bool
	tr        transport.Transport
	gatewayID string
	// gen numbers attached transports; reconnectGen is the generation
	// Reconnect tore down.
	gen          uint64
	reconnectGen uint64
}

func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := validateKey(cfg.Key); err != nil {
		return nil, err
	}
	if cfg.Dataset == "" {
		return nil, fmt.Errorf("%w: dataset is required", ErrUsage)
	}
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrUsage)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:       cfg,
		id:        utility.NewSessionID(),
		logger:    zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(
		zap.String("session", s.id.String()),
		zap.String("dataset", cfg.Dataset))
	s.metrics = newMetrics(s.registerer, cfg.Dataset)
	return s, nil
}

func (s *Session) ID() utility.SessionID { return s.id }

// SessionID returns the id the gateway assigned to the current connection.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gatewayID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe adds a subscription sent on every connection. It must be
// called before Start.
func (s *Session) Subscribe(symbols []string, schema dbn.Schema, stypeIn dbn.SType, opts ...SubscribeOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.state.Terminal() {
		return fmt.Errorf("%w: subscribe after start", ErrUsage)
	}

	sub := Subscription{Symbols: symbols, Schema: schema, STypeIn: stypeIn}
	for _, opt := range opts {
		opt(&sub)
	}
	return s.subs.Add(sub)
}

// Start launches the session goroutine. It may be called once.
func (s *Session) Start(h Handlers) error {
	if h.OnRecord == nil {
		return fmt.Errorf("%w: record handler is required", ErrUsage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.started:
		return fmt.Errorf("%w: session already started", ErrUsage)
	case s.state.Terminal():
		return fmt.Errorf("%w: session is %s", ErrUsage, s.state)
	case s.subs.Len() == 0:
		return fmt.Errorf("%w: no subscriptions", ErrUsage)
	}
	s.started = true

	go s.run(h)
	return nil
}

// Reconnect asks the session goroutine to drop the current connection and
// open a new one with every subscription replayed. The fault handler is not
// consulted. It does not wait and is safe to call from a callback. A
// request made while no connection is attached is satisfied by the
// connection being opened.
func (s *Session) Reconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.state.Terminal() {
		return fmt.Errorf("%w: session is not running", ErrUsage)
	}

	if s.tr != nil {
		s.reconnectGen = s.gen
		s.closeTransportLocked()
	}
	return nil
}

// BlockForStop waits for the session to stop. It returns nil after a clean
// stop and the retained error after a failure.
func (s *Session) BlockForStop() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started && !s.State().Terminal() {
		return fmt.Errorf("%w: session not started", ErrUsage)
	}

	<-s.done
	return s.Err()
}

// BlockForStopTimeout waits at most d and reports Continue when the session
// is still running.
func (s *Session) BlockForStopTimeout(d time.Duration) KeepGoing {
	select {
	case <-s.done:
		return Stop
	default:
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.done:
		return Stop
	case <-timer.C:
		return Continue
	}
}

// Close stops the session, closes the transport and waits for the session
// goroutine to exit. It must not be called from a callback.
func (s *Session) Close() error {
	s.cancel()

	s.mu.Lock()
	s.closeTransportLocked()
	started := s.started
	if !started && !s.state.Terminal() {
		s.setStateLocked(StateStopped)
	}
	s.mu.Unlock()

	if !started {
		s.finish()
	}
	<-s.done
	return nil
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(state)
}

func (s *Session) setStateLocked(state State) {
	if s.state == state || s.state.Terminal() {
		return
	}
	s.logger.Debug("state changed",
		zap.Stringer("from", s.state),
		zap.Stringer("to", state))
	s.state = state
	s.metrics.state.Set(float64(state))
}

func (s *Session) terminate(state State, err error) {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.err = err
	}
	s.setStateLocked(state)
	s.closeTransportLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("session failed", zap.Error(err))
	} else {
		s.logger.Info("session stopped")
	}
}

// attach installs tr as the current transport unless the session is
// closing and returns its generation.
func (s *Session) attach(tr transport.Transport) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return 0, false
	}
	s.gen++
	s.tr = tr
	return s.gen, true
}

func (s *Session) closeTransportLocked() {
	if s.tr == nil {
		return
	}
	if err := s.tr.Close(); err != nil {
		s.logger.Debug("transport close failed", zap.Error(err))
	}
	s.tr = nil
}

func (s *Session) closeTransport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeTransportLocked()
}

// interrupted reports whether the connection of generation gen was torn
// down by Close or Reconnect.
func (s *Session) interrupted(gen uint64) (bool, error) {
	if s.ctx.Err() != nil {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reconnectGen == gen {
		return true, errReconnectRequested
	}
	return false, nil
}

func (s *Session) run(h Handlers) {
	defer s.finish()

	bo := s.cfg.Reconnect.newBackOff()
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			s.metrics.reconnects.Inc()
		}

		streamed, err := s.connect(h)
		s.closeTransport()
		if streamed {
			bo.Reset()
		}
		if err == nil || s.ctx.Err() != nil {
			s.terminate(StateStopped, nil)
			return
		}

		if errors.Is(err, errReconnectRequested) {
			s.logger.Info("reconnecting on request")
			s.setState(StateReconnecting)
			continue
		}

		action, ferr := s.fault(h, err)
		if ferr != nil {
			s.terminate(StateFailed, ferr)
			return
		}
		if action == FaultStop {
			s.terminate(StateStopped, nil)
			return
		}

		s.setState(StateReconnecting)
		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			s.terminate(StateFailed, fmt.Errorf("%w: %w", ErrReconnectExhausted, err))
			return
		}
		s.logger.Info("restarting after fault",
			zap.Error(err),
			zap.Duration("delay", delay))
		if !s.sleep(delay) {
			s.terminate(StateStopped, nil)
			return
		}
	}
}

func (s *Session) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// fault consults the fault handler. A nil error means the handler decided.
func (s *Session) fault(h Handlers, err error) (action FaultAction, ferr error) {
	if h.OnFault == nil {
		s.metrics.faults.WithLabelValues("none").Inc()
		return FaultStop, err
	}

	defer func() {
		if r := recover(); r != nil {
			s.metrics.faults.WithLabelValues("panic").Inc()
			ferr = &CallbackError{Callback: "fault", Err: errors.Join(err, &PanicError{Value: r, Stack: debug.Stack()})}
		}
	}()

	s.logger.Warn("fault", zap.Error(err))
	action = h.OnFault(err)
	s.metrics.faults.WithLabelValues(action.String()).Inc()
	return action, nil
}

// invoke runs a user callback and converts a returned error or a panic
// into a CallbackError.
func invoke[T any](name string, fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{Callback: name, Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()

	v, err = fn()
	if err != nil {
		return v, &CallbackError{Callback: name, Err: err}
	}
	return v, nil
}

// connect runs one connection from dial to the end of its stream. streamed
// reports whether it got as far as delivering metadata.
func (s *Session) connect(h Handlers) (streamed bool, err error) {
	s.setState(StateConnecting)
	tr, err := s.cfg.Dialer.Dial(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	gen, ok := s.attach(tr)
	if !ok {
		_ = tr.Close()
		return false, nil
	}

	s.setState(StateAuthenticating)
	hs := handshake{key: s.cfg.Key, dataset: s.cfg.Dataset, tsOut: s.cfg.TsOut, client: clientName}
	gatewayID, err := hs.authenticate(tr)
	if err != nil {
		return false, s.streamErr(gen, err)
	}
	s.mu.Lock()
	s.gatewayID = gatewayID
	s.mu.Unlock()
	s.logger.Info("authenticated", zap.String("gateway_session", gatewayID))

	s.setState(StateSubscriptionPending)
	if err := subscribe(tr, s.subs.Requests()); err != nil {
		return false, s.streamErr(gen, err)
	}

	md, err := dbn.DecodeMetadata(tr)
	if err != nil {
		return false, s.streamErr(gen, err)
	}
	if h.OnMetadata != nil {
		if _, err := invoke("metadata", func() (struct{}, error) { return struct{}{}, h.OnMetadata(md) }); err != nil {
			return false, err
		}
	}

	s.setState(StateStreaming)
	s.logger.Info("streaming",
		zap.Stringer("schema", md.Schema),
		zap.Int("subscriptions", s.subs.Len()),
		zap.Bool("ts_out", md.TsOut))

	fr := dbn.NewFrameReader(tr, dbn.WithTsOut(md.TsOut))
	var sys dbn.SystemMsg
	for {
		rec, err := fr.NextRecord()
		if err != nil {
			return true, s.streamErr(gen, err)
		}

		if rec.RType() == dbn.RTypeSystem {
			if err := rec.Decode(&sys); err == nil && sys.IsHeartbeat() {
				s.metrics.heartbeats.Inc()
				s.logger.Debug("heartbeat")
				continue
			}
		}

		s.metrics.records.WithLabelValues(rec.RType().String()).Inc()
		keep, err := invoke("record", func() (KeepGoing, error) { return h.OnRecord(rec) })
		if err != nil {
			return true, err
		}
		if keep == Stop {
			return true, nil
		}
	}
}

// streamErr classifies an error raised while talking to the gateway.
func (s *Session) streamErr(gen uint64, err error) error {
	if ok, ierr := s.interrupted(gen); ok {
		return ierr
	}
	switch {
	case errors.Is(err, ErrTransport), errors.Is(err, ErrAuthentication):
		return err
	case errors.Is(err, dbn.ErrTruncated), errors.Is(err, io.EOF):
		return fmt.Errorf("%w: gateway closed the connection: %w", ErrTransport, err)
	case errors.Is(err, dbn.ErrFraming), errors.Is(err, dbn.ErrInvalidMetadata):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}
