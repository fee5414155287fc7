// Package session coordinates one printer connection: it owns the
// transport, feeds decoded frames into the state reconciler, and exposes
// the snapshot and the command dispatcher to embedding hosts.
//
// One Session is constructed per configured printer; sessions share no
// state and are independently torn down.
package session

import (
	"log"
	"sync"
	"time"

	"github.com/crealink/crealink/internal/auth"
	"github.com/crealink/crealink/internal/codec"
	"github.com/crealink/crealink/internal/state"
	"github.com/crealink/crealink/internal/transport"
)

// Default ports for the two printer lines.
const (
	PortFDM   = 9999  // K1 series and other newer FDM printers
	PortResin = 18188 // legacy Halot resin printers
)

// sampleInterval throttles journal snapshot samples.
const sampleInterval = 30 * time.Second

// Recorder persists telemetry history. Implemented by the journal package;
// a nil Recorder disables persistence.
type Recorder interface {
	RecordTransition(from, to state.Lifecycle, at time.Time) error
	RecordSample(snap state.Snapshot, at time.Time) error
}

// Options configures a Session.
type Options struct {
	Host     string
	Port     int
	Password string

	// Transport tuning. Zero values use the transport defaults.
	ConnectTimeout time.Duration
	StaleAfter     time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// CommandRate and CommandBurst bound dispatcher sends per second.
	// Zero values use the dispatcher defaults.
	CommandRate  float64
	CommandBurst int

	// Journal, if non-nil, records lifecycle transitions and periodic
	// snapshot samples.
	Journal Recorder

	// TransportURL overrides the derived ws:// URL. Used by tests.
	TransportURL string
}

// Session is the top-level coordinator for one printer.
type Session struct {
	opts Options

	tr   *transport.Transport
	disp *Dispatcher

	mu        sync.Mutex
	rec       *state.Reconciler
	observers []func(state.Snapshot)

	lastSample time.Time
	closeOnce  sync.Once
	readerDone chan struct{}
}

// New constructs a session and begins connecting immediately.
func New(opts Options) *Session {
	if opts.Port == 0 {
		opts.Port = PortFDM
	}

	s := &Session{
		opts:       opts,
		rec:        state.New(fallbackModel(opts.Port)),
		readerDone: make(chan struct{}),
	}
	s.disp = newDispatcher(s, opts.CommandRate, opts.CommandBurst)

	s.tr = transport.New(transport.Options{
		Host:           opts.Host,
		Port:           opts.Port,
		URL:            opts.TransportURL,
		ConnectTimeout: opts.ConnectTimeout,
		StaleAfter:     opts.StaleAfter,
		BackoffInitial: opts.BackoffInitial,
		BackoffMax:     opts.BackoffMax,
		Handshake:      s.handshake,
		OnStateChange:  s.onConnState,
	})
	s.tr.Start()
	go s.readLoop()

	return s
}

// fallbackModel infers a coarse printer family from the configured port
// for frames that never identify the model.
func fallbackModel(port int) string {
	switch port {
	case PortFDM:
		return "K1 Series (FDM)"
	case PortResin:
		return "Halot Series (Resin)"
	}
	return ""
}

// Snapshot returns a copy of the current accumulated printer state.
func (s *Session) Snapshot() state.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Snapshot()
}

// Dispatcher returns the command dispatcher bound to this session.
func (s *Session) Dispatcher() *Dispatcher {
	return s.disp
}

// ConnState returns the transport's connection state.
func (s *Session) ConnState() transport.State {
	return s.tr.State()
}

// OnUpdate registers an observer invoked with a snapshot copy after every
// applied frame and every connection state change. Observers run on the
// session's receive goroutine; keep them fast.
func (s *Session) OnUpdate(fn func(state.Snapshot)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Reset discards the accumulated snapshot, as when the embedding host
// re-configures the printer entry.
func (s *Session) Reset() {
	s.mu.Lock()
	s.rec.Reset()
	s.mu.Unlock()
}

// Close releases the transport and stops the receive loop. It is
// idempotent and does not wait for outstanding sends.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.tr.Close()
		<-s.readerDone
	})
}

// handshake runs after every successful connect: it sends the legacy
// status request (carrying the auth token when a password is configured)
// and asks for the printer parameter block to prime model and firmware
// fields.
func (s *Session) handshake(send func([]byte) error) error {
	hello, err := auth.LegacyRequest("GET_PRINT_STATUS", s.opts.Password)
	if err != nil {
		return err
	}
	if err := send(hello); err != nil {
		return err
	}

	params, err := codec.Encode(codec.RequestPrinterParams())
	if err != nil {
		return err
	}
	return send(params)
}

// onConnState reacts to transport state transitions: while the connection
// is down the snapshot's lifecycle status is forced to offline and
// in-flight command bookkeeping is cleared. Accumulated fields keep their
// last-known values.
func (s *Session) onConnState(st transport.State) {
	if st == transport.StateConnected {
		return
	}

	s.mu.Lock()
	prev := s.rec.Snapshot().Status
	s.rec.SetOffline()
	snap := s.rec.Snapshot()
	obs := append([]func(state.Snapshot){}, s.observers...)
	s.mu.Unlock()

	s.disp.clearInFlight()
	s.recordTransition(prev, snap.Status)
	for _, fn := range obs {
		fn(snap)
	}
}

// readLoop is the single receive path: it decodes each frame and applies
// it serially to the reconciler, so the snapshot never sees concurrent
// writes.
func (s *Session) readLoop() {
	defer close(s.readerDone)

	for frame := range s.tr.Frames() {
		events, err := codec.Decode(frame)
		if err != nil {
			// Malformed frames are logged and dropped; the loop continues.
			log.Printf("session: dropping frame: %v", err)
			continue
		}

		s.mu.Lock()
		prev := s.rec.Snapshot().Status
		s.rec.Apply(events)
		snap := s.rec.Snapshot()
		obs := append([]func(state.Snapshot){}, s.observers...)
		s.mu.Unlock()

		if snap.Status != prev {
			s.recordTransition(prev, snap.Status)
		}
		s.maybeSample(snap)

		for _, fn := range obs {
			fn(snap)
		}
	}
}

// markStopIssued tells the reconciler a stop command was sent locally.
func (s *Session) markStopIssued() {
	s.mu.Lock()
	s.rec.MarkStopIssued()
	s.mu.Unlock()
}

func (s *Session) recordTransition(from, to state.Lifecycle) {
	if s.opts.Journal == nil || from == to {
		return
	}
	if err := s.opts.Journal.RecordTransition(from, to, time.Now()); err != nil {
		log.Printf("session: journal transition failed: %v", err)
	}
}

func (s *Session) maybeSample(snap state.Snapshot) {
	if s.opts.Journal == nil {
		return
	}
	now := time.Now()
	if now.Sub(s.lastSample) < sampleInterval {
		return
	}
	s.lastSample = now
	if err := s.opts.Journal.RecordSample(snap, now); err != nil {
		log.Printf("session: journal sample failed: %v", err)
	}
}
