// Package transport owns the raw WebSocket connection to the printer.
//
// It dials the control channel, frames inbound text messages onto a
// channel, and reconnects automatically with capped exponential backoff
// when the socket errors or the remote closes. Upper layers never manage
// the socket directly; they observe the connection state and read frames.
package transport

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/crealink/crealink/internal/printererr"
)

// State is the coarse connection state of the transport.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"

	// StateDegraded means the socket is open but no frame has arrived
	// within the stale threshold. The transport recycles the connection
	// when it enters this state.
	StateDegraded State = "degraded"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultStaleAfter     = 90 * time.Second
	defaultBackoffInitial = time.Second
	defaultBackoffMax     = 60 * time.Second
	writeTimeout          = 10 * time.Second

	// frameBuffer is the inbound frame channel capacity. The printer
	// sends a few frames per second at most; if the consumer stalls
	// longer than this, frames are dropped with a warning rather than
	// blocking the read loop.
	frameBuffer = 64
)

// Options configures a Transport.
type Options struct {
	// Host and Port locate the printer's control channel.
	Host string
	Port int

	// URL overrides the ws:// URL derived from Host and Port. Used by
	// tests to point at a local fake printer.
	URL string

	// ConnectTimeout bounds each dial attempt.
	ConnectTimeout time.Duration

	// StaleAfter is how long the transport waits for a frame before
	// declaring the connection degraded and recycling it. Zero uses the
	// default; negative disables stale detection.
	StaleAfter time.Duration

	// BackoffInitial and BackoffMax bound the reconnect delay schedule.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Handshake, if set, runs after every successful connect. The vendor
	// protocol has no real handshake, but sending a status request (with
	// the auth token when a password is configured) primes the stream.
	Handshake func(send func([]byte) error) error

	// OnStateChange, if set, is invoked on every connection state
	// transition. It is called from the transport's goroutines; keep it
	// fast and non-blocking.
	OnStateChange func(State)
}

// Transport maintains one printer connection and its reconnect loop.
type Transport struct {
	opts Options
	url  string

	mu    sync.Mutex
	conn  *websocket.Conn
	state State

	frames    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a transport. Call Start to begin connecting.
func New(opts Options) *Transport {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.StaleAfter == 0 {
		opts.StaleAfter = defaultStaleAfter
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = defaultBackoffInitial
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = defaultBackoffMax
	}
	url := opts.URL
	if url == "" {
		url = fmt.Sprintf("ws://%s:%d/", opts.Host, opts.Port)
	}
	return &Transport{
		opts:   opts,
		url:    url,
		state:  StateDisconnected,
		frames: make(chan []byte, frameBuffer),
		done:   make(chan struct{}),
	}
}

// Start launches the connect/reconnect loop. It returns immediately.
func (t *Transport) Start() {
	go t.run()
}

// Frames returns the inbound frame channel. The channel spans reconnects:
// each new connection feeds the same channel. It is closed when the
// transport is closed.
func (t *Transport) Frames() <-chan []byte {
	return t.frames
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Send writes one text frame to the printer. It fails with
// transport.not_connected when the connection is down. Sends are
// serialized internally; callers may invoke Send from any goroutine.
func (t *Transport) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateConnected || t.conn == nil {
		return printererr.NotConnected()
	}

	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return printererr.Wrap(printererr.CodeSendFailed, "write to printer failed", err)
	}
	return nil
}

// Close tears the transport down: it cancels any pending reconnect timer
// and closes the socket without waiting for outstanding sends. Close is
// idempotent.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
			t.conn = nil
		}
		t.mu.Unlock()
	})
}

// run is the connect/reconnect loop. Exactly one run goroutine exists per
// transport, so no second reconnect timer can race with a pending one.
func (t *Transport) run() {
	defer close(t.frames)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.opts.BackoffInitial
	b.MaxInterval = t.opts.BackoffMax
	b.MaxElapsedTime = 0 // retry indefinitely

	for {
		select {
		case <-t.done:
			return
		default:
		}

		t.setState(StateConnecting)
		conn, err := t.dial()
		if err != nil {
			t.setState(StateDisconnected)
			log.Printf("transport: connect to %s failed: %v", t.url, err)
			if !t.sleep(b.NextBackOff()) {
				return
			}
			continue
		}

		select {
		case <-t.done:
			// Closed while dialing; this conn is not tracked yet.
			conn.Close()
			return
		default:
		}

		b.Reset()
		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		t.setState(StateConnected)
		log.Printf("transport: connected to %s", t.url)

		if t.opts.Handshake != nil {
			if err := t.opts.Handshake(t.Send); err != nil {
				log.Printf("transport: handshake failed: %v", err)
			}
		}

		t.readLoop(conn)

		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		t.mu.Unlock()
		conn.Close()
		t.setState(StateDisconnected)

		if !t.sleep(b.NextBackOff()) {
			return
		}
	}
}

func (t *Transport) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: t.opts.ConnectTimeout}
	conn, _, err := dialer.Dial(t.url, nil)
	return conn, err
}

// readLoop consumes frames until the connection dies or goes stale.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		if t.opts.StaleAfter > 0 {
			conn.SetReadDeadline(time.Now().Add(t.opts.StaleAfter))
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			if isTimeout(err) {
				// No data inside the stale window: the printer firmware
				// sometimes wedges its stream without closing the socket.
				t.setState(StateDegraded)
				log.Printf("transport: connection stale (no frame in %s), recycling", t.opts.StaleAfter)
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("transport: connection lost: %v", err)
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		select {
		case t.frames <- data:
		case <-t.done:
			return
		default:
			log.Printf("transport: frame buffer full, dropping frame")
		}
	}
}

// sleep waits out a backoff delay; it returns false if the transport was
// closed while waiting.
func (t *Transport) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-t.done:
		return false
	}
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	old := t.state
	t.state = s
	fn := t.opts.OnStateChange
	t.mu.Unlock()

	if old == s {
		return
	}
	log.Printf("transport: connection state %s -> %s", old, s)
	if fn != nil {
		fn(s)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
