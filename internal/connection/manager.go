package connection

import (
	"context"
	"log"
	"sync"
	"time"

	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/transport"
)

// State of the single managed connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const defaultRetryDelay = 3 * time.Second

// Handlers receive connection events. Nil fields are skipped. Handlers are
// invoked from the manager's goroutines and must not call back into Stop.
type Handlers struct {
	OnStateChange func(state State, reason string)
	OnMessage     func(msg models.Message)
	OnRoster      func(peerIDs []int)
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetryDelay overrides the fixed reconnect delay.
func WithRetryDelay(d time.Duration) Option {
	return func(m *Manager) { m.retryDelay = d }
}

// Manager owns the lifecycle of the one persistent connection to the
// messaging endpoint: connect, authenticate, detect failure, back off,
// reconnect. At most one dial attempt and at most one scheduled retry exist
// at any time, and no handler fires after Stop.
type Manager struct {
	endpoint   transport.Endpoint
	token      string
	handlers   Handlers
	retryDelay time.Duration

	// handlerMu is held across every handler invocation; Stop acquires it
	// after flagging stopped, so no callback is in flight once Stop returns.
	handlerMu sync.Mutex

	mu      sync.Mutex
	state   State
	lastErr error
	conn    transport.Conn
	retry   *time.Timer
	dialing bool
	stopped bool
}

// NewManager builds a stopped manager. Call Start once a user identity
// (token) is available.
func NewManager(endpoint transport.Endpoint, token string, handlers Handlers, opts ...Option) *Manager {
	m := &Manager{
		endpoint:   endpoint,
		token:      token,
		handlers:   handlers,
		retryDelay: defaultRetryDelay,
		state:      StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins connecting. Safe to call once.
func (m *Manager) Start() {
	m.connect()
}

// Stop tears the connection down and cancels any scheduled retry. It waits
// out any handler already running; no handler fires once Stop returns.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	// Taking the handler lock waits for an in-flight callback to return.
	m.handlerMu.Lock()
	m.handlerMu.Unlock()
}

// State reports the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError reports the most recent connection error, cleared on a
// successful handshake.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Send transmits one message over the active connection. Returns
// transport.ErrConnClosed when not connected.
func (m *Manager) Send(msg models.Message, ack func(models.Ack)) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return transport.ErrConnClosed
	}
	return conn.Send(msg, ack)
}

// connect starts a dial attempt unless one is already in flight or a
// connection exists.
func (m *Manager) connect() {
	m.mu.Lock()
	if m.stopped || m.dialing || m.conn != nil {
		m.mu.Unlock()
		return
	}
	m.dialing = true
	m.state = StateConnecting
	m.mu.Unlock()

	m.notifyState(StateConnecting, "")
	observability.IncConnectionAttempt()
	go m.dial()
}

func (m *Manager) dial() {
	ctx, cancel := context.WithTimeout(context.Background(), m.retryDelay+defaultRetryDelay)
	conn, err := m.endpoint.Dial(ctx, m.token)
	cancel()

	m.mu.Lock()
	m.dialing = false
	if m.stopped {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		m.lastErr = err
		m.state = StateDisconnected
		m.scheduleRetryLocked()
		m.mu.Unlock()
		log.Printf("connection: dial failed: %v", err)
		observability.IncConnectionFailure()
		m.notifyState(StateDisconnected, err.Error())
		return
	}
	m.conn = conn
	m.lastErr = nil
	m.state = StateConnected
	m.mu.Unlock()

	observability.IncConnectionEstablished()
	m.notifyState(StateConnected, "")
	go m.readLoop(conn)
}

// readLoop fans inbound events out to the handlers until the connection
// fails, then transitions to disconnected and schedules the retry.
func (m *Manager) readLoop(conn transport.Conn) {
	for ev := range conn.Events() {
		m.handlerMu.Lock()
		m.mu.Lock()
		stale := m.stopped || m.conn != conn
		m.mu.Unlock()
		if stale {
			m.handlerMu.Unlock()
			return
		}
		switch {
		case ev.Roster != nil:
			if m.handlers.OnRoster != nil {
				m.handlers.OnRoster(ev.Roster)
			}
		case ev.Message != nil:
			if m.handlers.OnMessage != nil {
				m.handlers.OnMessage(*ev.Message)
			}
		}
		m.handlerMu.Unlock()
	}
	m.connLost(conn)
}

func (m *Manager) connLost(conn transport.Conn) {
	m.mu.Lock()
	if m.stopped || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateDisconnected
	reason := ""
	if err := conn.Err(); err != nil {
		m.lastErr = err
		reason = err.Error()
	}
	m.scheduleRetryLocked()
	m.mu.Unlock()

	log.Printf("connection: lost: %s", reason)
	observability.IncConnectionLost()
	m.notifyState(StateDisconnected, reason)
}

// scheduleRetryLocked arms the single retry timer. A second disconnect event
// while a timer is pending is a no-op.
func (m *Manager) scheduleRetryLocked() {
	if m.retry != nil || m.stopped {
		return
	}
	m.retry = time.AfterFunc(m.retryDelay, func() {
		m.mu.Lock()
		m.retry = nil
		stopped := m.stopped
		m.mu.Unlock()
		if !stopped {
			m.connect()
		}
	})
}

func (m *Manager) notifyState(state State, reason string) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped || m.handlers.OnStateChange == nil {
		return
	}
	m.handlers.OnStateChange(state, reason)
}
